package models

import (
	"fmt"
	"math"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validateMarket(t, s0, sigmaATM float64) error {
	if !(t > 0) || !finite(t) {
		return validationError("T", "time to expiry must be positive", t)
	}
	if !(s0 > 0) || !finite(s0) {
		return validationError("S0", "forward must be positive", s0)
	}
	if !(sigmaATM > 0) || !finite(sigmaATM) {
		return validationError("sigmaATM", "ATM volatility must be positive", sigmaATM)
	}
	return nil
}

func validateSlopes(name string, grid, slopes []float64) error {
	if len(grid) == 0 {
		return validationError(name, "at least one grid point required", len(grid))
	}
	if len(slopes) != len(grid) {
		return validationError(name, fmt.Sprintf("expected %d slopes", len(grid)), len(slopes))
	}
	for i, v := range slopes {
		if !finite(v) {
			return validationError(name, fmt.Sprintf("slope %d not finite", i), v)
		}
	}
	return nil
}

// validateLevels checks that Sp increases above S0 and Sm decreases below it.
func validateLevels(s0 float64, sp, sm, mp, mm []float64) error {
	if err := validateSlopes("Mp", sp, mp); err != nil {
		return err
	}
	if err := validateSlopes("Mm", sm, mm); err != nil {
		return err
	}
	prev := s0
	for i, s := range sp {
		if !(s > prev) || !finite(s) {
			return validationError("Sp", fmt.Sprintf("grid point %d not strictly increasing above forward", i), s)
		}
		prev = s
	}
	prev = s0
	for i, s := range sm {
		if !(s < prev) || !finite(s) {
			return validationError("Sm", fmt.Sprintf("grid point %d not strictly decreasing below forward", i), s)
		}
		prev = s
	}
	return nil
}

// validateTransformed checks that Xp increases above zero and Xm decreases
// below it.
func validateTransformed(xp, xm, mp, mm []float64) error {
	if err := validateSlopes("Mp", xp, mp); err != nil {
		return err
	}
	if err := validateSlopes("Mm", xm, mm); err != nil {
		return err
	}
	prev := 0.0
	for i, x := range xp {
		if !(x > prev) || !finite(x) {
			return validationError("Xp", fmt.Sprintf("grid point %d not strictly increasing above zero", i), x)
		}
		prev = x
	}
	prev = 0.0
	for i, x := range xm {
		if !(x < prev) || !finite(x) {
			return validationError("Xm", fmt.Sprintf("grid point %d not strictly decreasing below zero", i), x)
		}
		prev = x
	}
	return nil
}

func validateControls(c Controls) error {
	if c.MaxCalibrationIters < 0 {
		return validationError("MaxCalibrationIters", "must not be negative", c.MaxCalibrationIters)
	}
	if c.OnlyForwardCalibrationIters < 0 {
		return validationError("OnlyForwardCalibrationIters", "must not be negative", c.OnlyForwardCalibrationIters)
	}
	if !(c.ExtrapolationStdevs > 0) || !finite(c.ExtrapolationStdevs) {
		return validationError("ExtrapolationStdevs", "must be positive", c.ExtrapolationStdevs)
	}
	if !(c.Sigma0Tol > 0) {
		return validationError("Sigma0Tol", "must be positive", c.Sigma0Tol)
	}
	if !(c.S0Tol > 0) {
		return validationError("S0Tol", "must be positive", c.S0Tol)
	}
	if c.UseInitialMu && !finite(c.InitialMu) {
		return validationError("InitialMu", "must be finite", c.InitialMu)
	}
	return nil
}
