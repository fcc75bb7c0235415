package models

import (
	"fmt"
	"math"
)

// Largest change of log(sigma0) accepted in one calibration step.
const maxLogSigma0Step = 0.5

// updateLocalVol rebuilds the grid for the current sigma0.
func (m *VanillaLocalVolModel) updateLocalVol() error {
	g, err := buildGrid(m.s0, m.sigma0, m.sp, m.sm, m.mp, m.mm)
	if err != nil {
		return err
	}
	m.grid = g
	return nil
}

// calibrateATM solves for mu and sigma0 such that E[S] = S0 and the ATM
// straddle matches sigmaATM. mu takes a Newton step on the forward residual
// using dE[S]/dmu = E[sigma(S)]; sigma0 takes a secant step in log sigma0 on
// the straddle residual. Running out of iterations is not an error.
func (m *VanillaLocalVolModel) calibrateATM() error {
	straddleVega := m.straddleATM / m.sigmaATM
	var prevLogSigma0, prevStraddle float64
	hasPrev := false

	for k := 0; k < m.controls.MaxCalibrationIters; k++ {
		straddle, forwardResidual, sigma0Residual := m.atmResiduals(straddleVega)

		m.logIteration(k, forwardResidual, sigma0Residual)

		if m.withinTolerance(forwardResidual, sigma0Residual) {
			m.converged = true
			return nil
		}

		if dmu := m.expectedLocalVol(); dmu > 0 {
			m.mu -= forwardResidual / dmu
		}

		if k >= m.controls.OnlyForwardCalibrationIters && straddle > 0 {
			logSigma0 := math.Log(m.sigma0)
			step := math.Log(m.straddleATM / straddle)
			if hasPrev && math.Abs(logSigma0-prevLogSigma0) > 1e-14 {
				elasticity := (math.Log(straddle) - math.Log(prevStraddle)) / (logSigma0 - prevLogSigma0)
				if elasticity > 0 && !math.IsInf(elasticity, 0) {
					step /= elasticity
				}
			}
			step = math.Max(-maxLogSigma0Step, math.Min(maxLogSigma0Step, step))
			prevLogSigma0, prevStraddle, hasPrev = logSigma0, straddle, true
			m.sigma0 *= math.Exp(step)
		}

		if err := m.updateLocalVol(); err != nil {
			return fmt.Errorf("calibration iteration %d: %w", k, err)
		}
	}

	if m.controls.MaxCalibrationIters == 0 {
		return nil
	}

	// the last update has not been checked yet
	_, forwardResidual, sigma0Residual := m.atmResiduals(straddleVega)
	m.converged = m.withinTolerance(forwardResidual, sigma0Residual)
	if m.controls.EnableLogging {
		m.logging = append(m.logging, fmt.Sprintf("final: mu=%.12g sigma0=%.12g forward residual=%.6e sigma0 residual=%.6e",
			m.mu, m.sigma0, forwardResidual, sigma0Residual))
		if !m.converged {
			m.logging = append(m.logging, fmt.Sprintf("calibration not converged after %d iterations", m.controls.MaxCalibrationIters))
		}
	}
	return nil
}

// atmResiduals returns the model straddle at S0, E[S] - S0 and the straddle
// error in vol units.
func (m *VanillaLocalVolModel) atmResiduals(straddleVega float64) (straddle, forwardResidual, sigma0Residual float64) {
	call := m.expectation(true, m.s0, identity)
	put := m.expectation(false, m.s0, identity)
	straddle = call + put
	return straddle, call - put, (straddle - m.straddleATM) / straddleVega
}

func (m *VanillaLocalVolModel) withinTolerance(forwardResidual, sigma0Residual float64) bool {
	return math.Abs(forwardResidual) < m.controls.S0Tol && math.Abs(sigma0Residual) < m.controls.Sigma0Tol
}

// adjustATM computes the payoff level adjusters. With d = E[S] - S0 and the
// straddle struck at E[S], alpha rescales the deviation and nu recenters it,
// so that forward and ATM straddle are matched exactly.
func (m *VanillaLocalVolModel) adjustATM() {
	if !m.controls.AdjustATM {
		m.alpha, m.nu = 1, 0
		return
	}
	call := m.expectation(true, m.s0, identity)
	put := m.expectation(false, m.s0, identity)
	d := call - put
	mean := m.s0 + d
	straddle := m.expectation(true, mean, identity) + m.expectation(false, mean, identity)
	if !(straddle > 0) {
		m.alpha, m.nu = 1, 0
		return
	}
	m.alpha = m.straddleATM / straddle
	m.nu = -m.alpha * d

	if m.controls.EnableLogging {
		m.logging = append(m.logging, fmt.Sprintf("ATM adjusters: alpha=%.12g nu=%.12g", m.alpha, m.nu))
	}
	m.logger().Debug("post-calibration adjusters",
		"alpha", m.alpha,
		"nu", m.nu,
	)
}

func (m *VanillaLocalVolModel) logIteration(k int, forwardResidual, sigma0Residual float64) {
	if m.controls.EnableLogging {
		m.logging = append(m.logging, fmt.Sprintf("iteration %d: mu=%.12g sigma0=%.12g forward residual=%.6e sigma0 residual=%.6e",
			k, m.mu, m.sigma0, forwardResidual, sigma0Residual))
	}
	m.logger().Debug("ATM calibration iteration",
		"iteration", k,
		"mu", m.mu,
		"sigma0", m.sigma0,
		"forward_residual", forwardResidual,
		"sigma0_residual", sigma0Residual,
	)
}
