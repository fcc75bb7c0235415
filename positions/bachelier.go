package positions

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxIterations = 100
	epsilon       = 1e-12
)

var ErrNoConvergence = errors.New("implied volatility did not converge")

var unitNormal = distuv.UnitNormal

// CalculateBachelier prices an option on a forward under a normal model and
// returns the usual sensitivities. sigma is an absolute (normal) volatility.
func CalculateBachelier(forward, strike, t, sigma float64, isCall bool) BachelierResult {
	sd := sigma * math.Sqrt(t)
	w := forward - strike
	if !isCall {
		w = -w
	}
	if sd <= 0 {
		delta := 0.0
		if w > 0 {
			delta = 1
		}
		if !isCall {
			delta = -delta
		}
		return BachelierResult{Price: math.Max(w, 0), Delta: delta}
	}

	d := w / sd
	pdf := unitNormal.Prob(d)
	price := w*unitNormal.CDF(d) + sd*pdf
	delta := unitNormal.CDF(d)
	if !isCall {
		delta = -delta
	}
	return BachelierResult{
		Price: price,
		Delta: delta,
		Gamma: pdf / sd,
		Vega:  math.Sqrt(t) * pdf,
		Theta: -0.5 * sigma * pdf / math.Sqrt(t),
	}
}

func BachelierPrice(forward, strike, t, sigma float64, isCall bool) float64 {
	return CalculateBachelier(forward, strike, t, sigma, isCall).Price
}

// ImpliedNormalVolatility inverts the Bachelier formula by Newton's method,
// falling back to bisection whenever a step leaves the bracket.
func ImpliedNormalVolatility(targetPrice, forward, strike, t float64, isCall bool) (float64, error) {
	intrinsic := math.Max(forward-strike, 0)
	if !isCall {
		intrinsic = math.Max(strike-forward, 0)
	}
	if targetPrice < intrinsic-epsilon || t <= 0 {
		return math.NaN(), fmt.Errorf("price %.6g below intrinsic value %.6g", targetPrice, intrinsic)
	}
	if targetPrice <= intrinsic {
		return 0, nil
	}

	lo, hi := 0.0, math.Max(math.Abs(forward-strike), targetPrice)/math.Sqrt(t)+1
	for BachelierPrice(forward, strike, t, hi, isCall) < targetPrice {
		hi *= 2
		if math.IsInf(hi, 0) {
			return math.NaN(), ErrNoConvergence
		}
	}

	// ATM approximation as initial guess
	sigma := (targetPrice - intrinsic) * math.Sqrt(2*math.Pi/t)
	if sigma <= lo || sigma >= hi {
		sigma = 0.5 * (lo + hi)
	}
	for i := 0; i < maxIterations; i++ {
		r := CalculateBachelier(forward, strike, t, sigma, isCall)
		diff := r.Price - targetPrice
		if math.Abs(diff) < epsilon*math.Max(1, targetPrice) {
			return sigma, nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}
		next := sigma - diff/r.Vega
		if r.Vega <= 0 || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		sigma = next
	}
	return sigma, ErrNoConvergence
}
