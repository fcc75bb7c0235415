package probability

import (
	"fmt"
	"math"
)

// Distribution is the terminal distribution of the underlying as exposed by a
// calibrated local vol model.
type Distribution interface {
	Forward() float64
	Expectation(isRightWing bool, strike float64) (float64, error)
	Probability(isRightWing bool, strike float64) (float64, error)
	Quantile(q float64) (float64, error)
}

type Risk struct {
	VaR                 float64
	ExpectedShortfall   float64
	ProbabilityOfProfit float64
}

// CalculateForwardRisk computes VaR and expected shortfall of a long forward
// position of one unit at the given confidence level.
func CalculateForwardRisk(d Distribution, confidenceLevel float64) (Risk, error) {
	if err := checkConfidence(confidenceLevel); err != nil {
		return Risk{}, err
	}
	fwd := d.Forward()
	q, err := d.Quantile(1 - confidenceLevel)
	if err != nil {
		return Risk{}, err
	}
	tail, err := d.Probability(false, q)
	if err != nil {
		return Risk{}, err
	}
	put, err := d.Expectation(false, q)
	if err != nil {
		return Risk{}, err
	}
	pop, err := d.Probability(true, fwd)
	if err != nil {
		return Risk{}, err
	}

	risk := Risk{VaR: fwd - q, ProbabilityOfProfit: pop}
	// E[F - S | S < q] = F - q + E[(q - S)+] / P(S < q)
	risk.ExpectedShortfall = risk.VaR
	if tail > 0 {
		risk.ExpectedShortfall += put / tail
	}
	return risk, nil
}

// CalculateSpreadRisk computes loss figures for a vertical credit spread. For a
// put spread shortStrike > longStrike, for a call spread shortStrike <
// longStrike.
func CalculateSpreadRisk(d Distribution, isPut bool, shortStrike, longStrike, credit, confidenceLevel float64) (Risk, error) {
	if err := checkConfidence(confidenceLevel); err != nil {
		return Risk{}, err
	}
	if isPut && shortStrike <= longStrike || !isPut && shortStrike >= longStrike {
		return Risk{}, fmt.Errorf("invalid spread strikes: short %.6g long %.6g", shortStrike, longStrike)
	}

	level := 1 - confidenceLevel
	if !isPut {
		level = confidenceLevel
	}
	q, err := d.Quantile(level)
	if err != nil {
		return Risk{}, err
	}
	tail, err := d.Probability(!isPut, q)
	if err != nil {
		return Risk{}, err
	}
	shortTail, err := partialPayoff(d, isPut, shortStrike, q)
	if err != nil {
		return Risk{}, err
	}
	longTail, err := partialPayoff(d, isPut, longStrike, q)
	if err != nil {
		return Risk{}, err
	}

	breakEven := shortStrike - credit
	if !isPut {
		breakEven = shortStrike + credit
	}
	pop, err := d.Probability(isPut, breakEven)
	if err != nil {
		return Risk{}, err
	}

	risk := Risk{
		VaR:                 -calculatePnL(isPut, shortStrike, longStrike, credit, q),
		ProbabilityOfProfit: pop,
	}
	risk.ExpectedShortfall = risk.VaR
	if tail > 0 {
		risk.ExpectedShortfall = -(credit - (shortTail-longTail)/tail)
	}
	return risk, nil
}

// partialPayoff is E[(K - S)+ 1{S < q}] for puts and E[(S - K)+ 1{S > q}] for
// calls.
func partialPayoff(d Distribution, isPut bool, strike, q float64) (float64, error) {
	if isPut {
		if q >= strike {
			return d.Expectation(false, strike)
		}
		tail, err := d.Probability(false, q)
		if err != nil {
			return 0, err
		}
		put, err := d.Expectation(false, q)
		if err != nil {
			return 0, err
		}
		return (strike-q)*tail + put, nil
	}
	if q <= strike {
		return d.Expectation(true, strike)
	}
	tail, err := d.Probability(true, q)
	if err != nil {
		return 0, err
	}
	call, err := d.Expectation(true, q)
	if err != nil {
		return 0, err
	}
	return (q-strike)*tail + call, nil
}

// calculatePnL is the spread profit at expiry for a final level.
func calculatePnL(isPut bool, shortStrike, longStrike, credit, finalPrice float64) float64 {
	if isPut {
		return credit - math.Max(0, shortStrike-finalPrice) + math.Max(0, longStrike-finalPrice)
	}
	return credit - math.Max(0, finalPrice-shortStrike) + math.Max(0, finalPrice-longStrike)
}

func checkConfidence(c float64) error {
	if !(c > 0 && c < 1) {
		return fmt.Errorf("confidence level must lie in (0, 1), got %v", c)
	}
	return nil
}
