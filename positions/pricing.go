package positions

import (
	"errors"
	"math"

	"github.com/bcdannyboy/localvol/probability"
)

// Model is what the position analytics need from a calibrated local vol model.
type Model interface {
	probability.Distribution
	TimeToExpiry() float64
}

// QuoteOption prices a call or put off the model. Any strike is allowed; the
// implied normal vol is taken from the out-of-the-money side.
func QuoteOption(m Model, strike float64, isCall bool) (OptionQuote, error) {
	price, err := m.Expectation(isCall, strike)
	if err != nil {
		return OptionQuote{}, err
	}
	itm, err := m.Probability(isCall, strike)
	if err != nil {
		return OptionQuote{}, err
	}

	fwd := m.Forward()
	otmIsCall := strike >= fwd
	otmPrice := price
	if otmIsCall != isCall {
		otmPrice, err = m.Expectation(otmIsCall, strike)
		if err != nil {
			return OptionQuote{}, err
		}
	}
	vol, err := ImpliedNormalVolatility(otmPrice, fwd, strike, m.TimeToExpiry(), otmIsCall)
	if err != nil && !errors.Is(err, ErrNoConvergence) {
		vol = 0
	}
	vol = sanitizeFloat(vol)

	intrinsic := calculateSingleOptionIntrinsicValue(strike, fwd, isCall)
	return OptionQuote{
		Strike:           strike,
		IsCall:           isCall,
		Price:            price,
		ImpliedNormalVol: vol,
		ProbabilityITM:   itm,
		IntrinsicValue:   intrinsic,
		ExtrinsicValue:   price - intrinsic,
	}, nil
}

// StraddlePrice is the forward price of a call plus a put at strike.
func StraddlePrice(m Model, strike float64) (float64, error) {
	return StranglePrice(m, strike, strike)
}

// StranglePrice is the forward price of a put at putStrike plus a call at
// callStrike.
func StranglePrice(m Model, putStrike, callStrike float64) (float64, error) {
	put, err := m.Expectation(false, putStrike)
	if err != nil {
		return 0, err
	}
	call, err := m.Expectation(true, callStrike)
	if err != nil {
		return 0, err
	}
	return put + call, nil
}

// createVerticalSpread prices a credit spread from two quotes.
func createVerticalSpread(shortLeg, longLeg OptionQuote, forward float64) VerticalSpread {
	spreadType := BearCall
	if !shortLeg.IsCall {
		spreadType = BullPut
	}
	credit := shortLeg.Price - longLeg.Price
	maxRisk := math.Abs(shortLeg.Strike-longLeg.Strike) - credit

	spread := VerticalSpread{
		SpreadType:     spreadType,
		ShortLeg:       shortLeg,
		LongLeg:        longLeg,
		SpreadCredit:   credit,
		MaxRisk:        maxRisk,
		IntrinsicValue: calculateSpreadIntrinsicValue(shortLeg.Strike, longLeg.Strike, forward, spreadType),
	}
	if maxRisk > 0 {
		spread.ReturnOnRisk = sanitizeFloat(credit / maxRisk)
	}
	return spread
}
