package positions

type BachelierResult struct {
	Price float64
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}

// OptionQuote is a model price for a single option with the normal volatility
// it implies.
type OptionQuote struct {
	Strike           float64
	IsCall           bool
	Price            float64
	ImpliedNormalVol float64
	ProbabilityITM   float64
	IntrinsicValue   float64
	ExtrinsicValue   float64
}

type SpreadType string

const (
	BullPut  SpreadType = "Bull Put"
	BearCall SpreadType = "Bear Call"
)

// VerticalSpread is a credit spread: short the leg closer to the forward, long
// the one further out.
type VerticalSpread struct {
	SpreadType   SpreadType
	ShortLeg     OptionQuote
	LongLeg      OptionQuote
	SpreadCredit float64
	MaxRisk      float64
	ReturnOnRisk float64
	// IntrinsicValue is the spread's loss if expiry were at the forward.
	IntrinsicValue float64
}

// SpreadWithRisk is a spread together with its loss distribution figures.
type SpreadWithRisk struct {
	Spread              VerticalSpread
	ProbabilityOfProfit float64
	VaR                 float64
	ExpectedShortfall   float64
}
