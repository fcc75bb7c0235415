package positions_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/localvol/models"
	"github.com/bcdannyboy/localvol/positions"
)

func flatModel(t *testing.T, sigma float64) *models.VanillaLocalVolModel {
	t.Helper()
	m, err := models.NewVanillaLocalVolModel(1.0, 100, sigma,
		[]float64{110, 130}, []float64{90, 70},
		[]float64{0, 0}, []float64{0, 0}, models.DefaultControls())
	require.NoError(t, err)
	return m
}

func skewedModel(t *testing.T) *models.VanillaLocalVolModel {
	t.Helper()
	m, err := models.NewVanillaLocalVolModel(0.75, 100, 18,
		[]float64{110, 125, 150}, []float64{92, 80, 60},
		[]float64{0.02, -0.01, 0.05}, []float64{-0.15, -0.05, 0.1}, models.DefaultControls())
	require.NoError(t, err)
	return m
}

func TestBachelierPutCallParity(t *testing.T) {
	for _, strike := range []float64{80, 95, 100, 105, 130} {
		call := positions.BachelierPrice(100, strike, 0.5, 12, true)
		put := positions.BachelierPrice(100, strike, 0.5, 12, false)
		assert.InDelta(t, 100-strike, call-put, 1e-10, "strike %v", strike)
	}
}

func TestBachelierATM(t *testing.T) {
	r := positions.CalculateBachelier(100, 100, 2, 10, true)
	assert.InDelta(t, 10*math.Sqrt(2)/math.Sqrt(2*math.Pi), r.Price, 1e-12)
	assert.InDelta(t, 0.5, r.Delta, 1e-12)
	assert.Greater(t, r.Gamma, 0.0)
	assert.Greater(t, r.Vega, 0.0)
	assert.Less(t, r.Theta, 0.0)

	expired := positions.CalculateBachelier(100, 90, 0, 10, false)
	assert.Equal(t, 0.0, expired.Price)
	assert.Equal(t, 0.0, expired.Delta)
}

func TestImpliedNormalVolatilityRoundTrip(t *testing.T) {
	for _, sigma := range []float64{0.5, 5, 20, 80} {
		for _, strike := range []float64{70, 95, 100, 104, 120} {
			for _, isCall := range []bool{true, false} {
				r := positions.CalculateBachelier(100, strike, 1.25, sigma, isCall)
				if r.Vega < 1e-3 {
					// no time value left to invert
					continue
				}
				vol, err := positions.ImpliedNormalVolatility(r.Price, 100, strike, 1.25, isCall)
				require.NoError(t, err, "sigma %v strike %v call %v", sigma, strike, isCall)
				assert.InDelta(t, sigma, vol, 1e-6*math.Max(1, sigma), "sigma %v strike %v call %v", sigma, strike, isCall)
			}
		}
	}
}

func TestImpliedNormalVolatilityBelowIntrinsic(t *testing.T) {
	_, err := positions.ImpliedNormalVolatility(5, 100, 90, 1, true)
	assert.Error(t, err)

	vol, err := positions.ImpliedNormalVolatility(10, 100, 90, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestQuoteOptionFlatModel(t *testing.T) {
	m := flatModel(t, 20)
	for _, strike := range []float64{60, 90, 100, 115, 150} {
		for _, isCall := range []bool{true, false} {
			q, err := positions.QuoteOption(m, strike, isCall)
			require.NoError(t, err)
			assert.InDelta(t, positions.BachelierPrice(100, strike, 1, 20, isCall), q.Price, 1e-8)
			assert.InDelta(t, 20, q.ImpliedNormalVol, 1e-5, "strike %v call %v", strike, isCall)
			assert.InDelta(t, q.Price, q.IntrinsicValue+q.ExtrinsicValue, 1e-12)
			assert.GreaterOrEqual(t, q.ExtrinsicValue, -1e-10)
		}
	}
}

func TestStraddleAndStrangle(t *testing.T) {
	m := skewedModel(t)
	straddle, err := positions.StraddlePrice(m, 100)
	require.NoError(t, err)
	assert.InDelta(t, m.StraddleATM(), straddle, 1e-9)

	strangle, err := positions.StranglePrice(m, 90, 110)
	require.NoError(t, err)
	assert.Less(t, strangle, straddle)
	assert.Greater(t, strangle, 0.0)
}

func TestIdentifySpreads(t *testing.T) {
	m := skewedModel(t)
	strikes := []float64{80, 85, 90, 95, 100, 105, 110, 115, 120}

	for _, spreadType := range []positions.SpreadType{positions.BullPut, positions.BearCall} {
		spreads, err := positions.IdentifySpreads(context.Background(), m, strikes, positions.ScanConfig{
			SpreadType:      spreadType,
			MinReturnOnRisk: 0.05,
			ConfidenceLevel: 0.95,
			Workers:         3,
		})
		require.NoError(t, err)
		require.NotEmpty(t, spreads)

		for i, s := range spreads {
			v := s.Spread
			assert.Equal(t, spreadType, v.SpreadType)
			assert.GreaterOrEqual(t, v.ReturnOnRisk, 0.05)
			assert.Greater(t, v.SpreadCredit, 0.0)
			width := math.Abs(v.ShortLeg.Strike - v.LongLeg.Strike)
			assert.InDelta(t, width, v.SpreadCredit+v.MaxRisk, 1e-9)
			assert.LessOrEqual(t, s.VaR, v.MaxRisk+1e-9)
			assert.LessOrEqual(t, s.ExpectedShortfall, v.MaxRisk+1e-9)
			assert.GreaterOrEqual(t, s.ExpectedShortfall, s.VaR-1e-9)
			assert.True(t, s.ProbabilityOfProfit > 0 && s.ProbabilityOfProfit < 1)
			if spreadType == positions.BullPut {
				assert.Greater(t, v.ShortLeg.Strike, v.LongLeg.Strike)
				assert.False(t, v.ShortLeg.IsCall)
			} else {
				assert.Less(t, v.ShortLeg.Strike, v.LongLeg.Strike)
				assert.True(t, v.ShortLeg.IsCall)
			}
			if i > 0 {
				assert.GreaterOrEqual(t, spreads[i-1].ProbabilityOfProfit, s.ProbabilityOfProfit)
			}
		}
	}
}

func TestIdentifySpreadsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := positions.IdentifySpreads(ctx, skewedModel(t), []float64{90, 95, 100, 105, 110}, positions.ScanConfig{
		SpreadType:      positions.BullPut,
		ConfidenceLevel: 0.95,
		Workers:         2,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentifySpreadsTooFewStrikes(t *testing.T) {
	spreads, err := positions.IdentifySpreads(context.Background(), skewedModel(t), []float64{100, 100}, positions.ScanConfig{
		SpreadType:      positions.BearCall,
		ConfidenceLevel: 0.95,
	})
	require.NoError(t, err)
	assert.Empty(t, spreads)
}

func TestWorkerCount(t *testing.T) {
	assert.GreaterOrEqual(t, positions.WorkerCount(), 1)
}
