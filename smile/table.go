// Package smile tabulates a calibrated local vol model across a strike ladder.
package smile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/bcdannyboy/localvol/positions"
)

// Model is the read-only surface of a calibrated model used for tabulation.
type Model interface {
	positions.Model
	Variance(isRightWing bool, strike float64) (float64, error)
	LocalVol(s float64) (float64, error)
}

// Row is the model's view of a single strike. Price and SecondMoment refer
// to the out-of-the-money side.
type Row struct {
	Strike           float64 `json:"strike"`
	IsCall           bool    `json:"is_call"`
	Price            float64 `json:"price"`
	SecondMoment     float64 `json:"second_moment"`
	LocalVol         float64 `json:"local_vol"`
	ImpliedNormalVol float64 `json:"implied_normal_vol"`
	ProbabilityOTM   float64 `json:"probability_otm"`
}

// Ladder returns n evenly spaced strikes covering forward +/- stdevs standard
// deviations of a normal move with the model's ATM vol.
func Ladder(forward, sigmaATM, t, stdevs float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("strike ladder needs at least 2 strikes, got %d", n)
	}
	width := stdevs * sigmaATM * math.Sqrt(t)
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("invalid ladder width %v", width)
	}
	return floats.Span(make([]float64, n), forward-width, forward+width), nil
}

// BuildTable evaluates every strike concurrently. The model must not be
// mutated while the table is built; rows come back in strike order.
func BuildTable(ctx context.Context, m Model, strikes []float64, workers int) ([]Row, error) {
	if len(strikes) == 0 {
		return nil, errors.New("no strikes to tabulate")
	}
	if workers <= 0 {
		workers = positions.WorkerCount()
	}

	rows := make([]Row, len(strikes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, strike := range strikes {
		i, strike := i, strike
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := evaluate(m, strike)
			if err != nil {
				return fmt.Errorf("strike %.6g: %w", strike, err)
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func evaluate(m Model, strike float64) (Row, error) {
	isCall := strike >= m.Forward()
	quote, err := positions.QuoteOption(m, strike, isCall)
	if err != nil {
		return Row{}, err
	}
	second, err := m.Variance(isCall, strike)
	if err != nil {
		return Row{}, err
	}
	lv, err := m.LocalVol(strike)
	if err != nil {
		return Row{}, err
	}
	return Row{
		Strike:           strike,
		IsCall:           isCall,
		Price:            quote.Price,
		SecondMoment:     second,
		LocalVol:         lv,
		ImpliedNormalVol: quote.ImpliedNormalVol,
		ProbabilityOTM:   1 - quote.ProbabilityITM,
	}, nil
}
