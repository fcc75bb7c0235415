package positions

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/shirou/gopsutil/cpu"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/bcdannyboy/localvol/probability"
)

const jobBatchSize = 256

// ScanConfig controls a spread scan over a strike ladder.
type ScanConfig struct {
	SpreadType      SpreadType
	MinReturnOnRisk float64
	ConfidenceLevel float64
	Workers         int       // zero means one per logical CPU
	Progress        io.Writer // progress bar output, nil for none
}

type job struct {
	shortStrike float64
	longStrike  float64
}

type result struct {
	spread SpreadWithRisk
	ok     bool
	err    error
}

// WorkerCount returns the number of logical CPUs.
func WorkerCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

// IdentifySpreads prices every credit spread of the requested type that can be
// built from the strikes and keeps those meeting the minimum return on risk,
// sorted by probability of profit.
func IdentifySpreads(ctx context.Context, m Model, strikes []float64, cfg ScanConfig) ([]SpreadWithRisk, error) {
	jobs := generateJobs(strikes, cfg.SpreadType)
	if len(jobs) == 0 {
		return nil, nil
	}

	numWorkers := cfg.Workers
	if numWorkers <= 0 {
		numWorkers = WorkerCount()
	}
	slog.Default().DebugContext(ctx, "scanning spreads",
		"spread_type", string(cfg.SpreadType),
		"candidates", len(jobs),
		"workers", numWorkers,
	)

	var p *mpb.Progress
	var bar *mpb.Bar
	if cfg.Progress != nil {
		p = mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(cfg.Progress))
		bar = p.AddBar(int64(len(jobs)),
			mpb.PrependDecorators(
				decor.Name("Progress"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
	}

	spreads, err := processJobs(ctx, m, jobs, cfg, numWorkers, bar)
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(spreads, func(i, j int) bool {
		if spreads[i].ProbabilityOfProfit != spreads[j].ProbabilityOfProfit {
			return spreads[i].ProbabilityOfProfit > spreads[j].ProbabilityOfProfit
		}
		return spreads[i].Spread.ShortLeg.Strike < spreads[j].Spread.ShortLeg.Strike
	})
	return spreads, nil
}

// generateJobs pairs strikes so that the short leg is closer to the money: the
// higher strike for bull puts, the lower for bear calls.
func generateJobs(strikes []float64, spreadType SpreadType) []job {
	sorted := append([]float64(nil), strikes...)
	sort.Float64s(sorted)

	var jobs []job
	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i] == sorted[j] {
				continue
			}
			if spreadType == BullPut {
				jobs = append(jobs, job{shortStrike: sorted[j], longStrike: sorted[i]})
			} else {
				jobs = append(jobs, job{shortStrike: sorted[i], longStrike: sorted[j]})
			}
		}
	}
	return jobs
}

func processJobs(ctx context.Context, m Model, jobs []job, cfg ScanConfig, numWorkers int, bar *mpb.Bar) ([]SpreadWithRisk, error) {
	var wg sync.WaitGroup
	jobChan := make(chan job, jobBatchSize)
	resultChan := make(chan result, jobBatchSize)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(m, cfg, jobChan, resultChan, &wg, bar)
	}

	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var spreads []SpreadWithRisk
	var firstErr error
	for r := range resultChan {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		if r.ok {
			spreads = append(spreads, r.spread)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return spreads, nil
}

func worker(m Model, cfg ScanConfig, jobs <-chan job, results chan<- result, wg *sync.WaitGroup, bar *mpb.Bar) {
	defer wg.Done()
	for j := range jobs {
		results <- evaluateSpread(m, cfg, j)
		if bar != nil {
			bar.Increment()
		}
	}
}

func evaluateSpread(m Model, cfg ScanConfig, j job) result {
	isPut := cfg.SpreadType == BullPut
	shortLeg, err := QuoteOption(m, j.shortStrike, !isPut)
	if err != nil {
		return result{err: err}
	}
	longLeg, err := QuoteOption(m, j.longStrike, !isPut)
	if err != nil {
		return result{err: err}
	}

	spread := createVerticalSpread(shortLeg, longLeg, m.Forward())
	if spread.ReturnOnRisk < cfg.MinReturnOnRisk {
		return result{}
	}

	risk, err := probability.CalculateSpreadRisk(m, isPut, j.shortStrike, j.longStrike, spread.SpreadCredit, cfg.ConfidenceLevel)
	if err != nil {
		return result{err: err}
	}
	return result{
		spread: SpreadWithRisk{
			Spread:              spread,
			ProbabilityOfProfit: risk.ProbabilityOfProfit,
			VaR:                 risk.VaR,
			ExpectedShortfall:   risk.ExpectedShortfall,
		},
		ok: true,
	}
}
