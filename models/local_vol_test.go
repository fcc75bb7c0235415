package models_test

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcdannyboy/localvol/models"
)

var (
	scenarioSp = []float64{110, 120}
	scenarioSm = []float64{90, 80}
	scenarioMp = []float64{0.01, 0.01}
	scenarioMm = []float64{0.01, 0.01}
)

func newScenarioModel(t *testing.T, controls models.Controls) *models.VanillaLocalVolModel {
	t.Helper()
	m, err := models.NewVanillaLocalVolModel(1.0, 100, 0.20*100, scenarioSp, scenarioSm, scenarioMp, scenarioMm, controls)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func TestScenarioDefaultControls(t *testing.T) {
	m := newScenarioModel(t, models.DefaultControls())

	assert.Equal(t, 100.0, m.Forward())
	assert.Equal(t, 1.0, m.TimeToExpiry())
	assert.Equal(t, 20.0, m.SigmaATM())

	call, err := m.Expectation(true, 100)
	require.NoError(t, err)
	put, err := m.Expectation(false, 100)
	require.NoError(t, err)

	assert.InDelta(t, m.StraddleATM()/2, call, 1e-9)
	assert.InDelta(t, m.StraddleATM()/2, put, 1e-9)
	assert.InDelta(t, 20.0*math.Sqrt(2/math.Pi), call+put, 1e-9)
	assert.Empty(t, m.Logging())
}

func TestNegativeSlopeDomainError(t *testing.T) {
	m, err := models.NewVanillaLocalVolModel(1.0, 100, 20, scenarioSp, scenarioSm, []float64{-1.0, -1.0}, scenarioMm, models.DefaultControls())
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, models.ErrDomain))
	assert.False(t, errors.Is(err, models.ErrValidation))

	var modelErr *models.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, models.KindDomain, modelErr.Kind)
	assert.Equal(t, "Mp", modelErr.Field)
}

func TestZeroCalibrationIterations(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 0
	controls.AdjustATM = false
	controls.EnableLogging = true
	m := newScenarioModel(t, controls)

	assert.Equal(t, 0.0, m.Mu())
	assert.Equal(t, 20.0, m.Sigma0())
	assert.Equal(t, 1.0, m.Alpha())
	assert.Equal(t, 0.0, m.Nu())
	assert.False(t, m.Converged())
	for _, line := range m.Logging() {
		assert.False(t, strings.HasPrefix(line, "iteration"), line)
	}

	// uncalibrated, but still close to the targets for a mild skew
	call, err := m.Expectation(true, 100)
	require.NoError(t, err)
	put, err := m.Expectation(false, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, call-put, 0.5)
	assert.InDelta(t, m.StraddleATM(), call+put, 0.5)
}

func TestCalibrationConverges(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 30
	controls.AdjustATM = false
	controls.EnableLogging = true
	controls.S0Tol = 1e-9
	controls.Sigma0Tol = 1e-9

	m, err := models.NewVanillaLocalVolModel(0.5, 100, 15,
		[]float64{105, 115, 130}, []float64{95, 85, 70},
		[]float64{0.05, 0.02, 0.0}, []float64{-0.03, 0.01, -0.02}, controls)
	require.NoError(t, err)
	require.True(t, m.Converged(), strings.Join(m.Logging(), "\n"))

	call, err := m.Expectation(true, 100)
	require.NoError(t, err)
	put, err := m.Expectation(false, 100)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, call-put, 1e-9)
	straddleVega := math.Sqrt(0.5) * math.Sqrt(2/math.Pi)
	assert.InDelta(t, 0.0, (call+put-m.StraddleATM())/straddleVega, 1e-9)
	assert.NotZero(t, m.Mu())

	require.NotEmpty(t, m.Logging())
	assert.True(t, strings.HasPrefix(m.Logging()[0], "iteration 0"))
}

func TestLastUpdateIsChecked(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 30
	controls.EnableLogging = true
	full := newScenarioModel(t, controls)
	require.True(t, full.Converged())

	checks := 0
	for _, line := range full.Logging() {
		if strings.HasPrefix(line, "iteration") {
			checks++
		}
	}
	require.GreaterOrEqual(t, checks, 2)

	// stop exactly after the update that reached the tolerances
	controls.MaxCalibrationIters = checks - 1
	m := newScenarioModel(t, controls)
	assert.True(t, m.Converged(), strings.Join(m.Logging(), "\n"))
	assert.Equal(t, full.Mu(), m.Mu())
	assert.Equal(t, full.Sigma0(), m.Sigma0())

	trace := m.Logging()
	require.NotEmpty(t, trace)
	last := trace[len(trace)-1]
	if strings.HasPrefix(last, "ATM adjusters") {
		last = trace[len(trace)-2]
	}
	assert.True(t, strings.HasPrefix(last, "final:"), last)
	for _, line := range trace {
		assert.NotContains(t, line, "not converged")
	}
}

func TestAdjustersMatchTargetsExactly(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 1

	m, err := models.NewVanillaLocalVolModel(2.0, 50, 8,
		[]float64{55, 70}, []float64{45, 30},
		[]float64{0.2, 0.1}, []float64{-0.1, 0.05}, controls)
	require.NoError(t, err)

	call, err := m.Expectation(true, 50)
	require.NoError(t, err)
	put, err := m.Expectation(false, 50)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, call-put, 1e-10)
	assert.InDelta(t, m.StraddleATM(), call+put, 1e-10)
	assert.NotEqual(t, 1.0, m.Alpha())
}

func TestForwardOnlyWarmUpKeepsSigma0(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 4
	controls.OnlyForwardCalibrationIters = 4
	controls.AdjustATM = false
	m := newScenarioModel(t, controls)

	assert.Equal(t, 20.0, m.Sigma0())
	call, err := m.Expectation(true, 100)
	require.NoError(t, err)
	put, err := m.Expectation(false, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, call-put, 1e-9)
}

func TestInitialMu(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 0
	controls.UseInitialMu = true
	controls.InitialMu = 0.25
	m := newScenarioModel(t, controls)

	assert.Equal(t, 0.25, m.Mu())
	assert.True(t, m.UseInitialMu())
	assert.Equal(t, 0.25, m.InitialMu())
}

func TestControlsReadBack(t *testing.T) {
	controls := models.DefaultControls()
	controls.MaxCalibrationIters = 7
	controls.OnlyForwardCalibrationIters = 2
	controls.EnableLogging = true
	m := newScenarioModel(t, controls)

	assert.Equal(t, 7, m.MaxCalibrationIters())
	assert.Equal(t, 2, m.OnlyForwardCalibrationIters())
	assert.True(t, m.AdjustATMFlag())
	assert.True(t, m.EnableLogging())
	assert.False(t, m.UseInitialMu())
	assert.Equal(t, 10.0, m.Controls().ExtrapolationStdevs)
}

func TestValidationErrors(t *testing.T) {
	ok := models.DefaultControls()
	tests := []struct {
		name     string
		t        float64
		s0       float64
		sigma    float64
		sp, sm   []float64
		mp, mm   []float64
		controls models.Controls
	}{
		{"zero expiry", 0, 100, 20, scenarioSp, scenarioSm, scenarioMp, scenarioMm, ok},
		{"negative forward", 1, -100, 20, scenarioSp, scenarioSm, scenarioMp, scenarioMm, ok},
		{"zero atm vol", 1, 100, 0, scenarioSp, scenarioSm, scenarioMp, scenarioMm, ok},
		{"slope length mismatch", 1, 100, 20, scenarioSp, scenarioSm, []float64{0.01}, scenarioMm, ok},
		{"empty lower wing", 1, 100, 20, scenarioSp, nil, scenarioMp, nil, ok},
		{"upper not increasing", 1, 100, 20, []float64{120, 110}, scenarioSm, scenarioMp, scenarioMm, ok},
		{"upper below forward", 1, 100, 20, []float64{95, 120}, scenarioSm, scenarioMp, scenarioMm, ok},
		{"lower not decreasing", 1, 100, 20, scenarioSp, []float64{80, 90}, scenarioMp, scenarioMm, ok},
		{"nan slope", 1, 100, 20, scenarioSp, scenarioSm, []float64{math.NaN(), 0}, scenarioMm, ok},
		{"negative iterations", 1, 100, 20, scenarioSp, scenarioSm, scenarioMp, scenarioMm, models.Controls{MaxCalibrationIters: -1, ExtrapolationStdevs: 10, Sigma0Tol: 1, S0Tol: 1}},
		{"zero extrapolation", 1, 100, 20, scenarioSp, scenarioSm, scenarioMp, scenarioMm, models.Controls{ExtrapolationStdevs: 0, Sigma0Tol: 1, S0Tol: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := models.NewVanillaLocalVolModel(tt.t, tt.s0, tt.sigma, tt.sp, tt.sm, tt.mp, tt.mm, tt.controls)
			require.Error(t, err)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestTransformedGridValidation(t *testing.T) {
	ok := models.DefaultControls()
	_, err := models.NewVanillaLocalVolModelFromX(1, 100, 20, 0, []float64{0.5}, []float64{-0.5}, []float64{0}, []float64{0}, ok)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = models.NewVanillaLocalVolModelFromX(1, 100, 20, 20, []float64{0.5, 0.4}, []float64{-0.5}, []float64{0, 0}, []float64{0}, ok)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = models.NewVanillaLocalVolModelFromX(1, 100, 20, 20, []float64{0.5}, []float64{0.5}, []float64{0}, []float64{0}, ok)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestNotInitialized(t *testing.T) {
	var m models.VanillaLocalVolModel

	_, err := m.Expectation(true, 100)
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	_, err = m.Variance(false, 100)
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	_, err = m.LocalVol(100)
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	_, err = m.UnderlyingS(0)
	assert.ErrorIs(t, err, models.ErrNotInitialized)
	assert.Nil(t, m.XGrid())
	assert.Nil(t, m.LocalVolSlopes())
}

func TestConcurrentReads(t *testing.T) {
	m := newScenarioModel(t, models.DefaultControls())
	want, err := m.Expectation(true, 115)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.Expectation(true, 115)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
