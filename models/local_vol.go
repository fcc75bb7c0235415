package models

import (
	"log/slog"
	"math"
)

// Controls are the numerical settings of the ATM calibration.
type Controls struct {
	MaxCalibrationIters         int     // forward/sigma0 calibration iterations
	OnlyForwardCalibrationIters int     // initial iterations that calibrate the forward only
	AdjustATM                   bool    // apply post-calibration adjusters alpha and nu
	EnableLogging               bool    // keep a trace of the calibration
	UseInitialMu                bool    // start calibration from InitialMu instead of zero
	InitialMu                   float64 // initial shift of the transformed variable
	ExtrapolationStdevs         float64 // integration cutoff in standard deviations
	Sigma0Tol                   float64 // tolerance on the ATM vol residual
	S0Tol                       float64 // tolerance on the forward residual
	Logger                      *slog.Logger
}

// DefaultControls returns the documented default settings.
func DefaultControls() Controls {
	return Controls{
		MaxCalibrationIters:         5,
		OnlyForwardCalibrationIters: 0,
		AdjustATM:                   true,
		EnableLogging:               false,
		UseInitialMu:                false,
		InitialMu:                   0.0,
		ExtrapolationStdevs:         10.0,
		Sigma0Tol:                   1.0e-12,
		S0Tol:                       1.0e-12,
	}
}

// VanillaLocalVolModel is a single-expiry local vol model. The level S is
// driven by a transformed variable X ~ N(mu, T) through dS/dx = sigma(S),
// S(0) = S0, where sigma is piecewise affine in S between the anchor levels.
// The model is calibrated at construction and read-only afterwards.
type VanillaLocalVolModel struct {
	t        float64   // time to expiry in years
	s0       float64   // forward
	sigmaATM float64   // ATM normal volatility
	sp       []float64 // S_i > S0, increasing
	sm       []float64 // S_-i < S0, decreasing
	mp       []float64 // slope on [S_i-1, S_i)
	mm       []float64 // slope on (S_-i, S_-[i-1]]

	straddleATM float64
	sigma0      float64 // sigma(S0)
	mu          float64 // forward adjuster inside the model
	alpha       float64 // straddle adjuster on the payoff level
	nu          float64 // forward adjuster on the payoff level
	converged   bool

	controls Controls
	logging  []string
	grid     *lvGrid
}

// NewVanillaLocalVolModel builds and calibrates a model from level grids Sp,
// Sm and local vol slopes Mp, Mm.
func NewVanillaLocalVolModel(t, s0, sigmaATM float64, sp, sm, mp, mm []float64, controls Controls) (*VanillaLocalVolModel, error) {
	if err := validateMarket(t, s0, sigmaATM); err != nil {
		return nil, err
	}
	if err := validateLevels(s0, sp, sm, mp, mm); err != nil {
		return nil, err
	}
	if err := validateControls(controls); err != nil {
		return nil, err
	}
	m := newModel(t, s0, sigmaATM, sigmaATM, sp, sm, mp, mm, controls)
	if err := m.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewVanillaLocalVolModelFromX builds and calibrates a model from
// transformed-variable grids Xp, Xm and an initial center local vol sigma0. The
// x-grid is first mapped to the level grid it implies, so both constructors
// share one internal state.
func NewVanillaLocalVolModelFromX(t, s0, sigmaATM, sigma0 float64, xp, xm, mp, mm []float64, controls Controls) (*VanillaLocalVolModel, error) {
	if err := validateMarket(t, s0, sigmaATM); err != nil {
		return nil, err
	}
	if !(sigma0 > 0) || math.IsInf(sigma0, 0) {
		return nil, validationError("sigma0", "must be positive", sigma0)
	}
	if err := validateTransformed(xp, xm, mp, mm); err != nil {
		return nil, err
	}
	if err := validateControls(controls); err != nil {
		return nil, err
	}
	sp, sm := levelsFromX(s0, sigma0, xp, xm, mp, mm)
	if err := validateLevels(s0, sp, sm, mp, mm); err != nil {
		return nil, err
	}
	m := newModel(t, s0, sigmaATM, sigma0, sp, sm, mp, mm, controls)
	if err := m.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

func newModel(t, s0, sigmaATM, sigma0 float64, sp, sm, mp, mm []float64, controls Controls) *VanillaLocalVolModel {
	return &VanillaLocalVolModel{
		t:           t,
		s0:          s0,
		sigmaATM:    sigmaATM,
		sp:          append([]float64(nil), sp...),
		sm:          append([]float64(nil), sm...),
		mp:          append([]float64(nil), mp...),
		mm:          append([]float64(nil), mm...),
		straddleATM: sigmaATM * math.Sqrt(t) * math.Sqrt(2.0/math.Pi),
		sigma0:      sigma0,
		alpha:       1.0,
		controls:    controls,
	}
}

// initialize runs grid construction, ATM calibration and the adjusters.
func (m *VanillaLocalVolModel) initialize() error {
	if m.controls.UseInitialMu {
		m.mu = m.controls.InitialMu
	}
	if err := m.updateLocalVol(); err != nil {
		return err
	}
	if err := m.calibrateATM(); err != nil {
		return err
	}
	m.adjustATM()
	m.logger().Info("local vol model calibrated",
		"forward", m.s0,
		"sigma_atm", m.sigmaATM,
		"sigma0", m.sigma0,
		"mu", m.mu,
		"alpha", m.alpha,
		"nu", m.nu,
		"converged", m.converged,
	)
	return nil
}

func (m *VanillaLocalVolModel) logger() *slog.Logger {
	if m.controls.Logger != nil {
		return m.controls.Logger
	}
	return slog.Default()
}

func (m *VanillaLocalVolModel) adjusters() adjuster {
	return adjuster{alpha: m.alpha, nu: m.nu}
}

func (m *VanillaLocalVolModel) ready() error {
	if m == nil || m.grid == nil {
		return &ModelError{Kind: KindNotInitialized, Message: "model grid not built"}
	}
	return nil
}

// Inspectors

func (m *VanillaLocalVolModel) TimeToExpiry() float64 { return m.t }
func (m *VanillaLocalVolModel) Forward() float64      { return m.s0 }
func (m *VanillaLocalVolModel) SigmaATM() float64     { return m.sigmaATM }
func (m *VanillaLocalVolModel) StraddleATM() float64  { return m.straddleATM }
func (m *VanillaLocalVolModel) Sigma0() float64       { return m.sigma0 }
func (m *VanillaLocalVolModel) Alpha() float64        { return m.alpha }
func (m *VanillaLocalVolModel) Mu() float64           { return m.mu }
func (m *VanillaLocalVolModel) Nu() float64           { return m.nu }

// Converged reports whether the calibration met both tolerances.
func (m *VanillaLocalVolModel) Converged() bool { return m.converged }

func (m *VanillaLocalVolModel) MaxCalibrationIters() int { return m.controls.MaxCalibrationIters }
func (m *VanillaLocalVolModel) OnlyForwardCalibrationIters() int {
	return m.controls.OnlyForwardCalibrationIters
}
func (m *VanillaLocalVolModel) AdjustATMFlag() bool { return m.controls.AdjustATM }
func (m *VanillaLocalVolModel) EnableLogging() bool { return m.controls.EnableLogging }
func (m *VanillaLocalVolModel) UseInitialMu() bool  { return m.controls.UseInitialMu }
func (m *VanillaLocalVolModel) InitialMu() float64  { return m.controls.InitialMu }

// Controls returns a copy of the numerical settings.
func (m *VanillaLocalVolModel) Controls() Controls { return m.controls }

// Logging returns the calibration trace. It is empty unless logging is enabled.
func (m *VanillaLocalVolModel) Logging() []string {
	return append([]string{}, m.logging...)
}

// Grid arrays, ascending in x and S, center node included.

func (m *VanillaLocalVolModel) XGrid() []float64 {
	if m.ready() != nil {
		return nil
	}
	return append([]float64(nil), m.grid.x...)
}

func (m *VanillaLocalVolModel) SGrid() []float64 {
	if m.ready() != nil {
		return nil
	}
	return append([]float64(nil), m.grid.s...)
}

func (m *VanillaLocalVolModel) LocalVolGrid() []float64 {
	if m.ready() != nil {
		return nil
	}
	return append([]float64(nil), m.grid.vol...)
}

// LocalVolSlopes returns for each node the slope of the segment between the
// node and its neighbour toward the center; the center entry is zero.
func (m *VanillaLocalVolModel) LocalVolSlopes() []float64 {
	if m.ready() != nil {
		return nil
	}
	return append([]float64(nil), m.grid.slope...)
}

// LocalVol evaluates sigma(S). Levels beyond the integration domain get the
// local vol at its boundary.
func (m *VanillaLocalVolModel) LocalVol(s float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	lo, hi := m.grid.level(m.lowerBoundX()), m.grid.level(m.upperBoundX())
	return m.grid.localVol(math.Max(lo, math.Min(hi, s))), nil
}

// UnderlyingS evaluates the level S(x); it is flat beyond the integration
// domain.
func (m *VanillaLocalVolModel) UnderlyingS(x float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.grid.level(m.clipX(x)), nil
}

// UnderlyingX is the inverse of UnderlyingS on the integration domain.
func (m *VanillaLocalVolModel) UnderlyingX(s float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	xL, xU := m.lowerBoundX(), m.upperBoundX()
	if s <= m.grid.level(xL) {
		return xL, nil
	}
	if s >= m.grid.level(xU) {
		return xU, nil
	}
	return m.grid.inverse(s), nil
}

// Expectation is the forward price of the OTM option struck at strike: a call
// on the right wing, a put on the left wing.
func (m *VanillaLocalVolModel) Expectation(isRightWing bool, strike float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.expectation(isRightWing, strike, m.adjusters()), nil
}

// Variance is the forward price of the power payoff 1{S>K}(S-K)^2 on the
// right wing, 1{S<K}(K-S)^2 on the left wing.
func (m *VanillaLocalVolModel) Variance(isRightWing bool, strike float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.variance(isRightWing, strike, m.adjusters()), nil
}

// Probability is P(S > K) on the right wing and P(S < K) on the left wing.
func (m *VanillaLocalVolModel) Probability(isRightWing bool, strike float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return m.probability(isRightWing, strike, m.adjusters()), nil
}

// Quantile returns the level below which the adjusted terminal level falls with
// probability q.
func (m *VanillaLocalVolModel) Quantile(q float64) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if !(q > 0 && q < 1) {
		return 0, validationError("q", "must lie in (0, 1)", q)
	}
	x := m.clipX(m.mu + math.Sqrt(m.t)*unitNormal.Quantile(q))
	return m.s0 + m.alpha*(m.grid.level(x)-m.s0) + m.nu, nil
}
