package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var unitNormal = distuv.UnitNormal

// adjuster maps the model level S to the payoff level S0 + alpha (S - S0) + nu.
type adjuster struct {
	alpha float64
	nu    float64
}

var identity = adjuster{alpha: 1}

type moment int

const (
	momentProbability moment = iota
	momentFirst
	momentSecond
	momentLocalVol
)

// deltaCDF returns Phi(b) - Phi(a). Right of zero it works on the survival
// function so that far upper tail differences keep their precision.
func deltaCDF(a, b float64) float64 {
	if a+b > 0 {
		return unitNormal.Survival(a) - unitNormal.Survival(b)
	}
	return unitNormal.CDF(b) - unitNormal.CDF(a)
}

func (m *VanillaLocalVolModel) lowerBoundX() float64 {
	return m.mu - m.controls.ExtrapolationStdevs*math.Sqrt(m.t)
}

func (m *VanillaLocalVolModel) upperBoundX() float64 {
	return m.mu + m.controls.ExtrapolationStdevs*math.Sqrt(m.t)
}

// clipX applies the flat extrapolation beyond the integration domain.
func (m *VanillaLocalVolModel) clipX(x float64) float64 {
	return math.Max(m.lowerBoundX(), math.Min(m.upperBoundX(), x))
}

// strikeX locates the strike in the transformed variable, clipped to the
// integration domain.
func (m *VanillaLocalVolModel) strikeX(strike float64, adj adjuster) float64 {
	xL, xU := m.lowerBoundX(), m.upperBoundX()
	s := m.s0 + (strike-m.s0-adj.nu)/adj.alpha
	if s <= m.grid.level(xL) {
		return xL
	}
	if s >= m.grid.level(xU) {
		return xU
	}
	return m.grid.inverse(s)
}

// integrate returns the integral over [a, b] of the selected moment of
// alpha S(x) + c against the N(mu, T) density, summed segment by segment.
func (m *VanillaLocalVolModel) integrate(a, b, c float64, mom moment, adj adjuster) float64 {
	if !(b > a) {
		return 0
	}
	sum := 0.0
	for j := m.grid.intervalOfX(a); ; j++ {
		lo, hi := m.grid.edges(j)
		from, to := math.Max(lo, a), math.Min(hi, b)
		if to > from {
			sum += m.segmentIntegral(m.grid.segment(j), from, to, c, mom, adj)
		}
		if hi >= b {
			break
		}
	}
	return sum
}

// segmentIntegral integrates one segment. Around mu the payoff level is
// alpha S(x) + c = A + B g(x - mu) with g(u) = expm1(m u) / m, where A and B
// are the payoff and its x-slope at mu, so no large terms cancel for small m.
func (m *VanillaLocalVolModel) segmentIntegral(sg segment, from, to, c float64, mom moment, adj adjuster) float64 {
	sqrtT := math.Sqrt(m.t)
	za, zb := (from-m.mu)/sqrtT, (to-m.mu)/sqrtT
	i0 := deltaCDF(za, zb)
	if mom == momentProbability {
		return i0
	}

	volMu := sg.volAt(m.mu)
	ms := sg.m * sqrtT
	if mom == momentLocalVol {
		// sigma(S(x)) = volMu exp(ms z)
		return volMu * math.Exp(0.5*ms*ms) * deltaCDF(za-ms, zb-ms)
	}

	a := adj.alpha*sg.level(m.mu) + c
	b := adj.alpha * volMu
	g1, g2 := expm1Moments(ms, za, zb, i0)
	if mom == momentFirst {
		return a*i0 + b*sqrtT*g1
	}
	return a*a*i0 + 2*a*b*sqrtT*g1 + b*b*m.t*g2
}

// Below this |ms| the moments of expm1 are summed as a power series; the
// closed form divides differences of size ms (and ms^2) by ms.
const seriesThreshold = 0.05

const maxSeriesTerms = 150

// expm1Moments returns the integrals over [za, zb] against the standard normal
// density of h(z) and h(z)^2, where h(z) = expm1(ms z) / ms and h(z) = z at
// ms = 0. i0 is Phi(zb) - Phi(za).
func expm1Moments(ms, za, zb, i0 float64) (float64, float64) {
	if math.Abs(ms) >= seriesThreshold {
		j1 := math.Exp(0.5*ms*ms) * deltaCDF(za-ms, zb-ms)
		j2 := math.Exp(2*ms*ms) * deltaCDF(za-2*ms, zb-2*ms)
		return (j1 - i0) / ms, (j2 - 2*j1 + i0) / (ms * ms)
	}
	if i0 == 0 {
		return 0, 0
	}

	// h(z)   = sum_{k>=1} ms^(k-1) z^k / k!
	// h(z)^2 = sum_{k>=2} (2^k - 2) ms^(k-2) z^k / k!
	// against M_k = int z^k phi(z) dz over [za, zb], with
	// M_k = (k-1) M_{k-2} + za^(k-1) phi(za) - zb^(k-1) phi(zb).
	pa, pb := unitNormal.Prob(za), unitNormal.Prob(zb)
	zmax := math.Max(1, math.Max(math.Abs(za), math.Abs(zb)))
	scale1, scale2 := zmax*i0, zmax*zmax*i0

	mPrev, mCur := i0, pa-pb // M_0, M_1
	ea, eb := pa, pb         // z^(k-1) phi(z)
	var g1, g2 float64
	fact, p1, p2, twoK := 1.0, 1.0, 1.0, 2.0
	small := 0
	for k := 1; k <= maxSeriesTerms; k++ {
		if k >= 2 {
			ea *= za
			eb *= zb
			mPrev, mCur = mCur, float64(k-1)*mPrev+ea-eb
			twoK *= 2
		}
		fact *= float64(k)

		t1 := p1 * mCur / fact
		g1 += t1
		p1 *= ms
		var t2 float64
		if k >= 2 {
			t2 = (twoK - 2) * p2 * mCur / fact
			g2 += t2
			p2 *= ms
		}

		if k >= 2 && math.Abs(t1) <= 1e-17*(math.Abs(g1)+scale1) && math.Abs(t2) <= 1e-17*(math.Abs(g2)+scale2) {
			small++
			if small == 2 {
				break
			}
		} else {
			small = 0
		}
	}
	return g1, g2
}

// expectation is the forward price of the OTM payoff on the chosen wing:
// (S~ - K)+ on the right, (K - S~)+ on the left.
func (m *VanillaLocalVolModel) expectation(isRightWing bool, strike float64, adj adjuster) float64 {
	xK := m.strikeX(strike, adj)
	c := m.s0*(1-adj.alpha) + adj.nu - strike
	if isRightWing {
		return math.Max(0, m.integrate(xK, m.upperBoundX(), c, momentFirst, adj))
	}
	return math.Max(0, -m.integrate(m.lowerBoundX(), xK, c, momentFirst, adj))
}

// variance is the forward price of (S~ - K)^2 restricted to the chosen wing.
func (m *VanillaLocalVolModel) variance(isRightWing bool, strike float64, adj adjuster) float64 {
	xK := m.strikeX(strike, adj)
	c := m.s0*(1-adj.alpha) + adj.nu - strike
	if isRightWing {
		return math.Max(0, m.integrate(xK, m.upperBoundX(), c, momentSecond, adj))
	}
	return math.Max(0, m.integrate(m.lowerBoundX(), xK, c, momentSecond, adj))
}

func (m *VanillaLocalVolModel) probability(isRightWing bool, strike float64, adj adjuster) float64 {
	xK := m.strikeX(strike, adj)
	if isRightWing {
		return m.integrate(xK, m.upperBoundX(), 0, momentProbability, adj)
	}
	return m.integrate(m.lowerBoundX(), xK, 0, momentProbability, adj)
}

// expectedLocalVol is E[sigma(S(X))], the derivative of E[S(X)] with respect
// to mu.
func (m *VanillaLocalVolModel) expectedLocalVol() float64 {
	return m.integrate(m.lowerBoundX(), m.upperBoundX(), 0, momentLocalVol, identity)
}
