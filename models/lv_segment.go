package models

import (
	"math"
	"sort"
)

// segment is one piece of the local vol function. It is anchored at the grid
// node closer to the center; on the segment sigma(S) = vol0 + m (S - s0) and
// dS/dx = sigma(S) with S(x0) = s0.
type segment struct {
	x0   float64
	s0   float64
	vol0 float64
	m    float64
}

// Below this |m y| the second order term of expm1(m y)/m is lost in rounding
// of y itself, and m y may leave the normal float range.
const tinyProduct = 1e-280

// expm1Ratio is expm1(m y) / m, continuous at m = 0.
func expm1Ratio(m, y float64) float64 {
	if math.Abs(m*y) < tinyProduct {
		return y
	}
	return math.Expm1(m*y) / m
}

// log1pRatio is log1p(m y) / m, continuous at m = 0.
func log1pRatio(m, y float64) float64 {
	if math.Abs(m*y) < tinyProduct {
		return y
	}
	return math.Log1p(m*y) / m
}

func (sg segment) localVol(s float64) float64 {
	return sg.vol0 + sg.m*(s-sg.s0)
}

// level solves the ODE on the segment: S(x).
func (sg segment) level(x float64) float64 {
	return sg.s0 + sg.vol0*expm1Ratio(sg.m, x-sg.x0)
}

// inverse returns x(S). S must be reachable from the anchor, that is
// sigma(S) > 0.
func (sg segment) inverse(s float64) float64 {
	return sg.x0 + log1pRatio(sg.m, (s-sg.s0)/sg.vol0)
}

// volAt is sigma(S(x)), which stays positive for every x.
func (sg segment) volAt(x float64) float64 {
	return sg.vol0 * math.Exp(sg.m*(x-sg.x0))
}

// lvGrid holds the ascending node arrays of both wings joined at the center
// node (0, S0, sigma0). slope[i] is the slope of the segment between node i and
// its neighbour toward the center; slope[center] is zero.
type lvGrid struct {
	x      []float64
	s      []float64
	vol    []float64
	slope  []float64
	center int
}

func (g *lvGrid) last() int {
	return len(g.x) - 1
}

// segment returns the piece covering interval j, i.e. (x[j], x[j+1]]. Interval
// -1 and last() are the extrapolation pieces.
func (g *lvGrid) segment(j int) segment {
	var k int
	var m float64
	if j >= g.center {
		k = j
		if j+1 <= g.last() {
			m = g.slope[j+1]
		} else {
			m = g.slope[j]
		}
	} else {
		k = j + 1
		if j >= 0 {
			m = g.slope[j]
		} else {
			m = g.slope[0]
		}
	}
	return segment{x0: g.x[k], s0: g.s[k], vol0: g.vol[k], m: m}
}

// intervalOfX locates the interval index for x, see segment.
func (g *lvGrid) intervalOfX(x float64) int {
	return sort.SearchFloat64s(g.x, x) - 1
}

func (g *lvGrid) intervalOfS(s float64) int {
	return sort.SearchFloat64s(g.s, s) - 1
}

// lower and upper edge of interval j in x.
func (g *lvGrid) edges(j int) (float64, float64) {
	lo, hi := math.Inf(-1), math.Inf(1)
	if j >= 0 {
		lo = g.x[j]
	}
	if j+1 <= g.last() {
		hi = g.x[j+1]
	}
	return lo, hi
}

func (g *lvGrid) level(x float64) float64 {
	return g.segment(g.intervalOfX(x)).level(x)
}

func (g *lvGrid) inverse(s float64) float64 {
	return g.segment(g.intervalOfS(s)).inverse(s)
}

func (g *lvGrid) localVol(s float64) float64 {
	i := sort.SearchFloat64s(g.s, s)
	if i <= g.last() && g.s[i] == s {
		return g.vol[i]
	}
	return g.segment(i - 1).localVol(s)
}
