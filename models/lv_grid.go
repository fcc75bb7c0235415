package models

import (
	"fmt"
	"math"
)

// buildGrid integrates dS/dx = sigma(S) outward from the center (0, S0, sigma0)
// over the level grids Sp and Sm. It fails when a slope drives the local vol at
// a grid point to zero or below, since the ODE can never reach that level.
func buildGrid(s0, sigma0 float64, sp, sm, mp, mm []float64) (*lvGrid, error) {
	n := len(sm) + 1 + len(sp)
	g := &lvGrid{
		x:      make([]float64, n),
		s:      make([]float64, n),
		vol:    make([]float64, n),
		slope:  make([]float64, n),
		center: len(sm),
	}
	c := g.center
	g.s[c] = s0
	g.vol[c] = sigma0

	for i := range sp {
		k := c + 1 + i
		anchor := segment{x0: g.x[k-1], s0: g.s[k-1], vol0: g.vol[k-1], m: mp[i]}
		vol := anchor.localVol(sp[i])
		if !(vol > 0) {
			return nil, domainError("Mp", fmt.Sprintf("local vol not positive at upper grid point %d", i), vol)
		}
		g.s[k] = sp[i]
		g.vol[k] = vol
		g.slope[k] = mp[i]
		g.x[k] = anchor.inverse(sp[i])
	}

	for i := range sm {
		k := c - 1 - i
		anchor := segment{x0: g.x[k+1], s0: g.s[k+1], vol0: g.vol[k+1], m: mm[i]}
		vol := anchor.localVol(sm[i])
		if !(vol > 0) {
			return nil, domainError("Mm", fmt.Sprintf("local vol not positive at lower grid point %d", i), vol)
		}
		g.s[k] = sm[i]
		g.vol[k] = vol
		g.slope[k] = mm[i]
		g.x[k] = anchor.inverse(sm[i])
	}

	for i := 1; i < n; i++ {
		if !(g.x[i] > g.x[i-1]) || math.IsInf(g.x[i], 0) {
			return nil, domainError("X", "transformed grid not strictly increasing", g.x[i])
		}
	}
	return g, nil
}

// levelsFromX maps a transformed-variable grid to the level grid it implies
// for a given sigma0. The local vol stays positive along the ODE solution, so
// this direction cannot fail for finite inputs.
func levelsFromX(s0, sigma0 float64, xp, xm, mp, mm []float64) (sp, sm []float64) {
	sp = make([]float64, len(xp))
	sm = make([]float64, len(xm))

	anchor := segment{x0: 0, s0: s0, vol0: sigma0}
	for i := range xp {
		anchor.m = mp[i]
		s := anchor.level(xp[i])
		anchor = segment{x0: xp[i], s0: s, vol0: anchor.volAt(xp[i])}
		sp[i] = s
	}

	anchor = segment{x0: 0, s0: s0, vol0: sigma0}
	for i := range xm {
		anchor.m = mm[i]
		s := anchor.level(xm[i])
		anchor = segment{x0: xm[i], s0: s, vol0: anchor.volAt(xm[i])}
		sm[i] = s
	}
	return sp, sm
}
