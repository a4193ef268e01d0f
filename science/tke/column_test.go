/*
Copyright © 2023 the TKEmix authors.
This file is part of TKEmix.

TKEmix is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

TKEmix is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with TKEmix.  If not, see <http://www.gnu.org/licenses/>.
*/

package tke

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// budgetTerms returns the terms whose sum is the total TKE tendency.
func budgetTerms(f *Fields[float64], jb, k, jc int) []float64 {
	return []float64{
		f.Tbpr.At(jb, k, jc), f.Tspr.At(jb, k, jc), f.Tdif.At(jb, k, jc),
		f.Tdis.At(jb, k, jc), f.Twin.At(jb, k, jc), f.Tiwf.At(jb, k, jc),
		f.Tbck.At(jb, k, jc),
	}
}

func testBudget(t *testing.T, f *fixture) {
	t.Helper()
	for jb := 0; jb < f.nblocks; jb++ {
		for jc := 0; jc < f.nproma; jc++ {
			for k := 0; k < int(f.dolic[jc]); k++ {
				terms := budgetTerms(f.fields, jb, k, jc)
				tot := f.fields.Ttot.At(jb, k, jc)
				scale := math.Max(math.Abs(tot), math.Abs(f.fields.TKE.At(jb, k, jc))/f.setup.Dtime)
				for _, v := range terms {
					scale = math.Max(scale, math.Abs(v))
				}
				if absDifferent(floats.Sum(terms), tot, 1e-9*scale+1e-300) {
					t.Errorf("block %d column %d level %d: budget terms sum to %g but total is %g",
						jb, jc, k, floats.Sum(terms), tot)
				}
			}
		}
	}
}

func TestColumnBudget(t *testing.T) {
	f := newFixture(t, 20, 2)
	for step := 0; step < 5; step++ {
		f.run()
		testBudget(t, f)
	}
}

func TestColumnBudgetDirichlet(t *testing.T) {
	f := newFixture(t, 12, 1)
	f.setup.Params.Surface = Dirichlet
	f.run()
	testBudget(t, f)
	for jc := 0; jc < f.nproma; jc++ {
		if f.dolic[jc] == 0 {
			continue
		}
		if tke := f.fields.TKE.At(0, 0, jc); tke < f.setup.Params.TKESurfMin {
			t.Errorf("column %d: surface TKE %g is below the surface minimum", jc, tke)
		}
	}
}

func TestColumnNonNegative(t *testing.T) {
	f := newFixture(t, 15, 1)
	// Strong stratification, no wind and strong dissipation drive the
	// unrestricted solution below the floor.
	for k := 0; k < f.nlevs; k++ {
		for jc := 0; jc < f.nproma; jc++ {
			f.fields.Temp.Set(0, k, jc, 30-2*float64(k))
			f.fields.Salt.Set(0, k, jc, 30+float64(k))
		}
	}
	for jc := 0; jc < f.nproma; jc++ {
		f.fields.StressX.Set(0, jc, 0)
		f.fields.StressY.Set(0, jc, 0)
	}
	f.setup.Params.CEps = 50
	f.setup.Params.TKEMin = 0
	f.setup.IW = false
	f.setup.LC = false
	f.setup.Dtime = 86400
	for step := 0; step < 3; step++ {
		f.run()
		for jc := 0; jc < f.nproma; jc++ {
			for k := 0; k < int(f.dolic[jc]); k++ {
				if v := f.fields.TKE.At(0, k, jc); v < 0 || math.IsNaN(v) {
					t.Fatalf("column %d level %d: negative TKE %g", jc, k, v)
				}
			}
		}
	}
	testBudget(t, f)
}

func TestColumnInactiveLevels(t *testing.T) {
	f := newFixture(t, 10, 2)
	f.run()
	for jb := 0; jb < f.nblocks; jb++ {
		for jc := 0; jc < f.nproma; jc++ {
			n := int(f.dolic[jc])
			for k := n; k < f.nlevs; k++ {
				require.Equal(t, garbage, f.fields.TKE.At(jb, k, jc), "tke below the bottom must not change")
				for i, v := range budgetTerms(f.fields, jb, k, jc) {
					require.Zerof(t, v, "budget term %d at column %d level %d", i, jc, k)
				}
				require.Zero(t, f.fields.Ttot.At(jb, k, jc))
				require.Zero(t, f.fields.Lmix.At(jb, k, jc))
				require.Zero(t, f.fields.Pr.At(jb, k, jc))
				require.Zero(t, f.fields.ATempV.At(jb, k, jc))
				require.Zero(t, f.fields.ASaltV.At(jb, k, jc))
				require.Zero(t, f.fields.TKEPlc.At(jb, k, jc))
				require.Zero(t, f.fields.Wlc.At(jb, k, jc))
				require.Zero(t, f.scratch.TKEAv.At(jb, k, jc))
			}
			for k := 0; k < n; k++ {
				require.GreaterOrEqual(t, f.fields.TKE.At(jb, k, jc), f.setup.Params.TKEMin)
				require.Greater(t, f.fields.Pr.At(jb, k, jc), 0.)
			}
		}
	}
}

// Vertical diffusion only moves TKE around within a column.
func TestDiffusionConserves(t *testing.T) {
	f := newFixture(t, 25, 1)
	f.run()
	for jc := 0; jc < f.nproma; jc++ {
		n := int(f.dolic[jc])
		if n == 0 {
			continue
		}
		r := f.scratch.rows(0, n)
		Column(f.setup, f.fields, f.scratch, 0, 0, jc)
		var sum, scale float64
		for k := 0; k < n; k++ {
			v := r.dzt[k] * f.fields.Tdif.At(0, k, jc)
			sum += v
			scale = math.Max(scale, math.Abs(v))
		}
		if absDifferent(sum, 0, 1e-10*scale+1e-300) {
			t.Errorf("column %d: integrated diffusion = %g", jc, sum)
		}
	}
}

func TestLangmuir(t *testing.T) {
	f := newFixture(t, 30, 1)
	f.run()
	for jc := 0; jc < f.nproma; jc++ {
		n := int(f.dolic[jc])
		if n == 0 {
			continue
		}
		us := f.fields.UStokes.At(0, jc)
		want := 0.016 * 9 * (1 - 0.2*float64(jc))
		if absDifferent(us, want, 1e-12) {
			t.Errorf("column %d: Stokes drift %g, want %g", jc, us, want)
		}
		hlc := f.fields.Hlc.At(0, jc)
		if hlc < 10 {
			t.Errorf("column %d: Langmuir depth %g is shallower than the top layer", jc, hlc)
		}
		for k := 0; k < n; k++ {
			z := f.fields.DepthCellInterface.At(0, k, jc)
			wlc := f.fields.Wlc.At(0, k, jc)
			if z >= hlc && wlc != 0 {
				t.Errorf("column %d level %d: Langmuir velocity %g below the Langmuir depth", jc, k, wlc)
			}
			if wlc < 0 {
				t.Errorf("column %d level %d: negative Langmuir velocity %g", jc, k, wlc)
			}
		}
	}

	f.setup.LC = false
	f.run()
	for jc := 0; jc < f.nproma; jc++ {
		require.Zero(t, f.fields.Hlc.At(0, jc))
		require.Zero(t, f.fields.UStokes.At(0, jc))
		for k := 0; k < f.nlevs; k++ {
			require.Zero(t, f.fields.TKEPlc.At(0, k, jc))
		}
	}
}

func TestMixingLength(t *testing.T) {
	p := DefaultParams[float64]()
	sqrttke := []float64{1e-2, 1e-2, 1e-2, 1e-2, 1e-2}
	nsqr := []float64{0, 1e-8, 1e-8, 1e-8, 1e-8}
	dzw := []float64{10, 10, 10, 10, 10}
	mxl := make([]float64, 5)
	mixingLength(&p, sqrttke, nsqr, dzw, mxl)
	want := []float64{p.MxlMin, 10, 20, 20, 10 + p.MxlMin}
	for k := range want {
		if absDifferent(mxl[k], want[k], 1e-7) {
			t.Errorf("level %d: mixing length %g, want %g", k, mxl[k], want[k])
		}
	}

	p.MixingLength = MxlStratification
	mixingLength(&p, sqrttke, nsqr, dzw, mxl)
	if absDifferent(mxl[1], math.Sqrt2*1e-2/1e-4, 1e-9) {
		t.Errorf("stratification limited mixing length %g", mxl[1])
	}
}

func TestCoefficients(t *testing.T) {
	p := DefaultParams[float64]()
	mxl := []float64{1, 1e6, 2}
	sqrttke := []float64{0.1, 1, 0.1}
	nsqr := []float64{-1e-5, 1e-4, 1e-4}
	ssqr := []float64{1e-5, 1e-5, 1e-8}
	kappaM := make([]float64, 3)
	pr := make([]float64, 3)
	kappaH := make([]float64, 3)
	coefficients(&p, mxl, sqrttke, nsqr, ssqr, kappaM, pr, kappaH)

	require.InDelta(t, 0.01, kappaM[0], 1e-15)
	require.Equal(t, p.KappaMMax, kappaM[1])
	require.Equal(t, []float64{1, 10, 10}, pr)
	require.InDelta(t, 0.002, kappaH[2], 1e-15)
}

func TestReadParams(t *testing.T) {
	p, err := ReadParams[float64](strings.NewReader(`
[TKE]
CK = 0.2
TKEMin = 1e-5
Surface = 1
`))
	require.NoError(t, err)
	want := DefaultParams[float64]()
	want.CK = 0.2
	want.TKEMin = 1e-5
	want.Surface = Dirichlet
	require.Equal(t, want, p)

	_, err = ReadParams[float32](strings.NewReader("[TKE]\nTKEMin = -1.0\n"))
	require.Error(t, err)

	_, err = ReadParams[float64](strings.NewReader("[TKE]\nMixingLength = 3\n"))
	require.Error(t, err)
}
