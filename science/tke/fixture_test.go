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
	"testing"

	"github.com/spatialmodel/tkemix/field"
)

// fixture is a small ocean: every block has the same four columns, the
// second and third of which are shallower than the first, and the last of
// which is land.
type fixture struct {
	setup   *Setup[float64]
	fields  *Fields[float64]
	scratch *Scratch[float64]
	dolic   []int32
	nproma  int
	nlevs   int
	nblocks int
}

const garbage = -9.99e33

func newFixture(t *testing.T, nlevs, nblocks int) *fixture {
	t.Helper()
	f := &fixture{
		dolic:   []int32{int32(nlevs), int32(nlevs / 2), 1, 0},
		nproma:  4,
		nlevs:   nlevs,
		nblocks: nblocks,
	}
	n3 := f.nproma * nlevs * nblocks
	n2 := f.nproma * nblocks
	w3 := func(fill func(jb, k, jc int) float64) field.View3[float64] {
		v, err := field.Wrap3(make([]float64, n3), nblocks, nlevs, f.nproma)
		if err != nil {
			t.Fatal(err)
		}
		for jb := 0; jb < nblocks; jb++ {
			for k := 0; k < nlevs; k++ {
				for jc := 0; jc < f.nproma; jc++ {
					v.Set(jb, k, jc, fill(jb, k, jc))
				}
			}
		}
		return v
	}
	w2 := func(fill func(jb, jc int) float64) field.View2[float64] {
		v, err := field.Wrap2(make([]float64, n2), nblocks, f.nproma)
		if err != nil {
			t.Fatal(err)
		}
		for jb := 0; jb < nblocks; jb++ {
			for jc := 0; jc < f.nproma; jc++ {
				v.Set(jb, jc, fill(jb, jc))
			}
		}
		return v
	}
	junk3 := func(int, int, int) float64 { return garbage }
	const dz = 10.0

	dolic, err := field.Wrap2(make([]int32, n2), nblocks, f.nproma)
	if err != nil {
		t.Fatal(err)
	}
	for jb := 0; jb < nblocks; jb++ {
		for jc := 0; jc < f.nproma; jc++ {
			dolic.Set(jb, jc, f.dolic[jc])
		}
	}
	zlev, err := field.Wrap1(make([]float64, nlevs), nlevs)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < nlevs; k++ {
		zlev.Set(k, float64(k)*dz)
	}

	f.fields = &Fields[float64]{
		DepthCellInterface: w3(func(_, k, _ int) float64 { return float64(k) * dz }),
		PrismCenterDist:    w3(func(int, int, int) float64 { return dz }),
		InvPrismCenterDist: w3(func(int, int, int) float64 { return 1 / dz }),
		PrismThick:         w3(func(int, int, int) float64 { return dz }),
		WetC:               w3(func(int, int, int) float64 { return 1 }),
		DolicC:             dolic,
		DolicE:             dolic,
		ZlevI:              zlev,
		Temp: w3(func(_, k, jc int) float64 {
			return 20 - 15*(1-math.Exp(-float64(k)/4)) + float64(jc)/10
		}),
		Salt:    w3(func(_, k, _ int) float64 { return 34.5 + 0.02*float64(k) }),
		Stretch: w2(func(int, int) float64 { return 1 }),
		Eta:     w2(func(_, jc int) float64 { return 0.1 * float64(jc) }),
		Vn: [3]field.View3[float64]{
			w3(func(_, k, _ int) float64 { return 0.3 * math.Exp(-float64(k)/3) }),
			w3(func(_, k, _ int) float64 { return -0.1 * math.Exp(-float64(k)/5) }),
			w3(func(int, int, int) float64 { return 0 }),
		},
		StressX: w2(func(int, int) float64 { return 0.12 }),
		StressY: w2(func(_, jc int) float64 { return -0.05 * float64(jc) }),
		FU10:    w2(func(int, int) float64 { return 9 }),
		Concsum: w2(func(_, jc int) float64 { return 0.2 * float64(jc) }),
		IweTdis: w3(func(_, k, _ int) float64 { return 1e-9 * math.Exp(-float64(k)/10) }),
		TKE: w3(func(_, k, jc int) float64 {
			if k >= int(f.dolic[jc]) {
				return garbage
			}
			return 1e-4 * math.Exp(-float64(k)/5)
		}),
		TKEPlc:  w3(junk3),
		Wlc:     w3(junk3),
		Hlc:     w2(func(int, int) float64 { return garbage }),
		UStokes: w2(func(int, int) float64 { return garbage }),
		AVelocV: w3(junk3),
		ATempV:  w3(junk3),
		ASaltV:  w3(junk3),
		Tbpr:    w3(junk3),
		Tspr:    w3(junk3),
		Tdif:    w3(junk3),
		Tdis:    w3(junk3),
		Twin:    w3(junk3),
		Tiwf:    w3(junk3),
		Tbck:    w3(junk3),
		Ttot:    w3(junk3),
		Lmix:    w3(junk3),
		Pr:      w3(junk3),
	}

	// Edge jc of every block lies between column jc and column jc+1 of the
	// same block; the last edge has a single neighbor.
	for _, m := range []*field.View3[int32]{&f.fields.EdgeCellIdx, &f.fields.EdgeCellBlk} {
		*m, err = field.Wrap3(make([]int32, 2*n2), 2, nblocks, f.nproma)
		if err != nil {
			t.Fatal(err)
		}
	}
	for jb := 0; jb < nblocks; jb++ {
		for je := 0; je < f.nproma; je++ {
			f.fields.EdgeCellIdx.Set(0, jb, je, int32(je))
			f.fields.EdgeCellBlk.Set(0, jb, je, int32(jb))
			if je+1 < f.nproma {
				f.fields.EdgeCellIdx.Set(1, jb, je, int32(je+1))
				f.fields.EdgeCellBlk.Set(1, jb, je, int32(jb))
			} else {
				f.fields.EdgeCellIdx.Set(1, jb, je, -1)
				f.fields.EdgeCellBlk.Set(1, jb, je, -1)
			}
		}
	}

	f.setup = &Setup[float64]{
		Params:      DefaultParams[float64](),
		NLevs:       nlevs,
		Dtime:       3600,
		Rho0:        1025.022,
		Grav:        9.80665,
		RefPressure: 1035 * 9.80665 * 1e-4,
		IW:          true,
		LC:          true,
		CLC:         0.15,
		Pi:          math.Pi,
	}
	f.scratch, err = NewScratch[float64](&field.Host[float64]{}, 1, f.nproma, nlevs, nblocks)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.scratch.Free)
	return f
}

// run runs the cell kernel on every column.
func (f *fixture) run() {
	for jb := 0; jb < f.nblocks; jb++ {
		for jc := 0; jc < f.nproma; jc++ {
			Column(f.setup, f.fields, f.scratch, 0, jb, jc)
		}
	}
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance {
		return true
	}
	return false
}
