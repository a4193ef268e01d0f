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

package tkemix_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/spatialmodel/tkemix"
	"github.com/spatialmodel/tkemix/device"
	"github.com/spatialmodel/tkemix/field"
	"github.com/spatialmodel/tkemix/science/tke"
	"github.com/spatialmodel/tkemix/tkeutil"
	"github.com/stretchr/testify/require"
)

func constants[T tke.Float]() tkemix.Constants[T] {
	return tkemix.Constants[T]{
		NProma:                   25,
		NLevs:                    40,
		NBlocks:                  3,
		VertMixType:              tkemix.MixTKE,
		IdemixTKE:                tkemix.IWDissipation,
		VertCorType:              tkemix.ZStar,
		Dtime:                    3600,
		OceanReferenceDensity:    1025.022,
		Grav:                     9.80665,
		LC:                       true,
		CLC:                      0.15,
		ReferencePressureIndbars: 1035 * 9.80665 * 1e-4,
	}
}

// outputs returns the output buffers of cs by name.
func outputs[T tke.Float](cs *tkeutil.Case[T]) map[string][]T {
	cv := &cs.CVMix
	return map[string][]T{
		"tke": cv.TKE, "tke_plc": cv.TKEPlc, "hlc": cv.Hlc, "wlc": cv.Wlc,
		"u_stokes": cv.UStokes, "a_veloc_v": cv.AVelocV, "a_temp_v": cv.ATempV,
		"a_salt_v": cv.ASaltV, "tke_Tbpr": cv.TKETbpr, "tke_Tspr": cv.TKETspr,
		"tke_Tdif": cv.TKETdif, "tke_Tdis": cv.TKETdis, "tke_Twin": cv.TKETwin,
		"tke_Tiwf": cv.TKETiwf, "tke_Tbck": cv.TKETbck, "tke_Ttot": cv.TKETtot,
		"tke_Lmix": cv.TKELmix, "tke_Pr": cv.TKEPr,
	}
}

func run[T tke.Float](t *testing.T, b tkemix.Backend[T], cs *tkeutil.Case[T], steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		require.NoError(t, cs.Calc(b))
	}
	if s, ok := b.(interface{ Synchronize() }); ok {
		s.Synchronize()
	}
}

func TestBackendsAgree(t *testing.T) {
	c := constants[float64]()
	ref := tkeutil.Idealized(c)
	b, err := tkemix.NewCPU(c, tkemix.WithWorkers(1))
	require.NoError(t, err)
	run[float64](t, b, ref, 3)
	require.NoError(t, b.Close())
	want := outputs(ref)

	type backend struct {
		name string
		new  func() (tkemix.Backend[float64], func(), error)
	}
	var backends []backend
	for _, w := range []int{2, 7} {
		w := w
		backends = append(backends, backend{fmt.Sprintf("cpu_%d", w), func() (tkemix.Backend[float64], func(), error) {
			b, err := tkemix.NewCPU(c, tkemix.WithWorkers(w))
			return b, func() {}, err
		}})
	}
	for _, gs := range []int{1, 7, 128} {
		gs := gs
		backends = append(backends,
			backend{fmt.Sprintf("gpu_serial_%d", gs), func() (tkemix.Backend[float64], func(), error) {
				dev := device.NewEmulated("serial", device.Serial{}, 0)
				b, err := tkemix.NewGPU(c, dev, tkemix.WithGroupSize(gs))
				return b, func() {}, err
			}},
			backend{fmt.Sprintf("gpu_pool_%d", gs), func() (tkemix.Backend[float64], func(), error) {
				dev := device.NewEmulated("pool", device.Pool{Workers: 3}, 0)
				b, err := tkemix.NewGPU(c, dev, tkemix.WithGroupSize(gs))
				return b, func() {}, err
			}},
			backend{fmt.Sprintf("gpu_async_%d", gs), func() (tkemix.Backend[float64], func(), error) {
				a := device.NewAsync(4)
				b, err := tkemix.NewGPU(c, device.NewEmulated("async", a, 0), tkemix.WithGroupSize(gs))
				return b, a.Close, err
			}},
		)
	}
	backends = append(backends, backend{"new_gpu", func() (tkemix.Backend[float64], func(), error) {
		b, err := tkemix.New(tkemix.KindGPU, c)
		return b, func() {}, err
	}})

	backends = append(backends, backend{"gpu_async_released", func() (tkemix.Backend[float64], func(), error) {
		a := device.NewAsync(4)
		a.Close()
		b, err := tkemix.NewGPU(c, device.NewEmulated("released", a, 0))
		return b, func() {}, err
	}})

	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			b, release, err := bk.new()
			require.NoError(t, err)
			defer release()
			cs := tkeutil.Idealized(c)
			run[float64](t, b, cs, 3)
			require.NoError(t, b.Close())
			for name, have := range outputs(cs) {
				require.Equal(t, want[name], have, name)
			}
		})
	}
}

func TestFloat32(t *testing.T) {
	c := constants[float32]()
	cpu := tkeutil.Idealized(c)
	b, err := tkemix.New(tkemix.KindCPU, c)
	require.NoError(t, err)
	run[float32](t, b, cpu, 2)
	require.NoError(t, b.Close())

	gpu := tkeutil.Idealized(c)
	g, err := tkemix.New(tkemix.KindGPU, c)
	require.NoError(t, err)
	run[float32](t, g, gpu, 2)
	require.NoError(t, g.Close())

	require.Equal(t, cpu.CVMix.TKE, gpu.CVMix.TKE)
	require.Equal(t, cpu.CVMix.AVelocV, gpu.CVMix.AVelocV)
	s := tkeutil.Summarize(cpu)
	if s.MaxResidual > 1e-6 {
		t.Errorf("budget residual %g", s.MaxResidual)
	}
	for i, v := range cpu.CVMix.TKE {
		if v < 0 || math.IsNaN(float64(v)) {
			t.Fatalf("tke[%d] = %g", i, v)
		}
	}
}

func TestCalcRepeatable(t *testing.T) {
	c := constants[float64]()
	cs := tkeutil.Idealized(c)
	tke0 := append([]float64(nil), cs.CVMix.TKE...)
	b, err := tkemix.New(tkemix.KindCPU, c)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, cs.Calc(b))
	first := cs.Clone()
	copy(cs.CVMix.TKE, tke0)
	require.NoError(t, cs.Calc(b))
	for name, have := range outputs(cs) {
		require.Equal(t, outputs(first)[name], have, name)
	}
}

func TestDirichlet(t *testing.T) {
	c := constants[float64]()
	c.Params = tke.DefaultParams[float64]()
	c.Params.Surface = tke.Dirichlet
	cs := tkeutil.Idealized(c)
	b, err := tkemix.New(tkemix.KindGPU, c)
	require.NoError(t, err)
	run[float64](t, b, cs, 2)
	require.NoError(t, b.Close())
	if s := tkeutil.Summarize(cs); s.MaxResidual > 1e-12 {
		t.Errorf("budget residual %g", s.MaxResidual)
	}
}

func TestPartialRange(t *testing.T) {
	c := constants[float64]()
	cs := tkeutil.Idealized(c)
	const sentinel = -7.0
	for i := range cs.CVMix.ATempV {
		cs.CVMix.ATempV[i] = sentinel
		cs.CVMix.AVelocV[i] = sentinel
	}
	cs.Cells = tkemix.Range{BlockSize: c.NProma, StartBlock: 1, EndBlock: 1, StartIndex: 3, EndIndex: 10}
	cs.Edges = cs.Cells

	for _, kind := range []tkemix.Kind{tkemix.KindCPU, tkemix.KindGPU} {
		b, err := tkemix.New(kind, c)
		require.NoError(t, err)
		run[float64](t, b, cs, 1)
		require.NoError(t, b.Close())
	}
	for jb := 0; jb < c.NBlocks; jb++ {
		for k := 0; k < c.NLevs; k++ {
			for jc := 0; jc < c.NProma; jc++ {
				i := (jb*c.NLevs+k)*c.NProma + jc
				active := jb == 1 && jc >= 3 && jc <= 10
				if !active && (cs.CVMix.ATempV[i] != sentinel || cs.CVMix.AVelocV[i] != sentinel) {
					t.Fatalf("inactive column (%d, %d) written at level %d", jb, jc, k)
				}
				if active && cs.CVMix.ATempV[i] == sentinel {
					t.Fatalf("active column (%d, %d) not written at level %d", jb, jc, k)
				}
			}
		}
	}
}

func TestBufferMoved(t *testing.T) {
	c := constants[float64]()
	cs := tkeutil.Idealized(c)
	for _, kind := range []tkemix.Kind{tkemix.KindCPU, tkemix.KindGPU} {
		b, err := tkemix.New(kind, c)
		require.NoError(t, err)
		require.NoError(t, cs.Calc(b))

		moved := cs.Clone()
		err = moved.Calc(b)
		require.True(t, errors.Is(err, tkemix.ErrBufferMoved), "%v", err)

		// The original buffers still work.
		require.NoError(t, cs.Calc(b))
		require.NoError(t, b.Close())
	}
}

func TestShapeErrors(t *testing.T) {
	c := constants[float64]()
	for _, test := range []struct {
		name   string
		modify func(cs *tkeutil.Case[float64])
	}{
		{"short temp", func(cs *tkeutil.Case[float64]) { cs.Ocean.Temp = cs.Ocean.Temp[1:] }},
		{"nil tke", func(cs *tkeutil.Case[float64]) { cs.CVMix.TKE = nil }},
		{"short dolic", func(cs *tkeutil.Case[float64]) { cs.Patch.DolicC = cs.Patch.DolicC[:3] }},
		{"short optional", func(cs *tkeutil.Case[float64]) { cs.Ocean.VnX2 = cs.Ocean.VnX2[:5] }},
	} {
		t.Run(test.name, func(t *testing.T) {
			cs := tkeutil.Idealized(c)
			test.modify(cs)
			b, err := tkemix.New(tkemix.KindCPU, c)
			require.NoError(t, err)
			defer b.Close()
			err = cs.Calc(b)
			require.True(t, errors.Is(err, field.ErrShape), "%v", err)
		})
	}

	b, err := tkemix.New(tkemix.KindCPU, c)
	require.NoError(t, err)
	defer b.Close()
	cs := tkeutil.Idealized(c)
	err = b.Calc(nil, &cs.CVMix, &cs.Ocean, &cs.Fluxes, &cs.Atmos, &cs.Ice, cs.Edges, cs.Cells)
	require.True(t, errors.Is(err, field.ErrShape), "%v", err)
}

func TestOptionalShear(t *testing.T) {
	c := constants[float64]()
	cs := tkeutil.Idealized(c)
	cs.Ocean.VnX1, cs.Ocean.VnX2, cs.Ocean.VnX3 = nil, nil, nil
	b, err := tkemix.New(tkemix.KindCPU, c)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, cs.Calc(b))
	for i, v := range cs.CVMix.TKETspr {
		if v != 0 {
			t.Fatalf("shear production %g at %d without velocities", v, i)
		}
	}
}

func TestClosed(t *testing.T) {
	c := constants[float64]()
	cs := tkeutil.Idealized(c)
	for _, kind := range []tkemix.Kind{tkemix.KindCPU, tkemix.KindGPU} {
		b, err := tkemix.New(kind, c)
		require.NoError(t, err)
		require.Equal(t, string(kind), b.Name())
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())
		require.True(t, errors.Is(cs.Calc(b), tkemix.ErrClosed))
	}
}

func TestRangeErrors(t *testing.T) {
	c := constants[float64]()
	full := tkemix.FullRange(c.NProma, c.NBlocks)
	for _, r := range []tkemix.Range{
		{BlockSize: 0, EndBlock: 2, EndIndex: 24},
		{BlockSize: 26, EndBlock: 2, EndIndex: 24},
		{BlockSize: 25, StartBlock: -1, EndBlock: 2, EndIndex: 24},
		{BlockSize: 25, EndBlock: 3, EndIndex: 24},
		{BlockSize: 25, StartBlock: 2, EndBlock: 1, EndIndex: 24},
		{BlockSize: 25, EndBlock: 2, StartIndex: 25, EndIndex: 24},
		{BlockSize: 25, EndBlock: 2, EndIndex: 25},
		{BlockSize: 25, StartBlock: 1, EndBlock: 1, StartIndex: 5, EndIndex: 4},
	} {
		for _, kind := range []tkemix.Kind{tkemix.KindCPU, tkemix.KindGPU} {
			cs := tkeutil.Idealized(c)
			b, err := tkemix.New(kind, c)
			require.NoError(t, err)
			cs.Cells, cs.Edges = r, full
			require.True(t, errors.Is(cs.Calc(b), tkemix.ErrRange), "cells %+v", r)
			cs.Cells, cs.Edges = full, r
			require.True(t, errors.Is(cs.Calc(b), tkemix.ErrRange), "edges %+v", r)
			require.NoError(t, b.Close())
		}
	}
}

func TestRange(t *testing.T) {
	for _, r := range []tkemix.Range{
		tkemix.FullRange(10, 4),
		{BlockSize: 10, StartBlock: 1, EndBlock: 3, StartIndex: 4, EndIndex: 2},
		{BlockSize: 10, StartBlock: 2, EndBlock: 2, StartIndex: 3, EndIndex: 8},
		{BlockSize: 8, StartBlock: 0, EndBlock: 3, StartIndex: 7, EndIndex: 9},
		{BlockSize: 1, StartBlock: 0, EndBlock: 0, StartIndex: 0, EndIndex: 9},
	} {
		var want [][2]int
		for jb := r.StartBlock; jb <= r.EndBlock; jb++ {
			start, end := r.Columns(jb)
			for jc := start; jc <= end; jc++ {
				want = append(want, [2]int{jb, jc})
			}
		}
		require.Equal(t, len(want), r.Count(), "%+v", r)
		for i, w := range want {
			jb, jc := r.At(i)
			require.Equal(t, w, [2]int{jb, jc}, "%+v: %d", r, i)
		}
	}
}

func TestDeviceOutOfMemory(t *testing.T) {
	c := constants[float64]()
	dev := device.NewEmulated("small", device.Serial{}, 1<<12)
	_, err := tkemix.NewGPU(c, dev)
	require.True(t, errors.Is(err, field.ErrOutOfMemory), "%v", err)
	require.Equal(t, int64(0), dev.Used())

	dev = device.NewEmulated("big", device.Serial{}, 1<<30)
	b, err := tkemix.NewGPU(c, dev)
	require.NoError(t, err)
	require.True(t, dev.Used() > 0)
	require.NoError(t, b.Close())
	require.Equal(t, int64(0), dev.Used())
}

func TestValidate(t *testing.T) {
	require.NoError(t, constants[float64]().Validate())
	for name, modify := range map[string]func(c *tkemix.Constants[float64]){
		"nproma":   func(c *tkemix.Constants[float64]) { c.NProma = 0 },
		"nlevs":    func(c *tkemix.Constants[float64]) { c.NLevs = -1 },
		"mix type": func(c *tkemix.Constants[float64]) { c.VertMixType = 1 },
		"iw":       func(c *tkemix.Constants[float64]) { c.IdemixTKE = 3 },
		"vert cor": func(c *tkemix.Constants[float64]) { c.VertCorType = 2 },
		"dtime":    func(c *tkemix.Constants[float64]) { c.Dtime = 0 },
		"rho0":     func(c *tkemix.Constants[float64]) { c.OceanReferenceDensity = 0 },
		"grav":     func(c *tkemix.Constants[float64]) { c.Grav = -9.8 },
		"clc":      func(c *tkemix.Constants[float64]) { c.CLC = -1 },
		"params": func(c *tkemix.Constants[float64]) {
			c.Params = tke.DefaultParams[float64]()
			c.Params.CEps = -1
		},
	} {
		c := constants[float64]()
		modify(&c)
		require.Error(t, c.Validate(), name)
		_, err := tkemix.New(tkemix.KindCPU, c)
		require.Error(t, err, name)
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := tkemix.New(tkemix.Kind("tpu"), constants[float64]())
	require.Error(t, err)
}
