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

package tkemix

import (
	"fmt"

	"github.com/spatialmodel/tkemix/field"
	"github.com/spatialmodel/tkemix/science/tke"
)

// viewState is the state of the views a backend keeps over the caller's
// buffers.
type viewState int

const (
	// uninitialized: no Calc call has happened yet.
	uninitialized viewState = iota

	// ready: the views wrap the buffers of the first call.
	ready
)

// views holds the views over the caller's buffers. They are built on the
// first call to Calc; later calls only verify that the buffers are
// unchanged.
type views[T tke.Float] struct {
	state  viewState
	fields tke.Fields[T]
	dummy  [3]field.View3[T]
}

// binder either wraps buffers into views or, once the views exist,
// checks that buffers are the ones the views wrap.
type binder[T tke.Float] struct {
	c     *Constants[T]
	check bool
	err   error
}

func (b *binder[T]) fail(name string, err error) {
	if b.err == nil {
		b.err = fmt.Errorf("tkemix: field %s: %w", name, err)
	}
}

func (b *binder[T]) moved(name string) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrBufferMoved, name)
	}
}

// v3 binds a 3D field. Optional fields may be nil, in which case the view
// stays empty.
func (b *binder[T]) v3(name string, v *field.View3[T], buf []T, optional bool) {
	if b.check {
		if !v.SameBuffer(buf) {
			b.moved(name)
		}
		return
	}
	if buf == nil && optional {
		return
	}
	var err error
	if *v, err = field.Wrap3(buf, b.c.NBlocks, b.c.NLevs, b.c.NProma); err != nil {
		b.fail(name, err)
	}
}

func (b *binder[T]) v2(name string, v *field.View2[T], buf []T) {
	if b.check {
		if !v.SameBuffer(buf) {
			b.moved(name)
		}
		return
	}
	var err error
	if *v, err = field.Wrap2(buf, b.c.NBlocks, b.c.NProma); err != nil {
		b.fail(name, err)
	}
}

func (b *binder[T]) v1(name string, v *field.View1[T], buf []T) {
	if b.check {
		if !v.SameBuffer(buf) {
			b.moved(name)
		}
		return
	}
	var err error
	if *v, err = field.Wrap1(buf, b.c.NLevs); err != nil {
		b.fail(name, err)
	}
}

func (b *binder[T]) i2(name string, v *field.View2[int32], buf []int32) {
	if b.check {
		if !v.SameBuffer(buf) {
			b.moved(name)
		}
		return
	}
	var err error
	if *v, err = field.Wrap2(buf, b.c.NBlocks, b.c.NProma); err != nil {
		b.fail(name, err)
	}
}

// neighbors binds a [2][block][edge] neighbor map.
func (b *binder[T]) neighbors(name string, v *field.View3[int32], buf []int32) {
	if b.check {
		if !v.SameBuffer(buf) {
			b.moved(name)
		}
		return
	}
	var err error
	if *v, err = field.Wrap3(buf, 2, b.c.NBlocks, b.c.NProma); err != nil {
		b.fail(name, err)
	}
}

// bind builds the views on the first call and checks the buffers on every
// later one. The views are left untouched if it returns an error.
func (vs *views[T]) bind(c *Constants[T], p *Patch[T], cv *CVMix[T], os *OceanState[T],
	af *AtmoFluxes[T], as *AtmosForOcean[T], si *SeaIce[T]) error {
	if p == nil || cv == nil || os == nil || af == nil || as == nil || si == nil {
		return fmt.Errorf("tkemix: %w: nil field bundle", field.ErrShape)
	}
	b := &binder[T]{c: c, check: vs.state == ready}
	f, d := vs.fields, vs.dummy

	b.v3("depth_CellInterface", &f.DepthCellInterface, p.DepthCellInterface, false)
	b.v3("prism_center_dist_c", &f.PrismCenterDist, p.PrismCenterDistC, false)
	b.v3("inv_prism_center_dist_c", &f.InvPrismCenterDist, p.InvPrismCenterDistC, false)
	b.v3("prism_thick_c", &f.PrismThick, p.PrismThickC, false)
	b.i2("dolic_c", &f.DolicC, p.DolicC)
	b.i2("dolic_e", &f.DolicE, p.DolicE)
	b.v1("zlev_i", &f.ZlevI, p.ZlevI)
	b.v3("wet_c", &f.WetC, p.WetC, false)
	b.neighbors("edges_cell_idx", &f.EdgeCellIdx, p.EdgesCellIdx)
	b.neighbors("edges_cell_blk", &f.EdgeCellBlk, p.EdgesCellBlk)

	b.v3("temp", &f.Temp, os.Temp, false)
	b.v3("salt", &f.Salt, os.Salt, false)
	b.v2("stretch_c", &f.Stretch, os.StretchC)
	b.v2("eta_c", &f.Eta, os.EtaC)
	b.v3("vn_x1", &f.Vn[0], os.VnX1, true)
	b.v3("vn_x2", &f.Vn[1], os.VnX2, true)
	b.v3("vn_x3", &f.Vn[2], os.VnX3, true)

	b.v2("stress_xw", &f.StressX, af.StressXW)
	b.v2("stress_yw", &f.StressY, af.StressYW)
	b.v2("fu10", &f.FU10, as.FU10)
	b.v2("concsum", &f.Concsum, si.Concsum)

	b.v3("tke", &f.TKE, cv.TKE, false)
	b.v3("tke_plc", &f.TKEPlc, cv.TKEPlc, false)
	b.v2("hlc", &f.Hlc, cv.Hlc)
	b.v3("wlc", &f.Wlc, cv.Wlc, false)
	b.v2("u_stokes", &f.UStokes, cv.UStokes)
	b.v3("a_veloc_v", &f.AVelocV, cv.AVelocV, false)
	b.v3("a_temp_v", &f.ATempV, cv.ATempV, false)
	b.v3("a_salt_v", &f.ASaltV, cv.ASaltV, false)
	b.v3("iwe_Tdis", &f.IweTdis, cv.IweTdis, false)
	b.v3("cvmix_dummy_1", &d[0], cv.Dummy1, true)
	b.v3("cvmix_dummy_2", &d[1], cv.Dummy2, true)
	b.v3("cvmix_dummy_3", &d[2], cv.Dummy3, true)
	b.v3("tke_Tbpr", &f.Tbpr, cv.TKETbpr, false)
	b.v3("tke_Tspr", &f.Tspr, cv.TKETspr, false)
	b.v3("tke_Tdif", &f.Tdif, cv.TKETdif, false)
	b.v3("tke_Tdis", &f.Tdis, cv.TKETdis, false)
	b.v3("tke_Twin", &f.Twin, cv.TKETwin, false)
	b.v3("tke_Tiwf", &f.Tiwf, cv.TKETiwf, false)
	b.v3("tke_Tbck", &f.Tbck, cv.TKETbck, false)
	b.v3("tke_Ttot", &f.Ttot, cv.TKETtot, false)
	b.v3("tke_Lmix", &f.Lmix, cv.TKELmix, false)
	b.v3("tke_Pr", &f.Pr, cv.TKEPr, false)

	if b.err != nil {
		return b.err
	}
	if !b.check {
		vs.fields, vs.dummy = f, d
		vs.state = ready
	}
	return nil
}
