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

package tkeutil

import (
	"math"

	"github.com/spatialmodel/tkemix"
	"github.com/spatialmodel/tkemix/science/tke"
)

// Case is a complete set of caller-owned buffers for a TKE backend, as a
// host ocean model would hold them.
type Case[T tke.Float] struct {
	Constants tkemix.Constants[T]

	Patch  tkemix.Patch[T]
	CVMix  tkemix.CVMix[T]
	Ocean  tkemix.OceanState[T]
	Fluxes tkemix.AtmoFluxes[T]
	Atmos  tkemix.AtmosForOcean[T]
	Ice    tkemix.SeaIce[T]

	Edges, Cells tkemix.Range
}

// shape is the layout of a case variable.
type shape int

const (
	shape3D        shape = iota // [block][level][column]
	shape2D                     // [block][column]
	shapeLevels                 // [level]
	shapeNeighbors              // [side][block][column]
)

// variable describes one buffer of a case. Exactly one of data and ints
// is set.
type variable[T tke.Float] struct {
	name, units, description string
	shape                    shape
	data                     *[]T
	ints                     *[]int32

	// input variables are read from case files; optional inputs may be
	// missing. output variables are written by the backend.
	input, optional, output bool
}

func (cs *Case[T]) variables() []variable[T] {
	p, cv, os := &cs.Patch, &cs.CVMix, &cs.Ocean
	in := func(name, units, desc string, s shape, d *[]T) variable[T] {
		return variable[T]{name: name, units: units, description: desc, shape: s, data: d, input: true}
	}
	out := func(name, units, desc string, s shape, d *[]T) variable[T] {
		return variable[T]{name: name, units: units, description: desc, shape: s, data: d, output: true}
	}
	ints := func(name, desc string, s shape, d *[]int32) variable[T] {
		return variable[T]{name: name, units: "1", description: desc, shape: s, ints: d, input: true}
	}
	opt := func(v variable[T]) variable[T] {
		v.optional = true
		return v
	}
	return []variable[T]{
		in("depth_CellInterface", "m", "Depth of the top interface of each cell", shape3D, &p.DepthCellInterface),
		in("prism_center_dist_c", "m", "Distance between the centers of a cell and the cell above", shape3D, &p.PrismCenterDistC),
		in("inv_prism_center_dist_c", "1/m", "Inverse of prism_center_dist_c", shape3D, &p.InvPrismCenterDistC),
		in("prism_thick_c", "m", "Cell thickness", shape3D, &p.PrismThickC),
		ints("dolic_c", "Number of wet levels of each cell", shape2D, &p.DolicC),
		ints("dolic_e", "Number of wet levels of each edge", shape2D, &p.DolicE),
		in("zlev_i", "m", "Depth of each level interface", shapeLevels, &p.ZlevI),
		in("wet_c", "1", "Wet cell mask", shape3D, &p.WetC),
		ints("edges_cell_idx", "Column of the cells adjacent to each edge", shapeNeighbors, &p.EdgesCellIdx),
		ints("edges_cell_blk", "Block of the cells adjacent to each edge", shapeNeighbors, &p.EdgesCellBlk),

		in("temp", "degC", "Temperature", shape3D, &os.Temp),
		in("salt", "psu", "Salinity", shape3D, &os.Salt),
		in("stretch_c", "1", "z* stretching factor", shape2D, &os.StretchC),
		in("eta_c", "m", "Surface elevation", shape2D, &os.EtaC),
		opt(in("vn_x1", "m/s", "Cell velocity, first cartesian component", shape3D, &os.VnX1)),
		opt(in("vn_x2", "m/s", "Cell velocity, second cartesian component", shape3D, &os.VnX2)),
		opt(in("vn_x3", "m/s", "Cell velocity, third cartesian component", shape3D, &os.VnX3)),

		in("stress_xw", "N/m2", "Zonal wind stress", shape2D, &cs.Fluxes.StressXW),
		in("stress_yw", "N/m2", "Meridional wind stress", shape2D, &cs.Fluxes.StressYW),
		in("fu10", "m/s", "10 m wind speed", shape2D, &cs.Atmos.FU10),
		in("concsum", "1", "Sea ice concentration", shape2D, &cs.Ice.Concsum),

		{name: "tke", units: "m2/s2", description: "Turbulent kinetic energy", shape: shape3D,
			data: &cv.TKE, input: true, output: true},
		in("iwe_Tdis", "m2/s3", "Internal wave dissipation", shape3D, &cv.IweTdis),
		out("tke_plc", "m2/s3", "Langmuir circulation TKE source", shape3D, &cv.TKEPlc),
		out("hlc", "m", "Langmuir cell depth", shape2D, &cv.Hlc),
		out("wlc", "m/s", "Langmuir circulation vertical velocity", shape3D, &cv.Wlc),
		out("u_stokes", "m/s", "Surface Stokes drift", shape2D, &cv.UStokes),
		out("a_veloc_v", "m2/s", "Vertical viscosity on edges", shape3D, &cv.AVelocV),
		out("a_temp_v", "m2/s", "Vertical diffusivity of temperature", shape3D, &cv.ATempV),
		out("a_salt_v", "m2/s", "Vertical diffusivity of salinity", shape3D, &cv.ASaltV),
		{name: "cvmix_dummy_1", units: "1", description: "Unused", shape: shape3D, data: &cv.Dummy1},
		{name: "cvmix_dummy_2", units: "1", description: "Unused", shape: shape3D, data: &cv.Dummy2},
		{name: "cvmix_dummy_3", units: "1", description: "Unused", shape: shape3D, data: &cv.Dummy3},
		out("tke_Tbpr", "m2/s3", "TKE buoyancy production", shape3D, &cv.TKETbpr),
		out("tke_Tspr", "m2/s3", "TKE shear production", shape3D, &cv.TKETspr),
		out("tke_Tdif", "m2/s3", "TKE vertical diffusion", shape3D, &cv.TKETdif),
		out("tke_Tdis", "m2/s3", "TKE dissipation", shape3D, &cv.TKETdis),
		out("tke_Twin", "m2/s3", "TKE wind input", shape3D, &cv.TKETwin),
		out("tke_Tiwf", "m2/s3", "TKE internal wave input", shape3D, &cv.TKETiwf),
		out("tke_Tbck", "m2/s3", "TKE background correction", shape3D, &cv.TKETbck),
		out("tke_Ttot", "m2/s3", "TKE total tendency", shape3D, &cv.TKETtot),
		out("tke_Lmix", "m", "Mixing length", shape3D, &cv.TKELmix),
		out("tke_Pr", "1", "Prandtl number", shape3D, &cv.TKEPr),
	}
}

// dims returns the dimension lengths of a variable of shape s.
func (cs *Case[T]) dims(s shape) []int {
	c := &cs.Constants
	switch s {
	case shape3D:
		return []int{c.NBlocks, c.NLevs, c.NProma}
	case shape2D:
		return []int{c.NBlocks, c.NProma}
	case shapeLevels:
		return []int{c.NLevs}
	case shapeNeighbors:
		return []int{2, c.NBlocks, c.NProma}
	default:
		panic("invalid shape")
	}
}

func (cs *Case[T]) size(s shape) int {
	n := 1
	for _, d := range cs.dims(s) {
		n *= d
	}
	return n
}

// NewCase allocates a case with zeroed buffers for every field, and
// ranges that cover the whole domain.
func NewCase[T tke.Float](c tkemix.Constants[T]) *Case[T] {
	cs := &Case[T]{
		Constants: c,
		Edges:     tkemix.FullRange(c.NProma, c.NBlocks),
		Cells:     tkemix.FullRange(c.NProma, c.NBlocks),
	}
	for _, v := range cs.variables() {
		if v.ints != nil {
			*v.ints = make([]int32, cs.size(v.shape))
		} else {
			*v.data = make([]T, cs.size(v.shape))
		}
	}
	return cs
}

// Calc runs one time step of b on the case.
func (cs *Case[T]) Calc(b tkemix.Backend[T]) error {
	return b.Calc(&cs.Patch, &cs.CVMix, &cs.Ocean, &cs.Fluxes, &cs.Atmos, &cs.Ice, cs.Edges, cs.Cells)
}

// Clone returns a deep copy of cs.
func (cs *Case[T]) Clone() *Case[T] {
	o := &Case[T]{Constants: cs.Constants, Edges: cs.Edges, Cells: cs.Cells}
	src, dst := cs.variables(), o.variables()
	for i, v := range src {
		if v.ints != nil {
			*dst[i].ints = append([]int32(nil), *v.ints...)
		} else if *v.data != nil {
			*dst[i].data = append([]T(nil), *v.data...)
		}
	}
	return o
}

// Idealized returns a case with a sloping bottom, a few land cells, a
// surface-intensified thermocline and shear, and sea ice on part of the
// domain. Edge j of every block joins column j to the next column in
// block order.
func Idealized[T tke.Float](c tkemix.Constants[T]) *Case[T] {
	cs := NewCase(c)
	nproma, nlevs, nblocks := c.NProma, c.NLevs, c.NBlocks
	ncells := nproma * nblocks
	i3 := func(jb, k, jc int) int { return (jb*nlevs+k)*nproma + jc }

	dz := make([]float64, nlevs)
	zi := make([]float64, nlevs) // interface depth
	for k := range dz {
		dz[k] = 10 * (1 + float64(k)/10)
		if k > 0 {
			zi[k] = zi[k-1] + dz[k-1]
		}
		cs.Patch.ZlevI[k] = T(zi[k])
	}

	dolic := make([]int32, ncells)
	for g := range dolic {
		if g%9 == 4 {
			continue // land
		}
		dolic[g] = int32(nlevs - (g*7)%max(nlevs/2, 1))
	}

	for jb := 0; jb < nblocks; jb++ {
		for jc := 0; jc < nproma; jc++ {
			g := jb*nproma + jc
			x := float64(g)
			i2 := g
			cs.Patch.DolicC[i2] = dolic[g]
			cs.Ocean.StretchC[i2] = 1
			cs.Ocean.EtaC[i2] = T(0.1 * math.Sin(0.5*x))
			cs.Fluxes.StressXW[i2] = T(0.1 + 0.05*math.Cos(0.2*x))
			cs.Fluxes.StressYW[i2] = T(0.05 * math.Sin(0.2*x))
			cs.Atmos.FU10[i2] = T(7 + 3*math.Sin(0.1*x))
			if g%5 == 0 {
				cs.Ice.Concsum[i2] = 0.5
			}

			for k := 0; k < nlevs; k++ {
				i := i3(jb, k, jc)
				zc := zi[k] + dz[k]/2
				cs.Patch.DepthCellInterface[i] = T(zi[k])
				cs.Patch.PrismThickC[i] = T(dz[k])
				dist := dz[0] / 2
				if k > 0 {
					dist = (dz[k-1] + dz[k]) / 2
				}
				cs.Patch.PrismCenterDistC[i] = T(dist)
				cs.Patch.InvPrismCenterDistC[i] = T(1 / dist)

				cs.Ocean.Temp[i] = T(2 + 18*math.Exp(-zc/200) + 0.5*math.Sin(x))
				cs.Ocean.Salt[i] = T(34.5 + 0.5*(1-math.Exp(-zc/500)))
				cs.Ocean.VnX1[i] = T(0.2 * math.Exp(-zc/100) * math.Cos(0.3*x))
				cs.Ocean.VnX2[i] = T(0.1 * math.Exp(-zc/150) * math.Sin(0.3*x))
				cs.CVMix.IweTdis[i] = T(1e-9 * math.Exp(-zc/500))
				if k < int(dolic[g]) {
					cs.Patch.WetC[i] = 1
					cs.CVMix.TKE[i] = T(math.Max(1e-6, 1e-4*math.Exp(-zi[k]/50)))
				}
			}

			// Edge neighbors.
			nb := len(cs.Patch.DolicE)
			cs.Patch.EdgesCellIdx[g] = int32(jc)
			cs.Patch.EdgesCellBlk[g] = int32(jb)
			if g+1 < ncells {
				cs.Patch.EdgesCellIdx[nb+g] = int32((g + 1) % nproma)
				cs.Patch.EdgesCellBlk[nb+g] = int32((g + 1) / nproma)
				cs.Patch.DolicE[i2] = min(dolic[g], dolic[g+1])
			} else {
				cs.Patch.EdgesCellIdx[nb+g] = -1
				cs.Patch.EdgesCellBlk[nb+g] = -1
				cs.Patch.DolicE[i2] = dolic[g]
			}
		}
	}
	return cs
}
