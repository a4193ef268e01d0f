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

import "github.com/spatialmodel/tkemix/science/tke"

// The field bundles hold the caller's buffers. 3D fields are laid out
// [block][level][column] with nproma×nlevs×nblocks elements, 2D fields
// [block][column] with nproma×nblocks elements. Buffers may be longer than
// required; only the leading elements are used.

// Patch is the grid geometry.
type Patch[T tke.Float] struct {
	// DepthCellInterface is the depth of the top interface of every cell [m].
	DepthCellInterface []T

	// PrismCenterDistC is the distance between the center of a cell and the
	// center of the cell above it [m]; InvPrismCenterDistC is its inverse.
	PrismCenterDistC    []T
	InvPrismCenterDistC []T

	// PrismThickC is the cell thickness [m].
	PrismThickC []T

	// DolicC and DolicE are the number of wet levels of every cell and edge.
	DolicC, DolicE []int32

	// ZlevI is the depth of every level interface [m]; it has nlevs elements.
	ZlevI []T

	// WetC is 1 for wet cells and 0 for dry ones.
	WetC []T

	// EdgesCellIdx and EdgesCellBlk give the column and block of the two
	// cells adjacent to every edge, laid out [2][block][edge] with
	// 2×nproma×nblocks elements. Negative values mark a missing neighbor.
	EdgesCellIdx, EdgesCellBlk []int32
}

// OceanState is the prognostic state of the ocean.
type OceanState[T tke.Float] struct {
	Temp, Salt []T // °C, psu

	// StretchC is the z* stretching factor and EtaC the surface
	// elevation [m] (2D).
	StretchC, EtaC []T

	// VnX1, VnX2 and VnX3 are the cartesian components of the cell
	// velocity [m/s]. They are optional: without them there is no shear
	// production.
	VnX1, VnX2, VnX3 []T
}

// AtmoFluxes are the surface fluxes from the atmosphere (2D).
type AtmoFluxes[T tke.Float] struct {
	StressXW, StressYW []T // N/m²
}

// AtmosForOcean is the atmospheric state at the surface (2D).
type AtmosForOcean[T tke.Float] struct {
	FU10 []T // 10 m wind speed [m/s]
}

// SeaIce is the sea ice state (2D).
type SeaIce[T tke.Float] struct {
	Concsum []T // ice concentration
}

// CVMix holds the closure state and its outputs.
type CVMix[T tke.Float] struct {
	// TKE is the turbulent kinetic energy [m²/s²]. It is updated in place on
	// the wet levels of every active cell.
	TKE []T

	// Langmuir circulation: TKE source (3D), Langmuir cell depth (2D),
	// vertical velocity (3D) and surface Stokes drift (2D).
	TKEPlc, Hlc, Wlc, UStokes []T

	// AVelocV is the vertical viscosity on edges, laid out
	// [block][level][edge].
	AVelocV []T

	// ATempV and ASaltV are the vertical diffusivities of temperature and
	// salinity.
	ATempV, ASaltV []T

	// IweTdis is the internal wave dissipation [m²/s³].
	IweTdis []T

	// Dummy1, Dummy2 and Dummy3 are optional and never touched.
	Dummy1, Dummy2, Dummy3 []T

	// Budget terms of the TKE equation [m²/s³]: buoyancy production, shear
	// production, vertical diffusion, dissipation, wind input, internal
	// wave input, background correction and total tendency.
	TKETbpr, TKETspr, TKETdif, TKETdis []T
	TKETwin, TKETiwf, TKETbck, TKETtot []T

	// TKELmix is the mixing length [m] and TKEPr the Prandtl number.
	TKELmix, TKEPr []T
}
