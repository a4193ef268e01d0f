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
	"github.com/spatialmodel/tkemix/field"
)

// Setup holds the fixed inputs of the cell kernel.
type Setup[T Float] struct {
	Params Params[T]

	// NLevs is the number of vertical levels.
	NLevs int

	// Dtime is the time step [s].
	Dtime T

	// Rho0 is the reference density of seawater [kg/m³] and Grav the
	// gravitational acceleration [m/s²].
	Rho0, Grav T

	// RefPressure converts interface depth [m] to pressure [dbar].
	RefPressure T

	// ZStar scales every layer by the column stretching factor. Otherwise
	// the top layer thickness is increased by the surface elevation.
	ZStar bool

	// IW couples the internal wave dissipation into the TKE equation.
	IW bool

	// LC enables the Langmuir circulation source term, with coefficient CLC.
	LC bool
	CLC T
	Pi T
}

// Fields are the views over the model fields the kernels read and write.
// 3D fields are laid out [block][level][column], 2D fields
// [block][column] and the neighbor maps [2][block][edge].
type Fields[T Float] struct {
	DepthCellInterface field.View3[T]
	PrismCenterDist    field.View3[T]
	InvPrismCenterDist field.View3[T]
	PrismThick         field.View3[T]
	WetC               field.View3[T]
	DolicC, DolicE     field.View2[int32]
	ZlevI              field.View1[T]
	EdgeCellIdx        field.View3[int32]
	EdgeCellBlk        field.View3[int32]

	Temp, Salt     field.View3[T]
	Stretch, Eta   field.View2[T]
	Vn             [3]field.View3[T] // empty views contribute no shear
	StressX        field.View2[T]
	StressY        field.View2[T]
	FU10           field.View2[T]
	Concsum        field.View2[T]
	IweTdis        field.View3[T]
	TKE            field.View3[T]
	TKEPlc, Wlc    field.View3[T]
	Hlc, UStokes   field.View2[T]
	AVelocV        field.View3[T]
	ATempV, ASaltV field.View3[T]
	Tbpr, Tspr     field.View3[T]
	Tdif, Tdis     field.View3[T]
	Twin, Tiwf     field.View3[T]
	Tbck, Ttot     field.View3[T]
	Lmix, Pr       field.View3[T]
}

// levels returns the number of active levels for a bottom index.
func levels(dolic int32, nlevs int) int {
	n := int(dolic)
	if n < 0 {
		return 0
	}
	if n > nlevs {
		return nlevs
	}
	return n
}

// iceFree returns the open water fraction for a sea ice concentration.
func iceFree[T Float](concsum T) T {
	return max(0, min(1, 1-concsum))
}
