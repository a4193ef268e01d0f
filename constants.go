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
	"math"

	"github.com/spatialmodel/tkemix/science/tke"
)

// VertMixType selects the vertical mixing scheme.
type VertMixType int

// MixTKE is the TKE closure, the only scheme implemented.
const MixTKE VertMixType = 2

// IdemixTKE selects how internal wave energy enters the TKE equation.
type IdemixTKE int

const (
	// IWOff ignores internal waves.
	IWOff IdemixTKE = 0

	// IWDissipation adds the internal wave dissipation to the TKE.
	IWDissipation IdemixTKE = 4
)

// VertCorType selects the vertical coordinate.
type VertCorType int

const (
	// ZLevel is the fixed z coordinate: the top layer thickness varies
	// with the surface elevation.
	ZLevel VertCorType = 0

	// ZStar stretches every layer of a column by the same factor.
	ZStar VertCorType = 1
)

// Constants are the fixed sizes and physical constants of a backend.
type Constants[T tke.Float] struct {
	// NProma is the number of columns per block, NLevs the number of
	// vertical levels and NBlocks the number of blocks.
	NProma, NLevs, NBlocks int

	VertMixType VertMixType
	IdemixTKE   IdemixTKE
	VertCorType VertCorType

	// Dtime is the time step [s].
	Dtime T

	// OceanReferenceDensity [kg/m³].
	OceanReferenceDensity T

	// Grav is the gravitational acceleration [m/s²].
	Grav T

	// LC enables Langmuir circulation; CLC is its coefficient.
	LC  bool
	CLC T

	// ReferencePressureIndbars converts depth [m] to pressure [dbar].
	ReferencePressureIndbars T

	// Pi is π in the working precision. Zero selects math.Pi.
	Pi T

	// Params are the closure parameters. The zero value selects
	// tke.DefaultParams.
	Params tke.Params[T]
}

// Validate returns an error if c cannot be used to create a backend.
func (c Constants[T]) Validate() error {
	switch {
	case c.NProma <= 0 || c.NLevs <= 0 || c.NBlocks <= 0:
		return fmt.Errorf("tkemix: domain sizes must be positive; have nproma=%d, nlevs=%d, nblocks=%d",
			c.NProma, c.NLevs, c.NBlocks)
	case c.VertMixType != MixTKE:
		return fmt.Errorf("tkemix: unsupported vertical mixing type %d; only %d (TKE) is implemented",
			c.VertMixType, MixTKE)
	case c.IdemixTKE != IWOff && c.IdemixTKE != IWDissipation:
		return fmt.Errorf("tkemix: unsupported internal wave coupling %d", c.IdemixTKE)
	case c.VertCorType != ZLevel && c.VertCorType != ZStar:
		return fmt.Errorf("tkemix: unsupported vertical coordinate %d", c.VertCorType)
	case c.Dtime <= 0:
		return fmt.Errorf("tkemix: time step must be positive; have %g", float64(c.Dtime))
	case c.OceanReferenceDensity <= 0:
		return fmt.Errorf("tkemix: reference density must be positive; have %g",
			float64(c.OceanReferenceDensity))
	case c.Grav <= 0:
		return fmt.Errorf("tkemix: gravity must be positive; have %g", float64(c.Grav))
	case c.CLC < 0 || c.ReferencePressureIndbars < 0:
		return fmt.Errorf("tkemix: Langmuir coefficient and reference pressure must not be negative")
	}
	if err := c.params().Validate(); err != nil {
		return fmt.Errorf("tkemix: %v", err)
	}
	return nil
}

func (c Constants[T]) params() tke.Params[T] {
	if c.Params == (tke.Params[T]{}) {
		return tke.DefaultParams[T]()
	}
	return c.Params
}

func (c Constants[T]) setup() tke.Setup[T] {
	pi := c.Pi
	if pi == 0 {
		pi = math.Pi
	}
	return tke.Setup[T]{
		Params:      c.params(),
		NLevs:       c.NLevs,
		Dtime:       c.Dtime,
		Rho0:        c.OceanReferenceDensity,
		Grav:        c.Grav,
		RefPressure: c.ReferencePressureIndbars,
		ZStar:       c.VertCorType == ZStar,
		IW:          c.IdemixTKE == IWDissipation,
		LC:          c.LC,
		CLC:         c.CLC,
		Pi:          pi,
	}
}
