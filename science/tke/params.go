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

// Package tke holds the turbulent kinetic energy closure: the per-column
// cell kernel, the edge interpolation kernel and the tridiagonal solver
// they share.
package tke

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// Float is the set of floating point types the closure can be computed in.
type Float interface {
	~float32 | ~float64
}

// MixingLength selects how the mixing length is computed.
type MixingLength int

const (
	// MxlStratification limits the mixing length by stratification only.
	MxlStratification MixingLength = 1

	// MxlDistanceLimited additionally limits the mixing length by the
	// distance to the surface and to the bottom.
	MxlDistanceLimited MixingLength = 2
)

// SurfaceBC selects the surface boundary condition of the TKE equation.
type SurfaceBC int

const (
	// Neumann applies the wind input as a flux through the surface.
	Neumann SurfaceBC = iota

	// Dirichlet prescribes the surface TKE.
	Dirichlet
)

// Params are the tunable parameters of the closure.
type Params[T Float] struct {
	// CK scales the eddy viscosity: KappaM = CK * mxl * sqrt(tke).
	CK T

	// CEps scales the dissipation: c_eps * tke^(3/2) / mxl.
	CEps T

	// AlphaTKE is the ratio of the TKE diffusivity to the eddy viscosity.
	AlphaTKE T

	// MxlMin is the minimum mixing length [m].
	MxlMin T

	// KappaMMin and KappaMMax bound the eddy viscosity [m²/s].
	KappaMMin, KappaMMax T

	// CD scales the wind input.
	CD T

	// TKEMin is the TKE floor [m²/s²]; TKESurfMin is the minimum surface
	// TKE under a Dirichlet surface condition.
	TKEMin, TKESurfMin T

	// The Prandtl number is PrandtlSlope * Ri bounded to
	// [PrandtlMin, PrandtlMax].
	PrandtlMin, PrandtlMax, PrandtlSlope T

	MixingLength MixingLength

	// StokesFactor converts the 10 m wind speed to the surface Stokes
	// drift.
	StokesFactor T

	Surface SurfaceBC
}

// DefaultParams returns the standard parameter set.
func DefaultParams[T Float]() Params[T] {
	return Params[T]{
		CK:           0.1,
		CEps:         0.7,
		AlphaTKE:     30,
		MxlMin:       1e-8,
		KappaMMin:    0,
		KappaMMax:    100,
		CD:           3.75,
		TKEMin:       1e-6,
		TKESurfMin:   1e-4,
		PrandtlMin:   1,
		PrandtlMax:   10,
		PrandtlSlope: 6.6,
		MixingLength: MxlDistanceLimited,
		StokesFactor: 0.016,
		Surface:      Neumann,
	}
}

// ReadParams decodes the [TKE] table of a TOML document on top of
// the default parameters.
func ReadParams[T Float](r io.Reader) (Params[T], error) {
	cfg := struct {
		TKE Params[T]
	}{TKE: DefaultParams[T]()}
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return Params[T]{}, fmt.Errorf("tke: parsing parameters: %v", err)
	}
	if err := cfg.TKE.Validate(); err != nil {
		return Params[T]{}, err
	}
	return cfg.TKE, nil
}

// Validate returns an error if p cannot be used.
func (p Params[T]) Validate() error {
	switch {
	case p.TKEMin < 0:
		return fmt.Errorf("tke: TKEMin must be >= 0; have %g", float64(p.TKEMin))
	case p.MxlMin <= 0:
		return fmt.Errorf("tke: MxlMin must be > 0; have %g", float64(p.MxlMin))
	case p.CK <= 0 || p.CEps <= 0 || p.AlphaTKE <= 0:
		return fmt.Errorf("tke: CK, CEps and AlphaTKE must be > 0")
	case p.KappaMMin < 0 || p.KappaMMax < p.KappaMMin:
		return fmt.Errorf("tke: invalid viscosity bounds [%g, %g]",
			float64(p.KappaMMin), float64(p.KappaMMax))
	case p.PrandtlMin <= 0 || p.PrandtlMax < p.PrandtlMin:
		return fmt.Errorf("tke: invalid Prandtl number bounds [%g, %g]",
			float64(p.PrandtlMin), float64(p.PrandtlMax))
	case p.CD < 0 || p.TKESurfMin < 0 || p.StokesFactor < 0:
		return fmt.Errorf("tke: CD, TKESurfMin and StokesFactor must be >= 0")
	}
	switch p.MixingLength {
	case MxlStratification, MxlDistanceLimited:
	default:
		return fmt.Errorf("tke: unknown mixing length choice %d", p.MixingLength)
	}
	switch p.Surface {
	case Neumann, Dirichlet:
	default:
		return fmt.Errorf("tke: unknown surface boundary condition %d", p.Surface)
	}
	return nil
}
