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
	"fmt"

	"github.com/spatialmodel/tkemix/field"
)

// Scratch holds the internal work fields of the closure. Column fields
// have one row of NLevs values per slot; a slot is used by one column at
// a time.
type Scratch[T Float] struct {
	TKEOld, SqrtTKE              field.View2[T]
	Dzw, Dzt                     field.View2[T]
	Nsqr, Ssqr                   field.View2[T]
	ADif, BDif, CDif             field.View2[T]
	ATri, BTri, CTri, DTri       field.View2[T]
	Forc, Ke, Cp, Dp             field.View2[T]
	Mxl, Prandtl, KappaM, KappaH field.View2[T]
	Upd, Unrest, Plc             field.View2[T]

	// TKEAv is the cell viscosity read by the edge kernel.
	TKEAv field.View3[T]

	// ForcSurf is the surface wind input of every column.
	ForcSurf field.View2[T]

	policy field.Policy[T]
	slots int
}

func (s *Scratch[T]) columns() []*field.View2[T] {
	return []*field.View2[T]{
		&s.TKEOld, &s.SqrtTKE, &s.Dzw, &s.Dzt, &s.Nsqr, &s.Ssqr,
		&s.ADif, &s.BDif, &s.CDif, &s.ATri, &s.BTri, &s.CTri, &s.DTri,
		&s.Forc, &s.Ke, &s.Cp, &s.Dp, &s.Mxl, &s.Prandtl, &s.KappaM,
		&s.KappaH, &s.Upd, &s.Unrest, &s.Plc,
	}
}

// NewScratch allocates scratch for the given number of column slots
// through p. If any allocation fails, what was allocated is freed again.
func NewScratch[T Float](p field.Policy[T], slots, nproma, nlevs, nblocks int) (*Scratch[T], error) {
	s := &Scratch[T]{policy: p, slots: slots}
	var err error
	for _, v := range s.columns() {
		if *v, err = field.Alloc2(p, slots, nlevs); err != nil {
			s.Free()
			return nil, fmt.Errorf("tke: allocating scratch: %w", err)
		}
	}
	if s.TKEAv, err = field.Alloc3(p, nblocks, nlevs, nproma); err != nil {
		s.Free()
		return nil, fmt.Errorf("tke: allocating scratch: %w", err)
	}
	if s.ForcSurf, err = field.Alloc2(p, nblocks, nproma); err != nil {
		s.Free()
		return nil, fmt.Errorf("tke: allocating scratch: %w", err)
	}
	return s, nil
}

// Slots returns the number of column slots.
func (s *Scratch[T]) Slots() int { return s.slots }

// Free returns the scratch memory to its policy. It is safe to call more
// than once.
func (s *Scratch[T]) Free() {
	for _, v := range s.columns() {
		if v.Data() != nil {
			s.policy.Free(v.Data())
			*v = field.View2[T]{}
		}
	}
	if s.TKEAv.Data() != nil {
		s.policy.Free(s.TKEAv.Data())
		s.TKEAv = field.View3[T]{}
	}
	if s.ForcSurf.Data() != nil {
		s.policy.Free(s.ForcSurf.Data())
		s.ForcSurf = field.View2[T]{}
	}
}

// rows are the scratch rows of one slot, cut to the active levels of
// a column.
type rows[T Float] struct {
	old, sqrttke            []T
	dzw, dzt                []T
	nsqr, ssqr              []T
	aDif, bDif, cDif        []T
	aTri, bTri, cTri, dTri  []T
	forc, ke, cp, dp        []T
	mxl, pr, kappaM, kappaH []T
	upd, unrest, plc        []T
}

func (s *Scratch[T]) rows(slot, n int) rows[T] {
	row := func(v field.View2[T]) []T { return v.Row(slot)[:n] }
	return rows[T]{
		old: row(s.TKEOld), sqrttke: row(s.SqrtTKE),
		dzw: row(s.Dzw), dzt: row(s.Dzt),
		nsqr: row(s.Nsqr), ssqr: row(s.Ssqr),
		aDif: row(s.ADif), bDif: row(s.BDif), cDif: row(s.CDif),
		aTri: row(s.ATri), bTri: row(s.BTri), cTri: row(s.CTri), dTri: row(s.DTri),
		forc: row(s.Forc), ke: row(s.Ke), cp: row(s.Cp), dp: row(s.Dp),
		mxl: row(s.Mxl), pr: row(s.Prandtl), kappaM: row(s.KappaM), kappaH: row(s.KappaH),
		upd: row(s.Upd), unrest: row(s.Unrest), plc: row(s.Plc),
	}
}
