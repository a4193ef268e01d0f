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
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tkemix/field"
	"github.com/spatialmodel/tkemix/science/tke"
)

// CPU runs the closure on the host, spreading blocks over goroutines.
type CPU[T tke.Float] struct {
	c       Constants[T]
	setup   tke.Setup[T]
	workers int
	log     logrus.FieldLogger

	policy  *field.Host[T]
	scratch *tke.Scratch[T]
	views   views[T]
	closed  bool
}

// NewCPU creates a CPU backend and allocates its scratch memory.
func NewCPU[T tke.Float](c Constants[T], opts ...Option) (*CPU[T], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	workers := o.workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	b := &CPU[T]{
		c:       c,
		setup:   c.setup(),
		workers: workers,
		log: o.log.WithFields(logrus.Fields{
			"backend": "cpu",
			"nproma":  c.NProma,
			"nlevs":   c.NLevs,
			"nblocks": c.NBlocks,
		}),
		policy: &field.Host[T]{},
	}
	b.log.WithField("workers", workers).Info("initializing TKE cpu backend")

	var err error
	b.scratch, err = tke.NewScratch[T](b.policy, c.NProma*workers, c.NProma, c.NLevs, c.NBlocks)
	if err != nil {
		return nil, fmt.Errorf("tkemix: cpu backend: %w", err)
	}
	b.log.WithField("bytes", b.policy.InUse()).Debug("allocated scratch")
	return b, nil
}

// Name implements Backend.
func (b *CPU[T]) Name() string { return string(KindCPU) }

// Calc implements Backend. All work is finished when it returns.
func (b *CPU[T]) Calc(p *Patch[T], cv *CVMix[T], os *OceanState[T], af *AtmoFluxes[T],
	as *AtmosForOcean[T], si *SeaIce[T], edges, cells Range) error {
	if b.closed {
		return ErrClosed
	}
	if err := cells.check("cells", b.c.NProma, b.c.NBlocks); err != nil {
		return err
	}
	if err := edges.check("edges", b.c.NProma, b.c.NBlocks); err != nil {
		return err
	}
	first := b.views.state == uninitialized
	if err := b.views.bind(&b.c, p, cv, os, af, as, si); err != nil {
		return err
	}
	if first {
		b.log.Debug("built field views")
	}
	f := &b.views.fields

	b.blocks(cells, func(pp, jb, jc int) {
		tke.Column(&b.setup, f, b.scratch, pp*b.c.NProma+jc, jb, jc)
	})
	b.blocks(edges, func(_, jb, je int) {
		tke.Edge(f, b.scratch.TKEAv, b.c.NLevs, jb, je)
	})
	return nil
}

// blocks runs fn on every active column of r. Blocks are distributed
// over the workers; pp is the index of the worker running fn.
func (b *CPU[T]) blocks(r Range, fn func(pp, jb, jc int)) {
	nprocs := b.workers
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for jb := r.StartBlock + pp; jb <= r.EndBlock; jb += nprocs {
				start, end := r.Columns(jb)
				for jc := start; jc <= end; jc++ {
					fn(pp, jb, jc)
				}
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// Close implements Backend.
func (b *CPU[T]) Close() error {
	if b.closed {
		return nil
	}
	b.log.Info("finalizing TKE cpu backend")
	b.scratch.Free()
	b.closed = true
	return nil
}
