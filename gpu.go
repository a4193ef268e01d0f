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

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tkemix/device"
	"github.com/spatialmodel/tkemix/field"
	"github.com/spatialmodel/tkemix/science/tke"
)

// GPU runs the closure on an accelerator device with one execution unit
// per column. The caller's buffers must be resident on the device; GPU
// never copies them. Calc may return before the work is done: call
// Synchronize before reading the results on the host.
type GPU[T tke.Float] struct {
	c         Constants[T]
	setup     tke.Setup[T]
	dev       device.Device
	groupSize int
	log       logrus.FieldLogger

	policy  *field.DevicePolicy[T]
	scratch *tke.Scratch[T]
	views   views[T]
	closed  bool
}

// NewGPU creates a GPU backend on dev and allocates its scratch memory in
// the device memory. It returns an error wrapping field.ErrOutOfMemory if
// the device does not have enough free memory.
func NewGPU[T tke.Float](c Constants[T], dev device.Device, opts ...Option) (*GPU[T], error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("tkemix: gpu backend: nil device")
	}
	o := newOptions(opts)
	if o.groupSize < 1 {
		return nil, fmt.Errorf("tkemix: gpu backend: group size must be positive; have %d", o.groupSize)
	}
	b := &GPU[T]{
		c:         c,
		setup:     c.setup(),
		dev:       dev,
		groupSize: o.groupSize,
		log: o.log.WithFields(logrus.Fields{
			"backend": "gpu",
			"device":  dev.Name(),
			"nproma":  c.NProma,
			"nlevs":   c.NLevs,
			"nblocks": c.NBlocks,
		}),
		policy: &field.DevicePolicy[T]{Dev: dev},
	}
	b.log.WithField("group_size", b.groupSize).Info("initializing TKE gpu backend")

	var err error
	b.scratch, err = tke.NewScratch[T](b.policy, c.NProma*c.NBlocks, c.NProma, c.NLevs, c.NBlocks)
	if err != nil {
		return nil, fmt.Errorf("tkemix: gpu backend: %w", err)
	}
	b.log.WithField("bytes", b.policy.InUse()).Debug("allocated scratch")
	return b, nil
}

// Name implements Backend.
func (b *GPU[T]) Name() string { return string(KindGPU) }

// Calc implements Backend. It launches the cell kernel and then the edge
// kernel on the device stream and returns without waiting for them.
func (b *GPU[T]) Calc(p *Patch[T], cv *CVMix[T], os *OceanState[T], af *AtmoFluxes[T],
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
	nproma, nlevs := b.c.NProma, b.c.NLevs
	setup, scratch := &b.setup, b.scratch

	ncells := cells.Count()
	b.dev.Launch(b.groupSize, device.Groups(ncells, b.groupSize), func(id int) {
		if id >= ncells {
			return
		}
		jb, jc := cells.At(id)
		tke.Column(setup, f, scratch, jb*nproma+jc, jb, jc)
	})

	nedges := edges.Count()
	b.dev.Launch(b.groupSize, device.Groups(nedges, b.groupSize), func(id int) {
		if id >= nedges {
			return
		}
		jb, je := edges.At(id)
		tke.Edge(f, scratch.TKEAv, nlevs, jb, je)
	})
	return nil
}

// Synchronize blocks until the work of every Calc call has finished.
func (b *GPU[T]) Synchronize() { b.dev.Synchronize() }

// Close implements Backend. It waits for outstanding work before freeing
// the scratch memory.
func (b *GPU[T]) Close() error {
	if b.closed {
		return nil
	}
	b.log.Info("finalizing TKE gpu backend")
	b.dev.Synchronize()
	b.scratch.Free()
	b.closed = true
	return nil
}
