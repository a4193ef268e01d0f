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

// Package tkemix computes the turbulent kinetic energy (TKE) vertical
// mixing closure of an ocean circulation model. A Backend advances the TKE
// of every active water column by one time step and derives the vertical
// viscosity and diffusivity from it, working in place on field buffers
// owned by the caller.
//
// Two backends execute the same physics: CPU, which spreads blocks of
// columns over goroutines, and GPU, which issues one execution unit per
// column to an accelerator device.
package tkemix

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/tkemix/device"
	"github.com/spatialmodel/tkemix/science/tke"
)

// Version gives the version number.
const Version = "0.1.0"

var (
	// ErrClosed is returned by Calc after Close has been called.
	ErrClosed = errors.New("tkemix: backend is closed")

	// ErrBufferMoved is returned by Calc when a field buffer is not the one
	// passed to the first call.
	ErrBufferMoved = errors.New("tkemix: field buffer changed since the first call")

	// ErrRange is returned by Calc for an index range that does not fit
	// the domain.
	ErrRange = errors.New("tkemix: invalid index range")
)

// Backend advances the TKE closure by one time step per Calc call.
//
// The first call to Calc wraps every buffer of the field bundles; later
// calls must pass the same buffers. Calc is not safe for concurrent use,
// and in particular the first call must not overlap with any other.
type Backend[T tke.Float] interface {
	// Calc runs the closure on the active cells and then interpolates the
	// resulting viscosity to the active edges.
	Calc(p *Patch[T], cv *CVMix[T], os *OceanState[T], af *AtmoFluxes[T],
		as *AtmosForOcean[T], si *SeaIce[T], edges, cells Range) error

	// Close frees the internal scratch memory. The backend cannot be used
	// afterwards.
	Close() error

	// Name identifies the backend.
	Name() string
}

// Kind names a backend implementation.
type Kind string

const (
	KindCPU Kind = "cpu"
	KindGPU Kind = "gpu"
)

type options struct {
	log       logrus.FieldLogger
	workers   int
	groupSize int
	dev       device.Device
}

// Option configures a backend.
type Option func(*options)

// WithLogger sets the logger the backend reports to. The default is
// the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithWorkers sets the number of goroutines the CPU backend runs blocks
// on. The default is runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithGroupSize sets the number of execution units per group of a GPU
// launch. The default is 128.
func WithGroupSize(n int) Option {
	return func(o *options) { o.groupSize = n }
}

// WithDevice sets the device New creates a GPU backend on. The default
// is a host-emulated device with a goroutine pool launcher.
func WithDevice(d device.Device) Option {
	return func(o *options) { o.dev = d }
}

const defaultGroupSize = 128

func newOptions(opts []Option) *options {
	o := &options{
		log:       logrus.StandardLogger(),
		groupSize: defaultGroupSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New creates a backend of the given kind.
func New[T tke.Float](kind Kind, c Constants[T], opts ...Option) (Backend[T], error) {
	switch kind {
	case KindCPU:
		return NewCPU(c, opts...)
	case KindGPU:
		o := newOptions(opts)
		dev := o.dev
		if dev == nil {
			dev = device.NewEmulated("host", device.Pool{}, 0)
		}
		return NewGPU(c, dev, opts...)
	default:
		return nil, fmt.Errorf("tkemix: unknown backend %q; valid backends are %q and %q",
			kind, KindCPU, KindGPU)
	}
}
