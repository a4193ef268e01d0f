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

package field

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/spatialmodel/tkemix/device"
)

// ErrOutOfMemory is returned when a memory policy cannot satisfy an
// allocation.
var ErrOutOfMemory = errors.New("field: out of memory")

// Policy allocates and frees the buffers behind internal scratch views.
// Buffers returned by Alloc are zeroed.
type Policy[E Elem] interface {
	Alloc(dims ...int) ([]E, error)
	Free(buf []E)

	// InUse returns the number of bytes currently allocated.
	InUse() int64
}

func bytesOf[E Elem](n int) int64 {
	var e E
	return int64(n) * int64(unsafe.Sizeof(e))
}

// Host allocates scratch in host memory.
type Host[E Elem] struct {
	mu    sync.Mutex
	inUse int64
}

// Alloc implements Policy.
func (h *Host[E]) Alloc(dims ...int) ([]E, error) {
	n, err := size(dims...)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.inUse += bytesOf[E](n)
	h.mu.Unlock()
	return make([]E, n), nil
}

// Free implements Policy.
func (h *Host[E]) Free(buf []E) {
	h.mu.Lock()
	h.inUse -= bytesOf[E](len(buf))
	h.mu.Unlock()
}

// InUse implements Policy.
func (h *Host[E]) InUse() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// DevicePolicy allocates scratch in the memory of an accelerator device.
type DevicePolicy[E Elem] struct {
	Dev device.Device

	mu    sync.Mutex
	inUse int64
}

// Alloc implements Policy.
func (p *DevicePolicy[E]) Alloc(dims ...int) ([]E, error) {
	n, err := size(dims...)
	if err != nil {
		return nil, err
	}
	b := bytesOf[E](n)
	if err := p.Dev.Reserve(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	p.mu.Lock()
	p.inUse += b
	p.mu.Unlock()
	return make([]E, n), nil
}

// Free implements Policy.
func (p *DevicePolicy[E]) Free(buf []E) {
	b := bytesOf[E](len(buf))
	p.Dev.Release(b)
	p.mu.Lock()
	p.inUse -= b
	p.mu.Unlock()
}

// InUse implements Policy.
func (p *DevicePolicy[E]) InUse() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Alloc2 allocates a d0×d1 buffer through p and wraps it.
func Alloc2[E Elem](p Policy[E], d0, d1 int) (View2[E], error) {
	buf, err := p.Alloc(d0, d1)
	if err != nil {
		return View2[E]{}, err
	}
	return Wrap2(buf, d0, d1)
}

// Alloc3 allocates a d0×d1×d2 buffer through p and wraps it.
func Alloc3[E Elem](p Policy[E], d0, d1, d2 int) (View3[E], error) {
	buf, err := p.Alloc(d0, d1, d2)
	if err != nil {
		return View3[E]{}, err
	}
	return Wrap3(buf, d0, d1, d2)
}
