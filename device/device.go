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

// Package device models the accelerator a GPU backend issues work to: its
// memory, and the strategy used to launch kernels on it.
//
// The backends never move data between host and device. Buffers handed to a
// device-backed computation must already be valid on that device; how they
// got there is up to the caller.
package device

import (
	"fmt"
	"sync"
)

// Device is an accelerator with its own memory and launch mechanism.
type Device interface {
	Launcher

	// Name identifies the device in log messages.
	Name() string

	// Reserve claims bytes of device memory. It returns an error if
	// the device does not have enough free memory.
	Reserve(bytes int64) error

	// Release returns bytes of device memory claimed with Reserve.
	Release(bytes int64)
}

// Emulated is a Device that executes kernels on the host through
// its Launcher. Capacity limits the memory that can be reserved on it;
// a Capacity of zero means there is no limit.
type Emulated struct {
	Launcher
	Capacity int64

	name string
	mu   sync.Mutex
	used int64
}

// NewEmulated returns a host-emulated device that launches kernels
// with l.
func NewEmulated(name string, l Launcher, capacity int64) *Emulated {
	return &Emulated{Launcher: l, Capacity: capacity, name: name}
}

// Name implements Device.
func (e *Emulated) Name() string { return e.name }

// Reserve implements Device.
func (e *Emulated) Reserve(bytes int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Capacity > 0 && e.used+bytes > e.Capacity {
		return fmt.Errorf("device %s: cannot reserve %d bytes (%d of %d in use)",
			e.name, bytes, e.used, e.Capacity)
	}
	e.used += bytes
	return nil
}

// Release implements Device.
func (e *Emulated) Release(bytes int64) {
	e.mu.Lock()
	e.used -= bytes
	e.mu.Unlock()
}

// Used returns the number of bytes currently reserved.
func (e *Emulated) Used() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.used
}
