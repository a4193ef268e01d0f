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

// Package field provides non-owning, dimension-annotated views over flat
// buffers, and the memory policies the backends use to allocate their
// internal scratch fields.
//
// All views are row-major: a 3D view with dimensions (d0, d1, d2) stores
// element (i, j, k) at offset (i*d1+j)*d2+k. Model fields use the layout
// [block][level][column], which matches the column-major
// (nproma, nlevs, nblocks) layout of the host ocean model.
package field

import (
	"errors"
	"fmt"
)

// Elem is the set of element types a view can hold.
type Elem interface {
	~float32 | ~float64 | ~int32
}

// BoundsCheck specifies whether multi-index access is checked against the
// view dimensions. It is off by default; turning it on is a debugging aid.
var BoundsCheck = false

// ErrShape is returned when a buffer is too small for the dimensions it is
// wrapped with.
var ErrShape = errors.New("field: buffer does not match view shape")

func size(dims ...int) (int, error) {
	n := 1
	for _, d := range dims {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension %v", ErrShape, dims)
		}
		n *= d
	}
	return n, nil
}

func check(buflen int, dims ...int) error {
	n, err := size(dims...)
	if err != nil {
		return err
	}
	if buflen < n {
		return fmt.Errorf("%w: have %d elements, need %d for dimensions %v",
			ErrShape, buflen, n, dims)
	}
	return nil
}

func outOfBounds(idx, dims []int) {
	for i := range idx {
		if idx[i] < 0 || idx[i] >= dims[i] {
			panic(fmt.Errorf("field: index %v out of bounds for dimensions %v", idx, dims))
		}
	}
}

func same[E Elem](a, b []E) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return &a[0] == &b[0]
}

// View1 is a one-dimensional view.
type View1[E Elem] struct {
	data []E
	n    int
}

// Wrap1 wraps buf as a view of length n without copying it.
func Wrap1[E Elem](buf []E, n int) (View1[E], error) {
	if err := check(len(buf), n); err != nil {
		return View1[E]{}, err
	}
	return View1[E]{data: buf[:n:n], n: n}, nil
}

// At returns element i.
func (v View1[E]) At(i int) E {
	if BoundsCheck {
		outOfBounds([]int{i}, []int{v.n})
	}
	return v.data[i]
}

// Set sets element i.
func (v View1[E]) Set(i int, x E) {
	if BoundsCheck {
		outOfBounds([]int{i}, []int{v.n})
	}
	v.data[i] = x
}

// Len returns the number of elements in the view.
func (v View1[E]) Len() int { return v.n }

// Data returns the wrapped buffer.
func (v View1[E]) Data() []E { return v.data }

// SameBuffer reports whether buf is the buffer the view was built from.
func (v View1[E]) SameBuffer(buf []E) bool { return same(v.data, buf) }

// View2 is a two-dimensional view.
type View2[E Elem] struct {
	data   []E
	d0, d1 int
}

// Wrap2 wraps buf as a d0×d1 view without copying it.
func Wrap2[E Elem](buf []E, d0, d1 int) (View2[E], error) {
	if err := check(len(buf), d0, d1); err != nil {
		return View2[E]{}, err
	}
	n := d0 * d1
	return View2[E]{data: buf[:n:n], d0: d0, d1: d1}, nil
}

// At returns element (i, j).
func (v View2[E]) At(i, j int) E {
	if BoundsCheck {
		outOfBounds([]int{i, j}, []int{v.d0, v.d1})
	}
	return v.data[i*v.d1+j]
}

// Set sets element (i, j).
func (v View2[E]) Set(i, j int, x E) {
	if BoundsCheck {
		outOfBounds([]int{i, j}, []int{v.d0, v.d1})
	}
	v.data[i*v.d1+j] = x
}

// Row returns row i as a slice sharing the view's memory.
func (v View2[E]) Row(i int) []E {
	if BoundsCheck {
		outOfBounds([]int{i, 0}, []int{v.d0, v.d1})
	}
	return v.data[i*v.d1 : (i+1)*v.d1 : (i+1)*v.d1]
}

// Dims returns the view dimensions.
func (v View2[E]) Dims() (d0, d1 int) { return v.d0, v.d1 }

// Data returns the wrapped buffer.
func (v View2[E]) Data() []E { return v.data }

// SameBuffer reports whether buf is the buffer the view was built from.
func (v View2[E]) SameBuffer(buf []E) bool { return same(v.data, buf) }

// View3 is a three-dimensional view.
type View3[E Elem] struct {
	data       []E
	d0, d1, d2 int
}

// Wrap3 wraps buf as a d0×d1×d2 view without copying it.
func Wrap3[E Elem](buf []E, d0, d1, d2 int) (View3[E], error) {
	if err := check(len(buf), d0, d1, d2); err != nil {
		return View3[E]{}, err
	}
	n := d0 * d1 * d2
	return View3[E]{data: buf[:n:n], d0: d0, d1: d1, d2: d2}, nil
}

// Index returns the flat offset of element (i, j, k).
func (v View3[E]) Index(i, j, k int) int {
	if BoundsCheck {
		outOfBounds([]int{i, j, k}, []int{v.d0, v.d1, v.d2})
	}
	return (i*v.d1+j)*v.d2 + k
}

// At returns element (i, j, k).
func (v View3[E]) At(i, j, k int) E { return v.data[v.Index(i, j, k)] }

// Set sets element (i, j, k).
func (v View3[E]) Set(i, j, k int, x E) { v.data[v.Index(i, j, k)] = x }

// Dims returns the view dimensions.
func (v View3[E]) Dims() (d0, d1, d2 int) { return v.d0, v.d1, v.d2 }

// Data returns the wrapped buffer.
func (v View3[E]) Data() []E { return v.data }

// SameBuffer reports whether buf is the buffer the view was built from.
func (v View3[E]) SameBuffer(buf []E) bool { return same(v.data, buf) }
