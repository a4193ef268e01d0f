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

import "github.com/spatialmodel/tkemix/field"

// Edge sets the vertical viscosity of edge je of block jb to the mean of
// the cell viscosity tkeAv of the two cells adjacent to the edge, down to
// the bottom of the shallower cell. A neighbor that is missing, out of
// range or land is skipped and the other cell's value is used alone; with
// no usable neighbor the edge is dry. Levels at or below the edge bottom
// index are zeroed.
func Edge[T Float](f *Fields[T], tkeAv field.View3[T], nlevs, jb, je int) {
	n := levels(f.DolicE.At(jb, je), nlevs)
	nblocks, _, nproma := tkeAv.Dims()
	var idx, blk [2]int
	valid := 0
	for s := 0; s < 2; s++ {
		idx[s] = int(f.EdgeCellIdx.At(s, jb, je))
		blk[s] = int(f.EdgeCellBlk.At(s, jb, je))
		if idx[s] < 0 || idx[s] >= nproma || blk[s] < 0 || blk[s] >= nblocks {
			idx[s], blk[s] = -1, -1
			continue
		}
		d := levels(f.DolicC.At(blk[s], idx[s]), nlevs)
		if d == 0 {
			idx[s], blk[s] = -1, -1
			continue
		}
		n = min(n, d)
		valid++
	}
	if valid == 0 {
		n = 0
	}
	for k := 0; k < n; k++ {
		var v T
		switch {
		case idx[0] >= 0 && idx[1] >= 0:
			v = (tkeAv.At(blk[0], k, idx[0]) + tkeAv.At(blk[1], k, idx[1])) / 2
		case idx[0] >= 0:
			v = tkeAv.At(blk[0], k, idx[0])
		default:
			v = tkeAv.At(blk[1], k, idx[1])
		}
		f.AVelocV.Set(jb, k, je, v)
	}
	for k := n; k < nlevs; k++ {
		f.AVelocV.Set(jb, k, je, 0)
	}
}
