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

import "fmt"

// Range is the active part of a blocked index space. Blocks StartBlock
// through EndBlock are active. In the first of them the active columns
// start at StartIndex, and in the last of them they end at EndIndex; every
// other block is active from column 0 through BlockSize-1. All indices are
// zero-based and inclusive.
type Range struct {
	BlockSize            int
	StartBlock, EndBlock int
	StartIndex, EndIndex int
}

// FullRange returns the range covering every column of every block.
func FullRange(nproma, nblocks int) Range {
	return Range{
		BlockSize:  nproma,
		StartBlock: 0,
		EndBlock:   nblocks - 1,
		StartIndex: 0,
		EndIndex:   nproma - 1,
	}
}

// Columns returns the first and last active column of block jb.
func (r Range) Columns(jb int) (start, end int) {
	end = r.BlockSize - 1
	if jb == r.StartBlock {
		start = r.StartIndex
	}
	if jb == r.EndBlock {
		end = r.EndIndex
	}
	return start, end
}

// Count returns the number of active columns.
func (r Range) Count() int {
	n := 0
	for jb := r.StartBlock; jb <= r.EndBlock; jb++ {
		start, end := r.Columns(jb)
		if end >= start {
			n += end - start + 1
		}
	}
	return n
}

// At returns the block and column of active column i, counting in block
// order from zero. i must be less than Count().
func (r Range) At(i int) (jb, jc int) {
	start, end := r.Columns(r.StartBlock)
	first := end - start + 1
	if i < first || r.StartBlock == r.EndBlock {
		return r.StartBlock, start + i
	}
	i -= first
	if middle := (r.EndBlock - r.StartBlock - 1) * r.BlockSize; i >= middle {
		return r.EndBlock, i - middle
	}
	return r.StartBlock + 1 + i/r.BlockSize, i % r.BlockSize
}

// check returns an error if r does not fit a domain of nblocks blocks of
// nproma columns.
func (r Range) check(name string, nproma, nblocks int) error {
	switch {
	case r.BlockSize <= 0 || r.BlockSize > nproma:
		return fmt.Errorf("%w: %s: block size %d outside of [1, %d]", ErrRange, name, r.BlockSize, nproma)
	case r.StartBlock < 0 || r.EndBlock >= nblocks:
		return fmt.Errorf("%w: %s: blocks [%d, %d] outside of [0, %d]",
			ErrRange, name, r.StartBlock, r.EndBlock, nblocks-1)
	case r.StartBlock > r.EndBlock:
		return fmt.Errorf("%w: %s: start block %d after end block %d", ErrRange, name, r.StartBlock, r.EndBlock)
	case r.StartIndex < 0 || r.StartIndex >= nproma ||
		(r.StartBlock < r.EndBlock && r.StartIndex >= r.BlockSize):
		return fmt.Errorf("%w: %s: start index %d outside of the first block", ErrRange, name, r.StartIndex)
	case r.EndIndex < 0 || r.EndIndex >= nproma:
		return fmt.Errorf("%w: %s: end index %d outside of [0, %d]", ErrRange, name, r.EndIndex, nproma-1)
	case r.StartBlock == r.EndBlock && r.StartIndex > r.EndIndex:
		return fmt.Errorf("%w: %s: start index %d after end index %d", ErrRange, name, r.StartIndex, r.EndIndex)
	}
	return nil
}
