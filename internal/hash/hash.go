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

// Package hash fingerprints run configurations, so that an output file can
// be traced back to the settings that produced it.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Fingerprint returns a hexadecimal key for v. Equal values have equal
// keys.
func Fingerprint(v interface{}) string {
	h := fnv.New128a()
	if err := gob.NewEncoder(h).Encode(v); err != nil {
		// gob cannot encode v (e.g., it has no exported fields).
		h.Reset()
		printer.Fprintf(h, "%#v", v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
