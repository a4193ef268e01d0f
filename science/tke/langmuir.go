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

import "math"

// langmuir computes the Langmuir circulation source term of a column
// with n active levels into r.plc and writes the Langmuir outputs. The
// Langmuir cell depth is the depth at which the potential energy of the
// stratification above it matches the kinetic energy of the surface
// Stokes drift. It needs r.nsqr, r.dzw and r.dzt.
func langmuir[T Float](s *Setup[T], f *Fields[T], r *rows[T], jb, jc, n int) {
	if !s.LC {
		for k := 0; k < n; k++ {
			r.plc[k] = 0
			f.Wlc.Set(jb, k, jc, 0)
			f.TKEPlc.Set(jb, k, jc, 0)
		}
		f.Hlc.Set(jb, jc, 0)
		f.UStokes.Set(jb, jc, 0)
		return
	}

	us := s.Params.StokesFactor * f.FU10.At(jb, jc) * iceFree(f.Concsum.At(jb, jc))
	hlc := f.DepthCellInterface.At(jb, n-1, jc) + r.dzw[n-1]
	target := us * us / 2
	var energy T
	for k := 1; k < n; k++ {
		z := f.DepthCellInterface.At(jb, k, jc)
		energy += max(r.nsqr[k], 0) * z * r.dzt[k]
		if energy >= target {
			hlc = z
			break
		}
	}
	hlc = max(hlc, r.dzw[0])

	for k := 0; k < n; k++ {
		z := f.DepthCellInterface.At(jb, k, jc)
		var wlc T
		if z < hlc {
			wlc = s.CLC * us * T(math.Sin(float64(s.Pi*z/hlc)))
		}
		r.plc[k] = wlc * wlc * wlc / hlc
		f.Wlc.Set(jb, k, jc, wlc)
		f.TKEPlc.Set(jb, k, jc, r.plc[k])
	}
	f.Hlc.Set(jb, jc, hlc)
	f.UStokes.Set(jb, jc, us)
}
