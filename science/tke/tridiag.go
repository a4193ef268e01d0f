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

// SolveTridiag solves the tridiagonal system
//
//	a[i]*x[i-1] + b[i]*x[i] + c[i]*x[i+1] = d[i],  i = 0..n-1
//
// with the Thomas algorithm, where n = len(x). a[0] and c[n-1] are
// ignored. cp and dp are work arrays of at least n elements. The system
// must be diagonally dominant; no pivoting is done.
func SolveTridiag[T Float](a, b, c, d, x, cp, dp []T) {
	n := len(x)
	if n == 0 {
		return
	}
	cp[0] = 0
	if n > 1 {
		cp[0] = c[0] / b[0]
	}
	dp[0] = d[0] / b[0]
	for i := 1; i < n; i++ {
		m := b[i] - a[i]*cp[i-1]
		if i < n-1 {
			cp[i] = c[i] / m
		} else {
			cp[i] = 0
		}
		dp[i] = (d[i] - a[i]*dp[i-1]) / m
	}
	x[n-1] = dp[n-1]
	for i := n - 2; i >= 0; i-- {
		x[i] = dp[i] - cp[i]*x[i+1]
	}
}
