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

// Package eos implements the UNESCO (EOS-80) equation of state of seawater.
package eos

import "math"

// Density returns the in situ density of seawater [kg/m³] at temperature
// t [°C], practical salinity s [psu] and pressure p [bar], following
// Millero and Poisson (1981) for the one-atmosphere density and
// Millero et al. (1980) for the secant bulk modulus.
func Density(t, s, p float64) float64 {
	return Density0(t, s) / (1 - p/SecantBulkModulus(t, s, p))
}

// Density0 returns the density of seawater [kg/m³] at one atmosphere.
func Density0(t, s float64) float64 {
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	t5 := t4 * t
	s15 := s * math.Sqrt(s)

	rhow := 999.842594 + 6.793952e-2*t - 9.095290e-3*t2 +
		1.001685e-4*t3 - 1.120083e-6*t4 + 6.536332e-9*t5

	a := 0.824493 - 4.0899e-3*t + 7.6438e-5*t2 - 8.2467e-7*t3 + 5.3875e-9*t4
	b := -5.72466e-3 + 1.0227e-4*t - 1.6546e-6*t2
	const c = 4.8314e-4

	return rhow + a*s + b*s15 + c*s*s
}

// SecantBulkModulus returns the secant bulk modulus of seawater [bar].
func SecantBulkModulus(t, s, p float64) float64 {
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	s15 := s * math.Sqrt(s)

	kw := 19652.21 + 148.4206*t - 2.327105*t2 + 1.360477e-2*t3 - 5.155288e-5*t4
	k0 := kw + s*(54.6746-0.603459*t+1.09987e-2*t2-6.1670e-5*t3) +
		s15*(7.944e-2+1.6483e-2*t-5.3009e-4*t2)

	aw := 3.239908 + 1.43713e-3*t + 1.16092e-4*t2 - 5.77905e-7*t3
	a := aw + s*(2.2838e-3-1.0981e-5*t-1.6078e-6*t2) + 1.91075e-4*s15

	bw := 8.50935e-5 - 6.12293e-6*t + 5.2787e-8*t2
	b := bw + s*(-9.9348e-7+2.0816e-8*t+9.1697e-10*t2)

	return k0 + a*p + b*p*p
}
