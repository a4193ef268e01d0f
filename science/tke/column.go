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

import (
	"math"

	"github.com/spatialmodel/tkemix/field"
	"github.com/spatialmodel/tkemix/science/eos"
)

const nsqrMin = 1e-12

func sqrt[T Float](x T) T { return T(math.Sqrt(float64(x))) }

// Column advances the TKE of column jc of block jb by one time step and
// writes the mixing coefficients and budget terms of that column. Levels
// at or below the bottom index are zeroed in every output except the TKE
// itself, which is left as is. slot selects the scratch rows the column
// works in.
func Column[T Float](s *Setup[T], f *Fields[T], w *Scratch[T], slot, jb, jc int) {
	nlevs := s.NLevs
	n := levels(f.DolicC.At(jb, jc), nlevs)
	p := &s.Params
	dt := s.Dtime

	if n == 0 {
		w.ForcSurf.Set(jb, jc, 0)
		f.Hlc.Set(jb, jc, 0)
		f.UStokes.Set(jb, jc, 0)
		clearBelow(f, w, jb, jc, 0, nlevs)
		return
	}
	r := w.rows(slot, n)

	// Layer thicknesses.
	stretch := T(1)
	if s.ZStar {
		stretch = f.Stretch.At(jb, jc)
	}
	for k := 0; k < n; k++ {
		r.dzw[k] = f.PrismThick.At(jb, k, jc) * stretch
		r.old[k] = f.TKE.At(jb, k, jc)
		r.sqrttke[k] = sqrt(max(r.old[k], 0))
	}
	if !s.ZStar {
		r.dzw[0] += f.Eta.At(jb, jc)
	}
	r.dzt[0] = r.dzw[0] / 2
	for k := 1; k < n; k++ {
		r.dzt[k] = f.PrismCenterDist.At(jb, k, jc) * stretch
	}

	// Stratification and shear at the cell interfaces.
	r.nsqr[0], r.ssqr[0] = 0, 0
	for k := 1; k < n; k++ {
		inv := f.InvPrismCenterDist.At(jb, k, jc) / stretch
		pbar := float64(f.ZlevI.At(k)*s.RefPressure) / 10
		up := eos.Density(float64(f.Temp.At(jb, k-1, jc)), float64(f.Salt.At(jb, k-1, jc)), pbar)
		down := eos.Density(float64(f.Temp.At(jb, k, jc)), float64(f.Salt.At(jb, k, jc)), pbar)
		r.nsqr[k] = s.Grav / s.Rho0 * T(down-up) * inv * f.WetC.At(jb, k, jc)

		var ssqr T
		for _, v := range f.Vn {
			if v.Data() == nil {
				continue
			}
			du := v.At(jb, k-1, jc) - v.At(jb, k, jc)
			ssqr += du * du
		}
		r.ssqr[k] = ssqr * inv * inv
	}

	mixingLength(p, r.sqrttke, r.nsqr, r.dzw, r.mxl)
	coefficients(p, r.mxl, r.sqrttke, r.nsqr, r.ssqr, r.kappaM, r.pr, r.kappaH)

	// Surface wind input.
	ice := iceFree(f.Concsum.At(jb, jc))
	sx, sy := f.StressX.At(jb, jc), f.StressY.At(jb, jc)
	tau := sqrt(sx*sx+sy*sy) * ice / s.Rho0
	var forcSurf T
	if p.Surface == Neumann {
		forcSurf = p.CD * T(math.Pow(float64(tau), 1.5))
	} else {
		forcSurf = max(p.TKESurfMin, p.CD*tau)
	}
	w.ForcSurf.Set(jb, jc, forcSurf)

	langmuir(s, f, &r, jb, jc, n)

	// Implicit vertical diffusion with dissipation.
	for k := 0; k < n-1; k++ {
		r.ke[k] = p.AlphaTKE * (r.kappaM[k] + r.kappaM[k+1]) / 2
	}
	r.ke[n-1] = 0
	for k := 0; k < n; k++ {
		var a, c T
		if k > 0 {
			a = r.ke[k-1] / (r.dzw[k-1] * r.dzt[k])
		}
		if k < n-1 {
			c = r.ke[k] / (r.dzw[k] * r.dzt[k])
		}
		r.aDif[k], r.bDif[k], r.cDif[k] = a, a+c, c

		r.forc[k] = r.kappaM[k]*r.ssqr[k] - r.kappaH[k]*r.nsqr[k] + r.plc[k]
		if s.IW {
			r.forc[k] += f.IweTdis.At(jb, k, jc)
		}
		r.aTri[k] = -dt * a
		r.bTri[k] = 1 + dt*(a+c) + dt*p.CEps*r.sqrttke[k]/r.mxl[k]
		r.cTri[k] = -dt * c
		r.dTri[k] = r.old[k] + dt*r.forc[k]
	}
	if p.Surface == Neumann {
		r.dTri[0] += dt * forcSurf / r.dzt[0]
	} else {
		r.aTri[0], r.bTri[0], r.cTri[0], r.dTri[0] = 0, 1, 0, forcSurf
	}

	SolveTridiag(r.aTri, r.bTri, r.cTri, r.dTri, r.unrest, r.cp, r.dp)

	// Budget of the step, in terms of the unrestricted solution.
	x := r.unrest
	for k := 0; k < n; k++ {
		dif := -r.bDif[k] * x[k]
		if k > 0 {
			dif += r.aDif[k] * x[k-1]
		}
		if k < n-1 {
			dif += r.cDif[k] * x[k+1]
		}
		var iw T
		if s.IW {
			iw = f.IweTdis.At(jb, k, jc)
		}
		win := r.plc[k]
		if k == 0 && p.Surface == Neumann {
			win += forcSurf / r.dzt[0]
		}
		spr := r.kappaM[k] * r.ssqr[k]
		bpr := -r.kappaH[k] * r.nsqr[k]
		dis := -p.CEps * r.sqrttke[k] / r.mxl[k] * x[k]
		if k == 0 && p.Surface == Dirichlet {
			// The prescribed surface value supplies whatever the other
			// terms do not.
			win = (x[0]-r.old[0])/dt - (spr + bpr + dif + dis + iw)
		}
		r.upd[k] = max(x[k], p.TKEMin)

		f.Tspr.Set(jb, k, jc, spr)
		f.Tbpr.Set(jb, k, jc, bpr)
		f.Tdif.Set(jb, k, jc, dif)
		f.Tdis.Set(jb, k, jc, dis)
		f.Twin.Set(jb, k, jc, win)
		f.Tiwf.Set(jb, k, jc, iw)
		f.Tbck.Set(jb, k, jc, (r.upd[k]-x[k])/dt)
		f.Ttot.Set(jb, k, jc, (r.upd[k]-r.old[k])/dt)
		f.TKE.Set(jb, k, jc, r.upd[k])
	}

	// Mixing coefficients of the new state.
	for k := 0; k < n; k++ {
		r.sqrttke[k] = sqrt(r.upd[k])
	}
	mixingLength(p, r.sqrttke, r.nsqr, r.dzw, r.mxl)
	coefficients(p, r.mxl, r.sqrttke, r.nsqr, r.ssqr, r.kappaM, r.pr, r.kappaH)
	for k := 0; k < n; k++ {
		w.TKEAv.Set(jb, k, jc, r.kappaM[k])
		f.ATempV.Set(jb, k, jc, r.kappaH[k])
		f.ASaltV.Set(jb, k, jc, r.kappaH[k])
		f.Lmix.Set(jb, k, jc, r.mxl[k])
		f.Pr.Set(jb, k, jc, r.pr[k])
	}
	clearBelow(f, w, jb, jc, n, nlevs)
}

// mixingLength computes the mixing length from the TKE and the
// stratification.
func mixingLength[T Float](p *Params[T], sqrttke, nsqr, dzw, mxl []T) {
	n := len(mxl)
	for k := range mxl {
		mxl[k] = math.Sqrt2 * sqrttke[k] / sqrt(max(nsqr[k], nsqrMin))
	}
	if p.MixingLength == MxlDistanceLimited {
		mxl[0] = 0
		for k := 1; k < n; k++ {
			mxl[k] = min(mxl[k], mxl[k-1]+dzw[k-1])
		}
		mxl[n-1] = min(mxl[n-1], p.MxlMin+dzw[n-1])
		for k := n - 2; k >= 0; k-- {
			mxl[k] = min(mxl[k], mxl[k+1]+dzw[k])
		}
	}
	for k := range mxl {
		mxl[k] = max(mxl[k], p.MxlMin)
	}
}

// coefficients computes the eddy viscosity, the Prandtl number and the
// eddy diffusivity.
func coefficients[T Float](p *Params[T], mxl, sqrttke, nsqr, ssqr, kappaM, pr, kappaH []T) {
	for k := range mxl {
		km := max(min(p.CK*mxl[k]*sqrttke[k], p.KappaMMax), p.KappaMMin)
		prk := p.PrandtlSlope * nsqr[k] / max(ssqr[k], nsqrMin)
		pr[k] = max(p.PrandtlMin, min(p.PrandtlMax, prk))
		kappaM[k] = km
		kappaH[k] = km / pr[k]
	}
}

// clearBelow zeroes every output except the TKE on levels [from, nlevs).
func clearBelow[T Float](f *Fields[T], w *Scratch[T], jb, jc, from, nlevs int) {
	outputs := [...]field.View3[T]{
		w.TKEAv, f.ATempV, f.ASaltV, f.TKEPlc, f.Wlc,
		f.Tbpr, f.Tspr, f.Tdif, f.Tdis, f.Twin,
		f.Tiwf, f.Tbck, f.Ttot, f.Lmix, f.Pr,
	}
	for _, v := range outputs {
		for k := from; k < nlevs; k++ {
			v.Set(jb, k, jc, 0)
		}
	}
}
