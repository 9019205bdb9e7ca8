package windfield

import (
	"fmt"
	"math"
)

// BoundaryLayer selects the gradient-to-surface wind conversion.
type BoundaryLayer string

const (
	BoundaryKepert     BoundaryLayer = "kepert"
	BoundaryMcConochie BoundaryLayer = "mcconochie"
	BoundaryHubbert    BoundaryLayer = "hubbert"
)

// DefaultBoundary is the boundary layer used when none is configured.
const DefaultBoundary = BoundaryKepert

// ParseBoundary maps a configured name onto a BoundaryLayer.
func ParseBoundary(name string) (BoundaryLayer, error) {
	b := BoundaryLayer(name)
	switch b {
	case BoundaryKepert, BoundaryMcConochie, BoundaryHubbert:
		return b, nil
	}
	return "", fmt.Errorf("windfield: unknown boundary layer %q", name)
}

// surfaceModel converts the gradient wind into earth-frame surface
// components at one cell. r is the distance from the eye in metres, lam the
// mathematical azimuth of the cell seen from the eye, vFm the forward speed
// in m/s, thetaFm the mathematical azimuth of motion, and thetaMax the
// angular offset of the wind maximum from the motion direction. Angles are
// radians.
type surfaceModel interface {
	surface(r, lam, vFm, thetaFm, thetaMax float64) (ux, vy float64)
}

func surfaceBuilder(model BoundaryLayer) (func(vortex) surfaceModel, error) {
	switch model {
	case BoundaryKepert:
		return func(v vortex) surfaceModel { return &kepertModel{v: v} }, nil
	case BoundaryMcConochie:
		return func(v vortex) surfaceModel { return &mcconochieModel{v: v} }, nil
	case BoundaryHubbert:
		return func(v vortex) surfaceModel { return &hubbertModel{v: v} }, nil
	}
	return nil, fmt.Errorf("windfield: unknown boundary layer %q", model)
}

// vorticity returns the vertical component of the axisymmetric flow curl,
// V/r + dV/dr, with the derivative taken by central difference.
func vorticity(v vortex, r float64) float64 {
	h := 1.0
	if r <= h {
		h = r / 2
	}
	dVdR := (v.velocity(r+h) - v.velocity(r-h)) / (2 * h)
	return v.velocity(r)/r + dVdR
}

// kepertModel is the linear analytical boundary-layer solution of Kepert
// (2001), resolving the symmetric flow and both wavenumber-one asymmetries
// forced by storm motion.
type kepertModel struct {
	v vortex
}

const (
	kepertDiffusivity = 50.0
	kepertDrag        = 0.002
)

func (m *kepertModel) surface(r, lam, vFm, thetaFm, _ float64) (float64, float64) {
	f := m.v.coriolis()
	sf := 1.0
	if f < 0 {
		sf = -1
	}
	vm := m.v.vMax()
	rm := m.v.rMax()

	// Forward speed felt by the boundary layer, damped for slow-moving
	// intense storms.
	umod := vFm
	if vFm > 0 && vm/vFm < 5 {
		umod = vFm * math.Abs(1.25*(1-vFm/vm))
	}
	vt := umod
	if r > 2*rm {
		x := r/(2*rm) - 1
		vt = umod * math.Exp(-x*x)
	}

	v := m.v.velocity(r)
	z := vorticity(m.v, r)

	al := (2*v/r + f) / (2 * kepertDiffusivity)
	be := (f + z) / (2 * kepertDiffusivity)
	gam := v / (2 * kepertDiffusivity * r)

	albe := math.Sqrt(al / be)
	sq := math.Sqrt(al * be)

	chi := math.Abs(kepertDrag / kepertDiffusivity * v / math.Sqrt(sq))
	eta := math.Abs(kepertDrag / kepertDiffusivity * v / math.Sqrt(sq+math.Abs(gam)))
	psi := math.Abs(kepertDrag / kepertDiffusivity * v / math.Sqrt(math.Abs(sq-math.Abs(gam))))

	// Symmetric component.
	a0 := complex(-chi*v/(2*chi*chi+3*chi+2), 0) * complex(1, 1+chi)
	u0s := albe * real(a0)
	v0s := imag(a0)

	// Wavenumber-one components rotating with and against the gradient
	// flow. Inside the inertially dominated region the resonant form
	// applies; outside it the damped form does.
	var am, ap complex128
	if math.Abs(gam) > sq {
		am = complex(-psi*vt*(1+2*albe+eta*(1+albe)), -psi*vt*eta*(1+albe)) /
			complex(albe*(2+3*(psi+eta)+2*eta*psi), albe*(2*eta*psi-2))
		ap = complex(-eta*vt*(1-2*albe+psi*(1-albe)), eta*vt*psi*(1-albe)) /
			complex(albe*(2+3*(eta+psi)+2*eta*psi), albe*(2-2*eta*psi))
	} else {
		am = complex(-psi*vt*(1+2*albe+eta*(1+albe)), -psi*vt*eta*(1+albe)) /
			complex(albe*(2*(1+eta*psi)+3*psi), albe*(2*(1+eta*psi)+3*eta))
		ap = complex(-eta*vt*(1-2*albe+psi*(1-albe)), -eta*vt*psi*(1-albe)) /
			complex(albe*(2*(1+eta*psi)+3*eta), albe*(2*(1+eta*psi)+3*psi))
	}

	down := complex(math.Cos(-sf*(lam-thetaFm)), math.Sin(-sf*(lam-thetaFm)))
	up := complex(math.Cos(sf*(lam-thetaFm)), math.Sin(sf*(lam-thetaFm)))
	wm := am * down
	wp := ap * up

	us := u0s + albe*real(wm) + albe*real(wp)
	vs := v + v0s + sf*imag(wm) + sf*imag(wp)

	// Back to the earth frame.
	usf := us + vt*math.Cos(lam-thetaFm)
	vsf := vs - vt*math.Sin(lam-thetaFm)
	phi := math.Atan2(usf, vsf)
	speed := math.Hypot(usf, vsf)
	return speed * math.Sin(phi-lam), speed * math.Cos(phi-lam)
}

// mcconochieModel applies the McConochie et al. (2004) radius-dependent
// inflow and wind-speed-dependent surface reduction.
type mcconochieModel struct {
	v vortex
}

func (m *mcconochieModel) surface(r, lam, vFm, thetaFm, thetaMax float64) (float64, float64) {
	rm := m.v.rMax()

	inflow := 25.0
	switch {
	case r < rm:
		inflow = 10 * r / rm
	case r < 1.2*rm:
		inflow = 10 + 75*(r/rm-1)
	}
	inflow *= deg2rad

	v := m.v.velocity(r)
	thetaMaxAbs := thetaFm + thetaMax
	asym := 0.5 * (1 + math.Cos(thetaMaxAbs-lam)) * vFm * (v / m.v.vMax())
	vsf := v + asym

	swrf := 0.81
	mag := math.Abs(vsf)
	switch {
	case mag >= 45:
		swrf = 0.66
	case mag >= 19.5:
		swrf = 0.77 - 4.31*(mag-19.5)/1000
	case mag >= 6:
		swrf = 0.81 - 2.93*(mag-6)/1000
	}

	phi := inflow - lam
	return swrf * vsf * math.Sin(phi), swrf * vsf * math.Cos(phi)
}

// hubbertModel is the Hubbert et al. (1991) surface wind: constant
// reduction, 25 degree inflow outside the core, storm-motion asymmetry.
type hubbertModel struct {
	v vortex
}

const hubbertReduction = 0.7

func (m *hubbertModel) surface(r, lam, vFm, thetaFm, thetaMax float64) (float64, float64) {
	inflow := 0.0
	if r >= m.v.rMax() {
		inflow = 25 * deg2rad
		if m.v.coriolis() < 0 {
			inflow = -inflow
		}
	}

	thetaMaxAbs := thetaFm + thetaMax
	asym := vFm * math.Cos(thetaMaxAbs-lam+math.Pi)
	vsf := hubbertReduction*m.v.velocity(r) + asym

	phi := inflow - lam
	return vsf * math.Sin(phi), vsf * math.Cos(phi)
}
