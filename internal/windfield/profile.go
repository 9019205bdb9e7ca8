package windfield

import (
	"fmt"
	"math"

	"github.com/couchcryptid/cyclone-hazard/internal/domain"
	"github.com/couchcryptid/cyclone-hazard/internal/geo"
)

// Profile selects the radial wind profile variant.
type Profile string

const (
	ProfilePowell        Profile = "powell"
	ProfileHolland       Profile = "holland"
	ProfileWilloughby    Profile = "willoughby"
	ProfileDoubleHolland Profile = "doubleholland"
	ProfileRankine       Profile = "rankine"
	ProfileJelesnianski  Profile = "jelesnianski"
)

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = ProfilePowell

// ParseProfile maps a configured name onto a Profile.
func ParseProfile(name string) (Profile, error) {
	p := Profile(name)
	switch p {
	case ProfilePowell, ProfileHolland, ProfileWilloughby,
		ProfileDoubleHolland, ProfileRankine, ProfileJelesnianski:
		return p, nil
	}
	return "", fmt.Errorf("windfield: unknown wind profile %q", name)
}

// rho is the air density in kg/m3 shared by the whole profile family.
const rho = 1.15

// vortex is the gradient-level radial structure of one storm snapshot.
type vortex interface {
	// velocity returns the tangential wind in m/s at radius r metres,
	// signed by the rotation sense of the hemisphere.
	velocity(r float64) float64
	// vMax returns the unsigned maximum tangential wind in m/s.
	vMax() float64
	// rMax returns the radius of maximum winds in metres.
	rMax() float64
	// beta returns the peakedness exponent of the pressure profile.
	beta() float64
	// coriolis returns the Coriolis parameter of the snapshot latitude.
	coriolis() float64
}

// snapshot carries one storm state converted to SI.
type snapshot struct {
	lat float64
	f   float64 // Coriolis parameter, 1/s
	dP  float64 // pressure deficit, Pa
	rm  float64 // radius of maximum winds, m
}

func siSnapshot(st domain.StormState) snapshot {
	return snapshot{
		lat: st.Lat,
		f:   geo.Coriolis(st.Lat),
		dP:  st.Deficit() * 100,
		rm:  st.RMax * 1000,
	}
}

func (s snapshot) coriolis() float64 { return s.f }

// signed flips a tangential speed into the hemisphere's rotation sense.
func (s snapshot) signed(speed float64) float64 {
	if s.f < 0 {
		return -speed
	}
	return speed
}

// willoughbySpeed is the Willoughby & Rahn (2004) empirical maximum wind.
func willoughbySpeed(dP float64) float64 {
	return 0.6252 * math.Sqrt(dP)
}

// hollandSpeed is the cyclostrophic maximum wind of the Holland profile.
func hollandSpeed(beta, dP float64) float64 {
	return math.Sqrt(beta * dP / (math.E * rho))
}

// vortexBuilder resolves the profile name to a per-snapshot constructor.
// cfgBeta feeds the profiles that do not derive their own peakedness.
func vortexBuilder(profile Profile, cfgBeta float64) (func(domain.StormState) vortex, error) {
	switch profile {
	case ProfileRankine:
		return func(st domain.StormState) vortex {
			s := siSnapshot(st)
			return &rankineVortex{snapshot: s, vm: willoughbySpeed(s.dP), b: cfgBeta}
		}, nil
	case ProfileJelesnianski:
		return func(st domain.StormState) vortex {
			s := siSnapshot(st)
			return &jelesnianskiVortex{snapshot: s, vm: willoughbySpeed(s.dP), b: cfgBeta}
		}, nil
	case ProfileHolland:
		return func(st domain.StormState) vortex {
			return newHollandVortex(siSnapshot(st), cfgBeta)
		}, nil
	case ProfileWilloughby:
		return func(st domain.StormState) vortex {
			s := siSnapshot(st)
			vm := willoughbySpeed(s.dP)
			b := 1.0036 + 0.0173*vm - 0.313*math.Log(s.rm/1000) + 0.0087*math.Abs(s.lat)
			return newHollandVortex(s, b)
		}, nil
	case ProfilePowell:
		return func(st domain.StormState) vortex {
			s := siSnapshot(st)
			b := 1.881093 - 0.010917*math.Abs(s.lat) - 0.005567*(s.rm/1000)
			if b < 0.8 {
				b = 0.8
			}
			if b > 2.2 {
				b = 2.2
			}
			return newHollandVortex(s, b)
		}, nil
	case ProfileDoubleHolland:
		return func(st domain.StormState) vortex {
			return newDoubleHollandVortex(siSnapshot(st), cfgBeta, cfgBeta-0.1, 250e3)
		}, nil
	}
	return nil, fmt.Errorf("windfield: unknown wind profile %q", profile)
}

// rankineVortex is a modified Rankine vortex: linear inside the radius of
// maximum winds, power-law decay outside.
type rankineVortex struct {
	snapshot
	vm float64
	b  float64
}

const rankineAlpha = 0.5

func (v *rankineVortex) velocity(r float64) float64 {
	var speed float64
	if r <= v.rm {
		speed = v.vm * r / v.rm
	} else {
		speed = v.vm * math.Pow(v.rm/r, rankineAlpha)
	}
	return v.signed(speed)
}

func (v *rankineVortex) vMax() float64 { return v.vm }
func (v *rankineVortex) rMax() float64 { return v.rm }
func (v *rankineVortex) beta() float64 { return v.b }

// jelesnianskiVortex is the Jelesnianski (1966) profile, smooth through the
// wind maximum.
type jelesnianskiVortex struct {
	snapshot
	vm float64
	b  float64
}

func (v *jelesnianskiVortex) velocity(r float64) float64 {
	speed := 2 * v.vm * v.rm * r / (v.rm*v.rm + r*r)
	return v.signed(speed)
}

func (v *jelesnianskiVortex) vMax() float64 { return v.vm }
func (v *jelesnianskiVortex) rMax() float64 { return v.rm }
func (v *jelesnianskiVortex) beta() float64 { return v.b }

// hollandVortex is the Holland (1980) gradient wind with a cubic core inside
// the radius of maximum winds. The cubic is pinned to the profile value and
// its first two derivatives at rMax, so speed, slope and curvature stay
// continuous across the core boundary.
type hollandVortex struct {
	snapshot
	b          float64
	vm         float64
	aa, bb, cc float64
}

func newHollandVortex(s snapshot, beta float64) *hollandVortex {
	v := &hollandVortex{snapshot: s, b: beta, vm: hollandSpeed(beta, s.dP)}

	f := s.f
	fAbs := math.Abs(f)
	e := math.E
	fr := f * s.rm

	dVm := -fAbs/2 + (e*f*f*s.rm*math.Sqrt(4*beta*s.dP/rho/e+fr*fr))/
		(2*(4*beta*s.dP/rho+e*fr*fr))
	d2Vm := (beta * s.dP * (-4*beta*beta*beta*s.dP/rho - (beta*beta-2)*e*(fAbs*s.rm)*(fAbs*s.rm))) /
		(e * rho * math.Sqrt(4*beta*s.dP/(e*rho)+fr*fr) *
			(4*beta*s.dP*s.rm*s.rm/rho + e*(fr*s.rm)*(fr*s.rm)))

	v.aa = (d2Vm/2 - (dVm-v.vm/s.rm)/s.rm) / s.rm
	v.bb = (d2Vm - 6*v.aa*s.rm) / 2
	v.cc = dVm - 3*v.aa*s.rm*s.rm - 2*v.bb*s.rm
	return v
}

func (v *hollandVortex) velocity(r float64) float64 {
	var speed float64
	if r <= v.rm {
		speed = r * (r*(r*v.aa+v.bb) + v.cc)
	} else {
		delta := math.Pow(v.rm/r, v.b)
		speed = math.Sqrt(v.b*v.dP/rho*delta*math.Exp(-delta)+(r*v.f/2)*(r*v.f/2)) -
			r*math.Abs(v.f)/2
	}
	return v.signed(speed)
}

func (v *hollandVortex) vMax() float64 { return v.vm }
func (v *hollandVortex) rMax() float64 { return v.rm }
func (v *hollandVortex) beta() float64 { return v.b }

// doubleHollandVortex superposes two Holland vortices, splitting the
// pressure deficit between an inner and an outer circulation.
type doubleHollandVortex struct {
	snapshot
	b1, b2   float64
	rm2      float64
	dp1, dp2 float64
	vm       float64
}

func newDoubleHollandVortex(s snapshot, beta1, beta2, rMax2 float64) *doubleHollandVortex {
	dp2 := 800 + (s.dP-800)/2000
	if s.dP < 1500 {
		dp2 *= s.dP / 1500
	}
	return &doubleHollandVortex{
		snapshot: s,
		b1:       beta1,
		b2:       beta2,
		rm2:      rMax2,
		dp1:      s.dP - dp2,
		dp2:      dp2,
		vm:       hollandSpeed(beta1, s.dP),
	}
}

func (v *doubleHollandVortex) velocity(r float64) float64 {
	chi := v.b1 * v.dp1 / rho
	psi := v.b2 * v.dp2 / rho
	delta := math.Pow(v.rm/r, v.b1)
	gamma := math.Pow(v.rm2/r, v.b2)

	speed := math.Sqrt(chi*delta*math.Exp(-delta)+psi*gamma*math.Exp(-gamma)+(v.f*r/2)*(v.f*r/2)) -
		math.Abs(v.f)*r/2
	return v.signed(speed)
}

func (v *doubleHollandVortex) vMax() float64 { return v.vm }
func (v *doubleHollandVortex) rMax() float64 { return v.rm }
func (v *doubleHollandVortex) beta() float64 { return v.b1 }
