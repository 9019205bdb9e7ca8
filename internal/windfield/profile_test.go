package windfield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cyclone-hazard/internal/domain"
)

func referenceState() domain.StormState {
	return domain.StormState{
		Lon:         150,
		Lat:         -18,
		Speed:       15,
		Bearing:     225,
		Pressure:    950,
		EnvPressure: 1005,
		RMax:        30,
	}
}

func allProfiles() []Profile {
	return []Profile{
		ProfilePowell, ProfileHolland, ProfileWilloughby,
		ProfileDoubleHolland, ProfileRankine, ProfileJelesnianski,
	}
}

func TestProfilesPeakNearRMax(t *testing.T) {
	st := referenceState()
	for _, p := range allProfiles() {
		t.Run(string(p), func(t *testing.T) {
			build, err := vortexBuilder(p, DefaultBeta)
			require.NoError(t, err)
			v := build(st)

			rm := v.rMax()
			atPeak := math.Abs(v.velocity(rm))
			assert.Greater(t, atPeak, math.Abs(v.velocity(rm/4)))
			assert.Greater(t, atPeak, math.Abs(v.velocity(rm*6)))
		})
	}
}

func TestProfilesCalmAtEyeAndFarField(t *testing.T) {
	st := referenceState()
	for _, p := range allProfiles() {
		t.Run(string(p), func(t *testing.T) {
			build, err := vortexBuilder(p, DefaultBeta)
			require.NoError(t, err)
			v := build(st)

			assert.Less(t, math.Abs(v.velocity(1)), 0.2, "calm at the eye")
			assert.Less(t, math.Abs(v.velocity(1500e3)), v.vMax()/4, "far field decays")
		})
	}
}

func TestProfileSignFollowsHemisphere(t *testing.T) {
	south := referenceState()
	north := south
	north.Lat = 18

	build, err := vortexBuilder(ProfilePowell, DefaultBeta)
	require.NoError(t, err)

	sv := build(south)
	nv := build(north)
	assert.Negative(t, sv.velocity(sv.rMax()))
	assert.Positive(t, nv.velocity(nv.rMax()))
}

func TestHollandCubicCoreContinuity(t *testing.T) {
	build, err := vortexBuilder(ProfileHolland, DefaultBeta)
	require.NoError(t, err)
	v := build(referenceState())

	rm := v.rMax()
	assert.InDelta(t, v.velocity(rm*0.999), v.velocity(rm*1.001), 0.03*v.vMax())
}

func TestPowellBetaFromStormGeometry(t *testing.T) {
	build, err := vortexBuilder(ProfilePowell, DefaultBeta)
	require.NoError(t, err)

	v := build(referenceState())
	assert.InDelta(t, 1.517577, v.beta(), 1e-5)
}

func TestPowellBetaClampedForBroadStorms(t *testing.T) {
	st := referenceState()
	st.RMax = 220

	build, err := vortexBuilder(ProfilePowell, DefaultBeta)
	require.NoError(t, err)
	assert.Equal(t, 0.8, build(st).beta())
}

func TestWilloughbyBetaDerived(t *testing.T) {
	build, err := vortexBuilder(ProfileWilloughby, DefaultBeta)
	require.NoError(t, err)
	v := build(referenceState())

	vm := 0.6252 * math.Sqrt(5500)
	want := 1.0036 + 0.0173*vm - 0.313*math.Log(30) + 0.0087*18
	assert.InDelta(t, want, v.beta(), 1e-9)
}

func TestDoubleHollandDeficitSplit(t *testing.T) {
	st := referenceState()
	build, err := vortexBuilder(ProfileDoubleHolland, DefaultBeta)
	require.NoError(t, err)

	v := build(st).(*doubleHollandVortex)
	assert.InDelta(t, 802.35, v.dp2, 1e-9)
	assert.InDelta(t, 5500-802.35, v.dp1, 1e-9)

	// Weak storms scale the outer deficit down instead.
	st.Pressure = 995
	weak := build(st).(*doubleHollandVortex)
	dP := 1000.0
	assert.InDelta(t, dP/1500*(800+(dP-800)/2000), weak.dp2, 1e-9)
}
