// Package geo provides the spherical-earth geometry used by track stepping
// and windfield evaluation: great-circle destination points, distances,
// bearings, and the Coriolis parameter.
//
// Bearings are compass degrees clockwise from true north throughout, matching
// the track convention. Distances are km at this package's surface; callers
// needing SI convert at the edge.
package geo

import "math"

const (
	// EarthRadiusKm is the mean earth radius of the spherical model.
	EarthRadiusKm = 6371.0

	// omega is the earth's angular velocity in rad/s.
	omega = 7.292115e-5

	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Destination returns the point reached by travelling distKm along the given
// compass bearing from (lon, lat) on a great circle.
func Destination(lon, lat, bearingDeg, distKm float64) (float64, float64) {
	lat1 := lat * deg2rad
	lon1 := lon * deg2rad
	theta := bearingDeg * deg2rad
	c := distKm / EarthRadiusKm

	sinLat2 := math.Sin(lat1)*math.Cos(c) + math.Cos(lat1)*math.Sin(c)*math.Cos(theta)
	lat2 := math.Asin(sinLat2)
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(c)*math.Cos(lat1),
		math.Cos(c)-math.Sin(lat1)*sinLat2,
	)

	return normalizeLon(lon2 * rad2deg), lat2 * rad2deg
}

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(lon1, lat1, lon2, lat2 float64) float64 {
	phi1 := lat1 * deg2rad
	phi2 := lat2 * deg2rad
	dPhi := (lat2 - lat1) * deg2rad
	dLam := (lon2 - lon1) * deg2rad

	sinPhi := math.Sin(dPhi / 2)
	sinLam := math.Sin(dLam / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLam*sinLam
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BearingDeg returns the initial compass bearing from point 1 to point 2,
// normalized to [0, 360).
func BearingDeg(lon1, lat1, lon2, lat2 float64) float64 {
	phi1 := lat1 * deg2rad
	phi2 := lat2 * deg2rad
	dLam := (lon2 - lon1) * deg2rad

	y := math.Sin(dLam) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLam)
	return NormalizeBearing(math.Atan2(y, x) * rad2deg)
}

// Coriolis returns the Coriolis parameter 2*omega*sin(lat) in 1/s. Negative
// in the southern hemisphere, which carries the rotation sense through the
// wind models without basin-specific branches.
func Coriolis(lat float64) float64 {
	return 2 * omega * math.Sin(lat*deg2rad)
}

// NormalizeBearing wraps a compass bearing into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func normalizeLon(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}
