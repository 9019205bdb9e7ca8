// Package domain models synthetic tropical-cyclone tracks.
//
// # Conventions
//
// Position:
//
//	Longitude and latitude in decimal degrees, positive east and north.
//	Southern-hemisphere storms carry negative latitudes; rotation sense
//	follows the sign of the Coriolis parameter, so no per-basin special
//	casing appears anywhere downstream.
//
// Motion:
//
//	Bearing is a compass direction in degrees clockwise from true north
//	(0 = northward, 90 = eastward), matching the convention of best-track
//	archives. Forward speed is in km/h. Both are AR(1) processes during
//	simulation; the bearing transition statistics are calibrated in radians
//	and converted at the edge.
//
// Pressure:
//
//	Central and environment pressure are in hPa. The pressure deficit
//	(environment minus central) is the storm's intensity measure: a deficit
//	near zero is a dying storm, 50+ hPa is a severe one. The deficit is
//	never negative on a valid track; a central pressure above the ambient
//	field has no physical meaning and Validate rejects it.
//
// Size:
//
//	RMax is the radius of maximum winds in km, the distance from the center
//	to the eyewall wind peak. It is the length scale of every parametric
//	wind profile, so it is kept strictly positive.
//
// Time:
//
//	Snapshots are hourly. Age is hours since genesis and duplicates the
//	timestamp arithmetic so filters can work without date math.
//
// # Identity
//
// Track IDs are deterministic "unit/sequence" strings assigned at generation
// time. Two runs with the same seed produce the same IDs for the same storms,
// which keeps logs and persisted results comparable across replays.
package domain
