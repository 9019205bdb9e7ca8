package domain

import (
	"fmt"
	"time"
)

// StormState is one hourly snapshot of a synthetic tropical cyclone.
type StormState struct {
	Timestamp   time.Time
	Age         float64 // hours since genesis
	Lon         float64 // degrees east
	Lat         float64 // degrees north
	Speed       float64 // forward speed, km/h
	Bearing     float64 // compass degrees clockwise from north
	Pressure    float64 // central pressure, hPa
	EnvPressure float64 // environment pressure, hPa
	RMax        float64 // radius of maximum winds, km
}

// Deficit returns the central pressure deficit (environment minus central) in hPa.
func (s StormState) Deficit() float64 {
	return s.EnvPressure - s.Pressure
}

// Track is the immutable life history of one synthetic storm: an ordered
// sequence of snapshots plus the identity of the simulation that produced it.
type Track struct {
	ID     string
	Unit   int // simulation unit index
	Year   int // simulation-year index within the unit
	Points []StormState
}

// TrackID builds the deterministic identifier for the seq-th storm of a unit.
func TrackID(unit, seq int) string {
	return fmt.Sprintf("%d/%d", unit, seq)
}

// Duration returns the track lifetime in hours, zero for an empty track.
func (t Track) Duration() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Age
}

// MinPressure returns the lowest central pressure reached over the track's
// lifetime, or zero for an empty track.
func (t Track) MinPressure() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	min := t.Points[0].Pressure
	for _, p := range t.Points[1:] {
		if p.Pressure < min {
			min = p.Pressure
		}
	}
	return min
}

// Validate checks the track invariants: timestamps strictly increase and the
// central pressure never exceeds the environment pressure.
func (t Track) Validate() error {
	for i, p := range t.Points {
		if i > 0 && !p.Timestamp.After(t.Points[i-1].Timestamp) {
			return fmt.Errorf("track %s: timestamp at point %d does not increase", t.ID, i)
		}
		if p.Pressure > p.EnvPressure {
			return fmt.Errorf("track %s: central pressure %.1f hPa exceeds environment %.1f hPa at point %d",
				t.ID, p.Pressure, p.EnvPressure, i)
		}
		if p.RMax <= 0 {
			return fmt.Errorf("track %s: non-positive radius of maximum winds at point %d", t.ID, i)
		}
	}
	return nil
}
