package trackgen

import "github.com/couchcryptid/cyclone-hazard/internal/domain"

// DropReason classifies why a post-filter removed a synthesized track. The
// values double as metric label values.
type DropReason string

const (
	// DropEmpty marks tracks with no points at all.
	DropEmpty DropReason = "empty"

	// DropDiedEarly marks tracks that dissipated before the spin-up window.
	DropDiedEarly DropReason = "died_early"

	// DropFilled marks tracks whose central pressure reached the environment
	// pressure at some point.
	DropFilled DropReason = "filled"

	// DropLeftInner marks tracks that left the configured inner domain.
	DropLeftInner DropReason = "left_inner_domain"
)

// filter applies the drop rules in order and returns the first matching
// reason. Tracks that pass satisfy every Track invariant: positive deficit
// everywhere and a lifetime of at least the spin-up window.
func (g *Generator) filter(t domain.Track) (DropReason, bool) {
	if len(t.Points) == 0 {
		return DropEmpty, true
	}
	if t.Duration() < spinUpHours {
		return DropDiedEarly, true
	}
	for _, p := range t.Points {
		if p.Pressure >= p.EnvPressure {
			return DropFilled, true
		}
	}
	if g.params.Inner != nil {
		for _, p := range t.Points {
			if !g.params.Inner.Contains(p.Lon, p.Lat) {
				return DropLeftInner, true
			}
		}
	}
	return "", false
}
