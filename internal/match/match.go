// Package match scores whether two platform-local activity records could be
// the same real-world event. It is distinct from internal/fingerprint: the
// fingerprint collapses near-identical records at write time, the matcher
// answers the same question at query time when fingerprints disagree (e.g.
// one platform reports distance 5% higher than another).
package match

import (
	"math"
	"time"

	"github.com/Dunky-Z/FitSync/internal/sporttype"
)

// Weights per §4.2. Exposed so SyncConfig-backed tunables can override them.
const (
	WeightStartTime = 0.40
	WeightSportType = 0.20
	WeightDistance  = 0.20
	WeightDuration  = 0.20
)

// Default thresholds per §4.2.
const (
	DefaultMatchThreshold     = 0.80
	DefaultAmbiguousThreshold = 0.60
)

// Verdict is the matcher's classification of a score against the
// configured thresholds.
type Verdict string

const (
	Match     Verdict = "match"
	Ambiguous Verdict = "ambiguous"
	NoMatch   Verdict = "no_match"
)

// Record is the subset of an activity the matcher compares. Unlike
// fingerprint.Source, SportType here is the platform's raw vocabulary —
// Score normalizes it internally.
type Record struct {
	SportType string
	StartTime time.Time
	Distance  float64 // meters
	Duration  int64   // seconds
}

// Thresholds bundles the tunables so a single SyncConfig-backed value can
// be threaded through instead of two positional floats.
type Thresholds struct {
	Match     float64
	Ambiguous float64
}

// DefaultThresholds returns §4.2's stated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Match: DefaultMatchThreshold, Ambiguous: DefaultAmbiguousThreshold}
}

// Score computes the weighted equivalence score in [0.0, 1.0] for two
// records per §4.2.
func Score(a, b Record) float64 {
	var score float64

	if withinStartTime(a.StartTime, b.StartTime) {
		score += WeightStartTime
	}
	if sporttype.Equivalent(a.SportType, b.SportType) {
		score += WeightSportType
	}
	if withinDistance(a.Distance, b.Distance) {
		score += WeightDistance
	}
	if withinDuration(a.Duration, b.Duration) {
		score += WeightDuration
	}

	// Rounded to two decimals so a sum of weights compares exactly against
	// the thresholds (0.4+0.2 is 0.6000000000000001 in float64).
	return math.Round(score*100) / 100
}

// withinStartTime reports whether the two start times are within 5 minutes
// of each other. The boundary is strict half-open: a delta of exactly 5
// minutes does not count (§8 "Boundaries").
func withinStartTime(a, b time.Time) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta < 5*time.Minute
}

// withinDistance reports whether the two distances are within
// max(5%, 100m) of each other.
func withinDistance(a, b float64) bool {
	delta := math.Abs(a - b)
	tolerance := math.Max(0.05*math.Max(a, b), 100)
	return delta <= tolerance
}

// withinDuration reports whether the two durations are within
// max(10%, 30s) of each other.
func withinDuration(a, b int64) bool {
	delta := math.Abs(float64(a - b))
	tolerance := math.Max(0.10*math.Max(float64(a), float64(b)), 30)
	return delta <= tolerance
}

// Classify applies thresholds to a score to produce the matcher's verdict.
// The matcher never writes to the catalog; it is the caller's
// responsibility to act on the verdict.
func Classify(score float64, t Thresholds) Verdict {
	switch {
	case score > t.Match:
		return Match
	case score >= t.Ambiguous:
		return Ambiguous
	default:
		return NoMatch
	}
}
