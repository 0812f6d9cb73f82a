// Package fingerprint computes the content-derived identity that collapses
// semantically-identical activities recorded independently on different
// platforms into one logical entity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Source is the subset of ActivityRecord the digest is derived from, before
// canonicalization.
type Source struct {
	SportType string
	StartTime time.Time
	Distance  float64 // meters
	Duration  int64   // seconds
}

const (
	distanceBucketMeters = 100.0
	durationBucketSecs   = 10
	digestLen            = 16
)

// Canonical holds the bucketed values actually hashed, exposed so callers
// (the matcher, tests) can reason about bucket boundaries without
// recomputing them.
type Canonical struct {
	SportType     string
	StartMinute   time.Time
	DistanceMeter int64
	DurationSecs  int64
}

// Canonicalize applies §4.1's bucketing rules to a raw source record. The
// sport type must already be normalized (see internal/sporttype) before
// this is called.
func Canonicalize(s Source) Canonical {
	return Canonical{
		SportType:     s.SportType,
		StartMinute:   s.StartTime.UTC().Truncate(time.Minute),
		DistanceMeter: floorBucket(s.Distance, distanceBucketMeters),
		DurationSecs:  floorBucket(float64(s.Duration), durationBucketSecs),
	}
}

// floorBucket truncates rather than rounds so that two values straddling a
// bucket boundary (5,049 m and 5,051 m at a 100 m bucket) still collapse to
// the same bucket whenever they're both below the next multiple — rounding
// half up would split 5,051 into the bucket above 5,049's (§8 "Boundaries").
func floorBucket(v, bucket float64) int64 {
	return int64(v / bucket)
}

// Compute returns the 16-hex-character digest for a source record. It is
// pure: identical canonicalized inputs always yield the same digest.
func Compute(s Source) string {
	c := Canonicalize(s)
	material := fmt.Sprintf("%s|%s|%d|%d",
		c.SportType,
		c.StartMinute.Format(time.RFC3339),
		c.DistanceMeter,
		c.DurationSecs,
	)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:digestLen]
}
