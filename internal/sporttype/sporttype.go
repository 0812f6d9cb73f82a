// Package sporttype normalizes each platform's free-text sport-type
// vocabulary to the small closed canonical set the fingerprint and matcher
// operate on. The synonym table is data, not code (see sporttypes.json), so
// new platform vocabulary can be added without a code change; the file is
// embedded at build time, so an edit takes effect on the next build.
package sporttype

import (
	_ "embed"
	"encoding/json"
	"sync"

	"golang.org/x/text/cases"
)

// Other is the fallback canonical type for unrecognized input.
const Other = "other"

//go:embed sporttypes.json
var rawTable []byte

var (
	once       sync.Once
	synonymsOf map[string]string // lowercased synonym -> canonical
	fold       = cases.Fold()
)

func load() {
	var groups map[string][]string
	if err := json.Unmarshal(rawTable, &groups); err != nil {
		// The embedded table is built into the binary; a parse failure here
		// is a packaging bug, not a runtime condition callers can recover
		// from.
		panic("sporttype: invalid embedded table: " + err.Error())
	}
	synonymsOf = make(map[string]string)
	for canonical, synonyms := range groups {
		synonymsOf[fold.String(canonical)] = canonical
		for _, s := range synonyms {
			synonymsOf[fold.String(s)] = canonical
		}
	}
}

// Normalize maps a platform-supplied sport type string to the canonical
// vocabulary (ride, run, swim, walk, hike, virtual_ride, other). Comparison
// is Unicode case-fold, not a plain ASCII lowercase, so platform strings
// with non-ASCII casing still resolve.
func Normalize(platformSportType string) string {
	once.Do(load)
	if canonical, ok := synonymsOf[fold.String(platformSportType)]; ok {
		return canonical
	}
	return Other
}

// Equivalent reports whether two platform-supplied sport type strings
// normalize to the same canonical type, per §4.2's "sport type equivalent
// under the normalization table" matcher term.
func Equivalent(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
