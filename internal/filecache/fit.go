package filecache

import (
	"bytes"
	"fmt"

	"github.com/muktihari/fit/decoder"
)

// validateFIT decodes just enough of a downloaded FIT file to confirm it
// has a readable header and at least one message, per §4.8's "verify
// before caching" invariant. A platform occasionally returns a
// zero-length or truncated body for an activity it cannot actually
// export (distinct from the manual-activity landmark check in the
// strava adapter, which catches an HTML error page rather than a
// malformed binary); caching that body would poison ensure_file for
// every later caller.
func validateFIT(data []byte) error {
	dec := decoder.New(bytes.NewReader(data))
	if !dec.Next() {
		return fmt.Errorf("fit file has no messages")
	}
	if _, err := dec.Decode(); err != nil {
		return fmt.Errorf("decoding fit header: %w", err)
	}
	return nil
}
