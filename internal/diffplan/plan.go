// Package diffplan sizes judge calls. Small diffs travel inline in the
// prompt; large ones are staged as a file artifact the judge dereferences.
// Timeouts scale with diff size so large diffs are not killed by a fixed
// deadline.
package diffplan

import "time"

// InlineLimit is the diff size in bytes above which the diff is staged as an
// artifact instead of being embedded in the prompt.
const InlineLimit = 100_000

const (
	baseTimeout  = 60 * time.Second
	perKBTimeout = 2 * time.Second
	maxTimeout   = 600 * time.Second
)

// Mode says how the diff reaches the judge.
type Mode int

const (
	ModeInline Mode = iota
	ModeOutOfBand
)

// String returns the label the judge echoes back in its diff_source field.
func (m Mode) String() string {
	if m == ModeOutOfBand {
		return "file"
	}
	return "direct"
}

// Plan is the transport decision for one judge call.
type Plan struct {
	Mode    Mode
	Timeout time.Duration
}

// For sizes the call for a diff of byteLength bytes. The timeout grows two
// seconds per started kilobyte on top of a fixed base, capped so a single
// pathological diff cannot stall a batch for more than ten minutes.
func For(byteLength int) Plan {
	kb := (byteLength + 999) / 1000
	timeout := baseTimeout + time.Duration(kb)*perKBTimeout
	if timeout > maxTimeout {
		timeout = maxTimeout
	}

	mode := ModeInline
	if byteLength >= InlineLimit {
		mode = ModeOutOfBand
	}
	return Plan{Mode: mode, Timeout: timeout}
}
