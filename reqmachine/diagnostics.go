package reqmachine

import (
	"io"
	"sync/atomic"
)

// Stats are counters shared by every machine built with the same Diagnostics
type Stats struct {
	NumRequirementMachines  atomic.Int64
	NumCompletionSteps      atomic.Int64
	NumUnifiedConcreteTerms atomic.Int64
}

// Diagnostics is the optional context machines report into. A nil *Diagnostics,
// or one with nil fields, discards everything.
type Diagnostics struct {
	Stats *Stats
	// Out receives the dump of each completed machine when dumping is enabled
	Out io.Writer
}

func (d *Diagnostics) stats() *Stats {
	if d == nil || d.Stats == nil {
		return &Stats{}
	}
	return d.Stats
}

func (d *Diagnostics) out() io.Writer {
	if d == nil || d.Out == nil {
		return io.Discard
	}
	return d.Out
}
