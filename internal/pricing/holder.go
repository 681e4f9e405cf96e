package pricing

import (
	"sync/atomic"
	"time"
)

// Snapshot is one immutable, sanitized weight configuration as served.
type Snapshot struct {
	Weights     WeightConfig
	Fingerprint string
	Source      string
	LoadedAt    time.Time
}

// Holder shares the active configuration with concurrent readers. Replacing it
// swaps the whole snapshot; readers never observe a partial update.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder sanitizes w and makes it the active snapshot.
func NewHolder(w WeightConfig, source string) *Holder {
	h := &Holder{}
	h.Swap(w, source)
	return h
}

// Load returns the active snapshot.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Swap sanitizes w, installs it and returns the previous snapshot.
func (h *Holder) Swap(w WeightConfig, source string) *Snapshot {
	w = Sanitize(w)
	return h.current.Swap(&Snapshot{
		Weights:     w,
		Fingerprint: w.Fingerprint(),
		Source:      source,
		LoadedAt:    time.Now().UTC(),
	})
}
