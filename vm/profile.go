package vm

import (
	"time"

	"github.com/google/pprof/profile"
)

// EvictionProfile accumulates one sample per eviction sweep (frames
// evicted, whether a swap write occurred) so an operator can inspect
// eviction pressure offline instead of only counting it in a test
// assertion. A domain-stack addition beyond spec.md's prose, grounded on
// github.com/google/pprof/profile, declared in the retrieved pack but
// unused there.
type EvictionProfile struct {
	samples []*profile.Sample
	started time.Time
}

// NewEvictionProfile starts an empty profile.
func NewEvictionProfile() *EvictionProfile {
	return &EvictionProfile{}
}

// Record appends one eviction event: count=1, wroteToSwap as a labeled
// value distinguishing clean discards from dirty spills.
func (p *EvictionProfile) Record(wroteToSwap bool) {
	v := int64(0)
	if wroteToSwap {
		v = 1
	}
	p.samples = append(p.samples, &profile.Sample{
		Value: []int64{1, v},
	})
}

// Build assembles the recorded samples into a pprof Profile with two
// sample types: "evictions" (count) and "swap_writes" (count).
func (p *EvictionProfile) Build() *profile.Profile {
	return &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "evictions", Unit: "count"},
			{Type: "swap_writes", Unit: "count"},
		},
		Sample:     p.samples,
		TimeNanos:  time.Now().UnixNano(),
	}
}
