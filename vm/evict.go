package vm

import (
	"github.com/samber/lo"

	"wafer/defs"
	"wafer/mem"
)

// Evict runs one clock sweep, selecting and reclaiming a victim frame,
// per spec.md §4.F. forProcess scopes the sweep to frames owned by that
// process unless s.Config.GlobalScan lifts the restriction (see
// DESIGN.md Open Question 1 / spec.md §9's "strict improvement" note).
// Concurrent callers collapse onto a single sweep via singleflight,
// keyed by a constant — every caller observing "pool exhausted" wants
// exactly one frame freed, not one each (grounded on golang.org/x/sync,
// declared but unused in biscuit's own go.mod).
func (s *Subsystem) Evict(forProcess defs.PID) (mem.Frame, bool) {
	v, err, _ := s.group.Do("evict", func() (any, error) {
		f, ok := s.evictLocked(forProcess)
		return f, boolErr(ok)
	})
	if err != nil {
		return 0, false
	}
	return v.(mem.Frame), true
}

// sentinel used only to signal "no victim" through singleflight's error
// return without allocating a real error type for a non-error condition.
type noVictim struct{}

func (noVictim) Error() string { return "vm: no eviction victim" }

func boolErr(ok bool) error {
	if ok {
		return nil
	}
	return noVictim{}
}

// evictLocked performs the clock sweep under the subsystem lock. Frames
// not owned by forProcess are skipped (still advancing the cursor) when
// Config.GlobalScan is false.
func (s *Subsystem) evictLocked(forProcess defs.PID) (mem.Frame, bool) {
	s.Lock()
	n := s.Frames.Len()
	if n == 0 {
		s.Unlock()
		return 0, false
	}
	if s.cursor >= n {
		s.cursor = 0
	}

	all := make([]FrameEntry, n)
	for i := range all {
		all[i] = s.Frames.At(i)
	}
	eligible := lo.Filter(all, func(e FrameEntry, _ int) bool {
		return s.Config.GlobalScan || e.Owner.Owner == forProcess
	})
	if len(eligible) == 0 {
		s.Unlock()
		return 0, false
	}

	var victimIdx int
	found := false
	for pass := 0; pass < 2 && !found; pass++ {
		for i := 0; i < n; i++ {
			idx := s.cursor % n
			e := s.Frames.At(idx)
			s.cursor++
			if !s.Config.GlobalScan && e.Owner.Owner != forProcess {
				continue
			}
			if e.Owner.Dir.Accessed(e.VPage) {
				e.Owner.Dir.SetAccessed(e.VPage, false)
				continue
			}
			victimIdx = idx
			found = true
			break
		}
	}
	if !found {
		// Every eligible frame was accessed on the first pass and the
		// second pass's clearing made them all eligible again; per
		// spec.md §4.F's tie-break, the first unaccessed frame on wrap
		// wins, so take whichever eligible frame the cursor now sits on.
		for i := 0; i < n; i++ {
			idx := (s.cursor + i) % n
			e := s.Frames.At(idx)
			if s.Config.GlobalScan || e.Owner.Owner == forProcess {
				victimIdx = idx
				found = true
				s.cursor = idx + 1
				break
			}
		}
	}
	victim := s.Frames.At(victimIdx)
	s.Unlock()

	dirty := victim.Owner.Dir.Dirty(victim.VPage)
	if dirty {
		slotIdx, ok := s.Swap.Reserve(victim.VPage, victim.Owner.Owner, victim.Writable)
		if !ok {
			panic("vm: out of swap slots")
		}
		if err := s.Swap.Write(slotIdx, s.Pool.Bytes(victim.Frame)); err != nil {
			panic("vm: swap write failed: " + err.Error())
		}
	}
	if s.Prof != nil {
		s.Prof.Record(dirty)
	}

	s.Lock()
	victim.Owner.Dir.Clear(victim.VPage)
	s.Frames.RemoveFrame(victim.Frame)
	s.Unlock()

	s.Pool.Free(victim.Frame)
	return victim.Frame, true
}
