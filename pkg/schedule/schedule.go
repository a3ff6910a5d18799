package schedule

import "sort"

// Schedule is a VM's ordered sequence of Entries, kept sorted by
// (StartTime, insertion sequence) — spec.md §5's ordering guarantee:
// "within one VM's schedule: strict ascending (start_time,
// insertion_seq). Ties broken by insertion order." The original's
// ScheduleEvent.__lt__ always returns True, making tie order arbitrary
// (heap-dependent); insertion order is made observable and
// stable here instead, via this explicit tie-break.
type Schedule struct {
	entries []*Entry
	nextSeq int
}

// New returns an empty Schedule.
func New() *Schedule {
	return &Schedule{}
}

// Add inserts e, stamping it with the next insertion sequence number,
// and keeps the schedule sorted.
func (s *Schedule) Add(e *Entry) {
	s.nextSeq++
	e.seq = s.nextSeq
	s.entries = append(s.entries, e)
	sort.SliceStable(s.entries, func(i, j int) bool { return less(s.entries[i], s.entries[j]) })
}

func less(a, b *Entry) bool {
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	return a.seq < b.seq
}

// Entries returns the schedule in canonical, monotonically
// non-decreasing start-time order.
func (s *Schedule) Entries() []*Entry {
	return s.entries
}

// Negative returns the configuration-phase entries (start_time < 0),
// in order.
func (s *Schedule) Negative() []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.StartTime < 0 {
			out = append(out, e)
		}
	}
	return out
}

// Positive returns the experiment-phase entries (start_time > 0), in
// order.
func (s *Schedule) Positive() []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.StartTime > 0 {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of entries.
func (s *Schedule) Len() int { return len(s.entries) }
