package schedule

import "encoding/json"

// wireEntry is the JSON-serializable projection of an Entry: every
// exported field, since insertion sequence is reassigned on load by
// Add rather than carried over the wire.
type wireEntry struct {
	StartTime     float64       `json:"start_time"`
	IgnoreFailure bool          `json:"ignore_failure"`
	Executable    string        `json:"executable"`
	Arguments     string        `json:"arguments"`
	Data          []DataPayload `json:"data"`
	Pause         bool          `json:"pause"`
}

// Marshal serializes s in (start_time, insertion_seq) order. The
// schedule blob store (spec.md §4.6) stores the result
// base64-encoded inside its envelope.
func Marshal(s *Schedule) ([]byte, error) {
	entries := s.Entries()
	wire := make([]wireEntry, len(entries))
	for i, e := range entries {
		wire[i] = wireEntry{
			StartTime:     e.StartTime,
			IgnoreFailure: e.IgnoreFailure,
			Executable:    e.Executable,
			Arguments:     e.Arguments,
			Data:          e.Data,
			Pause:         e.Pause,
		}
	}
	return json.Marshal(wire)
}

// Unmarshal reconstructs a Schedule from Marshal's output, reassigning
// insertion sequence numbers in encoded order.
func Unmarshal(data []byte) (*Schedule, error) {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	s := New()
	for _, w := range wire {
		s.Add(&Entry{
			StartTime:     w.StartTime,
			IgnoreFailure: w.IgnoreFailure,
			Executable:    w.Executable,
			Arguments:     w.Arguments,
			Data:          w.Data,
			Pause:         w.Pause,
		})
	}
	return s, nil
}
