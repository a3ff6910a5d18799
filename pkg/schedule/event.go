package schedule

// EventType enumerates the event-loop kinds the Schedule Executor
// reacts to (spec.md §4.3 "Event loop"). Grounded on
// original_source/src/firewheel/vm_resource_manager/schedule_event.py's
// ScheduleEventType.
type EventType int

const (
	EventExperimentStartTimeSet EventType = iota
	EventEmptySchedule
	EventNewItem
	EventTransfer
	EventExit
	EventPause
	EventResume
	EventUnknown
)

func (t EventType) String() string {
	switch t {
	case EventExperimentStartTimeSet:
		return "EXPERIMENT_START_TIME_SET"
	case EventEmptySchedule:
		return "EMPTY_SCHEDULE"
	case EventNewItem:
		return "NEW_ITEM"
	case EventTransfer:
		return "TRANSFER"
	case EventExit:
		return "EXIT"
	case EventPause:
		return "PAUSE"
	case EventResume:
		return "RESUME"
	default:
		return "UNKNOWN"
	}
}

// Event is one item in the executor's priority queue: a kind, a data
// payload, and the (StartTime, seq) ordering key the queue sorts on.
type Event struct {
	Type      EventType
	Data      interface{}
	StartTime float64
	Seq       int
}

// Queue is a container/heap.Interface priority queue of Events ordered
// by ascending (StartTime, Seq) — the explicit scheduler the "coroutine
// event loop → explicit scheduler" DESIGN NOTE calls for.
type Queue []*Event

func (q Queue) Len() int { return len(q) }

func (q Queue) Less(i, j int) bool {
	if q[i].StartTime != q[j].StartTime {
		return q[i].StartTime < q[j].StartTime
	}
	return q[i].Seq < q[j].Seq
}

func (q Queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *Queue) Push(x interface{}) {
	*q = append(*q, x.(*Event))
}

func (q *Queue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
