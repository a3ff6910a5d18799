// Package schedule implements the VM Schedule data model (spec.md §3
// "VM Schedule", §4.3). Grounded on
// original_source/src/firewheel/vm_resource_manager/schedule_entry.py
// (ScheduleEntry's set_executable/append_arguments/add_content/add_file/
// add_file_transfer/add_pause) and schedule_event.py (ScheduleEventType,
// ScheduleEvent).
package schedule

import (
	"errors"
	"fmt"
	"math"
)

// DataPayload is one file drop, file pull, transfer, or pause
// descriptor attached to an Entry. Which fields are meaningful depends
// on which Add* method produced it (the original encodes the same
// polymorphism as a dict with a varying key set).
type DataPayload struct {
	Location      string
	Content       string
	Filename      string
	Executable    bool
	Interval      int
	Destination   string
	PauseDuration float64
}

// Entry is one timed action against a VM (spec.md §3 "VM Schedule").
type Entry struct {
	StartTime     float64
	IgnoreFailure bool
	Executable    string
	Arguments     string
	Data          []DataPayload
	Pause         bool

	seq int
}

// NewEntry constructs an Entry scheduled at startTime. A start time of
// exactly zero is invalid (spec.md's VM Schedule has no time-zero
// entries; negative is configuration-phase, positive is
// experiment-phase).
func NewEntry(startTime float64, ignoreFailure bool) (*Entry, error) {
	if startTime == 0 {
		return nil, errors.New("vm resources cannot start at time zero")
	}
	return &Entry{StartTime: startTime, IgnoreFailure: ignoreFailure}, nil
}

// SetExecutable names the in-VM program to run, optionally appending
// arguments.
func (e *Entry) SetExecutable(path string, arguments ...string) {
	e.Executable = path
	if len(arguments) > 0 {
		e.AppendArguments(arguments...)
	}
}

// AppendArguments appends space-joined command-line arguments.
func (e *Entry) AppendArguments(arguments ...string) {
	for _, arg := range arguments {
		if e.Arguments != "" {
			e.Arguments += " "
		}
		e.Arguments += arg
	}
}

// AddContent attaches literal content to be written at location inside
// the VM.
func (e *Entry) AddContent(location, content string, executable bool) {
	e.Data = append(e.Data, DataPayload{Location: location, Content: content, Executable: executable})
}

// AddFile attaches an object-store file reference to be written at
// location inside the VM.
func (e *Entry) AddFile(location, filename string, executable bool) {
	e.Data = append(e.Data, DataPayload{Location: location, Filename: filename, Executable: executable})
}

// AddFileTransfer marks location inside the VM to be polled and pulled
// out to destination (empty means the executor's default
// `<root>/transfers/`) every interval seconds.
func (e *Entry) AddFileTransfer(location string, interval int, destination string) {
	e.Data = append(e.Data, DataPayload{Location: location, Interval: interval, Destination: destination})
}

// AddPause marks this entry as a pause of duration seconds, or an
// infinite break when duration is math.Inf(1). Per spec.md §4.3 ("pause
// entries are inserted at the scheduled time plus the smallest
// representable positive increment"), this nudges StartTime forward by
// one ULP so a pause always strictly follows any entry sharing its
// nominal start time.
func (e *Entry) AddPause(duration float64) error {
	if duration < 0 {
		return fmt.Errorf("pause duration must be positive, got %v", duration)
	}
	e.StartTime = math.Nextafter(e.StartTime, math.Inf(1))
	e.Pause = true
	e.Data = append(e.Data, DataPayload{PauseDuration: duration})
	return nil
}

// IsBreak reports whether this pause entry is an infinite break
// requiring an external RESUME.
func (e *Entry) IsBreak() bool {
	if !e.Pause {
		return false
	}
	for _, d := range e.Data {
		if d.PauseDuration != 0 && math.IsInf(d.PauseDuration, 1) {
			return true
		}
	}
	return false
}

func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry(start_time=%v, executable=%s, arguments=%q, data=%+v)",
		e.StartTime, e.Executable, e.Arguments, e.Data,
	)
}
