// Package executor implements the per-VM Schedule Executor (spec.md
// §4.3 "Schedule Executor"): the agent-side state machine and event
// loop that drives one VM's schedule against a guest-agent Driver.
// Grounded on cuemby-warren/pkg/worker/worker.go's Config/constructor/
// mutex-guarded-state idiom, generalized from "one worker attached to
// one manager over gRPC" to "one executor attached to one VM's guest
// agent, reporting to a Coordinator".
package executor

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/guestagent"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
	"github.com/sandialabs/firewheel-core/pkg/retry"
	"github.com/sandialabs/firewheel-core/pkg/schedule"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

// Coordinator is the narrow surface the executor needs from the
// Coordination Service (spec.md §4.4): reporting its own lifecycle
// state and clock, and blocking until the cluster-wide start time is
// published.
type Coordinator interface {
	ReportState(ctx context.Context, vmName string, state vmstate.State) error
	ReportTime(ctx context.Context, vmName string, currentTime float64) error
	WaitForStartTime(ctx context.Context) (float64, error)
}

// ResourceFetcher resolves a schedule entry's object-store file
// reference (an Entry.Data item with a Filename) into its bytes.
type ResourceFetcher interface {
	FetchVMResource(ctx context.Context, name string) ([]byte, error)
}

// TransferSink receives bytes pulled from a TRANSFER data item. destDir
// is the `<destination>/<vm_name>/` layout spec.md §4.3 describes; an
// empty Destination on the DataPayload means the executor's configured
// default root.
type TransferSink interface {
	WriteTransfer(ctx context.Context, vmName, destDir, inVMPath string, data []byte) error
}

// Config configures one Executor.
type Config struct {
	VMName             string
	Driver             guestagent.Driver
	Coordinator        Coordinator
	Fetcher            ResourceFetcher
	Sink               TransferSink
	Retry              config.Retry
	DefaultTransferDir string
	// RebootMarkerPath is checked after every program exits; its
	// presence is treated the same as ExitCodeReboot. Whichever signal
	// fires first wins and the other is absorbed (spec.md's Open
	// Question on reboot-detection idempotence).
	RebootMarkerPath string
	Log              zerolog.Logger
}

// Executor drives one VM's Schedule against its guest agent.
type Executor struct {
	vmName   string
	driver   guestagent.Driver
	coord    Coordinator
	fetcher  ResourceFetcher
	sink     TransferSink
	retryCfg config.Retry

	transferDir string
	markerPath  string
	log         zerolog.Logger

	mu         sync.Mutex
	state      vmstate.State
	resumeCh   chan struct{}
	transcript []string
}

// New constructs an Executor for one VM.
func New(cfg Config) *Executor {
	dir := cfg.DefaultTransferDir
	if dir == "" {
		dir = "transfers"
	}
	return &Executor{
		vmName:      cfg.VMName,
		driver:      cfg.Driver,
		coord:       cfg.Coordinator,
		fetcher:     cfg.Fetcher,
		sink:        cfg.Sink,
		retryCfg:    cfg.Retry,
		transferDir: dir,
		markerPath:  cfg.RebootMarkerPath,
		log:         cfg.Log,
		state:       vmstate.Uninitialized,
		resumeCh:    make(chan struct{}),
	}
}

// State returns the executor's current lifecycle state.
func (e *Executor) State() vmstate.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Transcript returns the accumulated stdout/stderr lines recorded for
// executed program entries, in execution order.
func (e *Executor) Transcript() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.transcript))
	copy(out, e.transcript)
	return out
}

// Resume unblocks a pending infinite pause (EventResume, spec.md
// §4.3). It is a no-op if the executor is not currently paused.
func (e *Executor) Resume() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

func (e *Executor) setState(s vmstate.State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run drives sched to completion: attach to the guest agent, execute
// the configuration phase (start_time < 0) back to back, report
// Configured and wait for the cluster start time, then execute the
// experiment phase (start_time > 0) against the synchronized clock.
func (e *Executor) Run(ctx context.Context, sched *schedule.Schedule) error {
	if sched.Len() == 0 {
		e.log.Info().Str("vm", e.vmName).Str("event", schedule.EventEmptySchedule.String()).Msg("schedule has no entries")
	}

	e.setState(vmstate.Configuring)
	if err := e.attach(ctx); err != nil {
		e.setState(vmstate.Exited)
		return fmt.Errorf("executor %s: attach: %w", e.vmName, err)
	}

	if err := e.runPhase(ctx, sched.Negative(), 0); err != nil {
		e.setState(vmstate.Exited)
		return fmt.Errorf("executor %s: configuration phase: %w", e.vmName, err)
	}

	e.setState(vmstate.Configured)
	if e.coord != nil {
		if err := e.coord.ReportState(ctx, e.vmName, vmstate.Configured); err != nil {
			e.log.Warn().Err(err).Str("vm", e.vmName).Msg("failed to report configured state")
		}
	}

	startTime := 0.0
	if e.coord != nil {
		var err error
		startTime, err = e.coord.WaitForStartTime(ctx)
		if err != nil {
			e.setState(vmstate.Exited)
			return fmt.Errorf("executor %s: waiting for start time: %w", e.vmName, err)
		}
		e.log.Info().Str("vm", e.vmName).Str("event", schedule.EventExperimentStartTimeSet.String()).
			Float64("start_time", startTime).Msg("experiment start time published")
	}

	e.setState(vmstate.Running)
	if err := e.runPhase(ctx, sched.Positive(), startTime); err != nil {
		e.setState(vmstate.Exited)
		return fmt.Errorf("executor %s: experiment phase: %w", e.vmName, err)
	}

	e.setState(vmstate.Exited)
	e.log.Info().Str("vm", e.vmName).Str("event", schedule.EventExit.String()).Msg("schedule complete")
	return nil
}

func (e *Executor) attach(ctx context.Context) error {
	return retry.Do(ctx, e.retryCfg, nil, func() error {
		return e.driver.Ping(ctx)
	})
}

// eventQueue builds the container/heap priority queue spec.md §4.3's
// event loop is keyed on: one Event per entry, ordered by (StartTime,
// Seq). entries must already be in canonical order (as Negative()/
// Positive() return them) so the positional index doubles as the
// insertion-sequence tie-break heap.Init needs.
func eventQueue(entries []*schedule.Entry) schedule.Queue {
	q := make(schedule.Queue, len(entries))
	for i, entry := range entries {
		t := schedule.EventNewItem
		if entry.Pause {
			t = schedule.EventPause
		}
		q[i] = &schedule.Event{Type: t, Data: entry, StartTime: entry.StartTime, Seq: i}
	}
	heap.Init(&q)
	return q
}

// runPhase drains a schedule.Queue built from entries in (StartTime,
// Seq) order. barrierStart is the synchronized-clock origin for
// positive-time entries (ignored for the configuration phase, which
// runs unthrottled).
func (e *Executor) runPhase(ctx context.Context, entries []*schedule.Entry, barrierStart float64) error {
	q := eventQueue(entries)
	for q.Len() > 0 {
		ev := heap.Pop(&q).(*schedule.Event)
		entry := ev.Data.(*schedule.Entry)

		if barrierStart != 0 {
			if err := e.waitUntil(ctx, barrierStart, entry.StartTime); err != nil {
				return err
			}
		}

		rebooted, err := e.executeEvent(ctx, ev, entry)
		if err != nil {
			if entry.IgnoreFailure {
				e.log.Warn().Err(err).Str("vm", e.vmName).Msg("entry failed, ignoring per ignore_failure")
				continue
			}
			return err
		}
		if rebooted {
			e.setState(vmstate.Rebooting)
			if err := e.reconnect(ctx); err != nil {
				return fmt.Errorf("reconnect after reboot: %w", err)
			}
			if barrierStart != 0 {
				e.setState(vmstate.Running)
			} else {
				e.setState(vmstate.Configuring)
			}
		}
	}
	return nil
}

// waitUntil blocks until wall-clock reaches barrierStart+targetOffset,
// per spec.md §4.3's synchronized clock (wall_clock - start_time).
func (e *Executor) waitUntil(ctx context.Context, barrierStart, targetOffset float64) error {
	remaining := barrierStart + targetOffset - nowFn()
	if remaining <= 0 {
		return nil
	}
	return retry.Sleep(ctx, durationFromSeconds(remaining))
}

func (e *Executor) reconnect(ctx context.Context) error {
	return e.attach(ctx)
}

// executeEvent dispatches a popped Event to the handler its Type names.
func (e *Executor) executeEvent(ctx context.Context, ev *schedule.Event, entry *schedule.Entry) (rebooted bool, err error) {
	switch ev.Type {
	case schedule.EventPause:
		return false, e.handlePause(ctx, entry)
	case schedule.EventNewItem:
		return e.launchProgram(ctx, entry)
	default:
		return false, fmt.Errorf("unexpected event type %s for entry %s", ev.Type, entry)
	}
}

func (e *Executor) handlePause(ctx context.Context, entry *schedule.Entry) error {
	if entry.IsBreak() {
		e.log.Info().Str("vm", e.vmName).Msg("entering infinite pause, awaiting resume")
		select {
		case <-e.resumeCh:
			e.log.Info().Str("vm", e.vmName).Str("event", schedule.EventResume.String()).Msg("pause resumed")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, d := range entry.Data {
		if d.PauseDuration > 0 && !math.IsInf(d.PauseDuration, 1) {
			return retry.Sleep(ctx, durationFromSeconds(d.PauseDuration))
		}
	}
	return nil
}

// launchProgram pushes any file-drop data, starts any transfer
// pollers, dispatches the entry's executable, and waits for it to
// exit. It reports rebooted=true when the reboot signal (exit code or
// marker file) fires; per the idempotence rule, only the first signal
// observed counts.
func (e *Executor) launchProgram(ctx context.Context, entry *schedule.Entry) (rebooted bool, err error) {
	for _, d := range entry.Data {
		if d.Interval > 0 {
			e.log.Info().Str("vm", e.vmName).Str("event", schedule.EventTransfer.String()).
				Str("path", d.Location).Msg("starting transfer poller")
			go e.pollTransfer(ctx, d)
			continue
		}
		if d.Location == "" {
			continue
		}
		data, err := e.resolvePayload(ctx, d)
		if err != nil {
			return false, fmt.Errorf("resolving payload for %s: %w", d.Location, err)
		}
		mode := uint32(0o644)
		if d.Executable {
			mode = 0o755
		}
		if err := e.driver.WriteFile(ctx, d.Location, data, toFileMode(mode)); err != nil {
			return false, fmt.Errorf("writing %s: %w", d.Location, err)
		}
	}

	if entry.Executable == "" {
		return false, nil
	}

	handle, err := e.driver.Exec(ctx, entry.Executable, splitArgs(entry.Arguments))
	if err != nil {
		return false, fmt.Errorf("exec %s: %w", entry.Executable, err)
	}

	var status guestagent.ExecStatus
	for {
		status, err = e.driver.ExecStatus(ctx, handle)
		if err != nil {
			return false, fmt.Errorf("exec_status %s: %w", entry.Executable, err)
		}
		if !status.Running {
			break
		}
		if err := retry.Sleep(ctx, pollInterval); err != nil {
			return false, err
		}
	}

	e.recordTranscript(entry.Executable, status)
	metrics.ScheduleEntriesExecuted.WithLabelValues(e.vmName, "program").Inc()

	if status.ExitCode == guestagent.ExitCodeReboot {
		metrics.RebootsTotal.WithLabelValues(e.vmName, "exit_code").Inc()
		return true, nil
	}
	if rebootedByMarker, err := e.checkRebootMarker(ctx); err != nil {
		return false, err
	} else if rebootedByMarker {
		metrics.RebootsTotal.WithLabelValues(e.vmName, "marker_file").Inc()
		return true, nil
	}

	if status.ExitCode != guestagent.ExitCodeSuccess && status.ExitCode != guestagent.ExitCodeAlreadyInstalled {
		return false, fmt.Errorf("%s exited %d: %s", entry.Executable, status.ExitCode, status.Stderr)
	}
	return false, nil
}

func (e *Executor) checkRebootMarker(ctx context.Context) (bool, error) {
	if e.markerPath == "" {
		return false, nil
	}
	stat, err := e.driver.Stat(ctx, e.markerPath)
	if err != nil {
		return false, nil //nolint: the marker is advisory; a Stat failure is not fatal
	}
	return stat.Exists, nil
}

func (e *Executor) resolvePayload(ctx context.Context, d schedule.DataPayload) ([]byte, error) {
	if d.Filename != "" {
		if e.fetcher == nil {
			return nil, fmt.Errorf("no resource fetcher configured for %s", d.Filename)
		}
		return e.fetcher.FetchVMResource(ctx, d.Filename)
	}
	return []byte(d.Content), nil
}

func (e *Executor) pollTransfer(ctx context.Context, d schedule.DataPayload) {
	destDir := d.Destination
	if destDir == "" {
		destDir = e.transferDir
	}
	var lastSize int64 = -1
	for {
		if err := retry.Sleep(ctx, durationFromSeconds(float64(d.Interval))); err != nil {
			return
		}
		stat, err := e.driver.Stat(ctx, d.Location)
		if err != nil {
			e.log.Warn().Err(err).Str("vm", e.vmName).Str("path", d.Location).Msg("transfer stat failed")
			continue
		}
		if !stat.Exists || stat.Size == lastSize {
			continue
		}
		lastSize = stat.Size
		data, err := e.driver.ReadFile(ctx, d.Location)
		if err != nil {
			e.log.Warn().Err(err).Str("vm", e.vmName).Str("path", d.Location).Msg("transfer read failed")
			continue
		}
		if e.sink != nil {
			if err := e.sink.WriteTransfer(ctx, e.vmName, destDir, d.Location, data); err != nil {
				e.log.Warn().Err(err).Str("vm", e.vmName).Msg("transfer sink write failed")
			}
		}
	}
}

func (e *Executor) recordTranscript(executable string, status guestagent.ExecStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcript = append(e.transcript, fmt.Sprintf(
		"%s exit=%d\nstdout:\n%s\nstderr:\n%s",
		executable, status.ExitCode, string(status.Stdout), string(status.Stderr),
	))
}

func splitArgs(arguments string) []string {
	if arguments == "" {
		return nil
	}
	return strings.Fields(arguments)
}
