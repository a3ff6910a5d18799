package guestagent

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Fake is an in-memory Driver for executor tests: a filesystem map and
// a set of programmable process outcomes, with no real VM behind it.
type Fake struct {
	mu sync.Mutex

	files map[string]fakeFile
	procs map[ExecHandle]ExecStatus

	// Outcomes, keyed by executable path, describes how Exec should
	// resolve for a given program; missing entries default to an
	// immediate success with no output.
	Outcomes map[string]ExecStatus

	nextHandle int
	pingErr    error
	rebootErr  error

	unavailable map[string]bool // capability name -> true to force ErrUnavailable
}

type fakeFile struct {
	data  []byte
	mode  os.FileMode
	mtime time.Time
}

// NewFake returns an empty Fake driver.
func NewFake() *Fake {
	return &Fake{
		files:       make(map[string]fakeFile),
		procs:       make(map[ExecHandle]ExecStatus),
		Outcomes:    make(map[string]ExecStatus),
		unavailable: make(map[string]bool),
	}
}

// MarkUnavailable forces capability (one of "ping", "write", "read",
// "stat", "exec", "exec_status", "reboot") to return ErrUnavailable.
func (f *Fake) MarkUnavailable(capability string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable[capability] = true
}

// SetPingErr makes Ping fail with err until cleared with nil.
func (f *Fake) SetPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["ping"] {
		return ErrUnavailable
	}
	return f.pingErr
}

func (f *Fake) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["write"] {
		return ErrUnavailable
	}
	f.files[path] = fakeFile{data: append([]byte{}, data...), mode: mode, mtime: time.Now()}
	return nil
}

func (f *Fake) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["read"] {
		return nil, ErrUnavailable
	}
	ff, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("guestagent fake: no such file %q", path)
	}
	return ff.data, nil
}

func (f *Fake) Stat(ctx context.Context, path string) (FileStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["stat"] {
		return FileStat{}, ErrUnavailable
	}
	ff, ok := f.files[path]
	if !ok {
		return FileStat{Exists: false}, nil
	}
	return FileStat{MTime: ff.mtime, Size: int64(len(ff.data)), Exists: true}, nil
}

func (f *Fake) Exec(ctx context.Context, path string, args []string) (ExecHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["exec"] {
		return "", ErrUnavailable
	}
	f.nextHandle++
	handle := ExecHandle(fmt.Sprintf("proc-%d", f.nextHandle))

	status, ok := f.Outcomes[path]
	if !ok {
		status = ExecStatus{Running: false, ExitCode: ExitCodeSuccess}
	}
	f.procs[handle] = status
	return handle, nil
}

func (f *Fake) ExecStatus(ctx context.Context, handle ExecHandle) (ExecStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["exec_status"] {
		return ExecStatus{}, ErrUnavailable
	}
	status, ok := f.procs[handle]
	if !ok {
		return ExecStatus{}, fmt.Errorf("guestagent fake: no such process %q", handle)
	}
	return status, nil
}

func (f *Fake) Reboot(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable["reboot"] {
		return ErrUnavailable
	}
	return f.rebootErr
}

var _ Driver = (*Fake)(nil)
