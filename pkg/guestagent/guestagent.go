// Package guestagent defines the narrow capability interface the
// Schedule Executor drives against a VM (spec.md §6 "Guest-agent
// capability set consumed by the Executor"). It is grounded on
// original_source/src/firewheel/lib/grpc/firewheel_grpc_resources.py
// and firewheel_grpc_client.py, which define the same ping/file/exec/
// reboot surface over the original's own transport; this package keeps
// the capability boundary but leaves the transport to whatever Driver
// implementation an agent wires in (a real guest-agent RPC client in
// production, guestagent.Fake in tests).
package guestagent

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrUnavailable is returned by a Driver method whose capability the
// underlying guest-agent does not support. Per spec.md §6, a driver
// must return this rather than silently succeeding.
var ErrUnavailable = errors.New("guest-agent capability unavailable")

// Reserved process exit codes (spec.md §6 "Exit code convention").
const (
	ExitCodeSuccess          = 0
	ExitCodeAlreadyInstalled = 117
	// ExitCodeReboot is this driver's reserved reboot signal; a guest
	// resource that intends to trigger a reboot exits with this code.
	ExitCodeReboot = 118
)

// FileStat mirrors file_stat's result.
type FileStat struct {
	MTime  time.Time
	Size   int64
	Exists bool
}

// ExecHandle is an opaque handle to a dispatched in-VM process.
type ExecHandle string

// ExecStatus mirrors exec_status's result.
type ExecStatus struct {
	Running  bool
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Driver is the capability set the Schedule Executor consumes. Every
// method takes a context so suspension points stay cancellable (spec.md
// §5).
type Driver interface {
	// Ping performs the liveness handshake used on agent attach and on
	// reconnect after a reboot.
	Ping(ctx context.Context) error
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Stat(ctx context.Context, path string) (FileStat, error)
	Exec(ctx context.Context, path string, args []string) (ExecHandle, error)
	ExecStatus(ctx context.Context, handle ExecHandle) (ExecStatus, error)
	// Reboot asks the guest-agent's host to reboot the VM directly
	// (distinct from a VM resource's own exit-code-triggered reboot).
	Reboot(ctx context.Context) error
}
