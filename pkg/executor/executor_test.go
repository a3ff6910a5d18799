package executor

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/guestagent"
	"github.com/sandialabs/firewheel-core/pkg/schedule"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

type fakeCoordinator struct {
	mu        sync.Mutex
	states    []vmstate.State
	startTime float64
}

func (c *fakeCoordinator) ReportState(ctx context.Context, vmName string, state vmstate.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
	return nil
}

func (c *fakeCoordinator) ReportTime(ctx context.Context, vmName string, currentTime float64) error {
	return nil
}

func (c *fakeCoordinator) WaitForStartTime(ctx context.Context) (float64, error) {
	return c.startTime, nil
}

type fakeSink struct {
	mu     sync.Mutex
	writes []string
}

func (s *fakeSink) WriteTransfer(ctx context.Context, vmName, destDir, inVMPath string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, inVMPath)
	return nil
}

type fakeFetcher struct{}

func (fakeFetcher) FetchVMResource(ctx context.Context, name string) ([]byte, error) {
	return []byte("resource:" + name), nil
}

func testConfig(vmName string, driver guestagent.Driver, coord Coordinator) Config {
	return Config{
		VMName:      vmName,
		Driver:      driver,
		Coordinator: coord,
		Fetcher:     fakeFetcher{},
		Sink:        &fakeSink{},
		Retry:       config.Retry{Base: time.Millisecond, Factor: 2, MaxAttempts: 3},
		Log:         zerolog.Nop(),
	}
}

func TestRunExecutesConfigurationPhaseThenReportsConfigured(t *testing.T) {
	driver := guestagent.NewFake()
	driver.Outcomes["/bin/configure"] = guestagent.ExecStatus{ExitCode: guestagent.ExitCodeSuccess}
	coord := &fakeCoordinator{startTime: nowFn() - 100}

	sched := schedule.New()
	e1, err := schedule.NewEntry(-2, false)
	require.NoError(t, err)
	e1.SetExecutable("/bin/configure")
	sched.Add(e1)

	exec := New(testConfig("vm1", driver, coord))
	err = exec.Run(context.Background(), sched)
	require.NoError(t, err)

	assert.Equal(t, vmstate.Exited, exec.State())
	assert.Contains(t, coord.states, vmstate.Configured)
	assert.Len(t, exec.Transcript(), 1)
}

func TestRunFailsWhenProgramExitsNonZeroWithoutIgnoreFailure(t *testing.T) {
	driver := guestagent.NewFake()
	driver.Outcomes["/bin/broken"] = guestagent.ExecStatus{ExitCode: 1, Stderr: []byte("boom")}
	coord := &fakeCoordinator{}

	sched := schedule.New()
	e1, err := schedule.NewEntry(-1, false)
	require.NoError(t, err)
	e1.SetExecutable("/bin/broken")
	sched.Add(e1)

	exec := New(testConfig("vm1", driver, coord))
	err = exec.Run(context.Background(), sched)
	require.Error(t, err)
	assert.Equal(t, vmstate.Exited, exec.State())
}

func TestRunIgnoresFailureWhenEntryMarked(t *testing.T) {
	driver := guestagent.NewFake()
	driver.Outcomes["/bin/broken"] = guestagent.ExecStatus{ExitCode: 1}
	coord := &fakeCoordinator{}

	sched := schedule.New()
	e1, err := schedule.NewEntry(-1, true)
	require.NoError(t, err)
	e1.SetExecutable("/bin/broken")
	sched.Add(e1)

	exec := New(testConfig("vm1", driver, coord))
	err = exec.Run(context.Background(), sched)
	require.NoError(t, err)
}

func TestRunDetectsRebootByExitCodeAndResumesAfterReconnect(t *testing.T) {
	driver := guestagent.NewFake()
	driver.Outcomes["/bin/reboot-me"] = guestagent.ExecStatus{ExitCode: guestagent.ExitCodeReboot}
	driver.Outcomes["/bin/after-reboot"] = guestagent.ExecStatus{ExitCode: guestagent.ExitCodeSuccess}
	coord := &fakeCoordinator{}

	sched := schedule.New()
	e1, err := schedule.NewEntry(-2, false)
	require.NoError(t, err)
	e1.SetExecutable("/bin/reboot-me")
	sched.Add(e1)
	e2, err := schedule.NewEntry(-1, false)
	require.NoError(t, err)
	e2.SetExecutable("/bin/after-reboot")
	sched.Add(e2)

	exec := New(testConfig("vm1", driver, coord))
	err = exec.Run(context.Background(), sched)
	require.NoError(t, err)
	assert.Len(t, exec.Transcript(), 2)
}

func TestHandlePauseBlocksUntilResume(t *testing.T) {
	driver := guestagent.NewFake()
	exec := New(testConfig("vm1", driver, &fakeCoordinator{}))

	e1, err := schedule.NewEntry(-5, false)
	require.NoError(t, err)
	require.NoError(t, e1.AddPause(math.Inf(1)))

	done := make(chan error, 1)
	go func() {
		done <- exec.handlePause(context.Background(), e1)
	}()

	select {
	case <-done:
		t.Fatal("pause returned before resume was signaled")
	case <-time.After(20 * time.Millisecond):
	}

	exec.Resume()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pause did not unblock after Resume")
	}
}

func TestHandlePauseFiniteDelayReturnsAfterDuration(t *testing.T) {
	driver := guestagent.NewFake()
	exec := New(testConfig("vm1", driver, &fakeCoordinator{}))

	e1, err := schedule.NewEntry(-5, false)
	require.NoError(t, err)
	require.NoError(t, e1.AddPause(0.01))

	err = exec.handlePause(context.Background(), e1)
	require.NoError(t, err)
}

func TestResolvePayloadPrefersFetcherForFilename(t *testing.T) {
	driver := guestagent.NewFake()
	exec := New(testConfig("vm1", driver, &fakeCoordinator{}))

	data, err := exec.resolvePayload(context.Background(), schedule.DataPayload{Filename: "payload.bin"})
	require.NoError(t, err)
	assert.Equal(t, "resource:payload.bin", string(data))
}
