package coordsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

const serviceVersion = "1.0.0"

// nowFn is the store's wall-clock source, overridable in tests.
var nowFn = time.Now

type experimentDB struct {
	hasLaunchTime bool
	launchTime    time.Time

	hasStartTime bool
	startTime    float64

	mappings map[string]*VMMapping // keyed by server_uuid
}

func newExperimentDB() *experimentDB {
	return &experimentDB{mappings: make(map[string]*VMMapping)}
}

// Store is the in-memory authoritative state behind the Coordination
// Service (spec.md §4.4 "Durability: the service may be in-memory for a
// single experiment; a restart implies experiment restart").
type Store struct {
	mu      sync.RWMutex
	dbs     map[string]*experimentDB
	started time.Time
	timing  config.ExperimentTiming
}

// NewStore constructs an empty Store.
func NewStore(timing config.ExperimentTiming) *Store {
	return &Store{
		dbs:     make(map[string]*experimentDB),
		started: nowFn(),
		timing:  timing,
	}
}

func (s *Store) dbFor(name string) *experimentDB {
	d, ok := s.dbs[name]
	if !ok {
		d = newExperimentDB()
		s.dbs[name] = d
	}
	return d
}

// GetInfo reports the service version, uptime, and whether any db has
// an experiment underway (a start time has been published).
func (s *Store) GetInfo(ctx context.Context, req *GetInfoRequest) (*GetInfoResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	running := false
	for _, d := range s.dbs {
		if d.hasStartTime {
			running = true
			break
		}
	}
	return &GetInfoResponse{
		Version:           serviceVersion,
		UptimeSeconds:     nowFn().Sub(s.started).Seconds(),
		ExperimentRunning: running,
	}, nil
}

func (s *Store) GetExperimentLaunchTime(ctx context.Context, req *DBRequest) (*LaunchTimeMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[req.DB]
	if !ok || !d.hasLaunchTime {
		return &LaunchTimeMessage{DB: req.DB}, nil
	}
	return &LaunchTimeMessage{DB: req.DB, LaunchTime: d.launchTime}, nil
}

func (s *Store) SetExperimentLaunchTime(ctx context.Context, req *LaunchTimeMessage) (*LaunchTimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	d.hasLaunchTime = true
	d.launchTime = req.LaunchTime
	return &LaunchTimeMessage{DB: req.DB, LaunchTime: d.launchTime}, nil
}

// GetExperimentStartTime returns ferrors.ErrStartTimeNotSet until a
// start time has been published for db, so callers (pkg/executor's
// client, via WaitForStartTime) can retry on it.
func (s *Store) GetExperimentStartTime(ctx context.Context, req *DBRequest) (*StartTimeMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[req.DB]
	if !ok || !d.hasStartTime {
		return nil, ferrors.ErrStartTimeNotSet
	}
	return &StartTimeMessage{DB: req.DB, StartTime: d.startTime}, nil
}

// SetExperimentStartTime sets db's start time if and only if it has not
// already been set. Per spec.md §4.4's authoritative rule ("start_time
// is set exactly once per experiment... concurrent calls must converge
// to the earliest successful write"), a second caller's value is
// discarded and the already-published value is echoed back instead of
// overwritten.
func (s *Store) SetExperimentStartTime(ctx context.Context, req *StartTimeMessage) (*StartTimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	if !d.hasStartTime {
		d.hasStartTime = true
		d.startTime = req.StartTime
	}
	return &StartTimeMessage{DB: req.DB, StartTime: d.startTime}, nil
}

// InitializeExperimentStartTime computes start_time as now plus the
// configured buffer and publishes it, unless db already has one.
func (s *Store) InitializeExperimentStartTime(ctx context.Context, req *DBRequest) (*StartTimeMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	if !d.hasStartTime {
		d.hasStartTime = true
		d.startTime = float64(nowFn().Unix()) + float64(s.timing.StartBufferSec)
	}
	return &StartTimeMessage{DB: req.DB, StartTime: d.startTime}, nil
}

// SetVMMapping inserts or last-writer-wins updates a VM mapping.
func (s *Store) SetVMMapping(ctx context.Context, req *VMMapping) (*VMMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	m := *req
	d.mappings[req.ServerUUID] = &m
	s.observeStateLocked()
	return &m, nil
}

func (s *Store) GetVMMappingByUUID(ctx context.Context, req *VMMappingUUIDRequest) (*VMMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[req.DB]
	if !ok {
		return nil, ferrors.ErrVMMappingNotFound
	}
	m, ok := d.mappings[req.ServerUUID]
	if !ok {
		return nil, ferrors.ErrVMMappingNotFound
	}
	return m, nil
}

func (s *Store) DestroyVMMappingByUUID(ctx context.Context, req *VMMappingUUIDRequest) (*Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dbs[req.DB]; ok {
		delete(d.mappings, req.ServerUUID)
	}
	s.observeStateLocked()
	return &Empty{}, nil
}

// ListVMMappings returns every mapping in db matching the json match
// dict, a flat field=value filter (spec.md §6). An empty JSONMatchDict
// matches everything; one that does not parse as a flat string map is
// returned as an error.
func (s *Store) ListVMMappings(ctx context.Context, req *ListVMMappingsRequest) (*ListVMMappingsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dbs[req.DB]
	if !ok {
		return &ListVMMappingsResponse{}, nil
	}

	var filter map[string]string
	if req.JSONMatchDict != "" {
		if err := json.Unmarshal([]byte(req.JSONMatchDict), &filter); err != nil {
			return nil, err
		}
	}

	out := make([]VMMapping, 0, len(d.mappings))
	for _, m := range d.mappings {
		if matches(m, filter) {
			out = append(out, *m)
		}
	}
	return &ListVMMappingsResponse{Mappings: out}, nil
}

func matches(m *VMMapping, filter map[string]string) bool {
	for k, v := range filter {
		switch k {
		case "server_uuid":
			if m.ServerUUID != v {
				return false
			}
		case "server_name":
			if m.ServerName != v {
				return false
			}
		case "control_ip":
			if m.ControlIP != v {
				return false
			}
		case "state":
			if string(m.State) != v {
				return false
			}
		}
	}
	return true
}

// CountVMMappingsNotReady counts mappings whose state is neither
// configured nor N/A (spec.md §4.4).
func (s *Store) CountVMMappingsNotReady(ctx context.Context, req *DBRequest) (*CountVMMappingsNotReadyResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count uint32
	if d, ok := s.dbs[req.DB]; ok {
		for _, m := range d.mappings {
			if !m.State.Ready() {
				count++
			}
		}
	}
	return &CountVMMappingsNotReadyResponse{DB: req.DB, Count: count}, nil
}

func (s *Store) SetVMTimeByUUID(ctx context.Context, req *SetVMTimeByUUIDRequest) (*VMMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	m, ok := d.mappings[req.ServerUUID]
	if !ok {
		return nil, ferrors.ErrVMMappingNotFound
	}
	m.CurrentTime = req.CurrentTime
	return m, nil
}

func (s *Store) SetVMStateByUUID(ctx context.Context, req *SetVMStateByUUIDRequest) (*VMMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dbFor(req.DB)
	m, ok := d.mappings[req.ServerUUID]
	if !ok {
		return nil, ferrors.ErrVMMappingNotFound
	}
	m.State = req.State
	s.observeStateLocked()
	return m, nil
}

func (s *Store) DestroyAllVMMappings(ctx context.Context, req *DBRequest) (*Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dbs[req.DB]; ok {
		d.mappings = make(map[string]*VMMapping)
	}
	s.observeStateLocked()
	return &Empty{}, nil
}

// ClearDb reinitializes db's start time and drops every VM mapping,
// atomically from the caller's view (spec.md §4.4). Supplemented beyond
// the RPC table because original_source's control-plane teardown path
// relies on exactly this combined reset.
func (s *Store) ClearDb(ctx context.Context, req *DBRequest) (*Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbs[req.DB] = newExperimentDB()
	s.observeStateLocked()
	return &Empty{}, nil
}

// observeStateLocked refreshes the per-state gauge. Caller must hold s.mu.
func (s *Store) observeStateLocked() {
	counts := make(map[vmstate.State]float64)
	for _, d := range s.dbs {
		for _, m := range d.mappings {
			counts[m.State]++
		}
	}
	for _, st := range []vmstate.State{
		vmstate.Uninitialized, vmstate.Configuring, vmstate.Configured,
		vmstate.Running, vmstate.Rebooting, vmstate.Exited, vmstate.NotApplicable,
	} {
		metrics.VMMappingsByState.WithLabelValues(string(st)).Set(counts[st])
	}
}
