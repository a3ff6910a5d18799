package coordsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

func newTestStore() *Store {
	return NewStore(config.ExperimentTiming{StartBufferSec: 10})
}

func TestGetExperimentStartTimeNotSetIsRetriable(t *testing.T) {
	s := newTestStore()
	_, err := s.GetExperimentStartTime(context.Background(), &DBRequest{DB: "default"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrStartTimeNotSet))
}

func TestSetExperimentStartTimeIsFirstWriteWins(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	first, err := s.SetExperimentStartTime(ctx, &StartTimeMessage{DB: "default", StartTime: 100})
	require.NoError(t, err)
	assert.Equal(t, 100.0, first.StartTime)

	second, err := s.SetExperimentStartTime(ctx, &StartTimeMessage{DB: "default", StartTime: 999})
	require.NoError(t, err)
	assert.Equal(t, 100.0, second.StartTime, "second writer must not clobber the first published start time")
}

func TestInitializeExperimentStartTimeAddsBuffer(t *testing.T) {
	fixedNow := time.Unix(1_000_000, 0)
	old := nowFn
	nowFn = func() time.Time { return fixedNow }
	defer func() { nowFn = old }()

	s := newTestStore()
	resp, err := s.InitializeExperimentStartTime(context.Background(), &DBRequest{DB: "default"})
	require.NoError(t, err)
	assert.Equal(t, float64(fixedNow.Unix()+10), resp.StartTime)
}

func TestCountVMMappingsNotReadyExcludesConfiguredAndNA(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	for _, m := range []VMMapping{
		{DB: "default", ServerUUID: "a", State: vmstate.Configuring},
		{DB: "default", ServerUUID: "b", State: vmstate.Configured},
		{DB: "default", ServerUUID: "c", State: vmstate.NotApplicable},
		{DB: "default", ServerUUID: "d", State: vmstate.Running},
	} {
		_, err := s.SetVMMapping(ctx, &m)
		require.NoError(t, err)
	}

	resp, err := s.CountVMMappingsNotReady(ctx, &DBRequest{DB: "default"})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), resp.Count)
}

func TestSetVMStateByUUIDUpdatesExistingMapping(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, err := s.SetVMMapping(ctx, &VMMapping{DB: "default", ServerUUID: "a", State: vmstate.Configuring})
	require.NoError(t, err)

	updated, err := s.SetVMStateByUUID(ctx, &SetVMStateByUUIDRequest{DB: "default", ServerUUID: "a", State: vmstate.Configured})
	require.NoError(t, err)
	assert.Equal(t, vmstate.Configured, updated.State)
}

func TestSetVMStateByUUIDUnknownUUIDFails(t *testing.T) {
	s := newTestStore()
	_, err := s.SetVMStateByUUID(context.Background(), &SetVMStateByUUIDRequest{DB: "default", ServerUUID: "missing", State: vmstate.Configured})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrVMMappingNotFound))
}

func TestListVMMappingsFiltersByJSONMatchDict(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	for _, m := range []VMMapping{
		{DB: "default", ServerUUID: "a", State: vmstate.Running},
		{DB: "default", ServerUUID: "b", State: vmstate.Exited},
	} {
		_, err := s.SetVMMapping(ctx, &m)
		require.NoError(t, err)
	}

	resp, err := s.ListVMMappings(ctx, &ListVMMappingsRequest{DB: "default", JSONMatchDict: `{"state":"running"}`})
	require.NoError(t, err)
	require.Len(t, resp.Mappings, 1)
	assert.Equal(t, "a", resp.Mappings[0].ServerUUID)
}

func TestDestroyAllVMMappingsClearsDb(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, err := s.SetVMMapping(ctx, &VMMapping{DB: "default", ServerUUID: "a", State: vmstate.Running})
	require.NoError(t, err)

	_, err = s.DestroyAllVMMappings(ctx, &DBRequest{DB: "default"})
	require.NoError(t, err)

	resp, err := s.ListVMMappings(ctx, &ListVMMappingsRequest{DB: "default"})
	require.NoError(t, err)
	assert.Empty(t, resp.Mappings)
}

func TestClearDbResetsStartTimeAndMappings(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, err := s.SetExperimentStartTime(ctx, &StartTimeMessage{DB: "default", StartTime: 42})
	require.NoError(t, err)
	_, err = s.SetVMMapping(ctx, &VMMapping{DB: "default", ServerUUID: "a", State: vmstate.Running})
	require.NoError(t, err)

	_, err = s.ClearDb(ctx, &DBRequest{DB: "default"})
	require.NoError(t, err)

	_, err = s.GetExperimentStartTime(ctx, &DBRequest{DB: "default"})
	assert.True(t, errors.Is(err, ferrors.ErrStartTimeNotSet))

	resp, err := s.ListVMMappings(ctx, &ListVMMappingsRequest{DB: "default"})
	require.NoError(t, err)
	assert.Empty(t, resp.Mappings)
}
