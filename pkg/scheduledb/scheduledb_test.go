package scheduledb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/objectstore"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	store, err := objectstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestPutGetRoundTripsScheduleBytes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Put(ctx, "vm1", "10.0.0.5", []byte("serialized-schedule"))
	require.NoError(t, err)

	data, ip, err := db.Get("vm1")
	require.NoError(t, err)
	assert.Equal(t, "serialized-schedule", string(data))
	assert.Equal(t, "10.0.0.5", ip)
}

func TestPutBatchReportsPerVMFailures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	failures := db.PutBatch(ctx, map[string]struct {
		IP    string
		Bytes []byte
	}{
		"vm1": {IP: "10.0.0.1", Bytes: []byte("s1")},
		"vm2": {IP: "10.0.0.2", Bytes: []byte("s2")},
	})
	assert.Empty(t, failures)

	names, err := db.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vm1", "vm2"}, names)
}

func TestRemoveDeletesStoredSchedule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.Put(ctx, "vm1", "10.0.0.5", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, db.Remove("vm1"))
	_, _, err = db.Get("vm1")
	require.Error(t, err)
}
