package objectstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandialabs/firewheel-core/pkg/ferrors"
)

type fakePeer struct {
	received map[string][]byte
}

func newFakePeer() *fakePeer { return &fakePeer{received: make(map[string][]byte)} }

func (p *fakePeer) ReceiveBlob(ctx context.Context, name string, data []byte) error {
	p.received[name] = append([]byte{}, data...)
	return nil
}

func openTestStore(t *testing.T, peers ...Peer) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), peers...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutFirstWriteIsNoDate(t *testing.T) {
	s := openTestStore(t)
	outcome, err := s.Put(context.Background(), "image.qcow2", []byte("bytes"), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoDate, outcome)
}

func TestPutIdenticalContentIsSameHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "image.qcow2", []byte("bytes"), false)
	require.NoError(t, err)

	outcome, err := s.Put(ctx, "image.qcow2", []byte("bytes"), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSameHash, outcome)
}

func TestPutDifferentContentIsNewHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "image.qcow2", []byte("bytes"), false)
	require.NoError(t, err)

	outcome, err := s.Put(ctx, "image.qcow2", []byte("different bytes"), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNewHash, outcome)

	_, rc, err := s.Get("image.qcow2")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "different bytes", string(data))
}

func TestPutBroadcastsToPeersOnNewContent(t *testing.T) {
	peer := newFakePeer()
	s := openTestStore(t, peer)
	ctx := context.Background()

	_, err := s.Put(ctx, "resource.py", []byte("v1"), true)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(peer.received["resource.py"]))

	delete(peer.received, "resource.py")
	_, err = s.Put(ctx, "resource.py", []byte("v1"), true)
	require.NoError(t, err)
	assert.Empty(t, peer.received, "same_hash put must not re-broadcast")
}

func TestGetMissingReturnsNotExist(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Get("missing")
	require.Error(t, err)
}

func TestHashMTimeSizeReflectLastPut(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "schedule.json", []byte("hello"), false)
	require.NoError(t, err)

	size, err := s.Size("schedule.json")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	digest, err := s.Hash("schedule.json")
	require.NoError(t, err)
	want := sha1.Sum([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(want[:]), digest)

	mtime, err := s.MTime("schedule.json")
	require.NoError(t, err)
	assert.False(t, mtime.IsZero())
}

func TestListAndRemoveRespectPattern(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, putAll(s, ctx, "a.img", "b.img", "c.json"))

	names, err := s.List("*.img")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.img", "b.img"}, names)

	require.NoError(t, s.Remove("*.img"))
	names, err = s.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.json"}, names)
}

func TestConcurrentPutToSameNameFailsFast(t *testing.T) {
	s := openTestStore(t)
	unlock, err := s.tryLock("held")
	require.NoError(t, err)
	defer unlock()

	_, err = s.Put(context.Background(), "held", []byte("x"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrObjectLocked))
}

func putAll(s *Store, ctx context.Context, names ...string) error {
	for _, n := range names {
		if _, err := s.Put(ctx, n, []byte(n), false); err != nil {
			return err
		}
	}
	return nil
}
