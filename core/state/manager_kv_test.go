package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"riftvault/storage"
)

type sampleRecord struct {
	Name   string
	Amount uint64
	Flag   bool
}

func TestKVPutGetRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	ok, err := mgr.KVGet([]byte("missing"), new(sampleRecord))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut([]byte("record/1"), sampleRecord{Name: "a", Amount: 42, Flag: true}))
	var out sampleRecord
	ok, err = mgr.KVGet([]byte("record/1"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sampleRecord{Name: "a", Amount: 42, Flag: true}, out)

	require.NoError(t, mgr.KVDelete([]byte("record/1")))
	ok, err = mgr.KVGet([]byte("record/1"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVAppendDeduplicatesAndRemoves(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	key := []byte("index")

	var empty [][]byte
	require.NoError(t, mgr.KVGetList(key, &empty))
	require.Len(t, empty, 0)

	require.NoError(t, mgr.KVAppend(key, []byte{1}))
	require.NoError(t, mgr.KVAppend(key, []byte{2}))
	require.NoError(t, mgr.KVAppend(key, []byte{1}))

	var list [][]byte
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{{1}, {2}}, list)

	require.NoError(t, mgr.KVRemove(key, []byte{1}))
	list = nil
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{{2}}, list)
}

func TestKVRejectsEmptyKey(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.Error(t, mgr.KVPut(nil, uint64(1)))
	_, err := mgr.KVGet(nil, nil)
	require.Error(t, err)
}
