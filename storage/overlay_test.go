package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBIteratePrefixOrdered(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("a/2"), []byte("two")))
	require.NoError(t, db.Put([]byte("a/1"), []byte("one")))
	require.NoError(t, db.Put([]byte("b/1"), []byte("other")))

	var keys []string
	require.NoError(t, db.Iterate([]byte("a/"), func(key, _ []byte) bool {
		keys = append(keys, string(key))
		return true
	}))
	require.Equal(t, []string{"a/1", "a/2"}, keys)

	require.NoError(t, db.Delete([]byte("a/1")))
	_, err := db.Get([]byte("a/1"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayCommitAppliesWrites(t *testing.T) {
	store := NewStore(NewMemDB())
	require.NoError(t, store.DB().Put([]byte("k/old"), []byte("x")))

	ov := store.Begin()
	require.NoError(t, ov.Put([]byte("k/new"), []byte("y")))
	require.NoError(t, ov.Delete([]byte("k/old")))

	var seen []string
	require.NoError(t, ov.Iterate([]byte("k/"), func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return true
	}))
	require.Equal(t, []string{"k/new"}, seen)

	// Nothing is visible before commit.
	_, err := store.DB().Get([]byte("k/new"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, ov.Commit())
	value, err := store.DB().Get([]byte("k/new"))
	require.NoError(t, err)
	require.Equal(t, []byte("y"), value)
	_, err = store.DB().Get([]byte("k/old"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverlayDiscardLeavesStateUntouched(t *testing.T) {
	store := NewStore(NewMemDB())
	ov := store.Begin()
	require.NoError(t, ov.Put([]byte("k"), []byte("v")))
	ov.Discard()

	_, err := store.DB().Get([]byte("k"))
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, ov.Put([]byte("k"), []byte("v")), ErrClosed)
}

func TestOverlayDetectsConflict(t *testing.T) {
	store := NewStore(NewMemDB())
	require.NoError(t, store.DB().Put([]byte("balance"), []byte{1}))

	first := store.Begin()
	second := store.Begin()

	_, err := first.Get([]byte("balance"))
	require.NoError(t, err)
	_, err = second.Get([]byte("balance"))
	require.NoError(t, err)

	require.NoError(t, first.Put([]byte("balance"), []byte{2}))
	require.NoError(t, second.Put([]byte("balance"), []byte{3}))

	require.NoError(t, first.Commit())
	err = second.Commit()
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	value, err := store.DB().Get([]byte("balance"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)
}

func TestLevelDBBatchAndIterate(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	defer db.Close()

	batch := new(Batch)
	batch.Put([]byte("v/1"), []byte("a"))
	batch.Put([]byte("v/2"), []byte("b"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, db.Write(batch))

	count := 0
	require.NoError(t, db.Iterate([]byte("v/"), func(_, _ []byte) bool {
		count++
		return true
	}))
	require.Equal(t, 2, count)

	_, err = db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}
