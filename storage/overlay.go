package storage

import (
	"bytes"
	"errors"
	"sort"
	"sync"
)

// ErrConflict is returned by Overlay.Commit when a key read by the overlay was
// committed by another overlay in the meantime.
var ErrConflict = errors.New("storage: commit conflict")

// ErrClosed is returned when an overlay is used after Commit or Discard.
var ErrClosed = errors.New("storage: overlay closed")

// Store wraps a Database with per-key commit versions so independent
// overlays can execute concurrently and validate their reads at commit time.
type Store struct {
	db Database

	mu       sync.Mutex
	versions map[string]uint64
}

// NewStore wraps db. Versions are tracked in memory only.
func NewStore(db Database) *Store {
	return &Store{db: db, versions: make(map[string]uint64)}
}

// DB exposes the backing database for read-only consumers.
func (s *Store) DB() Database { return s.db }

// Begin opens a new overlay against the current committed state.
func (s *Store) Begin() *Overlay {
	return &Overlay{
		store:  s,
		writes: make(map[string]*pending),
		reads:  make(map[string]uint64),
	}
}

func (s *Store) read(key []byte) ([]byte, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := s.versions[string(key)]
	value, err := s.db.Get(key)
	return value, version, err
}

type pending struct {
	value   []byte
	deleted bool
}

// Overlay buffers writes on top of a Store and records the version of every
// key it reads. It satisfies Database so state managers can run over it.
type Overlay struct {
	store  *Store
	writes map[string]*pending
	reads  map[string]uint64
	closed bool
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o.closed {
		return nil, ErrClosed
	}
	if p, ok := o.writes[string(key)]; ok {
		if p.deleted {
			return nil, ErrNotFound
		}
		return cloneBytes(p.value), nil
	}
	value, version, err := o.store.read(key)
	if _, seen := o.reads[string(key)]; !seen {
		o.reads[string(key)] = version
	}
	return value, err
}

func (o *Overlay) Put(key []byte, value []byte) error {
	if o.closed {
		return ErrClosed
	}
	o.writes[string(key)] = &pending{value: cloneBytes(value)}
	return nil
}

func (o *Overlay) Delete(key []byte) error {
	if o.closed {
		return ErrClosed
	}
	o.writes[string(key)] = &pending{deleted: true}
	return nil
}

// Iterate merges committed keys with buffered writes under prefix.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	if o.closed {
		return ErrClosed
	}
	merged := make(map[string][]byte)
	o.store.mu.Lock()
	err := o.store.db.Iterate(prefix, func(key, value []byte) bool {
		k := string(key)
		merged[k] = value
		if _, seen := o.reads[k]; !seen {
			o.reads[k] = o.store.versions[k]
		}
		return true
	})
	o.store.mu.Unlock()
	if err != nil {
		return err
	}
	for k, p := range o.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if p.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = p.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), cloneBytes(merged[k])) {
			break
		}
	}
	return nil
}

// Write folds a batch into the overlay's pending writes.
func (o *Overlay) Write(batch *Batch) error {
	if o.closed {
		return ErrClosed
	}
	if batch == nil {
		return nil
	}
	for _, op := range batch.ops {
		if op.delete {
			o.writes[string(op.key)] = &pending{deleted: true}
			continue
		}
		o.writes[string(op.key)] = &pending{value: op.value}
	}
	return nil
}

// Dirty reports whether the overlay holds buffered writes.
func (o *Overlay) Dirty() bool { return len(o.writes) > 0 }

// Commit validates the read set and atomically applies buffered writes.
func (o *Overlay) Commit() error {
	if o.closed {
		return ErrClosed
	}
	o.closed = true
	s := o.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, version := range o.reads {
		if s.versions[k] != version {
			return ErrConflict
		}
	}
	if len(o.writes) == 0 {
		return nil
	}
	batch := new(Batch)
	for k, p := range o.writes {
		if p.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), p.value)
		}
	}
	if err := s.db.Write(batch); err != nil {
		return err
	}
	for k := range o.writes {
		s.versions[k]++
	}
	return nil
}

// Discard drops every buffered write.
func (o *Overlay) Discard() {
	o.closed = true
	o.writes = nil
	o.reads = nil
}

// Close satisfies Database; it discards the overlay.
func (o *Overlay) Close() { o.Discard() }
