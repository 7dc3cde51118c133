package storage

import (
	"context"
	"errors"
	"sync"

	"tokenart/internal/domain"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("storage: store closed")

type entryKey struct {
	space  domain.Space
	target string
	seq    uint64
}

func toEntryKey(k domain.Key) entryKey {
	return entryKey{space: k.Space, target: string(k.Target), seq: k.Seq}
}

// MemoryStore keeps ledger entries in process memory. It is intended for
// development and tests; every instance is fully isolated.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey][]byte
	closed  bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[entryKey][]byte)}
}

// View runs fn against a consistent snapshot of committed entries.
func (s *MemoryStore) View(ctx context.Context, fn func(domain.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(&memTxn{base: s.entries})
}

// Update runs fn with exclusive access. Writes are staged and merged only when
// fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(domain.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	tx := &memTxn{base: s.entries, staged: make(map[entryKey][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range tx.staged {
		s.entries[k] = v
	}
	return nil
}

// Close discards every entry.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

// Len reports the number of committed entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

type memTxn struct {
	base   map[entryKey][]byte
	staged map[entryKey][]byte
}

func (t *memTxn) Get(ctx context.Context, key domain.Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	k := toEntryKey(key)
	if v, ok := t.staged[k]; ok {
		return clone(v), true, nil
	}
	v, ok := t.base[k]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (t *memTxn) Set(ctx context.Context, key domain.Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.staged == nil {
		return errors.New("storage: write in read-only view")
	}
	t.staged[toEntryKey(key)] = clone(value)
	return nil
}

func (t *memTxn) SetIfAbsent(ctx context.Context, key domain.Key, value []byte) (bool, error) {
	_, ok, err := t.Get(ctx, key)
	if err != nil || ok {
		return false, err
	}
	if err := t.Set(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var _ domain.Store = (*MemoryStore)(nil)
