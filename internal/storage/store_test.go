package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tokenart/internal/domain"
)

func openStores(t *testing.T) map[string]domain.Store {
	t.Helper()
	lite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { _ = lite.Close() })
	return map[string]domain.Store{
		"memory": NewMemoryStore(),
		"sqlite": lite,
	}
}

func get(t *testing.T, s domain.Store, key domain.Key) ([]byte, bool) {
	t.Helper()
	var (
		value []byte
		ok    bool
	)
	err := s.View(context.Background(), func(r domain.Reader) error {
		var err error
		value, ok, err = r.Get(context.Background(), key)
		return err
	})
	if err != nil {
		t.Fatalf("View() error: %v", err)
	}
	return value, ok
}

func TestStoreSetAndGet(t *testing.T) {
	key := domain.Key{Space: domain.SpaceTotalContributed, Target: domain.TargetID("art-001")}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := get(t, s, key); ok {
				t.Fatalf("expected absent key before first write")
			}
			err := s.Update(context.Background(), func(tx domain.Txn) error {
				return tx.Set(context.Background(), key, []byte("v1"))
			})
			if err != nil {
				t.Fatalf("Update() error: %v", err)
			}
			got, ok := get(t, s, key)
			if !ok || !bytes.Equal(got, []byte("v1")) {
				t.Fatalf("Get() = %q, %v; want v1, true", got, ok)
			}
		})
	}
}

func TestStoreUpdateIsAllOrNothing(t *testing.T) {
	a := domain.Key{Space: domain.SpaceTotalContributed, Target: domain.TargetID("t")}
	b := domain.Key{Space: domain.SpaceLastContributor, Target: domain.TargetID("t")}
	boom := errors.New("boom")
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(context.Background(), func(tx domain.Txn) error {
				if err := tx.Set(context.Background(), a, []byte("x")); err != nil {
					return err
				}
				// staged writes are visible inside the same transaction
				if v, ok, err := tx.Get(context.Background(), a); err != nil || !ok || string(v) != "x" {
					t.Fatalf("staged Get() = %q, %v, %v", v, ok, err)
				}
				if err := tx.Set(context.Background(), b, []byte("y")); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("Update() error = %v, want boom", err)
			}
			if _, ok := get(t, s, a); ok {
				t.Fatalf("first write leaked from aborted update")
			}
			if _, ok := get(t, s, b); ok {
				t.Fatalf("second write leaked from aborted update")
			}
		})
	}
}

func TestStoreSetIfAbsent(t *testing.T) {
	key := domain.Key{Space: domain.SpaceFundingGoal, Target: domain.TargetID("t")}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i, value := range []string{"first", "second"} {
				var stored bool
				err := s.Update(context.Background(), func(tx domain.Txn) error {
					var err error
					stored, err = tx.SetIfAbsent(context.Background(), key, []byte(value))
					return err
				})
				if err != nil {
					t.Fatalf("Update() error: %v", err)
				}
				if want := i == 0; stored != want {
					t.Fatalf("SetIfAbsent(%q) stored = %v, want %v", value, stored, want)
				}
			}
			got, _ := get(t, s, key)
			if string(got) != "first" {
				t.Fatalf("value = %q, want first", got)
			}
		})
	}
}

func TestStoreKeysAreIndependent(t *testing.T) {
	keys := []domain.Key{
		{Space: domain.SpaceTotalContributed, Target: domain.TargetID("a")},
		{Space: domain.SpaceTotalContributed, Target: domain.TargetID("b")},
		{Space: domain.SpaceFundingGoal, Target: domain.TargetID("a")},
		{Space: domain.SpaceContribution, Target: domain.TargetID("a"), Seq: 1},
		{Space: domain.SpaceContribution, Target: domain.TargetID("a"), Seq: 2},
		{Space: domain.SpaceTotalContributed, Target: domain.TargetID{}},
	}
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Update(context.Background(), func(tx domain.Txn) error {
				for i, k := range keys {
					if err := tx.Set(context.Background(), k, []byte{byte(i)}); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("Update() error: %v", err)
			}
			for i, k := range keys {
				got, ok := get(t, s, k)
				if !ok || !bytes.Equal(got, []byte{byte(i)}) {
					t.Fatalf("key %d = %v, %v; want [%d]", i, got, ok, i)
				}
			}
		})
	}
}

func TestStoreRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			called := false
			err := s.Update(ctx, func(domain.Txn) error {
				called = true
				return nil
			})
			if err == nil {
				t.Fatalf("Update() with cancelled context returned nil")
			}
			if called {
				t.Fatalf("callback ran with cancelled context")
			}
		})
	}
}

func TestSQLiteStoreIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "durable.db")
	key := domain.Key{Space: domain.SpaceLastContributor, Target: domain.TargetID("art-001")}

	first, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	err = first.Update(context.Background(), func(tx domain.Txn) error {
		return tx.Set(context.Background(), key, []byte("GABC"))
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	second, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer second.Close()
	got, ok := get(t, second, key)
	if !ok || string(got) != "GABC" {
		t.Fatalf("after reopen Get() = %q, %v", got, ok)
	}
}

func TestClosedStores(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Close(); err != nil {
				t.Fatalf("Close() error: %v", err)
			}
			err := s.View(context.Background(), func(domain.Reader) error { return nil })
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("View() after Close = %v, want ErrClosed", err)
			}
		})
	}
}
