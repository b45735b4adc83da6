// Package storetest holds the behaviour every store.Store implementation must
// share.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/ludotime/go/internal/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"GetMissing", testGetMissing},
		{"CreateThenGet", testCreateThenGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"SetBumpsVersion", testSetBumpsVersion},
		{"CompareAndSwap", testCompareAndSwap},
		{"CompareAndSwapDelete", testCompareAndSwapDelete},
		{"ConcurrentCompareAndSwap", testConcurrentCompareAndSwap},
		{"Subscribe", testSubscribe},
		{"SubscribeCancel", testSubscribeCancel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func doc(v string) json.RawMessage {
	return json.RawMessage(`{"v":"` + v + `"}`)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get err = %v, want ErrNotFound", err)
	}
}

func testCreateThenGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	created, err := s.Create(ctx, "ABC123", doc("a"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Version != 1 {
		t.Errorf("created version = %d, want 1", created.Version)
	}
	got, err := s.Get(ctx, "ABC123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(created, got); diff != "" {
		t.Errorf("record mismatch (-created +got):\n%s", diff)
	}
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.Create(ctx, "DUP", doc("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "DUP", doc("b")); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("second Create err = %v, want ErrAlreadyExists", err)
	}
	got, _ := s.Get(ctx, "DUP")
	if string(got.Value) != string(doc("a")) {
		t.Errorf("value overwritten: %s", got.Value)
	}
}

func testSetBumpsVersion(t *testing.T, s store.Store) {
	ctx := context.Background()
	first, err := s.Set(ctx, "K", doc("a"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Set(ctx, "K", doc("b"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Version != first.Version+1 {
		t.Errorf("versions %d then %d", first.Version, second.Version)
	}
}

func testCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.CompareAndSwap(ctx, "K", 1, doc("x")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("CAS on missing key err = %v, want ErrNotFound", err)
	}

	rec, _ := s.Create(ctx, "K", doc("a"))
	next, err := s.CompareAndSwap(ctx, "K", rec.Version, doc("b"))
	if err != nil {
		t.Fatalf("CAS: %v", err)
	}
	if next.Version != rec.Version+1 {
		t.Errorf("version = %d, want %d", next.Version, rec.Version+1)
	}

	// The stale version loses.
	if _, err := s.CompareAndSwap(ctx, "K", rec.Version, doc("c")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("stale CAS err = %v, want ErrConflict", err)
	}
	got, _ := s.Get(ctx, "K")
	if string(got.Value) != string(doc("b")) || got.Version != next.Version {
		t.Errorf("stale CAS changed the record: %+v", got)
	}
}

func testCompareAndSwapDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec, _ := s.Create(ctx, "K", doc("a"))
	deleted, err := s.CompareAndSwap(ctx, "K", rec.Version, nil)
	if err != nil {
		t.Fatalf("CAS delete: %v", err)
	}
	if !deleted.Deleted() {
		t.Errorf("delete returned live record %+v", deleted)
	}
	if _, err := s.Get(ctx, "K"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}

	// A reused key continues the version sequence.
	again, err := s.Create(ctx, "K", doc("b"))
	if err != nil {
		t.Fatalf("Create after delete: %v", err)
	}
	if again.Version <= deleted.Version {
		t.Errorf("version went backwards: %d after %d", again.Version, deleted.Version)
	}
}

func testConcurrentCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	rec, _ := s.Create(ctx, "RACE", doc("start"))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompareAndSwap(ctx, "RACE", rec.Version, doc("w"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected CAS error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != writers-1 {
		t.Errorf("wins = %d, conflicts = %d", wins, conflicts)
	}
}

func next(t *testing.T, ch <-chan store.Record) store.Record {
	t.Helper()
	select {
	case rec, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for record")
	}
	return store.Record{}
}

func testSubscribe(t *testing.T, s store.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, _ := s.Create(ctx, "SUB", doc("a"))
	ch, err := s.Subscribe(ctx, "SUB")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := next(t, ch); got.Version != created.Version {
		t.Fatalf("initial version = %d, want %d", got.Version, created.Version)
	}

	updated, err := s.CompareAndSwap(ctx, "SUB", created.Version, doc("b"))
	if err != nil {
		t.Fatal(err)
	}
	got := next(t, ch)
	if got.Version != updated.Version || string(got.Value) != string(doc("b")) {
		t.Errorf("update = %+v, want version %d", got, updated.Version)
	}

	if _, err := s.CompareAndSwap(ctx, "SUB", updated.Version, nil); err != nil {
		t.Fatal(err)
	}
	if got := next(t, ch); !got.Deleted() {
		t.Errorf("expected deletion marker, got %+v", got)
	}
}

func testSubscribeCancel(t *testing.T, s store.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Subscribe(ctx, "GONE")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed after cancel")
		}
	}
}
