package subscribers

import (
	"slices"
	"sync"
	"testing"
)

func TestRegistry_SubscribeIdempotent(t *testing.T) {
	r := NewRegistry()

	if !r.Subscribe(42) {
		t.Fatal("expected first subscribe to add")
	}
	if r.Subscribe(42) {
		t.Fatal("expected duplicate subscribe to report no change")
	}
	if r.Len() != 1 {
		t.Fatalf("expected exactly one subscriber, got %d", r.Len())
	}
	if got := r.Snapshot(); !slices.Equal(got, []int64{42}) {
		t.Fatalf("expected [42], got %v", got)
	}
}

func TestRegistry_UnsubscribeAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(1)

	if r.Unsubscribe(99) {
		t.Fatal("expected unsubscribe of absent id to report false")
	}
	if got := r.Snapshot(); !slices.Equal(got, []int64{1}) {
		t.Fatalf("expected set unchanged, got %v", got)
	}
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry()
	r.Subscribe(1)
	r.Subscribe(2)

	if !r.Unsubscribe(1) {
		t.Fatal("expected unsubscribe to remove present id")
	}
	if r.Has(1) || !r.Has(2) {
		t.Fatalf("unexpected membership after unsubscribe: %v", r.Snapshot())
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	for _, id := range []int64{3, 1, 2} {
		r.Subscribe(id)
	}

	snap := r.Snapshot()
	if !slices.Equal(snap, []int64{1, 2, 3}) {
		t.Fatalf("expected sorted snapshot, got %v", snap)
	}
	for _, id := range snap {
		r.Unsubscribe(id)
	}
	if len(snap) != 3 {
		t.Fatal("expected snapshot to be unaffected by later mutation")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.Subscribe(id % 10)
			r.Snapshot()
		}(int64(i))
	}
	wg.Wait()

	if r.Len() != 10 {
		t.Fatalf("expected 10 unique subscribers, got %d", r.Len())
	}
}
