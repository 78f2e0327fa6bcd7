package ledger

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestSortKeys(t *testing.T) {
	got := SortKeys([]string{"b", "a", "b", "c", "a"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("SortKeys = %v, want %v", got, want)
	}
}

func TestLocalLockerExclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "u1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if n := len(l.slots); n != 0 {
		t.Fatalf("expected slots to be released, %d left", n)
	}
}

func TestLocalLockerOppositeOrderNoDeadlock(t *testing.T) {
	l := NewLocalLocker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "alice", "bob")
			if err != nil {
				t.Errorf("lock a->b: %v", err)
				return
			}
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "bob", "alice")
			if err != nil {
				t.Errorf("lock b->a: %v", err)
				return
			}
			unlock()
		}()
	}
	wg.Wait()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "u0", "u1")
	if !errors.Is(err, ErrStorageUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected storage error wrapping deadline, got %v", err)
	}

	// u0 was acquired first and must have been rolled back
	unlock0, err := l.Lock(context.Background(), "u0")
	if err != nil {
		t.Fatalf("expected u0 to be free after rollback: %v", err)
	}
	unlock0()
}

func TestLocalLockerUnlockIdempotent(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()
	unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	again, err := l.Lock(ctx, "u1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
