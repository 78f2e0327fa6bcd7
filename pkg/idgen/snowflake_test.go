package idgen

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewSnowflakeRejectsBadWorker(t *testing.T) {
	if _, err := NewSnowflake(-1); err == nil {
		t.Fatalf("expected negative worker rejected")
	}
	if _, err := NewSnowflake(maxWorkerID + 1); err == nil {
		t.Fatalf("expected oversized worker rejected")
	}
	if err := Init(maxWorkerID + 1); err == nil {
		t.Fatalf("expected Init to reject oversized worker")
	}
}

func TestGenerateUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(7)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	const n = 10000
	var last int64
	for i := 0; i < n; i++ {
		id := s.Generate()
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		if worker := (id >> workerIDShift) & maxWorkerID; worker != 7 {
			t.Fatalf("expected worker 7 encoded, got %d", worker)
		}
		last = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	s, _ := NewSnowflake(1)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, 1000)
			for i := 0; i < 1000; i++ {
				local = append(local, s.Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 8000 {
		t.Fatalf("expected 8000 unique ids, got %d", len(seen))
	}
}

func TestTransactionNoRoundTrip(t *testing.T) {
	if err := Init(3); err != nil {
		t.Fatalf("init: %v", err)
	}
	before := time.Now().Add(-time.Second)
	no := GenerateTransactionNo()
	if !strings.HasPrefix(no, TransactionPrefix) {
		t.Fatalf("missing prefix in %q", no)
	}

	id, err := ParseTransactionNo(no)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ts := issuedAt(id); ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("unexpected timestamp %s", ts)
	}

	for _, bad := range []string{"", "TXN", "ORD123", "TXNabc"} {
		if _, err := ParseTransactionNo(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}
