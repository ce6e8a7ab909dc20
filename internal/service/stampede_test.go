package service

import (
	"sync"
	"testing"
)

// TestStampedeTracker_RecordMiss_RecordHit verifies per-key counting and cleanup.
func TestStampedeTracker_RecordMiss_RecordHit(t *testing.T) {
	st := newStampedeTracker()
	key := "weather/zipcode/95014"

	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss first = %d, want 1", got)
	}
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("RecordMiss second = %d, want 2", got)
	}
	if got := st.RecordMiss("weather/zipcode/10001"); got != 1 {
		t.Errorf("RecordMiss other key = %d, want 1", got)
	}

	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 2 {
		t.Errorf("RecordMiss after one hit = %d, want 2", got)
	}
	st.RecordHit(key)
	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss after all hits = %d, want 1", got)
	}
	st.RecordHit(key)

	// Unpaired hits never go negative.
	st.RecordHit(key)
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss after extra hit = %d, want 1", got)
	}
}

// TestStampedeTracker_Concurrent verifies concurrent use leaves no active misses.
func TestStampedeTracker_Concurrent(t *testing.T) {
	st := newStampedeTracker()
	key := "weather/coordinates/37.3318_-122.0312"
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.RecordMiss(key)
			st.RecordHit(key)
		}()
	}
	wg.Wait()
	if got := st.RecordMiss(key); got != 1 {
		t.Errorf("RecordMiss after concurrent ops = %d, want 1", got)
	}
}
