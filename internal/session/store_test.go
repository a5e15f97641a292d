package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/risk"
)

func TestStartCreatesActiveSession(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	snap, created, err := store.Start("CA123", now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !created {
		t.Errorf("Expected session to be created")
	}
	if snap.State != StateActive {
		t.Errorf("Expected state active, got %v", snap.State)
	}
	if snap.Band != risk.BandSafe {
		t.Errorf("Expected initial band SAFE, got %v", snap.Band)
	}
	if store.ActiveCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", store.ActiveCount())
	}
}

func TestStartRedeliveryIsNoOp(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	if _, _, err := store.Start("CA123", now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	snap, created, err := store.Start("CA123", now.Add(time.Second))
	if err != nil {
		t.Fatalf("Expected redelivered start to be tolerated, got %v", err)
	}
	if created {
		t.Errorf("Expected no new session for redelivered start")
	}
	if snap.ID != "CA123" {
		t.Errorf("Expected existing session snapshot, got %s", snap.ID)
	}
	if store.ActiveCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", store.ActiveCount())
	}
}

func TestStartRejectsCompletedIdentifier(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	store.Start("CA123", now)
	if _, err := store.End("CA123", 0.3, 0, now.Add(time.Minute)); err != nil {
		t.Fatalf("Expected no error ending session, got %v", err)
	}

	_, _, err := store.Start("CA123", now.Add(2*time.Minute))
	if !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("Expected ErrDuplicateSession, got %v", err)
	}
}

func TestApplyUpdateOverwritesLatest(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	store.ApplyUpdate("CA123", "hello there", "hello there", 0.2, risk.BandSafe, now.Add(time.Second))
	snap, _, err := store.ApplyUpdate("CA123", "wire me money", "wire me money", 0.6, risk.BandMedium, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if snap.Transcript != "wire me money" {
		t.Errorf("Expected latest transcript, got %q", snap.Transcript)
	}
	if snap.Score != 0.6 {
		t.Errorf("Expected score 0.6, got %f", snap.Score)
	}
	if snap.Band != risk.BandMedium {
		t.Errorf("Expected band MEDIUM, got %v", snap.Band)
	}
	if snap.UpdateCount != 2 {
		t.Errorf("Expected 2 updates, got %d", snap.UpdateCount)
	}
}

func TestApplyUpdateCreatesSessionImplicitly(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	snap, _, err := store.ApplyUpdate("CA999", "text", "text", 0.1, risk.BandSafe, now)
	if err != nil {
		t.Fatalf("Expected implicit session creation, got %v", err)
	}
	if snap.State != StateActive {
		t.Errorf("Expected state active, got %v", snap.State)
	}
	if store.ActiveCount() != 1 {
		t.Errorf("Expected 1 active session, got %d", store.ActiveCount())
	}
}

func TestApplyUpdateAfterEnd(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	store.Start("CA123", now)
	store.End("CA123", 0.1, 0, now.Add(time.Minute))

	_, _, err := store.ApplyUpdate("CA123", "late", "late", 0.5, risk.BandMedium, now.Add(2*time.Minute))
	if !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}
}

func TestAlertFiresExactlyOnce(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	_, alerted, _ := store.ApplyUpdate("CA123", "a", "a", 0.5, risk.BandMedium, now)
	if alerted {
		t.Errorf("Expected no alert at score 0.5")
	}

	_, alerted, _ = store.ApplyUpdate("CA123", "b", "b", 0.9, risk.BandHigh, now)
	if !alerted {
		t.Errorf("Expected alert at score 0.9")
	}

	_, alerted, _ = store.ApplyUpdate("CA123", "c", "c", 0.95, risk.BandHigh, now)
	if alerted {
		t.Errorf("Expected alert to fire at most once per session")
	}

	snap, _ := store.Get("CA123")
	if !snap.AlertFired {
		t.Errorf("Expected AlertFired to remain set")
	}
}

func TestApplyStaleUpdateCarriesRiskForward(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	store.ApplyUpdate("CA123", "a", "a", 0.65, risk.BandMedium, now)

	snap, alerted, err := store.ApplyStaleUpdate("CA123", "b", "b", now.Add(time.Second))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if alerted {
		t.Errorf("Expected no alert from carried-forward score")
	}
	if snap.Score != 0.65 {
		t.Errorf("Expected carried-forward score 0.65, got %f", snap.Score)
	}
	if snap.Band != risk.BandMedium {
		t.Errorf("Expected carried-forward band MEDIUM, got %v", snap.Band)
	}
	if snap.Transcript != "b" {
		t.Errorf("Expected transcript to advance, got %q", snap.Transcript)
	}
}

func TestEndMovesSessionToRecent(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	snap, err := store.End("CA123", 0.42, 0, now.Add(90*time.Second))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.State != StateEnded {
		t.Errorf("Expected state ended, got %v", snap.State)
	}
	if snap.FinalScore == nil || *snap.FinalScore != 0.42 {
		t.Errorf("Expected final score 0.42, got %v", snap.FinalScore)
	}
	if snap.Duration != 90*time.Second {
		t.Errorf("Expected duration 90s, got %v", snap.Duration)
	}

	if store.ActiveCount() != 0 {
		t.Errorf("Expected no active sessions, got %d", store.ActiveCount())
	}
	recent := store.Recent()
	if len(recent) != 1 || recent[0].ID != "CA123" {
		t.Errorf("Expected ended session in recent history, got %v", recent)
	}
}

func TestEndUnknownSession(t *testing.T) {
	store := NewStore(10)

	_, err := store.End("missing", 0, 0, time.Now())
	if !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestEndTwice(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)
	store.End("CA123", 0.1, 0, now.Add(time.Minute))

	_, err := store.End("CA123", 0.1, 0, now.Add(2*time.Minute))
	if !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded on second end, got %v", err)
	}
}

func TestEndDurationOverride(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	snap, err := store.End("CA123", 0.1, 45*time.Second, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.Duration != 45*time.Second {
		t.Errorf("Expected overridden duration 45s, got %v", snap.Duration)
	}
}

func TestRecentHistoryBounded(t *testing.T) {
	store := NewStore(3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("CA%d", i)
		store.Start(id, now)
		store.End(id, 0.1, 0, now.Add(time.Duration(i+1)*time.Second))
	}

	recent := store.Recent()
	if len(recent) != 3 {
		t.Fatalf("Expected recent history bounded at 3, got %d", len(recent))
	}
	// Oldest entries are evicted first.
	if recent[0].ID != "CA2" || recent[2].ID != "CA4" {
		t.Errorf("Expected CA2..CA4 in order, got %s..%s", recent[0].ID, recent[2].ID)
	}
}

func TestGetFindsRecentSession(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)
	store.End("CA123", 0.2, 0, now.Add(time.Minute))

	snap, ok := store.Get("CA123")
	if !ok {
		t.Fatalf("Expected to find ended session in recent history")
	}
	if snap.State != StateEnded {
		t.Errorf("Expected state ended, got %v", snap.State)
	}

	if _, ok := store.Get("missing"); ok {
		t.Errorf("Expected missing session to not be found")
	}
}

func TestExpired(t *testing.T) {
	store := NewStore(10)
	base := time.Now()

	store.Start("fresh", base)
	store.Start("stale", base)
	store.Touch("fresh", base.Add(4*time.Minute))

	expired := store.Expired(5*time.Minute, base.Add(6*time.Minute))
	if len(expired) != 1 || expired[0] != "stale" {
		t.Errorf("Expected only stale session to expire, got %v", expired)
	}
}

func TestConcurrentUpdatesDistinctSessions(t *testing.T) {
	store := NewStore(10)
	now := time.Now()

	const sessions = 16
	const updatesPerSession = 50

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("CA%03d", i)
		store.Start(id, now)

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < updatesPerSession; j++ {
				_, _, err := store.ApplyUpdate(id, "text", "text", 0.3, risk.BandSafe, time.Now())
				if err != nil {
					t.Errorf("Unexpected error for %s: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("CA%03d", i)
		snap, ok := store.Get(id)
		if !ok {
			t.Fatalf("Expected session %s to exist", id)
		}
		if snap.UpdateCount != updatesPerSession {
			t.Errorf("Expected %d updates for %s, got %d", updatesPerSession, id, snap.UpdateCount)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore(10)
	now := time.Now()
	store.Start("CA123", now)

	snap1, _, _ := store.ApplyUpdate("CA123", "first", "first", 0.2, risk.BandSafe, now)
	store.ApplyUpdate("CA123", "second", "second", 0.6, risk.BandMedium, now.Add(time.Second))

	if snap1.Transcript != "first" {
		t.Errorf("Expected earlier snapshot to be unaffected, got %q", snap1.Transcript)
	}
	if snap1.UpdateCount != 1 {
		t.Errorf("Expected earlier snapshot update count 1, got %d", snap1.UpdateCount)
	}
}
