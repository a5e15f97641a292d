package session

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/risk"
)

const numShards = 32

// DefaultRecentLimit bounds the recent-history list of ended calls.
const DefaultRecentLimit = 10

// Store is the sole owner and mutator of session state. Sessions are
// distributed over a fixed set of shards keyed by identifier hash, so
// mutation is serialized per identifier while unrelated calls proceed in
// parallel. There is deliberately no lock spanning all sessions.
type Store struct {
	shards [numShards]shard

	recentMu    sync.RWMutex
	recent      []Snapshot
	recentLimit int
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*callSession
}

// NewStore creates a session store. recentLimit bounds the ended-call
// history; values below 1 fall back to DefaultRecentLimit.
func NewStore(recentLimit int) *Store {
	if recentLimit < 1 {
		recentLimit = DefaultRecentLimit
	}

	s := &Store{recentLimit: recentLimit}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*callSession)
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%numShards]
}

// Start creates a new active session. A redelivered start signal for an
// already-active identifier is a no-op (telephony bridges redeliver).
// Reusing the identifier of a completed call fails with ErrDuplicateSession.
// The returned bool reports whether a session was actually created.
func (s *Store) Start(id string, startTime time.Time) (Snapshot, bool, error) {
	if id == "" {
		return Snapshot{}, false, fmt.Errorf("session id cannot be empty")
	}

	if s.inRecent(id) {
		return Snapshot{}, false, fmt.Errorf("%w: %s already completed a call", ErrDuplicateSession, id)
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.sessions[id]; ok {
		return existing.snapshot(), false, nil
	}

	sess := newCallSession(id, startTime)
	sh.sessions[id] = sess
	return sess.snapshot(), true, nil
}

// ApplyUpdate records one observation. If no session exists yet one is
// created implicitly with start time = now (the bridge delivers at least
// once, and media can outrun signaling). Latest transcript/score/band are
// overwritten, the update is appended, and the one-shot alert decision is
// taken under the same lock so it can fire at most once per session.
// The returned bool reports whether the alert fired on this update.
func (s *Store) ApplyUpdate(id, text, cleanText string, score float64, band risk.Band, now time.Time) (Snapshot, bool, error) {
	return s.applyUpdate(id, text, cleanText, &score, band, now)
}

// ApplyStaleUpdate records an observation whose classification failed: the
// update is appended with the session's last known score and band carried
// forward, so subscribers never see a blank risk value.
func (s *Store) ApplyStaleUpdate(id, text, cleanText string, now time.Time) (Snapshot, bool, error) {
	return s.applyUpdate(id, text, cleanText, nil, "", now)
}

func (s *Store) applyUpdate(id, text, cleanText string, score *float64, band risk.Band, now time.Time) (Snapshot, bool, error) {
	if s.inRecent(id) {
		return Snapshot{}, false, fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		sess = newCallSession(id, now)
		sh.sessions[id] = sess
	}

	next, err := nextState(sess.state, signalUpdate)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %s", err, id)
	}
	sess.state = next

	if score == nil {
		// Carry the last-known-good risk forward.
		sc := sess.score
		score = &sc
		band = sess.band
	}

	sess.transcript = text
	sess.cleanText = cleanText
	sess.score = *score
	sess.band = band
	sess.lastActivity = now
	sess.updates = append(sess.updates, Update{
		Text:      text,
		CleanText: cleanText,
		Score:     *score,
		Band:      band,
		Timestamp: now,
	})

	alerted := risk.ShouldAlert(sess.alertFired, *score)
	if alerted {
		sess.alertFired = true
	}

	return sess.snapshot(), alerted, nil
}

// End transitions a session to its terminal state and moves it into the
// recent-history list. durationOverride, when positive, replaces the
// computed wall-clock duration (the bridge reports its own timing).
func (s *Store) End(id string, finalScore float64, durationOverride time.Duration, endTime time.Time) (Snapshot, error) {
	if s.inRecent(id) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionEnded, id)
	}

	sh := s.shardFor(id)
	sh.mu.Lock()

	sess, ok := sh.sessions[id]
	if !ok {
		sh.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	next, err := nextState(sess.state, signalEnd)
	if err != nil {
		sh.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %s", err, id)
	}
	sess.state = next

	t := endTime
	sess.endTime = &t
	sess.finalScore = &finalScore
	if durationOverride > 0 {
		sess.startTime = endTime.Add(-durationOverride)
	}
	sess.lastActivity = endTime

	snap := sess.snapshot()
	delete(sh.sessions, id)
	sh.mu.Unlock()

	s.pushRecent(snap)
	return snap, nil
}

// Get returns a read-only snapshot of an active or recently ended session.
func (s *Store) Get(id string) (Snapshot, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	if sess, ok := sh.sessions[id]; ok {
		snap := sess.snapshot()
		sh.mu.RUnlock()
		return snap, true
	}
	sh.mu.RUnlock()

	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].ID == id {
			return s.recent[i], true
		}
	}
	return Snapshot{}, false
}

// Touch refreshes a session's last-activity time, used by the inactivity
// reaper. Unknown identifiers are ignored.
func (s *Store) Touch(id string, now time.Time) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sess, ok := sh.sessions[id]; ok {
		sess.lastActivity = now
	}
}

// Active returns snapshots of all active sessions.
func (s *Store) Active() []Snapshot {
	var result []Snapshot
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			result = append(result, sess.snapshot())
		}
		sh.mu.RUnlock()
	}
	return result
}

// ActiveCount returns the number of active sessions.
func (s *Store) ActiveCount() int {
	count := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		count += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return count
}

// Expired returns the identifiers of active sessions with no activity for
// longer than timeout.
func (s *Store) Expired(timeout time.Duration, now time.Time) []string {
	var expired []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for id, sess := range sh.sessions {
			if now.Sub(sess.lastActivity) > timeout {
				expired = append(expired, id)
			}
		}
		sh.mu.RUnlock()
	}
	return expired
}

// Recent returns the ended-call history, oldest first. Never exceeds the
// configured bound.
func (s *Store) Recent() []Snapshot {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()

	result := make([]Snapshot, len(s.recent))
	copy(result, s.recent)
	return result
}

func (s *Store) pushRecent(snap Snapshot) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()

	s.recent = append(s.recent, snap)
	if len(s.recent) > s.recentLimit {
		s.recent = s.recent[len(s.recent)-s.recentLimit:]
	}
}

func (s *Store) inRecent(id string) bool {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	for _, snap := range s.recent {
		if snap.ID == id {
			return true
		}
	}
	return false
}
