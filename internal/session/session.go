package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2006-sk/Backend-hackharvard/internal/risk"
)

// State is the lifecycle state of a session.
type State int

const (
	StateActive State = iota
	StateEnded
)

var stateNames = map[State]string{
	StateActive: "active",
	StateEnded:  "ended",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// signal is a lifecycle transition request fed to the reducer.
type signal int

const (
	signalUpdate signal = iota
	signalEnd
)

// Lifecycle errors. DuplicateSession covers an attempt to resurrect an
// identifier that already completed a call; redelivered start signals for a
// still-active identifier are tolerated as no-ops instead.
var (
	ErrDuplicateSession = errors.New("duplicate session")
	ErrSessionEnded     = errors.New("session ended")
	ErrUnknownSession   = errors.New("unknown session")
)

// nextState is the pure lifecycle reducer: given the current state and a
// transition signal it returns the next state, or an error when the machine
// refuses the transition. Ended is terminal.
func nextState(current State, sig signal) (State, error) {
	if current == StateEnded {
		return StateEnded, ErrSessionEnded
	}

	switch sig {
	case signalUpdate:
		return StateActive, nil
	case signalEnd:
		return StateEnded, nil
	default:
		return current, fmt.Errorf("unknown lifecycle signal %d", sig)
	}
}

// Update is one observation within a session. Immutable once appended.
type Update struct {
	Text      string    `json:"text"`
	CleanText string    `json:"clean_text"`
	Score     float64   `json:"risk"`
	Band      risk.Band `json:"band"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a read-only copy of a session's state. Stores never hand out
// live references, so readers and the per-session mutator cannot race.
type Snapshot struct {
	ID           string        `json:"streamSid"`
	State        State         `json:"state"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	Duration     time.Duration `json:"-"`
	Transcript   string        `json:"text"`
	CleanText    string        `json:"clean_text"`
	Score        float64       `json:"risk"`
	Band         risk.Band     `json:"band"`
	FinalScore   *float64      `json:"final_score,omitempty"`
	AlertFired   bool          `json:"alert_fired"`
	UpdateCount  int           `json:"update_count"`
	Updates      []Update      `json:"-"`
	LastActivity time.Time     `json:"last_activity"`
}

// DurationSeconds returns the session duration in seconds for wire payloads.
func (s Snapshot) DurationSeconds() float64 {
	return s.Duration.Seconds()
}

// callSession is the live mutable record. All access goes through the
// owning store shard, which serializes mutation per identifier.
type callSession struct {
	id           string
	state        State
	startTime    time.Time
	endTime      *time.Time
	transcript   string
	cleanText    string
	score        float64
	band         risk.Band
	finalScore   *float64
	alertFired   bool
	updates      []Update
	lastActivity time.Time
}

func newCallSession(id string, startTime time.Time) *callSession {
	return &callSession{
		id:           id,
		state:        StateActive,
		startTime:    startTime,
		band:         risk.BandSafe,
		lastActivity: startTime,
	}
}

// snapshot deep-copies the session; the updates slice is duplicated so the
// caller can hold it across later mutations.
func (c *callSession) snapshot() Snapshot {
	snap := Snapshot{
		ID:           c.id,
		State:        c.state,
		StartTime:    c.startTime,
		Transcript:   c.transcript,
		CleanText:    c.cleanText,
		Score:        c.score,
		Band:         c.band,
		AlertFired:   c.alertFired,
		UpdateCount:  len(c.updates),
		LastActivity: c.lastActivity,
	}

	if c.endTime != nil {
		t := *c.endTime
		snap.EndTime = &t
		snap.Duration = t.Sub(c.startTime)
	} else {
		snap.Duration = time.Since(c.startTime)
	}

	if c.finalScore != nil {
		f := *c.finalScore
		snap.FinalScore = &f
	}

	if len(c.updates) > 0 {
		snap.Updates = make([]Update, len(c.updates))
		copy(snap.Updates, c.updates)
	}

	return snap
}
