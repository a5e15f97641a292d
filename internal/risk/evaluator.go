package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Band is a coarse risk bucket derived from a continuous score.
type Band string

const (
	BandSafe   Band = "SAFE"
	BandLow    Band = "LOW"
	BandMedium Band = "MEDIUM"
	BandHigh   Band = "HIGH"
)

// Fixed banding thresholds. These are policy, not configuration.
const (
	highThreshold   = 0.7
	mediumThreshold = 0.4

	// AlertThreshold is the score above which a session fires its
	// one-shot fraud alert.
	AlertThreshold = 0.85
)

// ErrClassificationFailed indicates the external classifier could not score
// the text (timeout, transport failure, malformed response). Callers keep the
// session's last known risk state and carry it forward.
var ErrClassificationFailed = errors.New("classification failed")

// Classifier scores a transcript fragment for scam likelihood.
// Implementations call an external model service; the score is in [0,1].
type Classifier interface {
	Classify(ctx context.Context, text string) (float64, error)
}

// BandFor maps a score to its risk band. A zero score is SAFE; sessions that
// have never produced a transcript report SAFE by construction because they
// start at score zero.
func BandFor(score float64) Band {
	switch {
	case score >= highThreshold:
		return BandHigh
	case score >= mediumThreshold:
		return BandMedium
	case score > 0:
		return BandLow
	default:
		return BandSafe
	}
}

// ShouldAlert reports whether a session crossing the alert threshold should
// fire its alert now. It is a pure function: the caller must persist
// previousFired before re-evaluating, which makes the decision idempotent
// under redelivery.
func ShouldAlert(previousFired bool, score float64) bool {
	return !previousFired && score > AlertThreshold
}

// CleanText normalizes a raw transcript fragment for classification:
// lowercased, trimmed, inner whitespace collapsed.
func CleanText(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Evaluator wraps a Classifier and applies the fixed banding policy.
type Evaluator struct {
	classifier Classifier
}

// NewEvaluator creates an evaluator backed by the given classifier.
func NewEvaluator(classifier Classifier) (*Evaluator, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	return &Evaluator{classifier: classifier}, nil
}

// Evaluate scores the text and derives its band. A classifier failure is
// reported as ErrClassificationFailed; the caller retains its last-known-good
// risk state in that case.
func (e *Evaluator) Evaluate(ctx context.Context, text string) (float64, Band, error) {
	score, err := e.classifier.Classify(ctx, text)
	if err != nil {
		return 0, BandSafe, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	if score < 0 || score > 1 {
		return 0, BandSafe, fmt.Errorf("%w: score %f outside [0,1]", ErrClassificationFailed, score)
	}

	return score, BandFor(score), nil
}
