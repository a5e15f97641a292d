package risk

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{0.0, BandSafe},
		{0.01, BandLow},
		{0.39, BandLow},
		{0.4, BandMedium},
		{0.69, BandMedium},
		{0.7, BandHigh},
		{0.95, BandHigh},
		{1.0, BandHigh},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("score_%.2f", tt.score), func(t *testing.T) {
			if got := BandFor(tt.score); got != tt.want {
				t.Errorf("Expected band %v for score %f, got %v", tt.want, tt.score, got)
			}
		})
	}
}

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		name          string
		previousFired bool
		score         float64
		want          bool
	}{
		{"below threshold", false, 0.85, false},
		{"above threshold", false, 0.86, true},
		{"already fired", true, 0.99, false},
		{"safe score", false, 0.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAlert(tt.previousFired, tt.score); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Hello World", "hello world"},
		{"  MIXED   Case\tText \n", "mixed case text"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := CleanText(tt.raw); got != tt.want {
			t.Errorf("CleanText(%q): expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}

type stubClassifier struct {
	score float64
	err   error
}

func (s stubClassifier) Classify(ctx context.Context, text string) (float64, error) {
	return s.score, s.err
}

func TestNewEvaluatorRequiresClassifier(t *testing.T) {
	if _, err := NewEvaluator(nil); err == nil {
		t.Errorf("Expected error for nil classifier")
	}
}

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator(stubClassifier{score: 0.55})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	score, band, err := eval.Evaluate(context.Background(), "send me gift cards")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if score != 0.55 {
		t.Errorf("Expected score 0.55, got %f", score)
	}
	if band != BandMedium {
		t.Errorf("Expected band MEDIUM, got %v", band)
	}
}

func TestEvaluateClassifierFailure(t *testing.T) {
	eval, _ := NewEvaluator(stubClassifier{err: errors.New("connection refused")})

	_, _, err := eval.Evaluate(context.Background(), "text")
	if !errors.Is(err, ErrClassificationFailed) {
		t.Errorf("Expected ErrClassificationFailed, got %v", err)
	}
}

func TestEvaluateOutOfRangeScore(t *testing.T) {
	eval, _ := NewEvaluator(stubClassifier{score: 1.5})

	_, _, err := eval.Evaluate(context.Background(), "text")
	if !errors.Is(err, ErrClassificationFailed) {
		t.Errorf("Expected ErrClassificationFailed for out-of-range score, got %v", err)
	}
}
