// Package risk screens stored transcripts in two phases: a fast scam
// probability from the classifier, then advice from a language model when
// the score is high enough.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

const (
	DefaultThreshold = 50
	DefaultMinChars  = 6

	advisoryErrorPrefix = "Error: "
)

type Classification struct {
	TextReceived string
	Probability  float64
	IsRisk       bool
	Advice       string
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

type Advisor interface {
	// Mode names the request shape for logs and metrics.
	Mode() string
	Advise(ctx context.Context, text string) (string, error)
}

// Clients is the pair of endpoints in use. The pipeline swaps the whole
// pair at once when provider settings change.
type Clients struct {
	Classifier Classifier
	Advisor    Advisor
}

type ClassificationError struct {
	RecordID string
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.RecordID, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type AdvisoryError struct {
	RecordID string
	Err      error
}

func (e *AdvisoryError) Error() string {
	return fmt.Sprintf("advise %s: %v", e.RecordID, e.Err)
}

func (e *AdvisoryError) Unwrap() error { return e.Err }

var errInvalidProbability = errors.New("probability is not a number")

// Score converts a probability to a 0..100 risk score.
func Score(probability float64) (int, error) {
	if math.IsNaN(probability) || math.IsInf(probability, 0) {
		return 0, errInvalidProbability
	}
	score := int(math.Round(probability * 100))
	return min(max(score, 0), 100), nil
}

var thinkSpan = regexp.MustCompile(`(?is)<think>.*?</think>`)

// StripThink removes model reasoning spans from advice text.
func StripThink(s string) string {
	return strings.TrimSpace(thinkSpan.ReplaceAllString(s, ""))
}

// AdviceForError is what gets stored as advice when generation fails.
func AdviceForError(err error) string {
	var advErr *AdvisoryError
	if errors.As(err, &advErr) && advErr.Err != nil {
		err = advErr.Err
	}
	return advisoryErrorPrefix + err.Error()
}
