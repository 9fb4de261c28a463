package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"review-sentiment/internal/decision"
)

// Classifier returns ranked sentiment predictions for a piece of text.
type Classifier interface {
	Name() string
	Enabled() bool
	Classify(ctx context.Context, text string) ([]Prediction, error)
}

// Prediction is one (label, score) pair as reported by a model.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

var (
	ErrDisabled  = errors.New("sentiment classifier disabled")
	ErrMalformed = errors.New("malformed classifier output")
	ErrEmptyText = errors.New("text to classify is empty")
)

const scoreTolerance = 1e-9

// attributed is implemented by composite classifiers that can report which member
// produced the predictions.
type attributed interface {
	classifyNamed(ctx context.Context, text string) ([]Prediction, string, error)
}

// ClassifyNamed classifies text and returns the name of the classifier that actually
// answered. For a fallback chain that is the fallback's name whenever the primary failed.
func ClassifyNamed(ctx context.Context, c Classifier, text string) ([]Prediction, string, error) {
	if c == nil {
		return nil, "", ErrDisabled
	}
	if a, ok := c.(attributed); ok {
		return a.classifyNamed(ctx, text)
	}
	predictions, err := c.Classify(ctx, text)
	return predictions, c.Name(), err
}

// Top validates raw predictions and returns the first one as a typed result. Labels are
// trimmed and upper-cased; the score stays attached to the label it came with.
func Top(predictions []Prediction) (decision.Result, error) {
	if len(predictions) == 0 {
		return decision.Result{}, fmt.Errorf("%w: no predictions", ErrMalformed)
	}
	first := predictions[0]
	label := strings.ToUpper(strings.TrimSpace(first.Label))
	if label == "" {
		return decision.Result{}, fmt.Errorf("%w: empty label", ErrMalformed)
	}
	score := first.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return decision.Result{}, fmt.Errorf("%w: score is not a number", ErrMalformed)
	}
	if score < -scoreTolerance || score > 1+scoreTolerance {
		return decision.Result{}, fmt.Errorf("%w: score %v outside [0,1]", ErrMalformed, score)
	}
	return decision.Result{Label: label, Score: clampFloat(score, 0, 1)}, nil
}

// rank sorts predictions by descending score without reordering ties.
func rank(predictions []Prediction) []Prediction {
	out := make([]Prediction, len(predictions))
	copy(out, predictions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
