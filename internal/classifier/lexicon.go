package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"review-sentiment/internal/decision"
)

var (
	defaultPositive = []string{
		"good", "great", "excellent", "amazing", "love", "loved", "perfect", "perfectly", "best",
		"happy", "recommend", "awesome", "fantastic", "nice", "wonderful", "works", "delicious", "fast",
	}
	defaultNegative = []string{
		"bad", "terrible", "awful", "worst", "hate", "hated", "broken", "broke", "poor", "disappointed",
		"disappointing", "refund", "stopped", "waste", "slow", "horrible", "useless",
	}
	defaultNegators = []string{"not", "never", "no", "don't", "didn't", "isn't", "wasn't"}
)

// LexiconTerms is the on-disk word list format.
type LexiconTerms struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
	Negators []string `json:"negators"`
}

// Lexicon is an offline word-list classifier used when the hosted model is unavailable.
// It never fails on non-empty text and reports NEUTRAL when positive and negative evidence
// cancel out.
type Lexicon struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
}

// NewLexicon returns a lexicon over the built-in English word lists.
func NewLexicon() *Lexicon {
	return newLexicon(LexiconTerms{Positive: defaultPositive, Negative: defaultNegative, Negators: defaultNegators})
}

// LoadLexicon reads word lists from a JSON file. Lists missing from the file keep their
// built-in defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	var terms LexiconTerms
	if err := json.Unmarshal(data, &terms); err != nil {
		return nil, fmt.Errorf("unmarshal lexicon: %w", err)
	}
	if len(terms.Positive) == 0 {
		terms.Positive = defaultPositive
	}
	if len(terms.Negative) == 0 {
		terms.Negative = defaultNegative
	}
	if len(terms.Negators) == 0 {
		terms.Negators = defaultNegators
	}
	return newLexicon(terms), nil
}

func newLexicon(terms LexiconTerms) *Lexicon {
	return &Lexicon{
		positive: termSet(terms.Positive),
		negative: termSet(terms.Negative),
		negators: termSet(terms.Negators),
	}
}

func termSet(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			out[term] = struct{}{}
		}
	}
	return out
}

func (l *Lexicon) Name() string  { return "lexicon" }
func (l *Lexicon) Enabled() bool { return l != nil }

func (l *Lexicon) Classify(ctx context.Context, text string) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var pos, neg int
	negate := false
	for _, word := range tokenize(text) {
		if _, ok := l.negators[word]; ok {
			negate = true
			continue
		}
		_, isPos := l.positive[word]
		_, isNeg := l.negative[word]
		if negate {
			isPos, isNeg = isNeg, isPos
			negate = false
		}
		if isPos {
			pos++
		}
		if isNeg {
			neg++
		}
	}

	if pos == neg {
		return []Prediction{{Label: decision.LabelNeutral, Score: 0.5}}, nil
	}
	margin := float64(pos-neg) / float64(pos+neg)
	if margin < 0 {
		margin = -margin
	}
	score := clampFloat(0.55+0.4*margin, 0, 1)
	winner, loser := decision.LabelPositive, decision.LabelNegative
	if neg > pos {
		winner, loser = loser, winner
	}
	return []Prediction{{Label: winner, Score: score}, {Label: loser, Score: 1 - score}}, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
