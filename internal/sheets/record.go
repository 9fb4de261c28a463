package sheets

import (
	"time"

	"review-sentiment/internal/decision"
	"review-sentiment/internal/util"
)

// MaxReviewRunes caps the review text shipped to the spreadsheet.
const MaxReviewRunes = 500

// Record is the JSON row appended to the spreadsheet for each analysis.
type Record struct {
	Timestamp       string         `json:"timestamp"`
	AnalysisID      string         `json:"analysis_id,omitempty"`
	Review          string         `json:"review"`
	Sentiment       string         `json:"sentiment"`
	Confidence      string         `json:"confidence"`
	NormalizedScore float64        `json:"normalized_score"`
	ActionTaken     string         `json:"action_taken"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// NewRecord builds a log row from one completed analysis. Sentiment carries the display
// label, so a positive or negative result at or below 0.5 confidence is logged as NEUTRAL.
func NewRecord(at time.Time, review string, result decision.Result, d decision.Decision, meta map[string]any) Record {
	return Record{
		Timestamp:       at.UTC().Format(time.RFC3339Nano),
		Review:          util.Excerpt(review, MaxReviewRunes),
		Sentiment:       decision.Describe(result).Label,
		Confidence:      decision.ConfidencePercent(result.Score),
		NormalizedScore: decision.Normalize(result.Label, result.Score),
		ActionTaken:     string(d.Action),
		Meta:            meta,
	}
}
