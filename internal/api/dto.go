package api

import (
	"math"
	"time"

	"review-sentiment/internal/decision"
	"review-sentiment/internal/sheets"
	"review-sentiment/internal/store"
)

// AnalyzeRequest is the optional body of POST /api/analyze. Without text a random review
// is analysed.
type AnalyzeRequest struct {
	Text   string `json:"text"`
	Locale string `json:"locale"`
}

// AnalyzeResponse is returned for one completed analysis.
type AnalyzeResponse struct {
	AnalysisID       string             `json:"analysis_id"`
	Review           string             `json:"review"`
	Sentiment        decision.Sentiment `json:"sentiment"`
	NormalizedScore  float64            `json:"normalized_score"`
	Decision         decision.Decision  `json:"decision"`
	Classifier       string             `json:"classifier"`
	Locale           string             `json:"locale"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	LogQueued        bool               `json:"log_queued"`
}

// DecideResponse is returned by the stateless decision endpoint.
type DecideResponse struct {
	Label           string            `json:"label"`
	Score           float64           `json:"score"`
	NormalizedScore float64           `json:"normalized_score"`
	Decision        decision.Decision `json:"decision"`
}

// StatusResponse describes readiness and collaborators.
type StatusResponse struct {
	Ready          bool         `json:"ready"`
	Analyzing      bool         `json:"analyzing"`
	Reviews        int          `json:"reviews"`
	ReviewSource   string       `json:"review_source"`
	Classifier     string       `json:"classifier"`
	WebhookEnabled bool         `json:"webhook_enabled"`
	Sheets         sheets.Stats `json:"sheets"`
	Analyses       int64        `json:"analyses"`
	Locales        []string     `json:"locales"`
	StartedAt      *time.Time   `json:"started_at,omitempty"`
}

// ReviewsResponse is a page of loaded reviews.
type ReviewsResponse struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

// AnalysisDTO is the API representation of a persisted analysis.
type AnalysisDTO struct {
	ID               string         `json:"id"`
	Review           string         `json:"review"`
	Excerpt          string         `json:"excerpt"`
	Label            string         `json:"label"`
	Confidence       float64        `json:"confidence"`
	NormalizedScore  float64        `json:"normalized_score"`
	Action           string         `json:"action"`
	Classifier       string         `json:"classifier"`
	Locale           string         `json:"locale"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	Meta             map[string]any `json:"meta,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AnalysesResponse holds a page of analyses and the filtered total.
type AnalysesResponse struct {
	Items []AnalysisDTO `json:"items"`
	Total int64         `json:"total"`
}

// SummaryResponse aggregates the analysis history.
type SummaryResponse struct {
	Total    int64               `json:"total"`
	ByAction []store.ActionCount `json:"by_action"`
	ByLabel  map[string]int64    `json:"by_label"`
}

// FromModel converts a store.Analysis into the DTO representation.
func FromModel(a store.Analysis) AnalysisDTO {
	return AnalysisDTO{
		ID:               a.ID,
		Review:           a.Review,
		Excerpt:          a.Excerpt,
		Label:            a.Label,
		Confidence:       round4(a.Confidence),
		NormalizedScore:  round4(a.NormalizedScore),
		Action:           a.Action,
		Classifier:       a.Classifier,
		Locale:           a.Locale,
		ProcessingTimeMs: a.ProcessingTimeMs,
		Meta:             a.Meta(),
		CreatedAt:        a.CreatedAt,
	}
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}
