package decision

import "fmt"

// Sentiment is the display view of a raw classification.
type Sentiment struct {
	Category   string  `json:"category"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Icon       string  `json:"icon"`
	Confidence string  `json:"confidence"`
}

// Describe renders a classifier result for display. Only a confident (>0.5) positive or
// negative label earns its own category; everything else is shown as neutral.
func Describe(r Result) Sentiment {
	score := clamp(r.Score)
	s := Sentiment{
		Category:   "neutral",
		Label:      LabelNeutral,
		Score:      score,
		Icon:       "fa-question-circle",
		Confidence: ConfidencePercent(score),
	}
	switch {
	case r.Label == LabelPositive && score > 0.5:
		s.Category, s.Label, s.Icon = "positive", LabelPositive, "fa-thumbs-up"
	case r.Label == LabelNegative && score > 0.5:
		s.Category, s.Label, s.Icon = "negative", LabelNegative, "fa-thumbs-down"
	}
	return s
}

// ConfidencePercent formats a [0,1] score as a one-decimal percentage string ("93.4").
func ConfidencePercent(score float64) string {
	return fmt.Sprintf("%.1f", clamp(score)*100)
}
