package decision

import "testing"

func TestDescribe(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		category   string
		icon       string
		confidence string
	}{
		{"positive", Result{Label: LabelPositive, Score: 0.9876}, "positive", "fa-thumbs-up", "98.8"},
		{"negative", Result{Label: LabelNegative, Score: 0.91}, "negative", "fa-thumbs-down", "91.0"},
		{"weak positive", Result{Label: LabelPositive, Score: 0.5}, "neutral", "fa-question-circle", "50.0"},
		{"unknown", Result{Label: "LABEL_0", Score: 0.8}, "neutral", "fa-question-circle", "80.0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := Describe(tc.result)
			if s.Category != tc.category {
				t.Fatalf("expected category %s got %s", tc.category, s.Category)
			}
			if s.Icon != tc.icon {
				t.Fatalf("expected icon %s got %s", tc.icon, s.Icon)
			}
			if s.Confidence != tc.confidence {
				t.Fatalf("expected confidence %s got %s", tc.confidence, s.Confidence)
			}
		})
	}
}
