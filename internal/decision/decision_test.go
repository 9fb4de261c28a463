package decision

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	scores := []float64{0, 0.1, 0.25, 0.4, 0.5, 0.7, 0.9, 0.999, 1}
	for _, s := range scores {
		if got := Normalize(LabelPositive, s); got != s {
			t.Fatalf("positive %v: expected %v got %v", s, s, got)
		}
		if got := Normalize(LabelNegative, s); got != 1-s {
			t.Fatalf("negative %v: expected %v got %v", s, 1-s, got)
		}
	}
}

func TestNormalizeUnknownLabelIsNeutral(t *testing.T) {
	labels := []string{"", "NEUTRAL", "positive", "Negative", "LABEL_1", " POSITIVE"}
	for _, label := range labels {
		for _, s := range []float64{0, 0.3, 0.99, 1} {
			if got := Normalize(label, s); got != 0.5 {
				t.Fatalf("label %q score %v: expected 0.5 got %v", label, s, got)
			}
		}
	}
}

func TestNormalizeClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		score    float64
		expected float64
	}{
		{"positive above one", LabelPositive, 1.7, 1},
		{"positive below zero", LabelPositive, -0.2, 0},
		{"negative above one", LabelNegative, 3, 0},
		{"negative below zero", LabelNegative, -1, 1},
		{"nan positive", LabelPositive, math.NaN(), 0},
		{"nan negative", LabelNegative, math.NaN(), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.label, tc.score); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestDecideThresholds(t *testing.T) {
	tests := []struct {
		score    float64
		expected Action
	}{
		{0.0, ActionOfferCoupon},
		{0.2, ActionOfferCoupon},
		{0.4, ActionOfferCoupon},
		{0.41, ActionRequestFeedback},
		{0.5, ActionRequestFeedback},
		{0.69, ActionRequestFeedback},
		{math.Nextafter(0.7, 0), ActionRequestFeedback},
		{0.7, ActionAskReferral},
		{0.85, ActionAskReferral},
		{1.0, ActionAskReferral},
	}
	for _, tc := range tests {
		if got := Decide(tc.score).Action; got != tc.expected {
			t.Fatalf("score %v: expected %s got %s", tc.score, tc.expected, got)
		}
	}
}

func TestDecideBoundaryJustAboveCoupon(t *testing.T) {
	above := math.Nextafter(0.4, 1)
	if got := Decide(above).Action; got != ActionRequestFeedback {
		t.Fatalf("expected %s just above 0.4, got %s", ActionRequestFeedback, got)
	}
}

func TestEvaluateComposed(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		score    float64
		expected Action
	}{
		{"confident positive", LabelPositive, 0.9, ActionAskReferral},
		{"confident negative", LabelNegative, 0.9, ActionOfferCoupon},
		{"undecided negative", LabelNegative, 0.5, ActionRequestFeedback},
		{"weak positive", LabelPositive, 0.55, ActionRequestFeedback},
		{"neutral", LabelNeutral, 0.99, ActionRequestFeedback},
		{"unknown label", "MIXED", 0.1, ActionRequestFeedback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.label, tc.score).Action; got != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, got)
			}
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	first := Evaluate(LabelNegative, 0.73)
	second := Evaluate(LabelNegative, 0.73)
	if first != second {
		t.Fatalf("expected identical decisions, got %+v and %+v", first, second)
	}
}

func TestDecisionCarriesPresentation(t *testing.T) {
	for _, action := range Actions() {
		var score float64
		switch action {
		case ActionOfferCoupon:
			score = 0.1
		case ActionRequestFeedback:
			score = 0.5
		case ActionAskReferral:
			score = 0.9
		}
		d := Decide(score)
		if d.Message == "" || d.AccentColor == "" || d.Icon == "" || d.ButtonLabel == "" {
			t.Fatalf("action %s missing presentation: %+v", action, d)
		}
	}
}

func TestLocaleChangesTextNotAction(t *testing.T) {
	for _, score := range []float64{0, 0.4, 0.55, 0.7, 1} {
		en := DecideLocale(score, "en")
		ru := DecideLocale(score, "ru-RU")
		if en.Action != ru.Action {
			t.Fatalf("score %v: locale changed action %s -> %s", score, en.Action, ru.Action)
		}
		if en.Message == ru.Message {
			t.Fatalf("score %v: expected localized message", score)
		}
	}
	if got, want := DecideLocale(0.9, "fr"), Decide(0.9); got != want {
		t.Fatalf("unknown locale should fall back to default, got %+v", got)
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction(" offer_coupon "); !ok || a != ActionOfferCoupon {
		t.Fatalf("expected OFFER_COUPON, got %q %v", a, ok)
	}
	if _, ok := ParseAction("REFUND"); ok {
		t.Fatalf("expected unknown action to be rejected")
	}
}
