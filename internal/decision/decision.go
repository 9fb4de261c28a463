package decision

import (
	"math"
	"strings"
)

// Labels emitted by the sentiment classifier. Anything else is treated as neutral.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
	LabelNeutral  = "NEUTRAL"
)

// Action is the business follow-up selected for a review.
type Action string

const (
	ActionOfferCoupon     Action = "OFFER_COUPON"
	ActionRequestFeedback Action = "REQUEST_FEEDBACK"
	ActionAskReferral     Action = "ASK_REFERRAL"
)

// Threshold boundaries over the normalized score. A score equal to couponCeiling still
// earns a coupon; a score equal to referralFloor is already a referral ask.
const (
	couponCeiling = 0.4
	referralFloor = 0.7
	neutralScore  = 0.5
)

// Result is the validated classifier output consumed by the engine.
type Result struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Decision describes the selected action together with its presentation constants.
type Decision struct {
	Action      Action `json:"action_code"`
	Message     string `json:"message"`
	AccentColor string `json:"ui_accent_color"`
	Icon        string `json:"icon_token"`
	ButtonLabel string `json:"button_label"`
}

// Normalize converts a label and the confidence attached to that label into a goodness
// score in [0,1]. Scores outside the range are clamped; NaN collapses to 0.
func Normalize(label string, score float64) float64 {
	score = clamp(score)
	switch label {
	case LabelPositive:
		return score
	case LabelNegative:
		return 1 - score
	default:
		return neutralScore
	}
}

// Decide maps a normalized score onto a business action using the default locale.
func Decide(normalized float64) Decision {
	return DecideLocale(normalized, DefaultLocale)
}

// DecideLocale maps a normalized score onto a business action, picking presentation
// strings for the requested locale. The action itself never depends on the locale.
func DecideLocale(normalized float64, locale string) Decision {
	action := actionFor(normalized)
	p := presentationFor(locale, action)
	return Decision{
		Action:      action,
		Message:     p.Message,
		AccentColor: p.AccentColor,
		Icon:        p.Icon,
		ButtonLabel: p.ButtonLabel,
	}
}

// Evaluate is the composed entry point: Decide(Normalize(label, score)).
func Evaluate(label string, score float64) Decision {
	return Decide(Normalize(label, score))
}

// EvaluateLocale is Evaluate with locale-specific presentation.
func EvaluateLocale(label string, score float64, locale string) Decision {
	return DecideLocale(Normalize(label, score), locale)
}

// EvaluateResult is a convenience wrapper over Evaluate for a classifier result.
func EvaluateResult(r Result, locale string) Decision {
	return EvaluateLocale(r.Label, r.Score, locale)
}

func actionFor(normalized float64) Action {
	normalized = clamp(normalized)
	if normalized <= couponCeiling {
		return ActionOfferCoupon
	}
	if normalized < referralFloor {
		return ActionRequestFeedback
	}
	return ActionAskReferral
}

// Valid reports whether the action is one of the known codes.
func (a Action) Valid() bool {
	switch a {
	case ActionOfferCoupon, ActionRequestFeedback, ActionAskReferral:
		return true
	}
	return false
}

// ParseAction resolves an action code, tolerating case and surrounding whitespace.
func ParseAction(value string) (Action, bool) {
	action := Action(strings.ToUpper(strings.TrimSpace(value)))
	return action, action.Valid()
}

// Actions lists every action in ascending goodness order.
func Actions() []Action {
	return []Action{ActionOfferCoupon, ActionRequestFeedback, ActionAskReferral}
}

func clamp(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
