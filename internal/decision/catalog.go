package decision

import "strings"

// DefaultLocale is used whenever a caller asks for an unknown locale.
const DefaultLocale = "en"

// Presentation holds the display constants for one action.
type Presentation struct {
	Message     string `json:"message"`
	AccentColor string `json:"ui_accent_color"`
	Icon        string `json:"icon_token"`
	ButtonLabel string `json:"button_label"`
}

var catalog = map[string]map[Action]Presentation{
	"en": {
		ActionOfferCoupon: {
			Message:     "We're sorry your experience fell short. Here is a 20% discount on your next order.",
			AccentColor: "#ef4444",
			Icon:        "fa-ticket",
			ButtonLabel: "Claim coupon",
		},
		ActionRequestFeedback: {
			Message:     "Thanks for sharing! Tell us what would make it a five-star experience.",
			AccentColor: "#f59e0b",
			Icon:        "fa-comment-dots",
			ButtonLabel: "Share feedback",
		},
		ActionAskReferral: {
			Message:     "Glad you loved it! Invite a friend and you both get a reward.",
			AccentColor: "#10b981",
			Icon:        "fa-user-plus",
			ButtonLabel: "Refer a friend",
		},
	},
	"ru": {
		ActionOfferCoupon: {
			Message:     "Нам жаль, что вы остались недовольны. Дарим скидку 20% на следующий заказ.",
			AccentColor: "#ef4444",
			Icon:        "fa-ticket",
			ButtonLabel: "Получить купон",
		},
		ActionRequestFeedback: {
			Message:     "Спасибо за отзыв! Расскажите, что нам стоит улучшить.",
			AccentColor: "#f59e0b",
			Icon:        "fa-comment-dots",
			ButtonLabel: "Оставить отзыв",
		},
		ActionAskReferral: {
			Message:     "Рады, что вам понравилось! Пригласите друга и получите бонус вместе.",
			AccentColor: "#10b981",
			Icon:        "fa-user-plus",
			ButtonLabel: "Пригласить друга",
		},
	},
}

// Locales returns the supported locale codes.
func Locales() []string {
	return []string{"en", "ru"}
}

// SupportsLocale reports whether a catalog exists for the locale (or its base language).
func SupportsLocale(locale string) bool {
	_, ok := catalog[baseLocale(locale)]
	return ok
}

func presentationFor(locale string, action Action) Presentation {
	entries, ok := catalog[baseLocale(locale)]
	if !ok {
		entries = catalog[DefaultLocale]
	}
	return entries[action]
}

// baseLocale reduces "ru-RU" or "en_US" to the base language code.
func baseLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if idx := strings.IndexAny(locale, "-_"); idx >= 0 {
		locale = locale[:idx]
	}
	return locale
}

// CanonicalLocale returns the catalog key for a locale tag, or "" when unsupported.
func CanonicalLocale(locale string) string {
	base := baseLocale(locale)
	if _, ok := catalog[base]; !ok {
		return ""
	}
	return base
}
