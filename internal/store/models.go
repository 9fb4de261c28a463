package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Analysis is one classified review together with the action it produced.
type Analysis struct {
	ID               string `gorm:"primaryKey;size:36"`
	Review           string `gorm:"type:text"`
	Excerpt          string `gorm:"size:512"`
	Label            string `gorm:"size:32;index"`
	Confidence       float64
	NormalizedScore  float64 `gorm:"index"`
	Action           string  `gorm:"size:32;index"`
	Classifier       string  `gorm:"size:128"`
	Locale           string  `gorm:"size:16"`
	ProcessingTimeMs int64
	MetaJSON         string    `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"index"`
}

// BeforeCreate assigns a random identifier when the caller has not set one.
func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(a.ID) == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SetMeta stores client metadata as JSON.
func (a *Analysis) SetMeta(meta map[string]any) {
	if len(meta) == 0 {
		a.MetaJSON = "{}"
		return
	}
	payload, _ := json.Marshal(meta)
	a.MetaJSON = string(payload)
}

// Meta returns the decoded client metadata.
func (a *Analysis) Meta() map[string]any {
	if strings.TrimSpace(a.MetaJSON) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(a.MetaJSON), &out); err != nil {
		return nil
	}
	return out
}

// Delivery records one attempted shipment of an analysis to the external log sink.
// Skipped outcomes (no webhook configured) are not stored.
type Delivery struct {
	ID         uint   `gorm:"primaryKey"`
	AnalysisID string `gorm:"size:36;index"`
	Delivered  bool
	Status     int
	Attempts   int
	Error      string `gorm:"type:text"`
	CreatedAt  time.Time
}

// ActionCount is one row of the per-action summary.
type ActionCount struct {
	Action        string  `json:"action"`
	Total         int64   `json:"total"`
	AvgNormalized float64 `json:"avg_normalized_score"`
}
