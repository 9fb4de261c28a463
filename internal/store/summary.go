package store

import (
	"errors"
	"fmt"
)

// SummaryByAction aggregates the history per action code, most frequent first.
func (d *Database) SummaryByAction() ([]ActionCount, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var results []ActionCount
	query := d.gorm.Model(&Analysis{}).
		Select("action AS action, COUNT(*) AS total, AVG(normalized_score) AS avg_normalized").
		Group("action").
		Order("total DESC, action ASC")
	if err := query.Scan(&results).Error; err != nil {
		return nil, fmt.Errorf("summary by action: %w", err)
	}
	return results, nil
}

// SummaryByLabel counts analyses per classifier label.
func (d *Database) SummaryByLabel() (map[string]int64, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var rows []struct {
		Label string
		Total int64
	}
	if err := d.gorm.Model(&Analysis{}).Select("label, COUNT(*) AS total").Group("label").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("summary by label: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Label] = row.Total
	}
	return out, nil
}
