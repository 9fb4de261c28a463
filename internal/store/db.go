package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Database is the analysis history. Writes are serialized; SQLite allows one writer.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open opens (or creates) the history database and migrates Analysis and Delivery tables.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Analysis{}, &Delivery{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if !strings.Contains(path, ":memory:") {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// GORM returns the handle for ad-hoc queries in tests and tooling.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveAnalysis inserts an analysis row, assigning an ID if needed.
func (d *Database) SaveAnalysis(a *Analysis) error {
	if d == nil {
		return errors.New("database is nil")
	}
	if a == nil {
		return errors.New("analysis is nil")
	}
	a.Label = strings.ToUpper(strings.TrimSpace(a.Label))
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(a).Error
}

// GetAnalysis loads a single analysis by ID.
func (d *Database) GetAnalysis(id string) (*Analysis, error) {
	var a Analysis
	err := d.gorm.Where("id = ?", strings.TrimSpace(id)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordDelivery appends a delivery outcome row.
func (d *Database) RecordDelivery(delivery *Delivery) error {
	if d == nil || delivery == nil {
		return errors.New("delivery is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(delivery).Error
}

// DeliveriesFor returns the delivery log of one analysis, oldest first.
func (d *Database) DeliveriesFor(analysisID string) ([]Delivery, error) {
	var rows []Delivery
	if err := d.gorm.Where("analysis_id = ?", analysisID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountAnalyses returns the number of stored analyses.
func (d *Database) CountAnalyses() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Analysis{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ClearAnalyses removes the stored history and its delivery log.
func (d *Database) ClearAnalyses() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Delivery{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Analysis{}).Error
	})
}

// AnalysisQuery encapsulates filters and pagination for listing analyses.
type AnalysisQuery struct {
	Query  string
	Action string
	Label  string
	Sort   string
	Offset int
	Limit  int
}

// ListAnalyses returns paginated analyses applying optional filters.
func (d *Database) ListAnalyses(opts AnalysisQuery) ([]Analysis, int64, error) {
	var total int64
	base := d.gorm.Model(&Analysis{})
	if q := strings.TrimSpace(opts.Query); q != "" {
		base = base.Where("review LIKE ?", fmt.Sprintf("%%%s%%", q))
	}
	if action := strings.TrimSpace(opts.Action); action != "" {
		base = base.Where("action = ?", strings.ToUpper(action))
	}
	if label := strings.TrimSpace(opts.Label); label != "" {
		base = base.Where("label = ?", strings.ToUpper(label))
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var rows []Analysis
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "created_asc":
		return "analyses.created_at ASC, analyses.id ASC"
	case "score_desc":
		return "analyses.normalized_score DESC, analyses.created_at DESC"
	case "score_asc":
		return "analyses.normalized_score ASC, analyses.created_at DESC"
	case "confidence_desc":
		return "analyses.confidence DESC, analyses.created_at DESC"
	default:
		return "analyses.created_at DESC, analyses.id DESC"
	}
}
