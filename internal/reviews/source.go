package reviews

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"review-sentiment/internal/util"
)

// DefaultColumn is the header of the column holding review text.
const DefaultColumn = "text"

// ErrNoReviews is returned when a source yields no usable review text.
var ErrNoReviews = errors.New("no valid reviews found")

// Source supplies an ordered list of trimmed, non-empty review strings.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]string, error)
}

// FileSource reads reviews from a tab-separated file with a header row.
type FileSource struct {
	Path   string
	Column string
}

// NewFileSource constructs a file source reading the given column.
func NewFileSource(path, column string) *FileSource {
	return &FileSource{Path: path, Column: column}
}

// Name identifies the source in logs.
func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// Load opens and parses the TSV file.
func (s *FileSource) Load(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(s.Path) == "" {
		return nil, errors.New("reviews path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		return nil, fmt.Errorf("open reviews file: %w", err)
	}
	defer f.Close()
	return ParseTSV(f, s.Column)
}

// ParseTSV extracts the review column from tab-separated input. Rows that cannot be parsed
// or have no text in the column are skipped and counted as warnings.
func ParseTSV(r io.Reader, column string) ([]string, error) {
	if strings.TrimSpace(column) == "" {
		column = DefaultColumn
	}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoReviews
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := columnIndex(header, column)
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in header", column)
	}

	var (
		reviews  []string
		warnings int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			warnings++
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read reviews: %w", err)
		}
		if col >= len(record) {
			continue
		}
		text := util.CleanText(record[col])
		if text == "" {
			continue
		}
		reviews = append(reviews, text)
	}

	if warnings > 0 {
		logrus.WithField("skipped_rows", warnings).Warn("reviews parsed with warnings")
	}
	if len(reviews) == 0 {
		return nil, ErrNoReviews
	}
	return reviews, nil
}

func columnIndex(header []string, column string) int {
	want := strings.ToLower(strings.TrimSpace(column))
	for idx, value := range header {
		if strings.ToLower(util.CleanText(value)) == want {
			return idx
		}
	}
	return -1
}

// StaticSource serves a fixed list, used when the real dataset is unavailable.
type StaticSource struct {
	reviews []string
}

// NewStaticSource copies the provided reviews, dropping blank entries.
func NewStaticSource(reviews []string) *StaticSource {
	out := make([]string, 0, len(reviews))
	for _, r := range reviews {
		if text := util.CleanText(r); text != "" {
			out = append(out, text)
		}
	}
	return &StaticSource{reviews: out}
}

// DefaultFallback returns the built-in sample reviews.
func DefaultFallback() *StaticSource {
	return NewStaticSource([]string{
		"Absolutely love this product! It exceeded all my expectations.",
		"Terrible quality. Broke after two days and support never answered.",
		"It's okay. Does the job, nothing special.",
		"Fast shipping and the packaging was great. Would buy again.",
		"The description was misleading and the color is completely different.",
		"Decent value for the price, although the instructions were confusing.",
	})
}

// Name identifies the source in logs.
func (s *StaticSource) Name() string {
	return "static"
}

// Load returns a copy of the static list.
func (s *StaticSource) Load(ctx context.Context) ([]string, error) {
	if len(s.reviews) == 0 {
		return nil, ErrNoReviews
	}
	out := make([]string, len(s.reviews))
	copy(out, s.reviews)
	return out, nil
}

type fallbackSource struct {
	primary  Source
	fallback Source
}

// WithFallback returns a source that tries primary first and substitutes the fallback when
// the primary fails or yields nothing.
func WithFallback(primary, fallback Source) Source {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &fallbackSource{primary: primary, fallback: fallback}
}

func (s *fallbackSource) Name() string {
	return s.primary.Name()
}

func (s *fallbackSource) Load(ctx context.Context) ([]string, error) {
	reviews, err := s.primary.Load(ctx)
	if err == nil && len(reviews) > 0 {
		return reviews, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"primary":  s.primary.Name(),
		"fallback": s.fallback.Name(),
	}).Warn("review source unavailable; using fallback reviews")
	reviews, fbErr := s.fallback.Load(ctx)
	if fbErr != nil {
		return nil, fmt.Errorf("fallback reviews: %w", fbErr)
	}
	return reviews, nil
}
