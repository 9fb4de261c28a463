package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"review-sentiment/internal/classifier"
	"review-sentiment/internal/decision"
	"review-sentiment/internal/reviews"
	"review-sentiment/internal/sheets"
	"review-sentiment/internal/store"
	"review-sentiment/internal/util"
)

// Config defines server dependencies.
type Config struct {
	DBPath         string
	SilentDB       bool
	AllowedOrigins []string
	DefaultLocale  string

	// Reviews supplies the review pool at startup.
	Reviews reviews.Source
	// Classifier is the preferred model; nil means the fallback is used directly.
	Classifier classifier.Classifier
	Fallback   classifier.Classifier
	Cache      classifier.Cache
	CacheTTL   time.Duration

	Logger    sheets.Deliverer
	QueueSize int

	closers []io.Closer
}

// warmer is implemented by classifiers that benefit from a probe request before traffic.
type warmer interface {
	Warmup(ctx context.Context) error
}

// Server wires HTTP handlers with the review pool, classifier and persistence.
type Server struct {
	db             *store.Database
	pool           *reviews.Pool
	source         reviews.Source
	primary        classifier.Classifier
	fallback       classifier.Classifier
	cache          classifier.Cache
	cacheTTL       time.Duration
	logger         sheets.Deliverer
	dispatcher     *sheets.Dispatcher
	notifier       *AnalysisNotifier
	allowedOrigins []string
	defaultLocale  string
	closers        []io.Closer

	clfMu      sync.RWMutex
	classifier classifier.Classifier

	ready     atomic.Bool
	analyzeMu sync.Mutex
	startedAt time.Time
	closeOnce sync.Once
}

var (
	errNotReady = errors.New("service is still starting")
	errBusy     = errors.New("an analysis is already in progress")
)

// NewServer constructs the API server. Call Start before serving analysis requests.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	if cfg.Reviews == nil {
		return nil, errors.New("review source required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = classifier.NewLexicon()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = sheets.NewClient(sheets.Config{})
	}
	locale := util.FirstNonEmpty(cfg.DefaultLocale, decision.DefaultLocale)

	server := &Server{
		db:             db,
		pool:           reviews.NewPool(nil),
		source:         cfg.Reviews,
		primary:        cfg.Classifier,
		fallback:       fallback,
		cache:          cfg.Cache,
		cacheTTL:       cfg.CacheTTL,
		logger:         logger,
		notifier:       NewAnalysisNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		defaultLocale:  locale,
		closers:        cfg.closers,
	}
	server.dispatcher = sheets.NewDispatcher(logger, cfg.QueueSize, sheets.WithOutcomeHook(server.recordDelivery))
	return server, nil
}

// Start loads the reviews and warms the classifier concurrently. The server reports ready
// only after both finish. A failed warm-up degrades to the fallback classifier; a review
// load failure is fatal.
func (s *Server) Start(ctx context.Context) error {
	timer := util.StartTimer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.source.Load(gctx)
		if err != nil {
			return fmt.Errorf("load reviews: %w", err)
		}
		s.pool.Replace(items)
		logrus.WithFields(logrus.Fields{
			"source":  s.source.Name(),
			"reviews": len(items),
		}).Info("reviews loaded")
		return nil
	})

	var active classifier.Classifier
	g.Go(func() error {
		active = s.warmClassifier(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s.clfMu.Lock()
	s.classifier = active
	s.clfMu.Unlock()
	s.startedAt = time.Now().UTC()
	s.ready.Store(true)

	logrus.WithFields(logrus.Fields{
		"classifier": active.Name(),
		"duration":   timer.Elapsed(),
	}).Info("service ready")
	return nil
}

func (s *Server) warmClassifier(ctx context.Context) classifier.Classifier {
	if s.primary == nil || !s.primary.Enabled() {
		logrus.WithField("classifier", s.fallback.Name()).Info("hosted classifier not configured, using fallback")
		return s.fallback
	}
	if w, ok := s.primary.(warmer); ok {
		if err := w.Warmup(ctx); err != nil {
			logrus.WithError(err).WithField("classifier", s.primary.Name()).Warn("classifier warm-up failed, switching to fallback")
			return s.fallback
		}
	}
	return classifier.WithFallback(classifier.Cached(s.primary, s.cache, s.cacheTTL), s.fallback)
}

// Ready reports whether startup finished.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

func (s *Server) activeClassifier() classifier.Classifier {
	s.clfMu.RLock()
	defer s.clfMu.RUnlock()
	return s.classifier
}

func (s *Server) classifierName() string {
	if clf := s.activeClassifier(); clf != nil {
		return clf.Name()
	}
	return ""
}

// Close drains pending log records and releases the database.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	s.closeOnce.Do(func() {
		if err := s.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain sheets queue: %w", err))
		}
		for _, closer := range s.closers {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func (s *Server) recordDelivery(rec sheets.Record, out sheets.Outcome) {
	if out.Skipped || strings.TrimSpace(rec.AnalysisID) == "" {
		return
	}
	delivery := &store.Delivery{
		AnalysisID: rec.AnalysisID,
		Delivered:  out.Delivered,
		Status:     out.Status,
		Attempts:   out.Attempts,
	}
	if out.Err != nil {
		delivery.Error = out.Err.Error()
	}
	if err := s.db.RecordDelivery(delivery); err != nil {
		logrus.WithError(err).Warn("record sheets delivery")
	}
}
