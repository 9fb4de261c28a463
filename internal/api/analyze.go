package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"review-sentiment/internal/classifier"
	"review-sentiment/internal/decision"
	"review-sentiment/internal/sheets"
	"review-sentiment/internal/store"
	"review-sentiment/internal/util"
)

// analysisInput is everything one analysis needs besides the server state.
type analysisInput struct {
	Text   string
	Locale string
	Meta   map[string]any
}

// analyze runs one classify-decide-log cycle. Overlapping calls are rejected, not queued.
func (s *Server) analyze(ctx context.Context, in analysisInput) (AnalyzeResponse, error) {
	if !s.Ready() {
		return AnalyzeResponse{}, errNotReady
	}
	if !s.analyzeMu.TryLock() {
		return AnalyzeResponse{}, errBusy
	}
	defer s.analyzeMu.Unlock()

	timer := util.StartTimer()
	review := util.CleanText(in.Text)
	if review == "" {
		picked, err := s.pool.Random()
		if err != nil {
			return AnalyzeResponse{}, err
		}
		review = picked
	}
	locale := s.resolveLocale(in.Locale)
	clf := s.activeClassifier()

	s.notifier.Broadcast(AnalysisEvent{Type: EventStarted, Review: util.Excerpt(review, sheets.MaxReviewRunes)})

	predictions, answeredBy, err := classifier.ClassifyNamed(ctx, clf, review)
	if err != nil {
		s.broadcastError(err)
		return AnalyzeResponse{}, fmt.Errorf("classify review: %w", err)
	}
	result, err := classifier.Top(predictions)
	if err != nil {
		s.broadcastError(err)
		return AnalyzeResponse{}, err
	}

	normalized := decision.Normalize(result.Label, result.Score)
	verdict := decision.DecideLocale(normalized, locale)

	resp := AnalyzeResponse{
		AnalysisID:      uuid.NewString(),
		Review:          review,
		Sentiment:       decision.Describe(result),
		NormalizedScore: normalized,
		Decision:        verdict,
		Classifier:      answeredBy,
		Locale:          locale,
	}
	resp.ProcessingTimeMs = timer.ElapsedMs()

	row := &store.Analysis{
		ID:               resp.AnalysisID,
		Review:           review,
		Excerpt:          util.Excerpt(review, sheets.MaxReviewRunes),
		Label:            result.Label,
		Confidence:       result.Score,
		NormalizedScore:  normalized,
		Action:           string(verdict.Action),
		Classifier:       resp.Classifier,
		Locale:           locale,
		ProcessingTimeMs: resp.ProcessingTimeMs,
	}
	row.SetMeta(in.Meta)
	if err := s.db.SaveAnalysis(row); err != nil {
		logrus.WithError(err).WithField("analysis_id", resp.AnalysisID).Warn("persist analysis")
	}

	rec := sheets.NewRecord(time.Now(), review, result, verdict, in.Meta)
	rec.AnalysisID = resp.AnalysisID
	resp.LogQueued = s.dispatcher.Enqueue(rec)

	logrus.WithFields(logrus.Fields{
		"analysis_id": resp.AnalysisID,
		"label":       result.Label,
		"score":       result.Score,
		"action":      verdict.Action,
		"duration_ms": resp.ProcessingTimeMs,
	}).Debug("review analysed")

	s.notifier.Broadcast(AnalysisEvent{Type: EventAnalysis, Result: &resp})
	return resp, nil
}

func (s *Server) broadcastError(err error) {
	message := "classification failed"
	if errors.Is(err, classifier.ErrMalformed) {
		message = "classifier returned an unusable result"
	}
	logrus.WithError(err).Warn("analysis failed")
	s.notifier.Broadcast(AnalysisEvent{Type: EventError, Message: message})
}

// resolveLocale picks a supported locale, falling back to the server default.
func (s *Server) resolveLocale(requested string) string {
	for _, candidate := range strings.Split(requested, ",") {
		tag := strings.SplitN(candidate, ";", 2)[0]
		if locale := decision.CanonicalLocale(tag); locale != "" {
			return locale
		}
	}
	return s.defaultLocale
}

// clientMeta collects the request context shipped with each log record.
func (s *Server) clientMeta(c *gin.Context) map[string]any {
	zone, _ := time.Now().Zone()
	return map[string]any{
		"userAgent":    c.Request.UserAgent(),
		"language":     c.GetHeader("Accept-Language"),
		"clientIP":     c.ClientIP(),
		"url":          c.Request.URL.String(),
		"timezone":     zone,
		"reviewsCount": s.pool.Len(),
		"classifier":   s.classifierName(),
		"modelReady":   s.Ready(),
	}
}
