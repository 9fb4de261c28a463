package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"review-sentiment/internal/decision"
	"review-sentiment/internal/store"
	"review-sentiment/internal/util"
)

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Accept-Language"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/reviews", s.handleReviews)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/analyze/stream", s.handleAnalyzeStream)
		api.GET("/decide", s.handleDecide)
		api.GET("/analyses", s.handleAnalyses)
		api.DELETE("/analyses", s.handleClearAnalyses)
		api.GET("/analyses/summary", s.handleSummary)
		api.GET("/analyses/:id", s.handleGetAnalysis)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	total, err := s.db.CountAnalyses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	resp := StatusResponse{
		Ready:          s.Ready(),
		Analyzing:      s.analyzing(),
		Reviews:        s.pool.Len(),
		ReviewSource:   s.source.Name(),
		Classifier:     s.classifierName(),
		WebhookEnabled: s.webhookEnabled(),
		Sheets:         s.dispatcher.Stats(),
		Analyses:       total,
		Locales:        decision.Locales(),
	}
	if s.Ready() {
		startedAt := s.startedAt
		resp.StartedAt = &startedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) analyzing() bool {
	if s.analyzeMu.TryLock() {
		s.analyzeMu.Unlock()
		return false
	}
	return true
}

func (s *Server) webhookEnabled() bool {
	type enabler interface{ Enabled() bool }
	if e, ok := s.logger.(enabler); ok {
		return e.Enabled()
	}
	return s.logger != nil
}

func (s *Server) handleReviews(c *gin.Context) {
	page, pageSize := pagination(c)
	c.JSON(http.StatusOK, ReviewsResponse{
		Items: s.pool.Page(page*pageSize, pageSize),
		Total: s.pool.Len(),
	})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.renderError(c, http.StatusBadRequest, err)
			return
		}
	}
	locale := util.FirstNonEmpty(req.Locale, c.Query("locale"), c.GetHeader("Accept-Language"))

	resp, err := s.analyze(c.Request.Context(), analysisInput{
		Text:   req.Text,
		Locale: locale,
		Meta:   s.clientMeta(c),
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, errNotReady):
		s.renderError(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, errBusy):
		s.renderError(c, http.StatusConflict, err)
	default:
		s.renderError(c, http.StatusBadGateway, err)
	}
}

func (s *Server) handleDecide(c *gin.Context) {
	label := strings.TrimSpace(c.Query("label"))
	rawScore := strings.TrimSpace(c.Query("score"))
	score, err := strconv.ParseFloat(rawScore, 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("score must be a number in [0,1]: %q", rawScore))
		return
	}
	locale := s.resolveLocale(util.FirstNonEmpty(c.Query("locale"), c.GetHeader("Accept-Language")))
	normalized := decision.Normalize(label, score)
	c.JSON(http.StatusOK, DecideResponse{
		Label:           label,
		Score:           score,
		NormalizedScore: normalized,
		Decision:        decision.DecideLocale(normalized, locale),
	})
}

func (s *Server) handleAnalyses(c *gin.Context) {
	query, err := analysisQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	page, pageSize := pagination(c)
	query.Offset = page * pageSize
	query.Limit = pageSize

	rows, total, err := s.db.ListAnalyses(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	c.JSON(http.StatusOK, AnalysesResponse{Items: items, Total: total})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	row, err := s.db.GetAnalysis(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("analysis %s not found", c.Param("id")))
			return
		}
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	deliveries, err := s.db.DeliveriesFor(row.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": FromModel(*row), "deliveries": deliveries})
}

func (s *Server) handleClearAnalyses(c *gin.Context) {
	if err := s.db.ClearAnalyses(); err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSummary(c *gin.Context) {
	byAction, err := s.db.SummaryByAction()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	byLabel, err := s.db.SummaryByLabel()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	resp := SummaryResponse{ByAction: byAction, ByLabel: byLabel}
	for _, row := range byAction {
		resp.Total += row.Total
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExportCSV(c *gin.Context) {
	query, err := analysisQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	query.Limit = -1
	rows, _, err := s.db.ListAnalyses(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=review-analyses.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	headers := []string{"id", "created_at", "review", "label", "confidence", "normalized_score", "action", "classifier", "locale", "processing_time_ms"}
	if err := writer.Write(headers); err != nil {
		return
	}
	for _, row := range rows {
		dto := FromModel(row)
		line := []string{
			dto.ID,
			dto.CreatedAt.UTC().Format(time.RFC3339),
			dto.Excerpt,
			dto.Label,
			decision.ConfidencePercent(dto.Confidence),
			strconv.FormatFloat(dto.NormalizedScore, 'f', 4, 64),
			dto.Action,
			dto.Classifier,
			dto.Locale,
			strconv.FormatInt(dto.ProcessingTimeMs, 10),
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	query, err := analysisQuery(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	query.Limit = -1
	rows, _, err := s.db.ListAnalyses(query)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	c.Header("Content-Disposition", "attachment; filename=review-analyses.json")
	c.JSON(http.StatusOK, dtos)
}

func (s *Server) handleAnalyzeStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: 5 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Debug("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Debug("analysis websocket closed")
			}
			return
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

func analysisQuery(c *gin.Context) (store.AnalysisQuery, error) {
	query := store.AnalysisQuery{
		Query: strings.TrimSpace(c.Query("q")),
		Label: strings.TrimSpace(c.Query("label")),
		Sort:  strings.TrimSpace(c.Query("sort")),
	}
	if raw := strings.TrimSpace(c.Query("action")); raw != "" {
		action, ok := decision.ParseAction(raw)
		if !ok {
			return query, fmt.Errorf("unknown action: %s", raw)
		}
		query.Action = string(action)
	}
	return query, nil
}
