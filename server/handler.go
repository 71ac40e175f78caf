// Package server exposes conversation sessions over HTTP.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/config"
	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/helpers"
	"github.com/spektr-org/chatyfile/schema"
	"github.com/spektr-org/chatyfile/session"
)

const version = "0.3.0"

// ManagerFactory builds a Manager for a new conversation.
type ManagerFactory func() *session.Manager

// Handler handles HTTP requests.
type Handler struct {
	sessions   *Registry
	newManager ManagerFactory
	metrics    *Metrics
	maxUpload  int64
	logger     *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(factory ManagerFactory, metrics *Metrics, cfg config.ServerConfig, logger *zap.Logger) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = config.DefaultConfig().Server.MaxUploadBytes
	}
	return &Handler{
		sessions:   NewRegistry(),
		newManager: factory,
		metrics:    metrics,
		maxUpload:  maxUpload,
		logger:     logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:id", h.GetSession)
	e.DELETE("/v1/sessions/:id", h.DeleteSession)
	e.PUT("/v1/sessions/:id/dataset", h.ReplaceDataset)
	e.POST("/v1/sessions/:id/questions", h.AskQuestion)
	e.POST("/v1/sessions/:id/reset", h.ResetSession)
	e.GET("/v1/sessions/:id/turns/:order/plot.png", h.GetPlot)

	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"version":  version,
		"sessions": h.sessions.Len(),
	})
}

// ── Views ──────────────────────────────────────────────────────────────────

// SessionView is the JSON shape of a conversation.
type SessionView struct {
	SessionID string              `json:"session_id"`
	State     session.State       `json:"state"`
	Schema    *schema.Description `json:"schema,omitempty"`
	Preview   *engine.Table       `json:"preview,omitempty"`
	Turns     []TurnView          `json:"turns"`
}

// TurnView is a Turn with plot bytes replaced by a link.
type TurnView struct {
	session.Turn
	PlotURL string `json:"plot_url,omitempty"`
}

func (h *Handler) sessionView(id string, m *session.Manager) SessionView {
	v := SessionView{SessionID: id, State: m.State(), Turns: []TurnView{}}
	if d := m.Dataset(); d != nil {
		v.Schema = schema.Describe(d, schema.DefaultDescribeOptions())
	}
	v.Preview = m.Preview()
	for _, t := range m.Turns() {
		v.Turns = append(v.Turns, turnView(id, t))
	}
	return v
}

func turnView(id string, t session.Turn) TurnView {
	v := TurnView{Turn: t}
	if p := t.Result.Plot; p != nil {
		v.Result.Plot = &engine.Plot{Title: p.Title}
		v.PlotURL = fmt.Sprintf("/v1/sessions/%s/turns/%d/plot.png", id, t.Order)
	}
	return v
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (h *Handler) lookup(c echo.Context) (string, *session.Manager, error) {
	id := c.Param("id")
	m, ok := h.sessions.Get(id)
	if !ok {
		return id, nil, errorJSON(c, http.StatusNotFound, "session not found")
	}
	return id, m, nil
}

// ── Sessions ───────────────────────────────────────────────────────────────

// CreateSession starts a conversation over an uploaded CSV.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	d, status, err := h.readDataset(c)
	if err != nil {
		return errorJSON(c, status, err.Error())
	}
	m := h.newManager()
	if _, err := m.LoadDataset(d); err != nil {
		h.metrics.RecordUpload("rejected")
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	h.metrics.RecordUpload("ok")

	id := h.sessions.Add(m)
	h.metrics.SetSessions(h.sessions.Len())
	h.logger.Info("session created", zap.String("id", id), zap.Int("rows", d.NumRows()))
	return c.JSON(http.StatusCreated, h.sessionView(id, m))
}

// GetSession returns the conversation transcript.
// GET /v1/sessions/:id
func (h *Handler) GetSession(c echo.Context) error {
	id, m, err := h.lookup(c)
	if m == nil {
		return err
	}
	return c.JSON(http.StatusOK, h.sessionView(id, m))
}

// ReplaceDataset loads a new dataset into the conversation, clearing its
// history.
// PUT /v1/sessions/:id/dataset
func (h *Handler) ReplaceDataset(c echo.Context) error {
	id, m, err := h.lookup(c)
	if m == nil {
		return err
	}
	d, status, err := h.readDataset(c)
	if err != nil {
		return errorJSON(c, status, err.Error())
	}
	if _, err := m.LoadDataset(d); err != nil {
		h.metrics.RecordUpload("rejected")
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	h.metrics.RecordUpload("ok")
	return c.JSON(http.StatusOK, h.sessionView(id, m))
}

// ResetSession clears the conversation history.
// POST /v1/sessions/:id/reset
func (h *Handler) ResetSession(c echo.Context) error {
	id, m, err := h.lookup(c)
	if m == nil {
		return err
	}
	if err := m.Reset(); err != nil {
		return errorJSON(c, http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, h.sessionView(id, m))
}

// DeleteSession ends the conversation and forgets it.
// DELETE /v1/sessions/:id
func (h *Handler) DeleteSession(c echo.Context) error {
	m, ok := h.sessions.Remove(c.Param("id"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}
	if _, err := m.End(); err != nil && !errors.Is(err, session.ErrNoSession) {
		h.logger.Warn("failed to end session", zap.Error(err))
	}
	h.metrics.SetSessions(h.sessions.Len())
	return c.NoContent(http.StatusNoContent)
}

// ── Questions ──────────────────────────────────────────────────────────────

// QuestionRequest is the body of a question.
type QuestionRequest struct {
	Question string `json:"question"`
}

// AskQuestion runs one question. Pipeline failures are 200 responses whose
// turn carries an error result.
// POST /v1/sessions/:id/questions
func (h *Handler) AskQuestion(c echo.Context) error {
	id, m, err := h.lookup(c)
	if m == nil {
		return err
	}
	var req QuestionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	start := time.Now()
	turn, err := m.Ask(c.Request().Context(), req.Question)
	switch {
	case errors.Is(err, session.ErrEmptyQuestion):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSuperseded):
		return errorJSON(c, http.StatusConflict, err.Error())
	case err != nil:
		h.logger.Error("question failed", zap.String("id", id), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to answer question")
	}
	h.metrics.RecordTurn(turn, time.Since(start))
	return c.JSON(http.StatusOK, turnView(id, turn))
}

// GetPlot serves a turn's figure.
// GET /v1/sessions/:id/turns/:order/plot.png
func (h *Handler) GetPlot(c echo.Context) error {
	_, m, err := h.lookup(c)
	if m == nil {
		return err
	}
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "turn order must be an integer")
	}
	t, ok := m.Turn(order)
	if !ok || t.Result.Plot == nil {
		return errorJSON(c, http.StatusNotFound, "plot not found")
	}
	return c.Blob(http.StatusOK, "image/png", t.Result.Plot.PNG)
}

// ── Upload ─────────────────────────────────────────────────────────────────

// readDataset parses the request body as CSV, either raw or as the "file"
// part of a multipart form. The returned status applies when err is set.
func (h *Handler) readDataset(c echo.Context) (*engine.Dataset, int, error) {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUpload)

	var r io.Reader = req.Body
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, h.uploadStatus(err), fmt.Errorf("missing file part: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("failed to open upload: %w", err)
		}
		defer f.Close()
		r = f
	}

	d, err := helpers.ParseCSVReader(r, helpers.CSVOptions{})
	if err != nil {
		return nil, h.uploadStatus(err), err
	}
	return d, 0, nil
}

func (h *Handler) uploadStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.metrics.RecordUpload("too_large")
		return http.StatusRequestEntityTooLarge
	}
	h.metrics.RecordUpload("rejected")
	return http.StatusBadRequest
}
