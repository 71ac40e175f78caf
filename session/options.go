package session

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/config"
	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/translator"
)

// Option configures a Manager.
type Option func(*Manager)

// WithExitTokens replaces the words that end a session. Matching ignores
// case and surrounding space.
func WithExitTokens(tokens ...string) Option {
	return func(m *Manager) {
		m.exitTokens = make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				m.exitTokens[t] = true
			}
		}
	}
}

// WithHistoryTurns bounds how many exchanges follow the primer in the model
// context. Zero sends the primer only.
func WithHistoryTurns(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.historyTurns = n
		}
	}
}

// WithPreviewRows sets the size of the preview built on load. Zero
// disables it.
func WithPreviewRows(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.previewRows = n
		}
	}
}

// WithPromptOptions sets how datasets are described to the model.
func WithPromptOptions(o translator.PromptOptions) Option {
	return func(m *Manager) { m.prompt = o }
}

// WithChartOptions sets how figures are rendered.
func WithChartOptions(opts ...engine.ChartOption) Option {
	return func(m *Manager) { m.chart = opts }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// ConfigOptions maps the session, prompt and sandbox sections of cfg onto
// Manager options.
func ConfigOptions(cfg *config.Config) []Option {
	return []Option{
		WithExitTokens(cfg.Session.ExitTokens...),
		WithHistoryTurns(cfg.LLM.HistoryTurns),
		WithPreviewRows(cfg.Session.PreviewRows),
		WithPromptOptions(translator.PromptOptions{
			SampleRows:   cfg.Prompt.SampleRows,
			MaxCellWidth: cfg.Prompt.MaxCellWidth,
		}),
		WithChartOptions(engine.WithSize(cfg.Sandbox.PlotWidth, cfg.Sandbox.PlotHeight)),
	}
}
