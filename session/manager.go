package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/translator"
)

// ============================================================================
// SESSION MANAGER — Question → prompt → snippet → sandbox → turn
// ============================================================================
// A Manager owns at most one Session. Questions run one at a time; the
// pipeline runs without holding the state lock so Reset, End and
// LoadDataset never wait on the model. A question whose session changed
// underneath it is dropped with ErrSuperseded.
// ============================================================================

const (
	defaultHistoryTurns = 6
	defaultPreviewRows  = 10
)

// Manager drives one conversation.
type Manager struct {
	client *translator.Client
	exec   sandbox.Executor

	exitTokens   map[string]bool
	historyTurns int
	previewRows  int
	prompt       translator.PromptOptions
	chart        []engine.ChartOption
	logger       *zap.Logger
	now          func() time.Time

	askMu   sync.Mutex // one question at a time
	mu      sync.Mutex // guards the fields below
	state   State
	session *Session
}

// NewManager creates a Manager in the Empty state.
func NewManager(client *translator.Client, exec sandbox.Executor, opts ...Option) *Manager {
	m := &Manager{
		client:       client,
		exec:         exec,
		historyTurns: defaultHistoryTurns,
		previewRows:  defaultPreviewRows,
		logger:       zap.NewNop(),
		now:          time.Now,
		state:        StateEmpty,
	}
	WithExitTokens("salir", "exit")(m)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ── State transitions ──────────────────────────────────────────────────────

// LoadDataset starts a new session over d, discarding any previous one.
func (m *Manager) LoadDataset(d *engine.Dataset) (*Session, error) {
	if d.Empty() {
		return nil, ErrEmptyDataset
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.retireLocked()
	s := &Session{
		ID:      uuid.NewString(),
		Dataset: d,
		Created: m.now(),
		history: []translator.Exchange{translator.Primer(d)},
	}
	if m.previewRows > 0 {
		s.Preview = engine.BuildTable(d.Head(m.previewRows))
	}
	m.session = s
	m.state = StateActive
	m.logger.Info("session started",
		zap.String("session", s.ID),
		zap.Int("rows", d.NumRows()),
		zap.Int("columns", d.NumCols()))
	return s, nil
}

// Reset clears the conversation but keeps the dataset and its preview.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return ErrNoSession
	}
	s := m.session
	s.generation++
	s.turns = nil
	s.history = []translator.Exchange{translator.Primer(s.Dataset)}
	m.logger.Info("session reset", zap.String("session", s.ID))
	return nil
}

// End closes the session. Its turns stay readable until the next load.
func (m *Manager) End() (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		return Turn{}, ErrNoSession
	}
	turn := m.appendLocked(m.session, Turn{Role: RoleSystem, Result: engine.ScalarResult(EndedText)})
	m.endLocked()
	return turn, nil
}

func (m *Manager) endLocked() {
	m.retireLocked()
	m.state = StateEmpty
	m.logger.Info("session ended", zap.String("session", m.session.ID))
}

// retireLocked invalidates any question in flight on the current session.
func (m *Manager) retireLocked() {
	if m.session != nil {
		m.session.generation++
	}
}

// ── Questions ──────────────────────────────────────────────────────────────

// Ask answers one question and appends the resulting turn. Pipeline
// failures are recorded on the turn; only precondition errors are returned.
func (m *Manager) Ask(ctx context.Context, question string) (Turn, error) {
	q := strings.TrimSpace(question)

	m.askMu.Lock()
	defer m.askMu.Unlock()

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return Turn{}, ErrNoSession
	}
	if q == "" {
		m.mu.Unlock()
		return Turn{}, ErrEmptyQuestion
	}
	s := m.session
	if m.exitTokens[strings.ToLower(q)] {
		turn := m.appendLocked(s, Turn{Question: q, Role: RoleSystem, Result: engine.ScalarResult(EndedText)})
		m.endLocked()
		m.mu.Unlock()
		return turn, nil
	}
	gen := s.generation
	d := s.Dataset
	history := s.ModelContext()
	m.mu.Unlock()

	start := m.now()
	snippet, result := m.answer(ctx, d, q, history)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s || s.generation != gen {
		m.logger.Info("question superseded", zap.String("session", s.ID))
		return Turn{}, ErrSuperseded
	}
	turn := m.appendLocked(s, Turn{Question: q, Snippet: snippet, Result: result, Role: RoleUser})
	if snippet != "" {
		s.history = append(s.history, translator.Exchange{Prompt: q, Reply: "```go\n" + snippet + "\n```"})
		s.history = trimHistory(s.history, m.historyTurns)
	}
	m.logger.Info("question answered",
		zap.String("session", s.ID),
		zap.Int("turn", turn.Order),
		zap.String("result", string(result.Kind)),
		zap.Duration("elapsed", m.now().Sub(start)))
	return turn, nil
}

// answer runs the pipeline. Every failure becomes an error Result.
func (m *Manager) answer(ctx context.Context, d *engine.Dataset, q string, history []translator.Exchange) (string, engine.Result) {
	opts := m.prompt
	if opts.Today.IsZero() {
		opts.Today = m.now()
	}
	prompt := translator.BuildPrompt(d, q, opts)
	m.logger.Debug("prompt built", zap.Int("bytes", len(prompt)), zap.Int("history", len(history)))

	completion, err := m.client.Complete(ctx, translator.Request{Prompt: prompt, History: history})
	if err != nil {
		return "", engine.FailureResult(err)
	}
	snippet, err := translator.ExtractSnippet(completion)
	if err != nil {
		m.logger.Debug("no runnable snippet", zap.Error(err))
		return "", engine.FailureResult(err)
	}
	m.logger.Debug("snippet extracted", zap.String("snippet", snippet))
	return snippet, sandbox.Run(ctx, m.exec, snippet, d, m.chart...)
}

func (m *Manager) appendLocked(s *Session, t Turn) Turn {
	t.Order = len(s.turns)
	t.At = m.now()
	s.turns = append(s.turns, t)
	return t
}

// trimHistory keeps the primer and the last n exchanges.
func trimHistory(h []translator.Exchange, n int) []translator.Exchange {
	if len(h) <= n+1 {
		return h
	}
	out := make([]translator.Exchange, 0, n+1)
	out = append(out, h[0])
	return append(out, h[len(h)-n:]...)
}

// ── Accessors ──────────────────────────────────────────────────────────────

// State reports whether a session is active.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Turns returns a copy of the current or most recently ended session's
// turns.
func (m *Manager) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return append([]Turn(nil), m.session.turns...)
}

// Turn returns the turn with the given order.
func (m *Manager) Turn(order int) (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || order < 0 || order >= len(m.session.turns) {
		return Turn{}, false
	}
	return m.session.turns[order], true
}

// Preview returns the first rows of the active session's dataset, or nil
// when Empty or when previews are disabled.
func (m *Manager) Preview() *engine.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return nil
	}
	return m.session.Preview
}

// Dataset returns the active session's dataset, or nil when Empty.
func (m *Manager) Dataset() *engine.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive {
		return nil
	}
	return m.session.Dataset
}

// SessionID returns the current or most recently ended session's ID.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// ModelContext returns the exchanges that will accompany the next question.
func (m *Manager) ModelContext() []translator.Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	return m.session.ModelContext()
}
