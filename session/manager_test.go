package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/translator"
)

func purchases(t *testing.T) *engine.Dataset {
	t.Helper()
	d, err := engine.NewDataset(
		engine.StringColumn("Supplier", "Acme Corp", "ACME Ltd", "Globex", "acme inc", "Initech", "Acme Corp"),
		engine.NumericColumn("Amount", 100, 250.5, 75, 300, 20, 55.25),
	)
	require.NoError(t, err)
	return d
}

// scripted replies with each completion in turn and records the requests.
type scripted struct {
	mu       sync.Mutex
	replies  []string
	requests []translator.Request
}

func (s *scripted) Generate(ctx context.Context, req translator.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func fenced(code string) string { return "```go\n" + code + "\n```" }

func newManager(t *testing.T, gen translator.Generator, opts ...Option) *Manager {
	t.Helper()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	m := NewManager(translator.NewClient(gen), sandbox.NewInterpreter(), opts...)
	_, err := m.LoadDataset(purchases(t))
	require.NoError(t, err)
	return m
}

// ── Loading ─────────────────────────────────────────────────────────────────

func TestLoadDatasetStartsWithEmptyHistory(t *testing.T) {
	m := newManager(t, &scripted{})

	assert.Equal(t, StateActive, m.State())
	assert.NotEmpty(t, m.SessionID())
	assert.Len(t, m.Turns(), 0)
	_, ok := m.Turn(0)
	assert.False(t, ok)
	require.NotNil(t, m.Preview())
	assert.Len(t, m.Preview().Rows, 6)
}

func TestLoadDatasetBuildsPreview(t *testing.T) {
	m := newManager(t, &scripted{}, WithPreviewRows(3))

	preview := m.Preview()
	require.NotNil(t, preview)
	assert.Equal(t, []string{"Supplier", "Amount"}, preview.Header())
	assert.Len(t, preview.Rows, 3)
	assert.Empty(t, m.Turns())

	ctx := m.ModelContext()
	require.Len(t, ctx, 1)
	assert.Contains(t, ctx[0].Prompt, `"Supplier", "Amount"`)
}

func TestLoadDatasetWithoutPreview(t *testing.T) {
	m := newManager(t, &scripted{}, WithPreviewRows(0))
	assert.Nil(t, m.Preview())
	assert.Empty(t, m.Turns())
}

func TestLoadDatasetRejectsEmpty(t *testing.T) {
	m := NewManager(translator.NewClient(&scripted{}), sandbox.NewInterpreter())
	_, err := m.LoadDataset(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = m.LoadDataset(engine.MustDataset(engine.StringColumn("a")))
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Equal(t, StateEmpty, m.State())
}

func TestLoadDatasetReplacesSession(t *testing.T) {
	gen := &scripted{replies: []string{fenced("result = len(df)")}}
	m := newManager(t, gen)
	first := m.SessionID()
	_, err := m.Ask(context.Background(), "rows?")
	require.NoError(t, err)

	_, err = m.LoadDataset(purchases(t))
	require.NoError(t, err)
	assert.NotEqual(t, first, m.SessionID())
	assert.Empty(t, m.Turns())
	assert.Len(t, m.ModelContext(), 1)
}

// ── Questions ───────────────────────────────────────────────────────────────

func TestAskCountsUniqueSuppliers(t *testing.T) {
	gen := &scripted{replies: []string{
		"Sure:\n" + fenced(`matches := df[df["Supplier"].Contains("acme")]
result = matches["Supplier"].NUnique()`),
	}}
	m := newManager(t, gen)

	turn, err := m.Ask(context.Background(), "  how many unique suppliers contain acme?  ")
	require.NoError(t, err)
	require.NoError(t, turn.Result.Validate())
	require.Equal(t, engine.ResultScalar, turn.Result.Kind, "%+v", turn.Result.Error)
	assert.Equal(t, "3", turn.Result.Scalar.Text)
	assert.Equal(t, "how many unique suppliers contain acme?", turn.Question)
	assert.Contains(t, turn.Snippet, "NUnique()")
	assert.Equal(t, RoleUser, turn.Role)
	assert.Equal(t, 0, turn.Order)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Contains(t, req.Prompt, "QUESTION: how many unique suppliers contain acme?")
	assert.Contains(t, req.Prompt, "CURRENT DATE: 2025-06-01")
	require.Len(t, req.History, 1)
}

func TestAskWithoutCodeBlockStaysActive(t *testing.T) {
	gen := &scripted{replies: []string{"I cannot answer that."}}
	m := newManager(t, gen)

	turn, err := m.Ask(context.Background(), "what is the meaning of life?")
	require.NoError(t, err)
	require.Equal(t, engine.ResultError, turn.Result.Kind)
	assert.Equal(t, engine.ErrEmptyGeneration, turn.Result.Error.Kind)
	assert.Empty(t, turn.Snippet)
	assert.Equal(t, StateActive, m.State())
	assert.Len(t, m.ModelContext(), 1, "failed generations are not replayed")
}

func TestAskRuntimeErrorKeepsPriorTurns(t *testing.T) {
	gen := &scripted{replies: []string{
		fenced(`result = df["Amount"].Sum()`),
		fenced(`result = df["Missing"].Sum()`),
	}}
	m := newManager(t, gen)

	first, err := m.Ask(context.Background(), "total amount")
	require.NoError(t, err)
	require.Equal(t, engine.ResultScalar, first.Result.Kind)

	second, err := m.Ask(context.Background(), "total missing")
	require.NoError(t, err)
	require.Equal(t, engine.ResultError, second.Result.Kind)
	assert.Equal(t, engine.ErrExecutionFailed, second.Result.Error.Kind)

	turns := m.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, first, turns[0])
	assert.Equal(t, StateActive, m.State())
}

func TestAskServiceFailure(t *testing.T) {
	m := newManager(t, &scripted{})
	turn, err := m.Ask(context.Background(), "anything")
	require.NoError(t, err)
	require.Equal(t, engine.ResultError, turn.Result.Kind)
	assert.Equal(t, engine.ErrServiceUnavailable, turn.Result.Error.Kind)
}

func TestAskPreconditions(t *testing.T) {
	m := NewManager(translator.NewClient(&scripted{}), sandbox.NewInterpreter())
	_, err := m.Ask(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoSession)

	m = newManager(t, &scripted{})
	before := m.Turns()
	_, err = m.Ask(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, before, m.Turns())
	assert.Equal(t, StateActive, m.State())
}

func TestExitTokenEndsSession(t *testing.T) {
	for _, word := range []string{"salir", " EXIT ", "Salir"} {
		t.Run(strings.TrimSpace(word), func(t *testing.T) {
			gen := &scripted{}
			m := newManager(t, gen)

			turn, err := m.Ask(context.Background(), word)
			require.NoError(t, err)
			assert.Equal(t, RoleSystem, turn.Role)
			require.Equal(t, engine.ResultScalar, turn.Result.Kind)
			assert.Equal(t, EndedText, turn.Result.Scalar.Text)
			assert.Equal(t, StateEmpty, m.State())
			assert.Nil(t, m.Dataset())
			assert.Empty(t, gen.requests, "exit never reaches the model")

			_, err = m.Ask(context.Background(), "total amount")
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestCustomExitTokens(t *testing.T) {
	m := newManager(t, &scripted{replies: []string{fenced("result = 1")}}, WithExitTokens("quit"))
	turn, err := m.Ask(context.Background(), "exit")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, turn.Role)
	assert.Equal(t, StateActive, m.State())
}

func TestEnd(t *testing.T) {
	m := newManager(t, &scripted{})
	turn, err := m.End()
	require.NoError(t, err)
	assert.Equal(t, RoleSystem, turn.Role)
	assert.Empty(t, turn.Question)
	assert.Equal(t, 0, turn.Order)
	assert.Equal(t, StateEmpty, m.State())
	assert.Nil(t, m.Preview())

	_, err = m.End()
	assert.ErrorIs(t, err, ErrNoSession)
}

// ── Reset ───────────────────────────────────────────────────────────────────

func TestResetClearsHistoryKeepsDataset(t *testing.T) {
	gen := &scripted{replies: []string{fenced("result = len(df)"), fenced("result = len(df)")}}
	m := newManager(t, gen)
	d := m.Dataset()
	id := m.SessionID()

	_, err := m.Ask(context.Background(), "rows?")
	require.NoError(t, err)
	require.Len(t, m.ModelContext(), 2)

	preview := m.Preview()

	require.NoError(t, m.Reset())
	assert.Empty(t, m.Turns())
	assert.Len(t, m.ModelContext(), 1)
	assert.Same(t, d, m.Dataset())
	assert.Same(t, preview, m.Preview())
	assert.Equal(t, id, m.SessionID())
	assert.Equal(t, StateActive, m.State())

	turn, err := m.Ask(context.Background(), "rows again?")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.Order)
	require.Len(t, gen.requests, 2)
	assert.Len(t, gen.requests[1].History, 1, "history before the reset is not sent")
}

func TestResetWithoutSession(t *testing.T) {
	m := NewManager(translator.NewClient(&scripted{}), sandbox.NewInterpreter())
	assert.ErrorIs(t, m.Reset(), ErrNoSession)
}

// ── History ─────────────────────────────────────────────────────────────────

func TestHistoryIsBounded(t *testing.T) {
	gen := &scripted{}
	for i := 0; i < 5; i++ {
		gen.replies = append(gen.replies, fenced("result = len(df)"))
	}
	m := newManager(t, gen, WithHistoryTurns(2))
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		_, err := m.Ask(context.Background(), q)
		require.NoError(t, err)
	}

	ctx := m.ModelContext()
	require.Len(t, ctx, 3)
	assert.Contains(t, ctx[0].Prompt, "Supplier")
	assert.Equal(t, "q4", ctx[1].Prompt)
	assert.Equal(t, "q5", ctx[2].Prompt)
	assert.Equal(t, fenced("result = len(df)"), ctx[2].Reply)
}

// ── Supersession ────────────────────────────────────────────────────────────

func TestResetSupersedesInFlightQuestion(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gen := translator.GeneratorFunc(func(ctx context.Context, req translator.Request) (string, error) {
		close(started)
		<-release
		return fenced("result = len(df)"), nil
	})
	m := newManager(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := m.Ask(context.Background(), "rows?")
		done <- err
	}()

	<-started
	require.NoError(t, m.Reset())
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Empty(t, m.Turns())
	assert.Len(t, m.ModelContext(), 1)
}

func TestConcurrentQuestionsAreSerialized(t *testing.T) {
	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	gen := translator.GeneratorFunc(func(ctx context.Context, req translator.Request) (string, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return fenced("result = len(df)"), nil
	})
	m := newManager(t, gen)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Ask(context.Background(), "rows?")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak)
	turns := m.Turns()
	require.Len(t, turns, 4)
	for i, turn := range turns {
		assert.Equal(t, i, turn.Order)
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	m := newManager(t, &scripted{replies: []string{fenced("result = len(df)")}})
	_, err := m.Ask(context.Background(), "rows?")
	require.NoError(t, err)

	turns := m.Turns()
	turns[0].Question = "mutated"
	assert.Equal(t, "rows?", m.Turns()[0].Question)

	got, ok := m.Turn(0)
	require.True(t, ok)
	assert.Equal(t, RoleUser, got.Role)
	_, ok = m.Turn(5)
	assert.False(t, ok)
}
