package sandbox

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/engine"
)

// ============================================================================
// EXECUTOR — Run a snippet against a dataset copy with limits
// ============================================================================

const (
	DefaultTimeout        = 10 * time.Second
	DefaultMaxOutputBytes = 64 << 10
)

// Executor runs snippets. Errors are *engine.Failure values.
type Executor interface {
	Execute(ctx context.Context, snippet string, d *engine.Dataset) (*Capture, error)
}

// Interpreter is the in-process Executor.
type Interpreter struct {
	timeout   time.Duration
	maxOutput int
	logger    *zap.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithTimeout bounds wall-clock time per snippet. Non-positive keeps the
// default.
func WithTimeout(d time.Duration) Option {
	return func(i *Interpreter) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithMaxOutput bounds captured printed output in bytes.
func WithMaxOutput(n int) Option {
	return func(i *Interpreter) {
		if n > 0 {
			i.maxOutput = n
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewInterpreter builds an Interpreter with defaults overridden by opts.
func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{
		timeout:   DefaultTimeout,
		maxOutput: DefaultMaxOutputBytes,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Execute compiles snippet and runs it against a clone of d. The caller's
// dataset is never modified.
func (i *Interpreter) Execute(ctx context.Context, snippet string, d *engine.Dataset) (*Capture, error) {
	prog, err := Compile(snippet)
	if err != nil {
		i.logger.Debug("snippet rejected", zap.Error(err))
		return nil, err
	}
	if d == nil {
		return nil, engine.Failf(engine.ErrExecutionFailed, "no dataset loaded")
	}

	runCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ev := newEvaluator(runCtx, prog, d.Clone(), i.maxOutput)
	done := make(chan error, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("snippet panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
				done <- fmt.Errorf("internal error: %v", r)
			}
		}()
		done <- ev.run()
	}()

	select {
	case err = <-done:
	case <-runCtx.Done():
		// The evaluator checks runCtx between statements and calls, so
		// it stops on its own; its buffered send is never waited for.
		err = runCtx.Err()
	}

	elapsed := time.Since(start)
	switch {
	case err == nil:
		i.logger.Debug("snippet executed", zap.Duration("elapsed", elapsed))
		return ev.capture(), nil
	case errors.Is(err, context.DeadlineExceeded):
		i.logger.Warn("snippet timed out", zap.Duration("timeout", i.timeout))
		return nil, engine.Failf(engine.ErrTimeout, "execution exceeded %s", i.timeout)
	case errors.Is(err, context.Canceled):
		return nil, engine.Wrap(engine.ErrExecutionFailed, err)
	}
	i.logger.Debug("snippet failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	return nil, engine.Wrap(engine.ErrExecutionFailed, err)
}

// Run executes snippet and classifies the outcome. It always returns a
// valid Result.
func Run(ctx context.Context, exec Executor, snippet string, d *engine.Dataset, opts ...engine.ChartOption) engine.Result {
	capture, err := exec.Execute(ctx, snippet, d)
	if err != nil {
		return engine.FailureResult(err)
	}
	return Classify(capture, opts...)
}
