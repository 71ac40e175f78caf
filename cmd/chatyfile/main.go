package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/config"
	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/logging"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/session"
	"github.com/spektr-org/chatyfile/translator"
)

// ============================================================================
// CHATYFILE CLI — Plain-language questions over a CSV file
// ============================================================================

const version = "0.3.0"

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatyfile",
	Short: "Ask questions about a CSV file in plain language",
	Long: `chatyfile answers natural-language questions about a tabular dataset.

Each question is translated by a language model into a short data snippet,
the snippet runs in a restricted interpreter against a copy of the data, and
the result is shown as a table, a chart or a single value.

Environment:
  GEMINI_API_KEY    Key for the default Gemini provider
  OPENAI_API_KEY    Key for any OpenAI-compatible endpoint`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "chatyfile.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ── Wiring ─────────────────────────────────────────────────────────────────

func newInterpreter() *sandbox.Interpreter {
	return sandbox.NewInterpreter(
		sandbox.WithTimeout(cfg.GetSandboxTimeout()),
		sandbox.WithMaxOutput(cfg.Sandbox.MaxOutputBytes),
		sandbox.WithLogger(logger))
}

func chartOptions() []engine.ChartOption {
	return []engine.ChartOption{engine.WithSize(cfg.Sandbox.PlotWidth, cfg.Sandbox.PlotHeight)}
}

func newClient(ctx context.Context) (*translator.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	gen, err := translator.New(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	return translator.NewClient(gen,
		translator.WithTimeout(cfg.GetLLMTimeout()),
		translator.WithMaxResponseBytes(cfg.LLM.MaxResponseBytes),
		translator.WithLogger(logger)), nil
}

// managerFactory returns a constructor for Managers sharing one client.
func managerFactory(ctx context.Context, extra ...session.Option) (func() *session.Manager, error) {
	client, err := newClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append(session.ConfigOptions(cfg), session.WithLogger(logger))
	opts = append(opts, extra...)
	return func() *session.Manager {
		return session.NewManager(client, newInterpreter(), opts...)
	}, nil
}
