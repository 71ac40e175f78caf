package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/helpers"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/schema"
	"github.com/spektr-org/chatyfile/server"
	"github.com/spektr-org/chatyfile/session"
)

var (
	filePath   string
	format     string
	outFile    string
	plotOut    string
	showCode   bool
	sampleRows int
	snippetArg string
	plotDir    string
	serveAddr  string
)

func loadDataset(path string) (*engine.Dataset, error) {
	if path == "" {
		return nil, errors.New("--file is required")
	}
	d, err := helpers.ParseCSVFile(path, helpers.CSVOptions{})
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("file", path),
		zap.Int("rows", d.NumRows()),
		zap.Int("columns", d.NumCols()))
	return d, nil
}

// output returns the writer for --out, defaulting to stdout.
func output(cmd *cobra.Command) (io.Writer, func(), error) {
	if outFile == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(outFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func renderOpts() renderOptions {
	return renderOptions{format: format, plotOut: plotOut, showCode: showCode, maxRows: 50}
}

// ── describe ───────────────────────────────────────────────────────────────

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the schema the model sees for a CSV file",
	Example: `  chatyfile describe --file sales.csv
  chatyfile describe --file sales.csv --format pretty --out schema.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(filePath)
		if err != nil {
			return err
		}
		desc := schema.Describe(d, schema.DescribeOptions{
			SampleRows:   sampleRows,
			MaxCellWidth: cfg.Prompt.MaxCellWidth,
		})
		w, done, err := output(cmd)
		if err != nil {
			return err
		}
		defer done()

		switch format {
		case "json", "pretty":
			return writeJSON(w, desc, format)
		case "csv":
			return writeCSV(w, desc.Summary())
		}
		fmt.Fprintln(w, desc.Text())
		return renderTable(w, desc.Summary(), renderOpts())
	},
}

// ── run ────────────────────────────────────────────────────────────────────

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a snippet against a CSV file without the model",
	Example: `  chatyfile run --file sales.csv --snippet 'result = df["Amount"].Sum()'
  echo 'plt.Bar(df["Region"])' | chatyfile run --file sales.csv --snippet - --plot-out regions.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(filePath)
		if err != nil {
			return err
		}
		src := snippetArg
		if src == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read snippet: %w", err)
			}
			src = string(b)
		}
		if strings.TrimSpace(src) == "" {
			return errors.New("--snippet is required")
		}

		result := sandbox.Run(cmd.Context(), newInterpreter(), src, d, chartOptions()...)
		w, done, err := output(cmd)
		if err != nil {
			return err
		}
		defer done()
		return renderResult(w, result, renderOpts())
	},
}

// ── ask ────────────────────────────────────────────────────────────────────

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question about a CSV file",
	Example: `  chatyfile ask --file sales.csv "total revenue by region"
  chatyfile ask --file sales.csv --show-code --plot-out trend.png "monthly revenue trend"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		d, err := loadDataset(filePath)
		if err != nil {
			return err
		}
		factory, err := managerFactory(ctx, session.WithPreviewRows(0))
		if err != nil {
			return err
		}
		m := factory()
		if _, err := m.LoadDataset(d); err != nil {
			return err
		}
		turn, err := m.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		w, done, err := output(cmd)
		if err != nil {
			return err
		}
		defer done()
		return renderTurn(w, turn, renderOpts())
	},
}

// ── chat ───────────────────────────────────────────────────────────────────

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation about a CSV file",
	Long: `Starts an interactive conversation. Besides questions, the prompt accepts:

  /reset          forget earlier questions, keep the dataset
  /load <path>    switch to another CSV file
  /code           toggle showing the generated snippet
  salir, exit     end the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDataset(filePath)
		if err != nil {
			return err
		}
		factory, err := managerFactory(cmd.Context())
		if err != nil {
			return err
		}
		m := factory()
		if _, err := m.LoadDataset(d); err != nil {
			return err
		}
		return chatLoop(cmd.Context(), m, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func chatLoop(ctx context.Context, m *session.Manager, in io.Reader, out io.Writer) error {
	opts := renderOpts()
	opts.format = "text"
	if err := renderPreview(out, m.Preview(), opts); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render("» "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/code":
			opts.showCode = !opts.showCode
			fmt.Fprintln(out, noteStyle.Render(fmt.Sprintf("showing code: %v", opts.showCode)))
			continue
		case line == "/reset":
			if err := m.Reset(); err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			} else {
				fmt.Fprintln(out, noteStyle.Render("history cleared"))
			}
			continue
		case strings.HasPrefix(line, "/load"):
			if err := chatLoad(m, strings.TrimSpace(strings.TrimPrefix(line, "/load")), out, opts); err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			}
			continue
		}

		opts.plotOut = filepath.Join(plotDir, fmt.Sprintf("chatyfile-%s-%d.png", shortID(m.SessionID()), len(m.Turns())))
		askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		turn, err := m.Ask(askCtx, line)
		stop()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		if err := renderTurn(out, turn, opts); err != nil {
			return err
		}
		if m.State() == session.StateEmpty {
			return nil
		}
	}
}

func chatLoad(m *session.Manager, path string, out io.Writer, opts renderOptions) error {
	d, err := loadDataset(path)
	if err != nil {
		return err
	}
	if _, err := m.LoadDataset(d); err != nil {
		return err
	}
	return renderPreview(out, m.Preview(), opts)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		factory, err := managerFactory(ctx)
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		h := server.NewHandler(factory, server.NewMetrics(), cfg.Server, logger)
		e := server.New(h, logger)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("server listening", zap.String("addr", addr))
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	for _, c := range []*cobra.Command{describeCmd, runCmd, askCmd, chatCmd} {
		c.Flags().StringVarP(&filePath, "file", "f", "", "Path to the CSV data file (required)")
		_ = c.MarkFlagRequired("file")
	}
	for _, c := range []*cobra.Command{describeCmd, runCmd, askCmd} {
		c.Flags().StringVar(&format, "format", "text", "Output format: text, plain, json, pretty, csv")
		c.Flags().StringVarP(&outFile, "out", "o", "", "Write output to file instead of stdout")
	}
	for _, c := range []*cobra.Command{runCmd, askCmd} {
		c.Flags().StringVar(&plotOut, "plot-out", "chatyfile-plot.png", "Where to write a chart answer")
	}
	askCmd.Flags().BoolVar(&showCode, "show-code", false, "Print the generated snippet")
	chatCmd.Flags().BoolVar(&showCode, "show-code", false, "Start with snippet echo enabled")
	chatCmd.Flags().StringVar(&plotDir, "plot-dir", os.TempDir(), "Directory for chart answers")
	describeCmd.Flags().IntVar(&sampleRows, "sample-rows", 5, "Rows shown verbatim in the schema")
	runCmd.Flags().StringVar(&snippetArg, "snippet", "", "Snippet to execute, or - to read stdin")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
