package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/sandbox"
	"github.com/spektr-org/chatyfile/session"
	"github.com/spektr-org/chatyfile/translator"
)

func sampleTable() *engine.Table {
	return engine.BuildTable(engine.MustDataset(
		engine.StringColumn("Region", "North", "South, East"),
		engine.NumericColumn("Amount", 175.5, 20),
	))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, sampleTable()))
	assert.Equal(t, "Region,Amount\nNorth,175.5\n\"South, East\",20\n", buf.String())
}

func TestRenderResultText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, engine.TableResult(sampleTable()), renderOptions{format: "text", maxRows: 1}))
	out := buf.String()
	assert.Contains(t, out, "Region")
	assert.Contains(t, out, "North")
	assert.NotContains(t, out, "South")
	assert.Contains(t, out, "1 more rows")

	buf.Reset()
	require.NoError(t, renderResult(&buf, engine.ScalarResult("42"), renderOptions{format: "text"}))
	assert.Contains(t, buf.String(), "42")

	buf.Reset()
	require.NoError(t, renderResult(&buf, engine.ErrorResult(engine.ErrTimeout, "too slow"), renderOptions{format: "text"}))
	assert.Contains(t, buf.String(), "timeout: too slow")
}

func TestRenderResultPlain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, engine.TableResult(sampleTable()), renderOptions{format: "plain"}))
	assert.True(t, strings.HasPrefix(buf.String(), "Region"))
}

func TestRenderPlotWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	r := engine.PlotResult(&engine.Plot{Title: "Sales", PNG: []byte("\x89PNG fake")})

	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, r, renderOptions{format: "json", plotOut: path}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))

	var got engine.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.NotNil(t, got.Plot)
	assert.Equal(t, "Sales", got.Plot.Title)
	assert.Empty(t, got.Plot.PNG)
}

func TestChatLoop(t *testing.T) {
	logger = zap.NewNop()
	gen := translator.GeneratorFunc(func(ctx context.Context, req translator.Request) (string, error) {
		return "```go\nresult = df[\"Amount\"].Sum()\n```", nil
	})
	m := session.NewManager(translator.NewClient(gen), sandbox.NewInterpreter(), session.WithPreviewRows(1))
	_, err := m.LoadDataset(engine.MustDataset(engine.NumericColumn("Amount", 1.5, 2)))
	require.NoError(t, err)

	in := strings.NewReader("total?\n/code\ntotal again?\n/reset\n/load missing.csv\nsalir\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), m, in, &out))

	text := out.String()
	assert.Contains(t, text, "First 1 rows")
	assert.Contains(t, text, "3.5")
	assert.Contains(t, text, "showing code: true")
	assert.Contains(t, text, `df["Amount"].Sum()`)
	assert.Contains(t, text, "history cleared")
	assert.Contains(t, text, "missing.csv")
	assert.Contains(t, text, session.EndedText)
	assert.Equal(t, session.StateEmpty, m.State())
}

func TestChatLoadShowsPreview(t *testing.T) {
	logger = zap.NewNop()
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,score\nann,1\nbob,2\ncid,3\n"), 0o644))

	m := session.NewManager(translator.NewClient(translator.GeneratorFunc(
		func(ctx context.Context, req translator.Request) (string, error) { return "", nil })),
		sandbox.NewInterpreter(), session.WithPreviewRows(2))

	var out bytes.Buffer
	require.NoError(t, chatLoad(m, path, &out, renderOptions{format: "text"}))
	assert.Contains(t, out.String(), "First 2 rows")
	assert.Contains(t, out.String(), "bob")
	assert.NotContains(t, out.String(), "cid")
	assert.Empty(t, m.Turns())
}
