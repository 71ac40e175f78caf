package translator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/chatyfile/config"
	"github.com/spektr-org/chatyfile/engine"
)

func purchases(t *testing.T) *engine.Dataset {
	t.Helper()
	d, err := engine.NewDataset(
		engine.StringColumn("Proveedor", "Acme Corp", "ACME Ltd", "Globex", "acme inc"),
		engine.NumericColumn("Importe Total", 100, 250.5, 75, 300),
		engine.NewColumn("Fecha Pedido", engine.KindDatetime, []any{
			time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), nil,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		}),
	)
	require.NoError(t, err)
	return d
}

func requireKind(t *testing.T, err error, want engine.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := engine.KindOf(err)
	require.True(t, ok, "not a failure: %v", err)
	assert.Equal(t, want, kind, err.Error())
}

// ── Prompt ──────────────────────────────────────────────────────────────────

func TestBuildPromptUsesExactColumnNames(t *testing.T) {
	p := BuildPrompt(purchases(t), "  ¿cuántos proveedores acme hay?  ", PromptOptions{
		Today: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})

	for _, want := range []string{
		`"Proveedor" (categorical`,
		`"Importe Total" (numeric`,
		`"Fecha Pedido" (datetime, 1 missing`,
		"Never translate",
		"result = ",
		".Contains(",
		"plt",
		"CURRENT DATE: 2025-06-01",
		`df.GroupBy("Proveedor")["Importe Total"].Mean()`,
		`df["Fecha Pedido"].Period()`,
		"QUESTION: ¿cuántos proveedores acme hay?\n",
		"```go",
	} {
		assert.Contains(t, p, want)
	}
	assert.NotContains(t, p, "proveedor\"", "names must keep their case")
}

func TestBuildPromptExamplesCompile(t *testing.T) {
	ctx := BuildContext(purchases(t), PromptOptions{})
	blocks := strings.Split(ctx.Examples, "```go\n")
	require.Greater(t, len(blocks), 5)
	for _, b := range blocks[1:] {
		code := b[:strings.Index(b, "```")]
		_, err := ExtractSnippet("```go\n" + code + "```")
		assert.NoError(t, err, code)
	}
}

func TestBuildPromptWithoutNumericColumns(t *testing.T) {
	d := engine.MustDataset(engine.StringColumn("name", "a", "b"))
	p := BuildPrompt(d, "most common name", PromptOptions{})
	assert.Contains(t, p, `df["name"].ValueCounts()`)
	assert.NotContains(t, p, "CURRENT DATE")
}

func TestPrimerListsColumns(t *testing.T) {
	ex := Primer(purchases(t))
	assert.Contains(t, ex.Prompt, `"Proveedor", "Importe Total", "Fecha Pedido"`)
	assert.NotEmpty(t, ex.Reply)
}

// ── Snippet extraction ──────────────────────────────────────────────────────

func TestExtractSnippet(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"fenced", "Here you go:\n```go\nresult = len(df)\n```\nDone.", "result = len(df)"},
		{"other language tag", "```python\nresult = df[\"a\"].Sum()\n```", `result = df["a"].Sum()`},
		{"unfenced code", "result = len(df)", "result = len(df)"},
		{"unterminated fence", "```go\nresult = 1\n", "result = 1"},
		{"first block wins", "```go\nresult = 1\n```\n```go\nresult = 2\n```", "result = 1"},
		{
			"package, imports and main",
			"```go\npackage main\n\nimport (\n\t\"fmt\"\n)\nimport \"os\"\n\nfunc main() {\n\tresult = 3\n\treturn\n}\n```",
			"result = 3",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractSnippet(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, strings.TrimSpace(got))
		})
	}
}

func TestExtractSnippetEmpty(t *testing.T) {
	for _, in := range []string{
		"",
		"```go\n```",
		"I'm sorry, I can't answer that.",
		"```go\npackage main\nreturn\n```",
	} {
		_, err := ExtractSnippet(in)
		requireKind(t, err, engine.ErrEmptyGeneration)
	}
}

func TestExtractSnippetInvalidFencedCode(t *testing.T) {
	_, err := ExtractSnippet("```go\nfor i := 0; i < 3; i++ {\n\tprintln(i)\n}\n```")
	requireKind(t, err, engine.ErrInvalidSyntax)

	_, err = ExtractSnippet("```go\nresult = df[\n```")
	requireKind(t, err, engine.ErrInvalidSyntax)
}

// ── Client ──────────────────────────────────────────────────────────────────

func TestClientClassifiesFailures(t *testing.T) {
	down := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return "", errors.New("503 service unavailable")
	})
	_, err := NewClient(down).Complete(context.Background(), Request{Prompt: "p"})
	requireKind(t, err, engine.ErrServiceUnavailable)

	slow := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err = NewClient(slow, WithTimeout(10*time.Millisecond)).Complete(context.Background(), Request{})
	requireKind(t, err, engine.ErrTimeout)

	huge := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		return strings.Repeat("x", 100), nil
	})
	_, err = NewClient(huge, WithMaxResponseBytes(10)).Complete(context.Background(), Request{})
	requireKind(t, err, engine.ErrTimeout)
}

func TestClientPassesRequestThrough(t *testing.T) {
	var got Request
	gen := GeneratorFunc(func(ctx context.Context, req Request) (string, error) {
		got = req
		return "ok", nil
	})
	req := Request{Prompt: "q", History: []Exchange{{Prompt: "a", Reply: "b"}}}
	text, err := NewClient(gen).Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, req, got)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.LLMConfig{Provider: "carrier-pigeon"}, nil)
	assert.ErrorContains(t, err, "unknown LLM provider")
}

// ── Providers ───────────────────────────────────────────────────────────────

func TestGeminiGenerate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"`+"```go\\nresult = 1\\n```"+`"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	gen, err := NewGemini(context.Background(), config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/", Temperature: 0.1}, nil)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Request{
		Prompt:  "how many rows?",
		History: []Exchange{{Prompt: "columns are a, b", Reply: "Understood."}},
	})
	require.NoError(t, err)
	assert.Equal(t, "```go\nresult = 1\n```", text)
	assert.Contains(t, body, "how many rows?")
	assert.Contains(t, body, "columns are a, b")
	assert.Contains(t, body, `"model"`)
}

func TestGeminiServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	gen, err := NewGemini(context.Background(), config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)
	_, err = NewClient(gen).Complete(context.Background(), Request{Prompt: "p"})
	requireKind(t, err, engine.ErrServiceUnavailable)
}

func TestOpenAIGenerate(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"result = len(df)"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	gen, err := NewOpenAI(config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "local-model"}, nil)
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), Request{
		Prompt:  "how many rows?",
		History: []Exchange{{Prompt: "p0", Reply: "r0"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "result = len(df)", text)
	assert.Equal(t, "local-model", req.Model)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Equal(t, "how many rows?", req.Messages[2].Content)
}
