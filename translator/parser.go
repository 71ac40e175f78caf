package translator

import (
	"strings"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/sandbox"
)

// ============================================================================
// RESPONSE PARSER — Extracts the snippet from a completion
// ============================================================================
// Models wrap code in fences, add package clauses, imports, func main and
// trailing returns. All of that is stripped; what remains must compile in
// the sandbox before it is ever run.
// ============================================================================

const fence = "```"

// ExtractSnippet returns the runnable snippet in completion. Failures are
// *engine.Failure values: EmptyGeneration when there is no code, and
// InvalidSyntax when a fenced block does not compile.
func ExtractSnippet(completion string) (string, error) {
	candidate, fenced := fencedBlock(completion)
	snippet := strings.TrimSpace(cleanLines(candidate))
	if snippet == "" {
		return "", engine.Failf(engine.ErrEmptyGeneration, "the response contained no code")
	}
	if err := sandbox.Check(snippet); err != nil {
		if fenced {
			return "", err
		}
		return "", engine.Failf(engine.ErrEmptyGeneration, "the response contained no code block")
	}
	return snippet, nil
}

// fencedBlock returns the body of the first fenced block, ignoring its
// language tag. Without a fence the whole text is the candidate. An
// unterminated fence runs to the end of the text.
func fencedBlock(s string) (string, bool) {
	start := strings.Index(s, fence)
	if start < 0 {
		return s, false
	}
	rest := s[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = ""
	}
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}

// cleanLines drops fence markers, package clauses, imports and return
// statements, then unwraps a func main body.
func cleanLines(s string) string {
	var kept []string
	inImport := false
	for _, line := range strings.Split(s, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case inImport:
			if strings.HasPrefix(t, ")") {
				inImport = false
			}
			continue
		case strings.HasPrefix(t, fence):
			continue
		case strings.HasPrefix(t, "package "):
			continue
		case t == "import (" || t == "import(":
			inImport = true
			continue
		case strings.HasPrefix(t, "import "):
			continue
		case t == "return" || strings.HasPrefix(t, "return "):
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(unwrapMain(kept), "\n")
}

func unwrapMain(lines []string) []string {
	lo, hi := 0, len(lines)-1
	for lo <= hi && strings.TrimSpace(lines[lo]) == "" {
		lo++
	}
	for hi >= lo && strings.TrimSpace(lines[hi]) == "" {
		hi--
	}
	if lo >= hi {
		return lines
	}
	head := strings.Join(strings.Fields(lines[lo]), " ")
	if (head == "func main() {" || head == "func main(){") && strings.TrimSpace(lines[hi]) == "}" {
		return lines[lo+1 : hi]
	}
	return lines
}
