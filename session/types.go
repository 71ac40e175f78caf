package session

import (
	"errors"
	"time"

	"github.com/spektr-org/chatyfile/engine"
	"github.com/spektr-org/chatyfile/translator"
)

// ============================================================================
// SESSION TYPES — Conversation state bound to one dataset
// ============================================================================

// State is the lifecycle state of a Manager.
type State string

const (
	StateEmpty  State = "empty"
	StateActive State = "active"
)

// Role tells renderers who a turn belongs to.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// EndedText is the answer recorded on the turn that closes a session.
const EndedText = "session ended"

// Precondition errors. They are returned to the caller and never recorded
// as turns.
var (
	ErrNoSession     = errors.New("no active session: load a dataset first")
	ErrEmptyDataset  = engine.ErrEmptyDataset
	ErrEmptyQuestion = errors.New("question is empty")
	ErrSuperseded    = errors.New("the session changed while the question was running")
)

// Turn is one question and its answer. Turns are immutable once appended.
type Turn struct {
	Order    int           `json:"order"`
	Question string        `json:"question,omitempty"`
	Snippet  string        `json:"snippet,omitempty"`
	Result   engine.Result `json:"result"`
	Role     Role          `json:"role"`
	At       time.Time     `json:"at"`
}

// Session is one conversation over one dataset.
type Session struct {
	ID      string
	Dataset *engine.Dataset
	Created time.Time
	// Preview holds the first rows of Dataset, or nil when disabled. It is
	// not a turn.
	Preview *engine.Table

	// history is the model context: the schema primer followed by the most
	// recent question/snippet exchanges.
	history    []translator.Exchange
	turns      []Turn
	generation uint64
}

// ModelContext returns a copy of the exchanges sent with the next question.
func (s *Session) ModelContext() []translator.Exchange {
	return append([]translator.Exchange(nil), s.history...)
}
