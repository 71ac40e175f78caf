package sandbox

import (
	"github.com/spektr-org/chatyfile/engine"
)

// Capture is everything a snippet left behind.
type Capture struct {
	Output      string
	Truncated   bool
	Result      any
	ResultBound bool
	Figure      *engine.Figure
}

const truncationMarker = "\n... output truncated"

// limitedBuffer keeps at most max bytes and remembers whether more were
// written.
type limitedBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.max - len(b.buf)
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return string(b.buf) + truncationMarker
	}
	return string(b.buf)
}
