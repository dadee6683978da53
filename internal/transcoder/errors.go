package transcoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTranscodeFailed means ffmpeg rejected the input or exited non-zero.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrTranscodeTimeout means ffmpeg did not finish within the job timeout.
	ErrTranscodeTimeout = errors.New("transcode timed out")
)

// Stages a job can fail in.
const (
	StageQueue  = "queue"
	StageStart  = "start"
	StageRun    = "run"
	StageOutput = "output"
	StageVerify = "verify"
)

// JobError describes why a transcode job did not succeed. errors.Is matches
// both its Kind and the underlying cause.
type JobError struct {
	JobID  string
	Stage  string
	Reason string
	Stderr string // tail of ffmpeg stderr, may be empty

	// Kind is ErrTranscodeFailed, ErrTranscodeTimeout or context.Canceled.
	Kind error
	Err  error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("%v at %s: %s", e.Kind, e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the classification and the cause.
func (e *JobError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Details returns a client-facing description of the failure. It prefers the
// last line ffmpeg wrote to stderr since that usually names the decode error.
func (e *JobError) Details() string {
	if line := lastLine(e.Stderr); line != "" {
		return e.Reason + ": " + line
	}
	return e.Reason
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\r\n "), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
