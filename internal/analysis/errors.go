package analysis

import (
	"errors"
	"fmt"

	"github.com/joelkehle/legalbrief/internal/llm"
)

var (
	// ErrCapabilityUnavailable aborts a run before or during chunk analysis.
	ErrCapabilityUnavailable = llm.ErrCapabilityUnavailable
	// ErrNoUsableResult means every chunk was dropped.
	ErrNoUsableResult = errors.New("analysis: no chunk produced a usable result")
	ErrInvalidRequest = errors.New("analysis: invalid request")
)

const maxSnippetRunes = 500

// DecodeError is returned when no decoding strategy recovered a JSON object.
type DecodeError struct {
	Raw     string
	Snippet string
	Err     error
}

func newDecodeError(raw string, err error) *DecodeError {
	return &DecodeError{Raw: raw, Snippet: truncateRunes(raw, maxSnippetRunes), Err: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model output: %v (raw=%q)", e.Err, e.Snippet)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ChunkError is a non-fatal failure confined to one chunk.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return "pipeline"
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
