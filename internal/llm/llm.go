// Package llm adapts hosted language models to the single text-completion
// capability the analysis pipeline depends on.
package llm

import (
	"context"
	"errors"
	"net"
	"os"
	"regexp"
	"strings"
)

// ErrCapabilityUnavailable means the completion capability cannot be invoked at
// all (missing credential, disabled by env, or the provider rejected the key).
var ErrCapabilityUnavailable = errors.New("llm: completion capability unavailable")

// NoLLMEnv disables every provider constructor when set to a truthy value.
const NoLLMEnv = "LEGALBRIEF_NO_LLM"

// systemPrompt is sent as the system instruction by every provider.
const systemPrompt = "You are a careful legal document analyst. You explain contracts and legal documents in plain language, quote source text verbatim, and never invent facts that the document does not support."

// CompletionOptions bounds a single completion request.
type CompletionOptions struct {
	Temperature     float64
	MaxOutputTokens int
	// JSONMode asks providers that support it to constrain output to JSON.
	JSONMode bool
}

// Completer is the text-completion capability: one prompt in, raw text out.
// The returned text may or may not be valid JSON.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// Named is implemented by completers that can report the model they call.
type Named interface {
	ModelName() string
}

// ModelName returns the model behind c, or "unknown".
func ModelName(c Completer) string {
	if n, ok := c.(Named); ok {
		return n.ModelName()
	}
	return "unknown"
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	return f(ctx, prompt, opts)
}

type FailureClass int

const (
	FailureNone FailureClass = iota
	FailureTimeout
	FailureRateLimit
	FailureServer
	FailureClient
	FailureAuth
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailureRateLimit:
		return "rate_limit"
	case FailureServer:
		return "server"
	case FailureClient:
		return "client"
	case FailureAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

// ClassifyError buckets a transport error from any provider.
func ClassifyError(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrCapabilityUnavailable) {
		return FailureAuth
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		return classifyStatus(m[1])
	}
	switch {
	case strings.Contains(msg, "api key not valid"), strings.Contains(msg, "permission_denied"), strings.Contains(msg, "unauthenticated"):
		return FailureAuth
	case strings.Contains(msg, "status 429"), strings.Contains(msg, "status=429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "resource_exhausted"):
		return FailureRateLimit
	case strings.Contains(msg, "status 5"), strings.Contains(msg, "status=5"), strings.Contains(msg, "server error"):
		return FailureServer
	case strings.Contains(msg, "status 4"), strings.Contains(msg, "status=4"):
		return FailureClient
	default:
		return FailureServer
	}
}

func classifyStatus(code string) FailureClass {
	switch {
	case code == "401", code == "403":
		return FailureAuth
	case code == "429":
		return FailureRateLimit
	case strings.HasPrefix(code, "5"):
		return FailureServer
	case strings.HasPrefix(code, "4"):
		return FailureClient
	default:
		return FailureServer
	}
}

func envEnabled(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
