package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const DefaultAnthropicModel = "claude-sonnet-4-20250514"

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicCompleter calls the Claude Messages API.
type AnthropicCompleter struct {
	messages AnthropicMessager
	model    string
}

// NewAnthropicCompleter returns ErrCapabilityUnavailable when apiKey is blank
// or the NoLLMEnv switch is on.
func NewAnthropicCompleter(apiKey, model string) (*AnthropicCompleter, error) {
	if envEnabled(NoLLMEnv) {
		return nil, fmt.Errorf("%w: disabled by %s", ErrCapabilityUnavailable, NoLLMEnv)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not configured", ErrCapabilityUnavailable)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicCompleter{messages: newAnthropicClient(apiKey), model: model}, nil
}

func NewAnthropicCompleterFromEnv() (*AnthropicCompleter, error) {
	return NewAnthropicCompleter(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("LEGALBRIEF_LLM_MODEL"))
}

func (a *AnthropicCompleter) ModelName() string { return a.model }

func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	system := systemPrompt
	if opts.JSONMode {
		// No native JSON mode on this API; the instruction carries it.
		system += " Respond with strict JSON only."
	}
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxTokens,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(opts.Temperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
			return "", fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		return "", eris.Wrap(err, "anthropic: create message")
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}
