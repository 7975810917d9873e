package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// geminiModel is the slice of *genai.GenerativeModel used here.
type geminiModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// geminiModelFactory configures a model for one request.
type geminiModelFactory func(opts CompletionOptions) geminiModel

// GeminiCompleter calls the Gemini API. Unlike Claude it has a native JSON
// response mode, which CompletionOptions.JSONMode switches on.
type GeminiCompleter struct {
	client  *genai.Client
	model   string
	factory geminiModelFactory
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if envEnabled(NoLLMEnv) {
		return nil, fmt.Errorf("%w: disabled by %s", ErrCapabilityUnavailable, NoLLMEnv)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY not configured", ErrCapabilityUnavailable)
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	g := &GeminiCompleter{client: client, model: model}
	g.factory = g.newModel
	return g, nil
}

func NewGeminiCompleterFromEnv(ctx context.Context) (*GeminiCompleter, error) {
	return NewGeminiCompleter(ctx, os.Getenv("GEMINI_API_KEY"), os.Getenv("LEGALBRIEF_LLM_MODEL"))
}

func (g *GeminiCompleter) newModel(opts CompletionOptions) geminiModel {
	m := g.client.GenerativeModel(g.model)
	m.SetTemperature(float32(opts.Temperature))
	if opts.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}
	if opts.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
	m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	return m
}

func (g *GeminiCompleter) ModelName() string { return g.model }

func (g *GeminiCompleter) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GeminiCompleter) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	resp, err := g.factory(opts).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if ClassifyError(err) == FailureAuth {
			return "", fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
		}
		return "", eris.Wrap(err, "gemini: generate content")
	}
	return geminiText(resp), nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		// First candidate only; the API returns one unless asked otherwise.
		break
	}
	return sb.String()
}
