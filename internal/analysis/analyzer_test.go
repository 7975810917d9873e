package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/legalbrief/internal/llm"
)

type recordingCompleter struct {
	response string
	err      error
	prompts  []string
	opts     []llm.CompletionOptions
}

func (r *recordingCompleter) Complete(_ context.Context, prompt string, opts llm.CompletionOptions) (string, error) {
	r.prompts = append(r.prompts, prompt)
	r.opts = append(r.opts, opts)
	return r.response, r.err
}

const messyChunkResponse = `{
  "documentType": "  Residential Lease ",
  "plainSummary": 42,
  "clauses": [
    {"id": 7, "title": "Rent", "originalText": "Rent is 1000 per month.", "riskLevel": "HIGH",
     "rolePerspectives": [
       {"role": "tenant", "interpretation": "You pay monthly."},
       {"role": "martian", "interpretation": "ignored"},
       {"role": "landlord"},
       {"role": "Landlord", "obligations": ["Issue receipts", 5, ""]}
     ]},
    {"title": "Deposit", "riskLevel": "extreme"},
    {"simplifiedText": "no identity"},
    "not an object",
    {"id": "", "originalText": "Either party may terminate."}
  ],
  "risks": [
    {"clause": "Rent", "description": "Late fee is steep", "severity": "low"},
    {"recommendation": "orphan"},
    {"id": 2.5, "description": "Deposit may be withheld"}
  ],
  "actionPoints": ["Read clause 4", 3, "  ", "Keep receipts"],
  "citations": "not an array"
}`

func TestAnalyzeChunkCoercesFields(t *testing.T) {
	rc := &recordingCompleter{response: messyChunkResponse}
	a := NewChunkAnalyzer(rc, ChunkAnalyzerOptions{})

	p, err := a.AnalyzeChunk(context.Background(), "chunk body", LanguageEnglish, LevelSimple, 1, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Index)
	assert.Equal(t, "Residential Lease", p.DocumentType)
	assert.Empty(t, p.PlainSummary)

	require.Len(t, p.Clauses, 3)
	assert.Equal(t, "7", p.Clauses[0].ID)
	assert.Equal(t, RiskHigh, p.Clauses[0].RiskLevel)
	require.Len(t, p.Clauses[0].RolePerspectives, 2)
	assert.Equal(t, RoleTenant, p.Clauses[0].RolePerspectives[0].Role)
	assert.Equal(t, RoleLandlord, p.Clauses[0].RolePerspectives[1].Role)
	assert.Equal(t, []string{"Issue receipts"}, p.Clauses[0].RolePerspectives[1].Obligations)

	assert.Equal(t, "2", p.Clauses[1].ID)
	assert.Equal(t, "Deposit", p.Clauses[1].Title)
	assert.Equal(t, RiskMedium, p.Clauses[1].RiskLevel)
	assert.Equal(t, "3", p.Clauses[2].ID)
	assert.Equal(t, "Either party may terminate.", p.Clauses[2].OriginalText)

	require.Len(t, p.Risks, 2)
	assert.Equal(t, "1", p.Risks[0].ID)
	assert.Equal(t, RiskLow, p.Risks[0].Severity)
	assert.Equal(t, "2.5", p.Risks[1].ID)
	assert.Equal(t, RiskMedium, p.Risks[1].Severity)

	assert.Equal(t, []string{"Read clause 4", "Keep receipts"}, p.ActionPoints)
	assert.NotNil(t, p.Citations)
	assert.Empty(t, p.Citations)
}

func TestAnalyzeChunkRequestShape(t *testing.T) {
	rc := &recordingCompleter{response: `{}`}
	a := NewChunkAnalyzer(rc, ChunkAnalyzerOptions{})

	_, err := a.AnalyzeChunk(context.Background(), "THE CHUNK TEXT", LanguageHindi, LevelELI5, 1, 3)
	require.NoError(t, err)
	require.Len(t, rc.prompts, 1)

	prompt := rc.prompts[0]
	assert.Contains(t, prompt, "section 2 of 3")
	assert.Contains(t, prompt, "Return ONLY a JSON object")
	assert.Contains(t, prompt, "verbatim")
	assert.Contains(t, prompt, "Hindi")
	assert.Contains(t, prompt, levelWording[LevelELI5])
	assert.Contains(t, prompt, "THE CHUNK TEXT")

	assert.Equal(t, llm.CompletionOptions{Temperature: DefaultTemperature, MaxOutputTokens: DefaultMaxOutputTokens, JSONMode: true}, rc.opts[0])
}

func TestAnalyzeChunkHonorsZeroTemperature(t *testing.T) {
	rc := &recordingCompleter{response: `{}`}
	a := NewChunkAnalyzer(rc, ChunkAnalyzerOptions{Temperature: Temperature(0), MaxOutputTokens: 512})

	_, err := a.AnalyzeChunk(context.Background(), "text", LanguageEnglish, LevelSimple, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, llm.CompletionOptions{Temperature: 0, MaxOutputTokens: 512, JSONMode: true}, rc.opts[0])
}

func TestAnalyzeChunkDecodeFailure(t *testing.T) {
	rc := &recordingCompleter{response: "I could not analyze this section."}
	a := NewChunkAnalyzer(rc, ChunkAnalyzerOptions{})

	_, err := a.AnalyzeChunk(context.Background(), "text", LanguageEnglish, LevelSimple, 4, 5)
	var chunkErr *ChunkError
	require.True(t, errors.As(err, &chunkErr))
	assert.Equal(t, 4, chunkErr.Index)
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestAnalyzeChunkCapabilityErrorIsDetectable(t *testing.T) {
	rc := &recordingCompleter{err: llm.ErrCapabilityUnavailable}
	a := NewChunkAnalyzer(rc, ChunkAnalyzerOptions{})

	_, err := a.AnalyzeChunk(context.Background(), "text", LanguageEnglish, LevelSimple, 0, 1)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestAnalyzeChunkWithoutCompleter(t *testing.T) {
	a := NewChunkAnalyzer(nil, ChunkAnalyzerOptions{})
	_, err := a.AnalyzeChunk(context.Background(), "text", LanguageEnglish, LevelSimple, 0, 1)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
}

func TestAsID(t *testing.T) {
	assert.Equal(t, "12", asID(float64(12), 1))
	assert.Equal(t, "c-1", asID(" c-1 ", 1))
	assert.Equal(t, "4", asID(nil, 4))
	assert.Equal(t, "4", asID(true, 4))
	assert.Equal(t, "4", asID("   ", 4))
}
