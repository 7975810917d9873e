package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/joelkehle/legalbrief/internal/llm"
)

const (
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 4096
)

const chunkSchemaPrompt = `Required JSON shape:
{
  "documentType": "string (optional, e.g. Residential Lease, NDA)",
  "plainSummary": "string (optional, 2-4 sentences about this part of the document)",
  "clauses": [
    {
      "id": "string",
      "title": "string",
      "originalText": "string (quoted verbatim from the text)",
      "simplifiedText": "string",
      "riskLevel": "low | medium | high",
      "explanation": "string",
      "rolePerspectives": [
        {
          "role": "tenant | landlord | employee | employer | buyer | seller | borrower | lender | client | service_provider",
          "interpretation": "string",
          "obligations": ["string"],
          "risks": ["string"]
        }
      ]
    }
  ],
  "risks": [
    {
      "id": "string",
      "clause": "string (title of the clause this risk comes from)",
      "description": "string",
      "severity": "low | medium | high",
      "recommendation": "string"
    }
  ],
  "actionPoints": ["string"],
  "citations": [
    {"title": "string", "url": "absolute https URL", "description": "string"}
  ]
}`

var languageWording = map[Language]string{
	LanguageEnglish: "Write every explanatory field in English.",
	LanguageHindi:   "Write every explanatory field in Hindi (Devanagari script). Keep originalText in the language of the document.",
}

var levelWording = map[SimplificationLevel]string{
	LevelProfessional: "Use precise legal terminology suitable for a lawyer or paralegal.",
	LevelSimple:       "Use plain language a non-lawyer adult can follow. Avoid jargon or define it in a few words.",
	LevelELI5:         "Explain as if to a twelve year old, with short sentences and everyday examples.",
}

// ChunkAnalyzerOptions controls the completion request sent per chunk.
type ChunkAnalyzerOptions struct {
	// Temperature is nil for DefaultTemperature. Zero is a valid setting.
	Temperature     *float64
	MaxOutputTokens int
}

// Temperature returns v as an option value.
func Temperature(v float64) *float64 { return &v }

// completionOptions resolves defaults into the request options.
func (o ChunkAnalyzerOptions) completionOptions(jsonMode bool) llm.CompletionOptions {
	out := llm.CompletionOptions{
		Temperature:     DefaultTemperature,
		MaxOutputTokens: o.MaxOutputTokens,
		JSONMode:        jsonMode,
	}
	if o.Temperature != nil && *o.Temperature >= 0 {
		out.Temperature = *o.Temperature
	}
	if out.MaxOutputTokens <= 0 {
		out.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return out
}

type ChunkAnalyzer struct {
	completer llm.Completer
	opts      llm.CompletionOptions
}

func NewChunkAnalyzer(completer llm.Completer, opts ChunkAnalyzerOptions) *ChunkAnalyzer {
	return &ChunkAnalyzer{completer: completer, opts: opts.completionOptions(true)}
}

// AnalyzeChunk sends one chunk to the model and coerces the decoded reply.
// Failures come back as *ChunkError. A wrapped ErrCapabilityUnavailable
// means the model cannot be reached at all and the run should stop.
func (a *ChunkAnalyzer) AnalyzeChunk(ctx context.Context, chunkText string, language Language, level SimplificationLevel, index, total int) (PartialResult, error) {
	if a.completer == nil {
		return PartialResult{}, ErrCapabilityUnavailable
	}
	prompt := buildChunkPrompt(chunkText, language, level, index, total)
	raw, err := a.completer.Complete(ctx, prompt, a.opts)
	if err != nil {
		return PartialResult{}, &ChunkError{Index: index, Err: err}
	}
	obj, err := Decode(raw)
	if err != nil {
		return PartialResult{}, &ChunkError{Index: index, Err: err}
	}
	return partialFromObject(obj, index), nil
}

func buildChunkPrompt(chunkText string, language Language, level SimplificationLevel, index, total int) string {
	var b strings.Builder
	b.WriteString("You are analyzing part of a legal document for a reader who is not a lawyer.\n")
	fmt.Fprintf(&b, "This is section %d of %d. Other sections are analyzed separately.\n\n", index+1, total)
	b.WriteString("Return ONLY a JSON object. No markdown fences, no commentary.\n")
	b.WriteString("Only report what this section supports. Do not invent clauses, parties, amounts or dates, ")
	b.WriteString("and leave a field out rather than guess. Quote originalText verbatim from the section.\n")
	b.WriteString("Only cite URLs you are confident exist, such as official statute or regulator pages.\n")
	b.WriteString(languageWording[language])
	b.WriteString("\n")
	b.WriteString(levelWording[level])
	b.WriteString("\n\n")
	b.WriteString(chunkSchemaPrompt)
	b.WriteString("\n\nDocument section:\n<<<\n")
	b.WriteString(chunkText)
	b.WriteString("\n>>>\n")
	return b.String()
}

func partialFromObject(obj map[string]any, index int) PartialResult {
	p := PartialResult{
		Index:        index,
		DocumentType: strings.TrimSpace(asString(obj["documentType"])),
		PlainSummary: strings.TrimSpace(asString(obj["plainSummary"])),
		ActionPoints: []string{},
		Clauses:      []Clause{},
		Risks:        []Risk{},
		Citations:    []Citation{},
	}

	ordinal := 0
	for _, m := range asObjects(obj["clauses"]) {
		c := Clause{
			Title:          strings.TrimSpace(asString(m["title"])),
			OriginalText:   strings.TrimSpace(asString(m["originalText"])),
			SimplifiedText: strings.TrimSpace(asString(m["simplifiedText"])),
			RiskLevel:      asRiskLevel(m["riskLevel"]),
			Explanation:    strings.TrimSpace(asString(m["explanation"])),
		}
		if c.Title == "" && c.OriginalText == "" {
			continue
		}
		ordinal++
		c.ID = asID(m["id"], ordinal)
		for _, rp := range asObjects(m["rolePerspectives"]) {
			if perspective, ok := asRolePerspective(rp); ok {
				c.RolePerspectives = append(c.RolePerspectives, perspective)
			}
		}
		p.Clauses = append(p.Clauses, c)
	}

	ordinal = 0
	for _, m := range asObjects(obj["risks"]) {
		r := Risk{
			Clause:         strings.TrimSpace(asString(m["clause"])),
			Description:    strings.TrimSpace(asString(m["description"])),
			Severity:       asRiskLevel(m["severity"]),
			Recommendation: strings.TrimSpace(asString(m["recommendation"])),
		}
		if r.Clause == "" && r.Description == "" {
			continue
		}
		ordinal++
		r.ID = asID(m["id"], ordinal)
		p.Risks = append(p.Risks, r)
	}

	p.ActionPoints = append(p.ActionPoints, stringSlice(obj["actionPoints"])...)

	for _, m := range asObjects(obj["citations"]) {
		c := Citation{
			Title:       strings.TrimSpace(asString(m["title"])),
			URL:         strings.TrimSpace(asString(m["url"])),
			Description: strings.TrimSpace(asString(m["description"])),
		}
		p.Citations = append(p.Citations, c)
	}
	return p
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asObjects(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// stringSlice keeps the non-empty string elements of a JSON array.
func stringSlice(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asRiskLevel(v any) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(asString(v)))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

func asID(v any, ordinal int) string {
	switch id := v.(type) {
	case string:
		if s := strings.TrimSpace(id); s != "" {
			return s
		}
	case float64:
		if id == math.Trunc(id) && !math.IsInf(id, 0) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return strconv.Itoa(ordinal)
}

func asRolePerspective(m map[string]any) (RolePerspective, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(asString(m["role"]))))
	if !validRoles[role] {
		return RolePerspective{}, false
	}
	rp := RolePerspective{
		Role:           role,
		Interpretation: strings.TrimSpace(asString(m["interpretation"])),
		Obligations:    stringSlice(m["obligations"]),
		Risks:          stringSlice(m["risks"]),
	}
	if rp.Interpretation == "" && len(rp.Obligations) == 0 && len(rp.Risks) == 0 {
		return RolePerspective{}, false
	}
	return rp, true
}

// CacheableReply keeps JSON-mode replies out of a response cache unless
// they decode, so a one-off malformed reply is retried on the next run.
func CacheableReply(opts llm.CompletionOptions, reply string) bool {
	if !opts.JSONMode {
		return true
	}
	_, err := Decode(reply)
	return err == nil
}
