package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joelkehle/legalbrief/internal/llm"
)

var errEmptySummary = errors.New("summary completion returned no text")

type SummaryFinisher struct {
	completer    llm.Completer
	contextLimit int
	opts         llm.CompletionOptions
}

func NewSummaryFinisher(completer llm.Completer, contextLimit int, opts ChunkAnalyzerOptions) *SummaryFinisher {
	if contextLimit <= 0 {
		contextLimit = DefaultSummaryContextLimit
	}
	return &SummaryFinisher{completer: completer, contextLimit: contextLimit, opts: opts.completionOptions(false)}
}

// compact clause and risk shapes keep the summary prompt small.
type summaryClause struct {
	Title      string    `json:"title"`
	Simplified string    `json:"simplified,omitempty"`
	RiskLevel  RiskLevel `json:"riskLevel"`
}

type summaryRisk struct {
	Clause      string    `json:"clause,omitempty"`
	Description string    `json:"description"`
	Severity    RiskLevel `json:"severity"`
}

// FinishSummary asks for a short narrative over the merged clauses and risks.
// Only the first contextLimit entries of each list are sent.
func (f *SummaryFinisher) FinishSummary(ctx context.Context, clauses []Clause, risks []Risk, language Language, level SimplificationLevel) (string, error) {
	if f.completer == nil {
		return "", ErrCapabilityUnavailable
	}
	prompt, err := f.buildPrompt(clauses, risks, language, level)
	if err != nil {
		return "", err
	}
	out, err := f.completer.Complete(ctx, prompt, f.opts)
	if err != nil {
		return "", err
	}
	out = cleanSummary(out)
	if out == "" {
		return "", errEmptySummary
	}
	return out, nil
}

func (f *SummaryFinisher) buildPrompt(clauses []Clause, risks []Risk, language Language, level SimplificationLevel) (string, error) {
	cs := make([]summaryClause, 0, min(len(clauses), f.contextLimit))
	for _, c := range clauses[:min(len(clauses), f.contextLimit)] {
		cs = append(cs, summaryClause{Title: c.Title, Simplified: c.SimplifiedText, RiskLevel: c.RiskLevel})
	}
	rs := make([]summaryRisk, 0, min(len(risks), f.contextLimit))
	for _, r := range risks[:min(len(risks), f.contextLimit)] {
		rs = append(rs, summaryRisk{Clause: r.Clause, Description: r.Description, Severity: r.Severity})
	}
	payload, err := json.Marshal(map[string]any{"clauses": cs, "risks": rs})
	if err != nil {
		return "", fmt.Errorf("marshal summary context: %w", err)
	}

	var b strings.Builder
	b.WriteString("Write a plain-text summary of a legal document in 4 to 6 sentences.\n")
	b.WriteString("Base it only on the extracted clauses and risks below. Mention the most serious risks.\n")
	b.WriteString("Do not use markdown, headings or bullet points.\n")
	b.WriteString(languageWording[language])
	b.WriteString("\n")
	b.WriteString(levelWording[level])
	b.WriteString("\n\nExtracted data:\n")
	b.Write(payload)
	b.WriteString("\n")
	return b.String(), nil
}

// cleanSummary strips a fence or surrounding quotes some models add anyway.
func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
