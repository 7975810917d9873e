package analysis

import (
	"fmt"
	"strings"
	"time"
)

func BuildResponse(result Result) ResponseEnvelope {
	return ResponseEnvelope{
		Analysis:       result.Analysis,
		Metadata:       result.Metadata,
		ReportMarkdown: BuildReportMarkdown(result),
		Disclaimer:     Disclaimer,
	}
}

// BuildReportMarkdown renders a human-readable report of one run.
func BuildReportMarkdown(result Result) string {
	doc := result.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: Plain-Language Analysis\n\n", orDefault(doc.DocumentType, DefaultDocumentType))
	fmt.Fprintf(&b, "- Analysis ID: %s\n", orDefault(doc.ID, "n/a"))
	if !result.Metadata.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- Date: %s\n", result.Metadata.CompletedAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Language: %s, level: %s\n\n", orDefault(string(result.Metadata.Language), "n/a"), orDefault(string(result.Metadata.Level), "n/a"))
	fmt.Fprintf(&b, "%s\n\n", Disclaimer)

	fmt.Fprintf(&b, "## Summary\n\n")
	if doc.PlainSummary == "" {
		fmt.Fprintf(&b, "_No summary could be produced for this document._\n\n")
	} else {
		fmt.Fprintf(&b, "%s\n\n", doc.PlainSummary)
	}

	fmt.Fprintf(&b, "## Clauses\n\n")
	if len(doc.Clauses) == 0 {
		fmt.Fprintf(&b, "No clauses were extracted.\n\n")
	} else {
		fmt.Fprintf(&b, "| # | Clause | Risk | In plain words |\n|---|---|---|---|\n")
		for i, c := range doc.Clauses {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, tableCell(orDefault(c.Title, "(untitled)")), c.RiskLevel, tableCell(c.SimplifiedText))
		}
		b.WriteString("\n")
		for _, c := range doc.Clauses {
			appendClauseDetail(&b, c)
		}
	}

	fmt.Fprintf(&b, "## Risks\n\n")
	if len(doc.Risks) == 0 {
		fmt.Fprintf(&b, "No risks were flagged.\n\n")
	} else {
		for _, sev := range []RiskLevel{RiskHigh, RiskMedium, RiskLow} {
			risks := risksWithSeverity(doc.Risks, sev)
			if len(risks) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s severity\n\n", titleCase(string(sev)))
			for _, r := range risks {
				line := orDefault(r.Description, "(no description)")
				if r.Clause != "" {
					line = fmt.Sprintf("**%s**: %s", r.Clause, line)
				}
				fmt.Fprintf(&b, "- %s\n", line)
				if r.Recommendation != "" {
					fmt.Fprintf(&b, "  - Recommendation: %s\n", r.Recommendation)
				}
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "## Action Points\n\n")
	if len(doc.ActionPoints) == 0 {
		fmt.Fprintf(&b, "No action points.\n")
	}
	for _, a := range doc.ActionPoints {
		fmt.Fprintf(&b, "- [ ] %s\n", a)
	}
	b.WriteString("\n")

	if len(doc.Citations) > 0 {
		fmt.Fprintf(&b, "## References\n\n")
		for _, c := range doc.Citations {
			title := orDefault(c.Title, c.URL)
			if c.Description != "" {
				fmt.Fprintf(&b, "- [%s](%s): %s\n", title, c.URL, c.Description)
			} else {
				fmt.Fprintf(&b, "- [%s](%s)\n", title, c.URL)
			}
		}
		b.WriteString("\n")
	}

	appendMetadata(&b, result.Metadata)
	return b.String()
}

func appendClauseDetail(b *strings.Builder, c Clause) {
	fmt.Fprintf(b, "### %s\n\n", orDefault(c.Title, "(untitled)"))
	fmt.Fprintf(b, "- Risk level: `%s`\n", c.RiskLevel)
	if c.OriginalText != "" {
		fmt.Fprintf(b, "\n> %s\n\n", strings.ReplaceAll(c.OriginalText, "\n", "\n> "))
	}
	if c.SimplifiedText != "" {
		fmt.Fprintf(b, "%s\n\n", c.SimplifiedText)
	}
	if c.Explanation != "" {
		fmt.Fprintf(b, "_Why it matters:_ %s\n\n", c.Explanation)
	}
	for _, rp := range c.RolePerspectives {
		fmt.Fprintf(b, "- As %s: %s\n", roleLabel(rp.Role), orDefault(rp.Interpretation, "see below"))
		for _, o := range rp.Obligations {
			fmt.Fprintf(b, "  - Must: %s\n", o)
		}
		for _, r := range rp.Risks {
			fmt.Fprintf(b, "  - Watch out: %s\n", r)
		}
	}
	if len(c.RolePerspectives) > 0 {
		b.WriteString("\n")
	}
}

func appendMetadata(b *strings.Builder, meta RunMetadata) {
	fmt.Fprintf(b, "## Appendix: Run Metadata\n\n")
	fmt.Fprintf(b, "- Sections analyzed: %d of %d\n", meta.ChunksAnalyzed, meta.ChunksTotal)
	if meta.ChunksDropped > 0 {
		parts := make([]string, 0, len(meta.DroppedChunks))
		for _, d := range meta.DroppedChunks {
			parts = append(parts, fmt.Sprintf("%d (%s)", d.Index+1, d.Reason))
		}
		fmt.Fprintf(b, "- Sections dropped: %s\n", strings.Join(parts, ", "))
	}
	if meta.InputTruncated {
		fmt.Fprintf(b, "- Input was truncated to %d characters\n", MaxContentChars)
	}
	fmt.Fprintf(b, "- Model: %s\n", orDefault(meta.Model, "unknown"))
	fmt.Fprintf(b, "- LLM calls: %d\n", meta.LLMCalls)
	if meta.CacheHits > 0 {
		fmt.Fprintf(b, "- Cached replies: %d\n", meta.CacheHits)
	}
	fmt.Fprintf(b, "- Summary finisher used: %t\n", meta.SummaryFinisher)
	if meta.DurationMS > 0 {
		fmt.Fprintf(b, "- Duration: %s\n", (time.Duration(meta.DurationMS) * time.Millisecond).String())
	}
}

func risksWithSeverity(risks []Risk, sev RiskLevel) []Risk {
	var out []Risk
	for _, r := range risks {
		if r.Severity == sev {
			out = append(out, r)
		}
	}
	return out
}

func roleLabel(r Role) string {
	return strings.ReplaceAll(string(r), "_", " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
