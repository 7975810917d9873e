package analysis

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() Result {
	return Result{
		Analysis: DocumentAnalysis{
			ID:           "3f1c2f4e-0000-4000-8000-000000000001",
			DocumentType: "Residential Lease",
			PlainSummary: "You rent the flat for a year and pay monthly.",
			Clauses: []Clause{{
				ID: "1", Title: "Rent | Payment", OriginalText: "Rent is due on the 1st.\nLate rent incurs a fee.",
				SimplifiedText: "Pay by the 1st.", RiskLevel: RiskHigh, Explanation: "Fees add up.",
				RolePerspectives: []RolePerspective{{Role: RoleServiceProvider, Interpretation: "n/a", Obligations: []string{"Invoice"}}},
			}},
			Risks: []Risk{
				{ID: "1", Clause: "Rent", Description: "Late fee is 10%", Severity: RiskHigh, Recommendation: "Set a reminder"},
				{ID: "2", Description: "Deposit terms unclear", Severity: RiskLow},
			},
			ActionPoints: []string{"Set up automatic payment"},
			Citations:    []Citation{{Title: "Rent Act", URL: "https://example.gov/rent-act", Description: "Statute"}},
		},
		Metadata: RunMetadata{
			ChunksTotal: 3, ChunksAnalyzed: 2, ChunksDropped: 1,
			DroppedChunks: []DroppedChunk{{Index: 1, Reason: "decode_failed"}},
			LLMCalls:      3, Language: LanguageEnglish, Level: LevelSimple, Model: "claude-test",
			CompletedAt: time.Date(2026, 3, 1, 3, 52, 4, 0, time.UTC),
			DurationMS:  1500,
		},
	}
}

func TestBuildReportMarkdown(t *testing.T) {
	md := BuildReportMarkdown(sampleResult())

	assert.True(t, strings.HasPrefix(md, "# Residential Lease: Plain-Language Analysis\n"))
	assert.Contains(t, md, "- Date: 2026-03-01T03:52:04Z")
	assert.Contains(t, md, Disclaimer)
	assert.Contains(t, md, "You rent the flat for a year and pay monthly.")
	assert.Contains(t, md, "| 1 | Rent \\| Payment | high | Pay by the 1st. |")
	assert.Contains(t, md, "> Rent is due on the 1st.\n> Late rent incurs a fee.")
	assert.Contains(t, md, "- As service provider: n/a")
	assert.Contains(t, md, "### High severity")
	assert.Contains(t, md, "### Low severity")
	assert.NotContains(t, md, "### Medium severity")
	assert.Contains(t, md, "- **Rent**: Late fee is 10%\n  - Recommendation: Set a reminder")
	assert.Contains(t, md, "- [ ] Set up automatic payment")
	assert.Contains(t, md, "- [Rent Act](https://example.gov/rent-act): Statute")
	assert.Contains(t, md, "- Sections analyzed: 2 of 3")
	assert.Contains(t, md, "- Sections dropped: 2 (decode_failed)")
	assert.Contains(t, md, "- Duration: 1.5s")
	assert.Less(t, strings.Index(md, "### High severity"), strings.Index(md, "### Low severity"))
}

func TestBuildReportMarkdownEmptyAnalysis(t *testing.T) {
	md := BuildReportMarkdown(Result{})
	assert.Contains(t, md, "# Legal Document: Plain-Language Analysis")
	assert.Contains(t, md, "_No summary could be produced for this document._")
	assert.Contains(t, md, "No clauses were extracted.")
	assert.Contains(t, md, "No risks were flagged.")
	assert.NotContains(t, md, "## References")
}

func TestBuildResponse(t *testing.T) {
	res := sampleResult()
	env := BuildResponse(res)
	assert.Equal(t, res.Analysis, env.Analysis)
	assert.Equal(t, res.Metadata, env.Metadata)
	assert.Equal(t, Disclaimer, env.Disclaimer)
	assert.Equal(t, BuildReportMarkdown(res), env.ReportMarkdown)

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"plainSummary":"You rent the flat`)
	assert.Contains(t, string(b), `"report_markdown":`)
}
