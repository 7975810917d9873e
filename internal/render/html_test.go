package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/legalbrief/internal/analysis"
)

func sampleEnvelope() analysis.ResponseEnvelope {
	return analysis.BuildResponse(analysis.Result{
		Analysis: analysis.DocumentAnalysis{
			ID:           "a-1",
			DocumentType: "NDA <draft>",
			PlainSummary: "Keep secrets. <script>alert(1)</script>",
			Clauses:      []analysis.Clause{{ID: "1", Title: "Confidentiality", OriginalText: "Do not disclose.", RiskLevel: analysis.RiskHigh}},
			Risks: []analysis.Risk{
				{ID: "1", Description: "Penalty", Severity: analysis.RiskHigh},
				{ID: "2", Description: "Vague term", Severity: analysis.RiskHigh},
				{ID: "3", Description: "Notice period", Severity: analysis.RiskLow},
			},
		},
		Metadata: analysis.RunMetadata{Language: analysis.LanguageHindi},
	})
}

func TestHTMLRendersReport(t *testing.T) {
	out, err := HTML(sampleEnvelope())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!doctype html>"))
	assert.Contains(t, out, "<html lang='hi'>")
	assert.Contains(t, out, "<title>NDA &lt;draft&gt; analysis</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `<h3 data-severity="high">High severity</h3>`)
	assert.Contains(t, out, `<h3 data-severity="low">Low severity</h3>`)
	assert.Contains(t, out, "data-risk='high'>2 high risk</span>")
	assert.Contains(t, out, "data-risk='low'>1 low risk</span>")
	assert.Contains(t, out, "1 clauses")
	assert.Contains(t, out, "<strong>Reference:</strong> a-1")
}

func TestHTMLDoesNotPassRawHTML(t *testing.T) {
	out, err := HTML(sampleEnvelope())
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert(1)</script>")
}

func TestHTMLBuildsMarkdownWhenMissing(t *testing.T) {
	env := sampleEnvelope()
	env.ReportMarkdown = ""
	out, err := HTML(env)
	require.NoError(t, err)
	assert.Contains(t, out, "Confidentiality")
}

func TestApplyLayoutHooksNoopWithoutSeverityHeadings(t *testing.T) {
	in := "<h2>Summary</h2><p>x</p>"
	assert.Equal(t, in, applyLayoutHooks(in))
}
