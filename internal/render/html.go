// Package render turns analysis reports into standalone HTML pages.
package render

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joelkehle/legalbrief/internal/analysis"
)

// Raw HTML in the markdown is not passed through; model text reaches the
// report verbatim and must not inject markup.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var severityHeadingRe = regexp.MustCompile(`(?i)<h3([^>]*)>\s*(High|Medium|Low) severity\s*</h3>`)

const styleCSS = `body{font-family:Georgia,"Noto Serif Devanagari",serif;background:#f9f7f3;color:#1c1917;margin:0;padding:1rem;}
.report-wrap{max-width:960px;margin:0 auto;background:#fff;border:1px solid #e7e5e4;padding:1.5rem 2rem;}
.report-meta{color:#44403c;font-size:0.9rem;margin-bottom:0.5rem;}
.report-meta strong{color:#1c1917;}
.report-badge{display:inline-block;margin-right:0.4rem;padding:0.1rem 0.5rem;border-radius:0.75rem;font-size:0.8rem;background:#fef3c7;color:#78350f;border:1px solid #fcd34d;}
.report-badge[data-risk='high']{background:#fee2e2;color:#7f1d1d;border-color:#fca5a5;}
.report-badge[data-risk='low']{background:#dcfce7;color:#14532d;border-color:#86efac;}
.report-html table{width:100%;border-collapse:collapse;font-size:0.85rem;}
.report-html th,.report-html td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:left;vertical-align:top;}
.report-html thead th{background:#f1f5f9;}
.report-html blockquote{border-left:3px solid #a8a29e;margin:0.5rem 0;padding:0.1rem 0.8rem;color:#44403c;}
.report-html h3[data-severity='high']{color:#991b1b;}
.report-html a{color:#1d4ed8;}
@media print{body{background:#fff;padding:0;} .report-wrap{border:0;}}`

// HTML renders env's report markdown as a complete HTML document with a
// metadata header and risk badges.
func HTML(env analysis.ResponseEnvelope) (string, error) {
	md := env.ReportMarkdown
	if strings.TrimSpace(md) == "" {
		md = analysis.BuildReportMarkdown(analysis.Result{Analysis: env.Analysis, Metadata: env.Metadata})
	}
	var content bytes.Buffer
	if err := markdown.Convert([]byte(md), &content); err != nil {
		return "", eris.Wrap(err, "render: markdown convert")
	}
	contentHTML := applyLayoutHooks(content.String())

	title := env.Analysis.DocumentType
	if strings.TrimSpace(title) == "" {
		title = analysis.DefaultDocumentType
	}
	var b strings.Builder
	b.WriteString("<!doctype html><html lang='" + html.EscapeString(langAttr(env.Metadata.Language)) + "'><head><meta charset='utf-8'>")
	b.WriteString("<meta name='viewport' content='width=device-width,initial-scale=1'>")
	b.WriteString("<title>" + html.EscapeString(title) + " analysis</title>")
	b.WriteString("<style>" + styleCSS + "</style></head><body><div class='report-wrap'>")
	b.WriteString("<div class='report-meta'>" + buildMetaHTML(env) + "</div>")
	b.WriteString("<div class='report-badges'>" + buildBadgeHTML(env.Analysis) + "</div>")
	b.WriteString("<div class='report-html'>" + contentHTML + "</div>")
	b.WriteString("</div></body></html>")
	return b.String(), nil
}

func applyLayoutHooks(contentHTML string) string {
	return severityHeadingRe.ReplaceAllStringFunc(contentHTML, func(m string) string {
		sub := severityHeadingRe.FindStringSubmatch(m)
		return fmt.Sprintf(`<h3%s data-severity="%s">%s severity</h3>`, sub[1], strings.ToLower(sub[2]), sub[2])
	})
}

func buildMetaHTML(env analysis.ResponseEnvelope) string {
	var out strings.Builder
	if id := strings.TrimSpace(env.Analysis.ID); id != "" {
		out.WriteString("<div><strong>Reference:</strong> " + html.EscapeString(id) + "</div>")
	}
	if dt := strings.TrimSpace(env.Analysis.DocumentType); dt != "" {
		out.WriteString("<div><strong>Document:</strong> " + html.EscapeString(dt) + "</div>")
	}
	if completed := env.Metadata.CompletedAt; !completed.IsZero() {
		out.WriteString("<div><strong>Date:</strong> " + html.EscapeString(completed.In(time.Local).Format("January 2, 2006 at 3:04 PM MST")) + "</div>")
	}
	return out.String()
}

func buildBadgeHTML(doc analysis.DocumentAnalysis) string {
	counts := map[analysis.RiskLevel]int{}
	for _, r := range doc.Risks {
		counts[r.Severity]++
	}
	var out strings.Builder
	for _, sev := range []analysis.RiskLevel{analysis.RiskHigh, analysis.RiskMedium, analysis.RiskLow} {
		if counts[sev] == 0 {
			continue
		}
		fmt.Fprintf(&out, "<span class='report-badge' data-risk='%s'>%d %s risk</span>", sev, counts[sev], sev)
	}
	fmt.Fprintf(&out, "<span class='report-badge'>%d clauses</span>", len(doc.Clauses))
	return out.String()
}

func langAttr(l analysis.Language) string {
	if l == "" {
		return string(analysis.LanguageEnglish)
	}
	return string(l)
}
