package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeDedupesClausesIgnoringIDAndCase(t *testing.T) {
	a := PartialResult{Index: 0, Clauses: []Clause{{ID: "1", Title: "Confidentiality", OriginalText: "Keep it secret."}}}
	b := PartialResult{Index: 1, Clauses: []Clause{{ID: "9", Title: "CONFIDENTIALITY ", OriginalText: "keep it secret."}}}

	doc := Merge([]PartialResult{a, b})
	require.Len(t, doc.Clauses, 1)
	assert.Equal(t, "1", doc.Clauses[0].ID)
}

func TestMergeFirstWinsByChunkIndex(t *testing.T) {
	lease := PartialResult{Index: 0, DocumentType: "Lease", PlainSummary: "First summary."}
	nda := PartialResult{Index: 1, DocumentType: "NDA", PlainSummary: "Second summary."}

	doc := Merge([]PartialResult{lease, nda})
	assert.Equal(t, "Lease", doc.DocumentType)
	assert.Equal(t, "First summary.", doc.PlainSummary)

	doc = Merge([]PartialResult{nda, lease})
	assert.Equal(t, "Lease", doc.DocumentType, "partials are re-sorted by index")
}

func TestMergeSkipsEmptyScalars(t *testing.T) {
	doc := Merge([]PartialResult{{Index: 0}, {Index: 1, DocumentType: "Employment Agreement"}})
	assert.Equal(t, "Employment Agreement", doc.DocumentType)
	assert.Empty(t, doc.PlainSummary)
}

func TestMergeDefaultsDocumentType(t *testing.T) {
	doc := Merge([]PartialResult{{Index: 0}})
	assert.Equal(t, DefaultDocumentType, doc.DocumentType)
	assert.NotNil(t, doc.Clauses)
	assert.NotNil(t, doc.Citations)
}

func TestMergeFiltersCitations(t *testing.T) {
	p := PartialResult{Citations: []Citation{
		{Title: "bad", URL: "not-a-url"},
		{Title: "good", URL: "https://example.com/x"},
		{Title: "relative", URL: "/statutes/1"},
		{Title: "dup", URL: "HTTPS://EXAMPLE.COM/X"},
		{Title: "mailto", URL: "mailto:someone@example.com"},
	}}
	doc := Merge([]PartialResult{p})
	require.Len(t, doc.Citations, 1)
	assert.Equal(t, "https://example.com/x", doc.Citations[0].URL)
}

func TestMergeActionPointsAndRisks(t *testing.T) {
	a := PartialResult{
		Index:        0,
		ActionPoints: []string{"Pay rent on the 1st", "Keep receipts"},
		Risks:        []Risk{{ID: "1", Clause: "Rent", Description: "Late fee"}},
	}
	b := PartialResult{
		Index:        1,
		ActionPoints: []string{"keep receipts", "Photograph the flat"},
		Risks:        []Risk{{ID: "1", Clause: "rent", Description: "LATE FEE"}, {ID: "2", Clause: "Deposit", Description: "Withheld"}},
	}
	doc := Merge([]PartialResult{b, a})
	assert.Equal(t, []string{"Pay rent on the 1st", "Keep receipts", "Photograph the flat"}, doc.ActionPoints)
	require.Len(t, doc.Risks, 2)
	assert.Equal(t, "Late fee", doc.Risks[0].Description)
	assert.Equal(t, "Withheld", doc.Risks[1].Description)
}

func TestMergeEmptyDescriptionRisksKeepDistinctRecords(t *testing.T) {
	p := PartialResult{Risks: []Risk{
		{ID: "1", Clause: "Deposit", Recommendation: "Ask for an itemized list"},
		{ID: "2", Clause: "Deposit", Recommendation: "Take photos at move-in"},
		{ID: "3", Clause: "deposit", Recommendation: "ask for an itemized list"},
	}}
	doc := Merge([]PartialResult{p})
	require.Len(t, doc.Risks, 2)
	assert.Equal(t, "1", doc.Risks[0].ID)
	assert.Equal(t, "2", doc.Risks[1].ID)
}

func TestMergeTitleOnlyClausesKeepDistinctRecords(t *testing.T) {
	p := PartialResult{Clauses: []Clause{
		{ID: "1", Title: "Termination", SimplifiedText: "Either side can end it with notice."},
		{ID: "2", Title: "Termination", SimplifiedText: "The landlord can end it for unpaid rent."},
	}}
	q := PartialResult{Index: 1, Clauses: []Clause{
		{ID: "1", Title: "termination", SimplifiedText: "Either side can end it with notice."},
	}}
	doc := Merge([]PartialResult{p, q})
	assert.Len(t, doc.Clauses, 2)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	partials := []PartialResult{{Index: 2, DocumentType: "B"}, {Index: 0, DocumentType: "A"}}
	Merge(partials)
	assert.Equal(t, 2, partials[0].Index)
}
