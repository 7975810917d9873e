package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// mergeState carries the dedup sets and output lists for one merge. A Caser
// is stateful, so each merge owns its folder.
type mergeState struct {
	fold       cases.Caser
	out        DocumentAnalysis
	clauseKeys map[string]bool
	riskKeys   map[string]bool
	actionKeys map[string]bool
	citeKeys   map[string]bool
}

func newMergeState() *mergeState {
	return &mergeState{
		fold: cases.Fold(),
		out: DocumentAnalysis{
			Clauses:      []Clause{},
			Risks:        []Risk{},
			ActionPoints: []string{},
			Citations:    []Citation{},
		},
		clauseKeys: map[string]bool{},
		riskKeys:   map[string]bool{},
		actionKeys: map[string]bool{},
		citeKeys:   map[string]bool{},
	}
}

// Merge folds partial results, in chunk order, into one deduplicated
// analysis. The returned value has no ID and may have an empty PlainSummary.
func Merge(partials []PartialResult) DocumentAnalysis {
	ordered := make([]PartialResult, len(partials))
	copy(ordered, partials)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	st := newMergeState()
	for _, p := range ordered {
		st.add(p)
	}
	if st.out.DocumentType == "" {
		st.out.DocumentType = DefaultDocumentType
	}
	return st.out
}

func (st *mergeState) add(p PartialResult) {
	if st.out.DocumentType == "" {
		st.out.DocumentType = strings.TrimSpace(p.DocumentType)
	}
	if st.out.PlainSummary == "" {
		st.out.PlainSummary = strings.TrimSpace(p.PlainSummary)
	}
	for _, c := range p.Clauses {
		if st.seen(st.clauseKeys, st.clauseKey(c)) {
			continue
		}
		st.out.Clauses = append(st.out.Clauses, c)
	}
	for _, r := range p.Risks {
		if st.seen(st.riskKeys, st.riskKey(r)) {
			continue
		}
		st.out.Risks = append(st.out.Risks, r)
	}
	for _, a := range p.ActionPoints {
		a = strings.TrimSpace(a)
		if a == "" || st.seen(st.actionKeys, st.key(a)) {
			continue
		}
		st.out.ActionPoints = append(st.out.ActionPoints, a)
	}
	for _, c := range p.Citations {
		if !isAbsoluteURL(c.URL) || st.seen(st.citeKeys, st.key(c.URL)) {
			continue
		}
		st.out.Citations = append(st.out.Citations, c)
	}
}

// seen reports whether key was already present, recording it otherwise.
func (st *mergeState) seen(set map[string]bool, key string) bool {
	if set[key] {
		return true
	}
	set[key] = true
	return false
}

func (st *mergeState) key(s string) string {
	return st.fold.String(strings.TrimSpace(s))
}

// clauseKey is title::originalText. Without originalText the title alone would
// collapse unrelated clauses, so the whole record is hashed into the key.
func (st *mergeState) clauseKey(c Clause) string {
	key := st.key(c.Title) + "::" + st.key(c.OriginalText)
	if strings.TrimSpace(c.OriginalText) == "" {
		key += "::" + recordDigest(Clause{
			Title:            st.key(c.Title),
			SimplifiedText:   st.key(c.SimplifiedText),
			RiskLevel:        c.RiskLevel,
			Explanation:      st.key(c.Explanation),
			RolePerspectives: c.RolePerspectives,
		})
	}
	return key
}

func (st *mergeState) riskKey(r Risk) string {
	key := st.key(r.Clause) + "::" + st.key(r.Description)
	if strings.TrimSpace(r.Description) == "" {
		key += "::" + recordDigest(Risk{
			Clause:         st.key(r.Clause),
			Severity:       r.Severity,
			Recommendation: st.key(r.Recommendation),
		})
	}
	return key
}

// recordDigest hashes a record with its ID cleared, since IDs are per chunk.
func recordDigest(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func isAbsoluteURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
