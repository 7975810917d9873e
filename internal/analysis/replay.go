package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultFromResponseEnvelope reconstructs a Result from a saved envelope so
// the report can be re-rendered without calling the model again.
func ResultFromResponseEnvelope(env ResponseEnvelope) (Result, error) {
	if strings.TrimSpace(env.Analysis.ID) == "" {
		return Result{}, fmt.Errorf("envelope analysis id is required")
	}
	doc := env.Analysis
	if doc.DocumentType == "" {
		doc.DocumentType = DefaultDocumentType
	}
	if doc.Clauses == nil {
		doc.Clauses = []Clause{}
	}
	if doc.Risks == nil {
		doc.Risks = []Risk{}
	}
	if doc.ActionPoints == nil {
		doc.ActionPoints = []string{}
	}
	if doc.Citations == nil {
		doc.Citations = []Citation{}
	}
	return Result{Analysis: doc, Metadata: env.Metadata}, nil
}

// RebuildResponseFromEnvelope regenerates report markdown from a saved envelope.
func RebuildResponseFromEnvelope(env ResponseEnvelope) (ResponseEnvelope, error) {
	res, err := ResultFromResponseEnvelope(env)
	if err != nil {
		return ResponseEnvelope{}, err
	}
	return BuildResponse(res), nil
}

// DecodeResponseEnvelope parses a stored envelope and rebuilds its report.
func DecodeResponseEnvelope(data []byte) (ResponseEnvelope, error) {
	var env ResponseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ResponseEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return RebuildResponseFromEnvelope(env)
}
