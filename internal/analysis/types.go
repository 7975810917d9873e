package analysis

import (
	"time"
)

const Disclaimer = "This analysis is an automated plain-language reading of the document. " +
	"It is not legal advice. Consult a qualified lawyer before acting on it."

const (
	DefaultChunkSize           = 4000
	DefaultChunkOverlap        = 400
	DefaultSummaryContextLimit = 30
	DefaultDocumentType        = "Legal Document"
	MaxContentChars            = 500000
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

type SimplificationLevel string

const (
	LevelProfessional SimplificationLevel = "professional"
	LevelSimple       SimplificationLevel = "simple"
	LevelELI5         SimplificationLevel = "eli5"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type Role string

const (
	RoleTenant          Role = "tenant"
	RoleLandlord        Role = "landlord"
	RoleEmployee        Role = "employee"
	RoleEmployer        Role = "employer"
	RoleBuyer           Role = "buyer"
	RoleSeller          Role = "seller"
	RoleBorrower        Role = "borrower"
	RoleLender          Role = "lender"
	RoleClient          Role = "client"
	RoleServiceProvider Role = "service_provider"
)

var validRoles = map[Role]bool{
	RoleTenant: true, RoleLandlord: true, RoleEmployee: true, RoleEmployer: true,
	RoleBuyer: true, RoleSeller: true, RoleBorrower: true, RoleLender: true,
	RoleClient: true, RoleServiceProvider: true,
}

type RolePerspective struct {
	Role           Role     `json:"role"`
	Interpretation string   `json:"interpretation"`
	Obligations    []string `json:"obligations"`
	Risks          []string `json:"risks"`
}

// Clause IDs are assigned per chunk by the model and are display-only; two
// chunks may both produce clause "1".
type Clause struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	OriginalText     string            `json:"originalText"`
	SimplifiedText   string            `json:"simplifiedText"`
	RiskLevel        RiskLevel         `json:"riskLevel"`
	Explanation      string            `json:"explanation"`
	RolePerspectives []RolePerspective `json:"rolePerspectives,omitempty"`
}

type Risk struct {
	ID             string    `json:"id"`
	Clause         string    `json:"clause"`
	Description    string    `json:"description"`
	Severity       RiskLevel `json:"severity"`
	Recommendation string    `json:"recommendation"`
}

type Citation struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type DocumentAnalysis struct {
	ID           string     `json:"id"`
	DocumentType string     `json:"documentType"`
	PlainSummary string     `json:"plainSummary"`
	Clauses      []Clause   `json:"clauses"`
	Risks        []Risk     `json:"risks"`
	ActionPoints []string   `json:"actionPoints"`
	Citations    []Citation `json:"citations"`
}

// PartialResult is the coerced output of one chunk, prior to merging.
type PartialResult struct {
	Index        int
	DocumentType string
	PlainSummary string
	Clauses      []Clause
	Risks        []Risk
	ActionPoints []string
	Citations    []Citation
}

type Request struct {
	Content             string              `json:"content"`
	Language            Language            `json:"language,omitempty"`
	SimplificationLevel SimplificationLevel `json:"simplification_level,omitempty"`
}

type DroppedChunk struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type RunMetadata struct {
	InputTruncated  bool                `json:"input_truncated,omitempty"`
	ChunksTotal     int                 `json:"chunks_total"`
	ChunksAnalyzed  int                 `json:"chunks_analyzed"`
	ChunksDropped   int                 `json:"chunks_dropped"`
	DroppedChunks   []DroppedChunk      `json:"dropped_chunks,omitempty"`
	LLMCalls        int                 `json:"llm_calls"`
	CacheHits       int                 `json:"cache_hits,omitempty"`
	SummaryFinisher bool                `json:"summary_finisher"`
	Language        Language            `json:"language"`
	Level           SimplificationLevel `json:"simplification_level"`
	Model           string              `json:"model"`
	StartedAt       time.Time           `json:"started_at"`
	CompletedAt     time.Time           `json:"completed_at"`
	DurationMS      int64               `json:"duration_ms"`
}

type Result struct {
	Analysis DocumentAnalysis
	Metadata RunMetadata
}

type ResponseEnvelope struct {
	Analysis       DocumentAnalysis `json:"analysis"`
	Metadata       RunMetadata      `json:"metadata"`
	ReportMarkdown string           `json:"report_markdown"`
	Disclaimer     string           `json:"disclaimer"`
}
