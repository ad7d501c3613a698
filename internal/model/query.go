package model

// CitationMap maps a 1-based citation id to its canonical citation
// string. Invariant: for a response with non-empty Sources, the key
// set equals {1..len(Sources)} with no gaps.
type CitationMap map[int]string

// SourceMetadata is the response-side metadata attached to a
// StructuredSource: a freshness score computed by the core plus a
// fixed whitelist of legal attributes copied from the retrieved
// document.
type SourceMetadata struct {
	FreshnessScore float64
	CitationText   string
	CrawlStatus    CrawlStatus
	CourtName      string
	CaseNumber     string
	ActChapter     string
	DocumentDate   string
	LastVerifiedAt string
}

// StructuredSource is the response-side view of a retrieved document:
// everything a client needs to render a citation without re-deriving
// it from the document store.
type StructuredSource struct {
	SourceID           string
	CitationID         int
	Title              string
	URL                string
	Snippet            string
	DocumentType       DocumentType
	LegalArea          string
	RelevanceScore     float64
	HighlightedExcerpt string
	Metadata           SourceMetadata
}

// ResponseMetadata carries the aggregate scoring attached to a
// QueryResult envelope.
type ResponseMetadata struct {
	Confidence     float64
	FreshnessScore float64
	CitationCount  int
	UseCitations   bool
}

// QueryResult is the full response envelope returned by the
// orchestrator. On success=false, Answer/Sources/CitationMap are zero
// and Error carries the terminal failure.
type QueryResult struct {
	Success            bool
	Answer             string
	Sources            []StructuredSource
	CitationMap        CitationMap
	ModelUsed          string
	RetrievedDocuments int
	ContextTokens      int
	TotalTokens        int
	LatencyMs          int64
	Metadata           ResponseMetadata
	Error              *QueryError
}

// QueryError is the structured error object returned in a failed
// envelope. Kind is one of the taxonomy values in package rerr.
type QueryError struct {
	Kind    string
	Message string
}
