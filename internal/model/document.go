// Package model holds the data shapes shared across the retrieval,
// generation, and aggregation stages of the RAG pipeline.
package model

import "time"

// DocumentType classifies a retrieved legal document.
type DocumentType string

const (
	DocLegislation  DocumentType = "legislation"
	DocJudgment     DocumentType = "judgment"
	DocRegulation   DocumentType = "regulation"
	DocConstitution DocumentType = "constitution"
	DocUnknown      DocumentType = "unknown"
)

// CrawlStatus reflects how fresh the ingestion pipeline believes a
// document's source copy to be. Maintained by a separate ingestion
// pipeline; the core only reads it.
type CrawlStatus string

const (
	CrawlActive  CrawlStatus = "active"
	CrawlStale   CrawlStatus = "stale"
	CrawlBroken  CrawlStatus = "broken"
	CrawlPending CrawlStatus = "pending"
)

// DocumentMetadata is the closed set of legal-document attributes the
// core understands. Anything the retriever attaches beyond this set is
// preserved verbatim in Extra and never pattern-matched on.
type DocumentMetadata struct {
	Title          string
	URL            string
	Source         string
	DocumentType   DocumentType
	LegalArea      string
	CourtName      string
	CaseNumber     string
	ActChapter     string
	Section        string
	Parties        string
	Year           string
	Reporter       string
	DocumentDate   *time.Time
	CrawledAt      *time.Time
	LastVerifiedAt *time.Time
	CrawlStatus    CrawlStatus

	// Extra holds any attribute the retriever supplies that isn't part
	// of the closed set above. The core never branches on its keys.
	Extra map[string]string
}

// Document is a single retrieval result: a passage of statute or
// judgment text plus its similarity to the query.
//
// Invariant: UUID is unique within a single query's result set. The
// retriever is expected to return documents in descending Similarity,
// but the core does not trust that blindly — see retrieval.Dedupe and
// the retriever's re-ranking step.
type Document struct {
	UUID       string
	Content    string
	Metadata   DocumentMetadata
	Similarity float64
}
