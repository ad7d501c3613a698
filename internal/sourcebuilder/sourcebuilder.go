// Package sourcebuilder turns the retained retrieval set into the
// response-facing StructuredSource records, in citation-map order.
package sourcebuilder

import (
	"strings"
	"time"

	"github.com/connexus-ai/kenyalaw-rag/internal/citation"
	"github.com/connexus-ai/kenyalaw-rag/internal/freshness"
	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// Build constructs StructuredSources for docs, assigning citation ids
// 1..len(docs) in order and pulling canonical citation text from
// citationMap when citations are enabled.
func Build(query string, docs []model.Document, citationMap model.CitationMap, snippetLen int, stopwords []string, now time.Time) []model.StructuredSource {
	sources := make([]model.StructuredSource, len(docs))

	for i, d := range docs {
		id := i + 1
		snippet := snippetFor(d.Content, snippetLen)
		fresh := freshness.Score(d.Metadata.CrawledAt, now)

		citationText := ""
		if citationMap != nil {
			citationText = citationMap[id]
		} else {
			citationText = citation.Format(d.Metadata, id)
		}

		sources[i] = model.StructuredSource{
			SourceID:           d.UUID,
			CitationID:         id,
			Title:              d.Metadata.Title,
			URL:                d.Metadata.URL,
			Snippet:            snippet,
			DocumentType:       d.Metadata.DocumentType,
			LegalArea:          d.Metadata.LegalArea,
			RelevanceScore:     d.Similarity,
			HighlightedExcerpt: freshness.Highlight(snippet, query, stopwords),
			Metadata: model.SourceMetadata{
				FreshnessScore: fresh,
				CitationText:   citationText,
				CrawlStatus:    d.Metadata.CrawlStatus,
				CourtName:      d.Metadata.CourtName,
				CaseNumber:     d.Metadata.CaseNumber,
				ActChapter:     d.Metadata.ActChapter,
				DocumentDate:   formatDate(d.Metadata.DocumentDate),
				LastVerifiedAt: formatDate(d.Metadata.LastVerifiedAt),
			},
		}
	}

	return sources
}

// snippetFor truncates content to length runes at a word boundary,
// appending an ellipsis when truncated.
func snippetFor(content string, length int) string {
	runes := []rune(content)
	if length <= 0 || len(runes) <= length {
		return content
	}
	truncated := string(runes[:length])
	if idx := strings.LastIndexAny(truncated, " \n\t"); idx > 0 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated) + "…"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
