// Package citation formats canonical citation strings for retrieved
// legal documents and builds the response-level citation map.
package citation

import (
	"fmt"
	"strings"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// Format renders the canonical citation text for a document, varying
// by document type. id is the document's 1-based position in the
// current result set, used only by fallback when no usable metadata
// is present.
func Format(meta model.DocumentMetadata, id int) string {
	switch meta.DocumentType {
	case model.DocJudgment:
		return formatJudgment(meta, id)
	case model.DocLegislation, model.DocRegulation:
		return formatLegislation(meta, id)
	case model.DocConstitution:
		return formatConstitution(meta)
	default:
		return fallback(meta, id)
	}
}

// formatJudgment renders "{parties} [{year}] {reporter}", e.g.
// "ABC Ltd v XYZ [2024] eKLR".
func formatJudgment(meta model.DocumentMetadata, id int) string {
	if meta.Parties == "" {
		return fallback(meta, id)
	}
	text := meta.Parties
	if meta.Year != "" {
		text += " [" + meta.Year + "]"
	}
	if meta.Reporter != "" {
		text += " " + meta.Reporter
	}
	return text
}

// formatLegislation renders "{title}, Section {section}". The chapter
// is prefixed to the title only when it isn't already present there,
// and a section suffix already present in the title is never doubled.
func formatLegislation(meta model.DocumentMetadata, id int) string {
	title := meta.Title
	if title == "" {
		return fallback(meta, id)
	}
	if meta.ActChapter != "" && !strings.Contains(title, meta.ActChapter) {
		title = fmt.Sprintf("Cap. %s, %s", meta.ActChapter, title)
	}
	if meta.Section == "" {
		return title
	}
	sectionSuffix := "Section " + meta.Section
	if strings.Contains(title, sectionSuffix) {
		return title
	}
	return fmt.Sprintf("%s, %s", title, sectionSuffix)
}

func formatConstitution(meta model.DocumentMetadata) string {
	if meta.Section != "" {
		return "Constitution of Kenya, Article " + meta.Section
	}
	return "Constitution of Kenya"
}

// fallback falls back to the title, then the URL, then a positional
// "Source {n}" placeholder so an incompletely tagged document still
// gets a stable, distinguishable citation.
func fallback(meta model.DocumentMetadata, id int) string {
	if meta.Title != "" {
		return meta.Title
	}
	if meta.URL != "" {
		return meta.URL
	}
	return fmt.Sprintf("Source %d", id)
}

// BuildMap assigns dense 1-based citation ids to docs in order and
// returns the id-to-citation-text map. Two documents that would format
// to the same citation text are disambiguated with a numeric suffix so
// the map never collapses distinct sources under one label.
func BuildMap(docs []model.Document) model.CitationMap {
	m := make(model.CitationMap, len(docs))
	seen := make(map[string]int)

	for i, d := range docs {
		id := i + 1
		text := Format(d.Metadata, id)
		seen[text]++
		if n := seen[text]; n > 1 {
			text = fmt.Sprintf("%s (%d)", text, n)
		}
		m[id] = text
	}
	return m
}
