// Package contextbuilder assembles a token-budgeted, numbered context
// block from retrieved documents and renders the system/user prompt
// pair the dispatcher sends to the model.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/connexus-ai/kenyalaw-rag/internal/citation"
	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// TokenEstimator counts (or estimates) the number of tokens a string
// costs against a model's context budget. Swappable so the default
// chars/4 heuristic can be replaced with a tiktoken-go encoding.
type TokenEstimator interface {
	Estimate(text string) int
}

// CharEstimator is the default TokenEstimator: ceil(len(text)/4),
// the conventional rough estimate when no tokenizer is configured.
type CharEstimator struct{}

func (CharEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

const systemPreamble = `You are a legal research assistant answering questions about Kenyan law. Answer only from the numbered sources below. Never assert a fact that is not derivable from the sources. If the sources do not contain the answer, say so plainly instead of guessing.`

const citationDirective = ` Cite using bracketed integers matching the sources below. Place the citation immediately after the statement it supports, and combine markers (e.g. [1][2]) when multiple sources support the same claim.`

// Result is the assembled context plus the prompts built from it.
type Result struct {
	ContextText   string
	ContextTokens int
	CitationMap   model.CitationMap
	Included      []model.Document // documents that fit inside the budget, in order
	SystemPrompt  string
	UserPrompt    string
}

// Build assembles a numbered context block from docs (assumed already
// ordered by relevance, lowest-ranked last), stopping once maxTokens
// would be exceeded. Sources beyond the budget are dropped outright
// (they're the lowest-ranked remaining); the last source that does fit
// only partially is truncated at a sentence boundary instead of being
// dropped, so a single long statute section doesn't silently produce an
// empty context.
func Build(query string, docs []model.Document, maxTokens int, useCitations bool, estimator TokenEstimator) Result {
	if estimator == nil {
		estimator = CharEstimator{}
	}

	var b strings.Builder
	var included []model.Document
	tokens := 0

	for i, d := range docs {
		id := i + 1
		citationText := citation.Format(d.Metadata, id)
		header := fmt.Sprintf("[SOURCE %d] %s\nURL: %s\n", id, citationText, d.Metadata.URL)
		overhead := estimator.Estimate(header) + estimator.Estimate("\n---\n")

		content := d.Content
		cost := overhead + estimator.Estimate(content)

		if tokens+cost > maxTokens {
			remaining := maxTokens - tokens - overhead
			if remaining <= 0 && len(included) == 0 {
				remaining = 1 // guarantee at least a sliver of the only candidate source
			}
			if remaining <= 0 {
				break
			}
			content = truncateAtSentence(content, remaining, estimator)
			if content == "" {
				break
			}
			cost = overhead + estimator.Estimate(content)

			b.WriteString(header)
			b.WriteString(content)
			b.WriteString("\n---\n\n")
			tokens += cost
			included = append(included, d)
			break // budget exhausted by this truncated source; no room for more
		}

		b.WriteString(header)
		b.WriteString(content)
		b.WriteString("\n---\n\n")
		tokens += cost
		included = append(included, d)
	}

	contextText := strings.TrimRight(b.String(), "\n")

	var citationMap model.CitationMap
	if useCitations {
		citationMap = citation.BuildMap(included)
	}

	return Result{
		ContextText:   contextText,
		ContextTokens: tokens,
		CitationMap:   citationMap,
		Included:      included,
		SystemPrompt:  buildSystemPrompt(useCitations),
		UserPrompt:    buildUserPrompt(query, contextText, useCitations),
	}
}

// truncateAtSentence shrinks content to fit within tokenBudget, cutting
// at the last sentence-ending punctuation within the fitted prefix so a
// source is shortened cleanly instead of mid-sentence.
func truncateAtSentence(content string, tokenBudget int, estimator TokenEstimator) string {
	if tokenBudget <= 0 {
		return ""
	}
	charBudget := tokenBudget * 4
	if charBudget > len(content) {
		charBudget = len(content)
	}
	fit := content[:charBudget]
	for estimator.Estimate(fit) > tokenBudget && len(fit) > 0 {
		fit = fit[:len(fit)-1]
	}
	if idx := strings.LastIndexAny(fit, ".!?"); idx > 0 {
		fit = fit[:idx+1]
	}
	return strings.TrimSpace(fit)
}

func buildSystemPrompt(useCitations bool) string {
	if !useCitations {
		return systemPreamble + " Do not include citation markers in your answer."
	}
	return systemPreamble + citationDirective
}

func buildUserPrompt(query, contextText string, useCitations bool) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if contextText == "" {
		b.WriteString("(no relevant documents found)\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	if useCitations {
		b.WriteString("\n\nCite every claim with [n] referencing the context entries above.")
	}
	return b.String()
}
