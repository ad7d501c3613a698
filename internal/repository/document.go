package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/kenyalaw-rag/internal/model"
)

// DocumentRepo implements retrieval.VectorSearcher against the
// legal_documents table: one row per retrievable passage, embedding
// stored as a pgvector column.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// SimilaritySearch finds the top-K documents most similar to queryVec
// by cosine distance, above threshold, across the whole corpus — there
// is no per-tenant scoping since the corpus is a single shared body of
// public legal text.
func (r *DocumentRepo) SimilaritySearch(ctx context.Context, queryVec []float32, topK int, threshold float64) ([]model.Document, error) {
	embedding := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT
			uuid, content, title, url, source, document_type, legal_area,
			court_name, case_number, act_chapter, section, parties, year,
			reporter, document_date, crawled_at, last_verified_at, crawl_status,
			1 - (embedding <=> $1::vector) AS similarity
		FROM legal_documents
		WHERE (1 - (embedding <=> $1::vector)) > $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`,
		embedding, threshold, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: %w", err)
	}

	slog.Debug("repository: similarity search complete", "results", len(docs), "threshold", threshold, "top_k", topK)
	return docs, nil
}

// FullTextSearch finds documents matching query via PostgreSQL
// full-text search over the GIN index on content_tsv, for the hybrid
// vector+BM25 retrieval path.
func (r *DocumentRepo) FullTextSearch(ctx context.Context, query string, topK int) ([]model.Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			uuid, content, title, url, source, document_type, legal_area,
			court_name, case_number, act_chapter, section, parties, year,
			reporter, document_date, crawled_at, last_verified_at, crawl_status,
			ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS similarity
		FROM legal_documents
		WHERE content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY similarity DESC
		LIMIT $2`,
		query, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("repository.FullTextSearch: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.FullTextSearch: %w", err)
	}
	return docs, nil
}

type documentRow interface {
	Scan(dest ...any) error
	Next() bool
}

func scanDocuments(rows documentRow) ([]model.Document, error) {
	var docs []model.Document
	for rows.Next() {
		var d model.Document
		var docType, crawlStatus string
		var documentDate, crawledAt, lastVerifiedAt *time.Time

		err := rows.Scan(
			&d.UUID, &d.Content, &d.Metadata.Title, &d.Metadata.URL, &d.Metadata.Source,
			&docType, &d.Metadata.LegalArea, &d.Metadata.CourtName, &d.Metadata.CaseNumber,
			&d.Metadata.ActChapter, &d.Metadata.Section, &d.Metadata.Parties, &d.Metadata.Year,
			&d.Metadata.Reporter, &documentDate, &crawledAt, &lastVerifiedAt, &crawlStatus,
			&d.Similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		d.Metadata.DocumentType = model.DocumentType(docType)
		d.Metadata.CrawlStatus = model.CrawlStatus(crawlStatus)
		d.Metadata.DocumentDate = documentDate
		d.Metadata.CrawledAt = crawledAt
		d.Metadata.LastVerifiedAt = lastVerifiedAt

		docs = append(docs, d)
	}
	return docs, nil
}
