package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (id, title, file_url, mime_type, text, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, doc.ID, doc.Title, doc.FileURL, doc.MimeType, doc.Text, doc.CreatedBy, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, file_url, mime_type, text, created_by, created_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.Title, &doc.FileURL, &doc.MimeType, &doc.Text, &doc.CreatedBy, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

// List returns one page of documents, newest first, without their text, and
// the total number of matches.
func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]domain.Document, int, error) {
	var where whereClause
	if search := strings.TrimSpace(filter.Search); search != "" {
		where.add(`(title ILIKE ? OR text ILIKE ?)`, likePattern(search), likePattern(search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents\n"+where.String(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	pageClause, args := where.page(filter.Page.Limit, filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, file_url, mime_type, created_by, created_at
FROM documents
`+where.String()+"ORDER BY created_at DESC, id\n"+pageClause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.FileURL, &doc.MimeType, &doc.CreatedBy, &doc.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate documents: %w", err)
	}
	return out, total, nil
}

// Update applies the non-nil fields of patch. It returns ErrDocumentNotFound
// when no row matches id.
func (r *DocumentRepository) Update(ctx context.Context, id string, patch domain.DocumentPatch) error {
	var set setClause
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Text != nil {
		set.add("text", *patch.Text)
	}
	if patch.FileURL != nil {
		set.add("file_url", *patch.FileURL)
	}
	if set.empty() {
		return domain.WrapError(domain.ErrInvalidInput, "update document", errors.New("no fields to update"))
	}

	where, args := set.whereID(id)
	result, err := r.db.ExecContext(ctx, "UPDATE documents "+set.String()+" "+where, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("id=%s", id))
	}
	return nil
}

// Delete removes the document; summaries, tasks, assignments and updates
// follow through ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) GetSummary(ctx context.Context, documentID string) (*domain.Summary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, summary_en, summary_ml, key_points_json, confidence_score, processing_time_ms, source, created_at
FROM summaries
WHERE document_id = $1
`, documentID)

	summary, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSummaryNotFound, "get summary", fmt.Errorf("document_id=%s", documentID))
		}
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return summary, nil
}

// ListSummaries returns one page of summary previews, newest first, with the
// title of their document and the total number of summaries.
func (r *DocumentRepository) ListSummaries(ctx context.Context, page domain.Page) ([]domain.SummaryPreview, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM summaries s
JOIN documents d ON d.id = s.document_id
`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count summaries: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT s.id, s.document_id, d.title, LEFT(s.summary_en, $1), s.created_at
FROM summaries s
JOIN documents d ON d.id = s.document_id
ORDER BY s.created_at DESC, s.id
LIMIT $2 OFFSET $3
`, domain.SummaryPreviewLength, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SummaryPreview, 0)
	for rows.Next() {
		var p domain.SummaryPreview
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.DocumentTitle, &p.Preview, &p.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan summary preview: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*domain.Summary, error) {
	var (
		summary      domain.Summary
		summaryML    sql.NullString
		keyPoints    []byte
		confidence   sql.NullFloat64
		processingMS sql.NullInt64
	)
	if err := row.Scan(
		&summary.ID,
		&summary.DocumentID,
		&summary.SummaryEN,
		&summaryML,
		&keyPoints,
		&confidence,
		&processingMS,
		&summary.Source,
		&summary.CreatedAt,
	); err != nil {
		return nil, err
	}
	if summaryML.Valid {
		summary.SummaryML = &summaryML.String
	}
	if confidence.Valid {
		summary.ConfidenceScore = &confidence.Float64
	}
	if processingMS.Valid {
		summary.ProcessingTimeMS = &processingMS.Int64
	}
	summary.KeyPoints = []string{}
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &summary.KeyPoints); err != nil {
			return nil, fmt.Errorf("unmarshal key points: %w", err)
		}
	}
	return &summary, nil
}
