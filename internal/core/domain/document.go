package domain

import (
	"math"
	"time"
)

type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FileURL   string    `json:"file_url,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is written once per processing run and never updated; reprocessing
// replaces the row for the document.
type Summary struct {
	ID               string    `json:"id"`
	DocumentID       string    `json:"document_id"`
	SummaryEN        string    `json:"summary_en"`
	SummaryML        *string   `json:"summary_ml"`
	KeyPoints        []string  `json:"key_points"`
	ConfidenceScore  *float64  `json:"confidence_score,omitempty"`
	ProcessingTimeMS *int64    `json:"processing_time_ms,omitempty"`
	Source           string    `json:"source,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type DocumentDetail struct {
	Document Document `json:"document"`
	Summary  *Summary `json:"summary"`
	Tasks    []Task   `json:"tasks"`
}

type DocumentFilter struct {
	Search string
	Page   Page
}

type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

const MaxPageLimit = 100

// MaxPageNumber keeps (page-1)*limit within a 32-bit OFFSET for every
// accepted limit.
const MaxPageNumber = math.MaxInt32 / MaxPageLimit

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

type PageInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPageInfo(p Page, total int) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageInfo{Page: p.Number, Limit: p.Limit, Total: total, Pages: pages}
}

type DocumentList struct {
	Documents  []Document `json:"documents"`
	Pagination PageInfo   `json:"pagination"`
}

// DocumentPatch is a partial update; nil fields are left unchanged.
type DocumentPatch struct {
	Title   *string `json:"title,omitempty"`
	Text    *string `json:"text,omitempty"`
	FileURL *string `json:"file_url,omitempty"`
}

func (p DocumentPatch) Empty() bool {
	return p.Title == nil && p.Text == nil && p.FileURL == nil
}

// SummaryPreviewLength is the number of characters of summary_en kept in a
// SummaryPreview.
const SummaryPreviewLength = 200

type SummaryPreview struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	Preview       string    `json:"summary_preview"`
	CreatedAt     time.Time `json:"created_at"`
}

type SummaryList struct {
	Summaries  []SummaryPreview `json:"summaries"`
	Pagination PageInfo         `json:"pagination"`
}
