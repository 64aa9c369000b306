package domain

import "time"

type ProcessingSource string

const (
	SourceRemote   ProcessingSource = "remote"
	SourceFallback ProcessingSource = "fallback"
)

// GeneratedTask is a task derived from document text before it is persisted.
type GeneratedTask struct {
	Title         string `json:"title"`
	DescriptionEN string `json:"description_en"`
	DueDate       string `json:"due_date"`
	AssignedRole  Role   `json:"assigned_role"`
}

type ProcessingResult struct {
	SummaryEN      string           `json:"summary_en"`
	SummaryML      *string          `json:"summary_ml"`
	KeyPoints      []string         `json:"key_points"`
	Tasks          []GeneratedTask  `json:"tasks"`
	Source         ProcessingSource `json:"source"`
	ProcessingTime time.Duration    `json:"-"`
}

type ProcessingOutcome struct {
	DocumentID string           `json:"document_id"`
	Summary    Summary          `json:"summary"`
	Tasks      []Task           `json:"tasks"`
	Source     ProcessingSource `json:"source"`
}

// ProcessRequest is the payload of an asynchronous processing job.
type ProcessRequest struct {
	DocumentID string    `json:"document_id"`
	Actor      Actor     `json:"actor"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
