package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// ProcessingRepository commits a processing result for a document.
type ProcessingRepository struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

func NewProcessingRepository(db *sql.DB) *ProcessingRepository {
	return &ProcessingRepository{
		db:    db,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SaveProcessingResult replaces the document's summary and inserts every
// generated task with its assignment in one transaction. Either all rows are
// written or none are.
func (r *ProcessingRepository) SaveProcessingResult(ctx context.Context, documentID string, result domain.ProcessingResult) (*domain.Summary, []domain.Task, error) {
	keyPoints := result.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	keyPointsJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key points: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin processing tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := r.now()
	processingMS := result.ProcessingTime.Milliseconds()
	summary := &domain.Summary{
		ID:               r.newID(),
		DocumentID:       documentID,
		SummaryEN:        result.SummaryEN,
		SummaryML:        result.SummaryML,
		KeyPoints:        keyPoints,
		ProcessingTimeMS: &processingMS,
		Source:           string(result.Source),
		CreatedAt:        now,
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE document_id = $1`, documentID); err != nil {
		return nil, nil, fmt.Errorf("delete previous summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO summaries (id, document_id, summary_en, summary_ml, key_points_json, confidence_score, processing_time_ms, source, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, summary.ID, documentID, summary.SummaryEN, nullableString(summary.SummaryML), keyPointsJSON, nil, processingMS, summary.Source, now); err != nil {
		if isForeignKeyViolation(err) {
			return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "insert summary", err)
		}
		return nil, nil, fmt.Errorf("insert summary: %w", err)
	}

	tasks := make([]domain.Task, 0, len(result.Tasks))
	for i, generated := range result.Tasks {
		role := generated.AssignedRole
		if !role.Assignable() {
			role = domain.RoleOther
		}
		task := domain.Task{
			ID:            r.newID(),
			DocumentID:    documentID,
			Title:         generated.Title,
			DescriptionEN: generated.DescriptionEN,
			DueDate:       generated.DueDate,
			Status:        domain.TaskStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		task.Assignment = domain.TaskAssignment{ID: r.newID(), TaskID: task.ID, AssigneeRole: role}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO tasks (id, document_id, title, description_en, description_ml, due_date, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,NULL,to_date($5, 'YYYY-MM-DD'),$6,$7,$7)
`, task.ID, documentID, task.Title, task.DescriptionEN, task.DueDate, string(task.Status), now); err != nil {
			return nil, nil, fmt.Errorf("insert task %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO task_assignments (id, task_id, assignee_role, assignee_user_id, created_at, updated_at)
VALUES ($1,$2,$3,NULL,$4,$4)
`, task.Assignment.ID, task.ID, string(role), now); err != nil {
			return nil, nil, fmt.Errorf("insert assignment for task %d: %w", i+1, err)
		}
		tasks = append(tasks, task)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit processing tx: %w", err)
	}
	return summary, tasks, nil
}
