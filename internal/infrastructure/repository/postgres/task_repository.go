package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

type TaskRepository struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{
		db:    db,
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

const taskSelect = `
SELECT t.id, t.document_id, d.title, t.title, t.description_en, t.description_ml,
	to_char(t.due_date, 'YYYY-MM-DD'), t.status, t.created_at, t.updated_at,
	COALESCE(a.id, ''), COALESCE(a.assignee_role, 'OTHER'), a.assignee_user_id
FROM tasks t
JOIN documents d ON d.id = t.document_id
LEFT JOIN task_assignments a ON a.task_id = t.id
`

func (r *TaskRepository) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, taskSelect+"WHERE t.id = $1\n", taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTaskNotFound, "get task", fmt.Errorf("id=%s", taskID))
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	return &task, nil
}

// ListTasks returns one page of tasks matching the filter and the total count.
// A non-admin viewer only sees tasks assigned to their role or to them.
func (r *TaskRepository) ListTasks(ctx context.Context, filter domain.TaskFilter) ([]domain.Task, int, error) {
	var where whereClause
	if viewer := filter.Viewer; viewer != nil && !viewer.IsAdmin() {
		where.add(`(a.assignee_role = ? OR a.assignee_user_id = ?)`, string(viewer.Role), viewer.ID)
	}
	if filter.Role != "" {
		where.add(`a.assignee_role = ?`, string(filter.Role))
	}
	if filter.Status != "" {
		where.add(`t.status = ?`, string(filter.Status))
	}

	var total int
	countQuery := `
SELECT COUNT(*)
FROM tasks t
LEFT JOIN task_assignments a ON a.task_id = t.id
` + where.String()
	if err := r.db.QueryRowContext(ctx, countQuery, where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	pageClause, args := where.page(filter.Page.Limit, filter.Page.Offset())
	tasks, err := r.queryTasks(ctx, taskSelect+where.String()+"ORDER BY t.due_date ASC, t.created_at DESC, t.id\n"+pageClause, args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *TaskRepository) ListTasksByDocument(ctx context.Context, documentID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, taskSelect+"WHERE t.document_id = $1\nORDER BY t.created_at ASC, t.due_date ASC, t.id", documentID)
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

// ApplyChange locks the task row, verifies it still has the status the caller
// decided on, then writes the optional status change and the update record
// together.
func (r *TaskRepository) ApplyChange(ctx context.Context, change domain.TaskChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin task tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1 FOR UPDATE`, change.TaskID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrTaskNotFound, "apply task change", fmt.Errorf("id=%s", change.TaskID))
		}
		return fmt.Errorf("lock task: %w", err)
	}
	if domain.TaskStatus(current) != change.ExpectedStatus {
		return domain.WrapError(domain.ErrConflict, "apply task change",
			fmt.Errorf("task %s status changed from %s to %s", change.TaskID, change.ExpectedStatus, current))
	}

	now := r.now()
	if change.NewStatus != nil {
		if _, err := tx.ExecContext(ctx, `
UPDATE tasks
SET status = $2, updated_at = $3
WHERE id = $1
`, change.TaskID, string(*change.NewStatus), now); err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
	}

	update := change.Update
	if update.ID == "" {
		update.ID = r.newID()
	}
	if update.CreatedAt.IsZero() {
		update.CreatedAt = now
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO task_updates (id, task_id, updated_by, notes, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, update.ID, change.TaskID, update.UpdatedBy, update.Notes, string(update.Status), update.CreatedAt); err != nil {
		return fmt.Errorf("insert task update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task tx: %w", err)
	}
	return nil
}

// UpdateAssignment rewrites the task's single assignment row in place.
func (r *TaskRepository) UpdateAssignment(ctx context.Context, taskID string, role domain.Role, userID *string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE task_assignments
SET assignee_role = $2, assignee_user_id = $3, updated_at = $4
WHERE task_id = $1
`, taskID, string(role), nullableString(userID), r.now())
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assignment rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrTaskNotFound, "update assignment", fmt.Errorf("id=%s", taskID))
	}
	return nil
}

func (r *TaskRepository) ListUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, task_id, updated_by, notes, status, created_at
FROM task_updates
WHERE task_id = $1
ORDER BY created_at ASC, id
`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task updates: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TaskUpdate, 0)
	for rows.Next() {
		var update domain.TaskUpdate
		var status string
		if err := rows.Scan(&update.ID, &update.TaskID, &update.UpdatedBy, &update.Notes, &status, &update.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task update: %w", err)
		}
		update.Status = domain.TaskStatus(status)
		out = append(out, update)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task updates: %w", err)
	}
	return out, nil
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task          domain.Task
		descriptionML sql.NullString
		status        string
		role          string
		userID        sql.NullString
	)
	err := row.Scan(
		&task.ID,
		&task.DocumentID,
		&task.DocumentTitle,
		&task.Title,
		&task.DescriptionEN,
		&descriptionML,
		&task.DueDate,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.Assignment.ID,
		&role,
		&userID,
	)
	if err != nil {
		return domain.Task{}, err
	}
	if descriptionML.Valid {
		task.DescriptionML = &descriptionML.String
	}
	if userID.Valid {
		task.Assignment.AssigneeUserID = &userID.String
	}
	task.Status = domain.TaskStatus(status)
	task.Assignment.TaskID = task.ID
	task.Assignment.AssigneeRole = domain.Role(role)
	return task, nil
}
