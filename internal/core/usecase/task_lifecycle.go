package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/metrodocs/internal/core/domain"
	"github.com/kirillkom/metrodocs/internal/core/ports"
)

const DefaultEscalationNote = "Task escalated"

type TaskLifecycleUseCase struct {
	tasks  ports.TaskStore
	events ports.EventPublisher
	now    func() time.Time
	newID  func() string
}

func NewTaskLifecycleUseCase(tasks ports.TaskStore, events ports.EventPublisher) *TaskLifecycleUseCase {
	return &TaskLifecycleUseCase{
		tasks:  tasks,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// RecordProgress appends a progress note and optionally moves the task to a
// new status. Validation, lookup and authorization all happen before any write.
func (uc *TaskLifecycleUseCase) RecordProgress(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	notes string,
	newStatus *domain.TaskStatus,
) (*domain.TaskUpdate, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "record progress", errors.New("notes are required"))
	}
	if newStatus != nil {
		parsed, ok := domain.ParseTaskStatus(string(*newStatus))
		if !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "record progress", fmt.Errorf("unknown status %q", *newStatus))
		}
		newStatus = &parsed
	}

	task, err := uc.authorizedTask(ctx, "record progress", taskID, actor)
	if err != nil {
		return nil, err
	}

	effective := task.Status
	if newStatus != nil {
		if !domain.CanTransition(task.Status, *newStatus) {
			return nil, domain.WrapError(domain.ErrInvalidInput, "record progress",
				fmt.Errorf("cannot move task from %s to %s", task.Status, *newStatus))
		}
		effective = *newStatus
	}

	update, err := uc.apply(ctx, task, actor, notes, newStatus, effective)
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventTaskProgress,
		ActorID:    actor.ID,
		EntityKind: "task",
		EntityID:   task.ID,
		Details: map[string]any{
			"previous_status": string(task.Status),
			"status":          string(effective),
			"notes":           notes,
		},
	})
	return update, nil
}

// Escalate marks the task ESCALATED. Any authenticated actor may flag a task;
// completed tasks cannot be escalated.
func (uc *TaskLifecycleUseCase) Escalate(ctx context.Context, taskID string, actor domain.Actor, notes string) (*domain.TaskUpdate, error) {
	task, err := uc.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	if task.Status == domain.TaskStatusCompleted {
		return nil, domain.WrapError(domain.ErrInvalidInput, "escalate task", errors.New("task is already completed"))
	}

	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = DefaultEscalationNote
	}
	escalated := domain.TaskStatusEscalated
	update, err := uc.apply(ctx, task, actor, notes, &escalated, escalated)
	if err != nil {
		return nil, err
	}

	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventTaskEscalated,
		ActorID:    actor.ID,
		EntityKind: "task",
		EntityID:   task.ID,
		Details: map[string]any{
			"previous_status": string(task.Status),
			"notes":           notes,
		},
	})
	return update, nil
}

// Reassign rebinds the task's assignment to another role and, optionally, a
// specific user. Administrators only.
func (uc *TaskLifecycleUseCase) Reassign(
	ctx context.Context,
	taskID string,
	actor domain.Actor,
	role domain.Role,
	userID *string,
) (*domain.Task, error) {
	if !actor.IsAdmin() {
		return nil, domain.WrapError(domain.ErrForbidden, "reassign task", errors.New("administrator role required"))
	}
	if !role.Assignable() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reassign task", fmt.Errorf("role %q cannot be assigned", role))
	}
	if userID != nil {
		trimmed := strings.TrimSpace(*userID)
		userID = &trimmed
		if trimmed == "" {
			userID = nil
		}
	}

	if _, err := uc.tasks.GetTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	if err := uc.tasks.UpdateAssignment(ctx, taskID, role, userID); err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	task, err := uc.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}

	details := map[string]any{"role": string(role)}
	if userID != nil {
		details["user_id"] = *userID
	}
	publishAfterCommit(ctx, uc.events, domain.Event{
		Type:       domain.EventTaskReassigned,
		ActorID:    actor.ID,
		EntityKind: "task",
		EntityID:   taskID,
		Details:    details,
	})
	return task, nil
}

// ListTasks returns the tasks the actor may see. Non-admins are limited to
// their role and to tasks bound to them personally.
func (uc *TaskLifecycleUseCase) ListTasks(ctx context.Context, actor domain.Actor, filter domain.TaskFilter) (*domain.TaskList, error) {
	if err := validatePage(filter.Page); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list tasks", err)
	}
	if filter.Status != "" {
		if _, ok := domain.ParseTaskStatus(string(filter.Status)); !ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "list tasks", fmt.Errorf("unknown status %q", filter.Status))
		}
	}
	if filter.Role != "" && !filter.Role.Assignable() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list tasks", fmt.Errorf("unknown role %q", filter.Role))
	}

	filter.Viewer = nil
	if !actor.IsAdmin() {
		viewer := actor
		filter.Viewer = &viewer
	}

	tasks, total, err := uc.tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &domain.TaskList{Tasks: tasks, Pagination: domain.NewPageInfo(filter.Page, total)}, nil
}

func (uc *TaskLifecycleUseCase) ListUpdates(ctx context.Context, taskID string) ([]domain.TaskUpdate, error) {
	if _, err := uc.tasks.GetTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	updates, err := uc.tasks.ListUpdates(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task updates: %w", err)
	}
	return updates, nil
}

func (uc *TaskLifecycleUseCase) authorizedTask(ctx context.Context, op, taskID string, actor domain.Actor) (*domain.Task, error) {
	task, err := uc.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	if !actor.CanModify(*task) {
		return nil, domain.WrapError(domain.ErrForbidden, op,
			fmt.Errorf("actor %s (%s) is not assigned to task %s", actor.ID, actor.Role, task.ID))
	}
	return task, nil
}

func (uc *TaskLifecycleUseCase) apply(
	ctx context.Context,
	task *domain.Task,
	actor domain.Actor,
	notes string,
	newStatus *domain.TaskStatus,
	effective domain.TaskStatus,
) (*domain.TaskUpdate, error) {
	update := domain.TaskUpdate{
		ID:        uc.newID(),
		TaskID:    task.ID,
		UpdatedBy: actor.ID,
		Notes:     notes,
		Status:    effective,
		CreatedAt: uc.now(),
	}
	if err := uc.tasks.ApplyChange(ctx, domain.TaskChange{
		TaskID:         task.ID,
		ExpectedStatus: task.Status,
		NewStatus:      newStatus,
		Update:         update,
	}); err != nil {
		return nil, fmt.Errorf("apply task change: %w", err)
	}
	return &update, nil
}

func validatePage(p domain.Page) error {
	if p.Number < 1 || p.Number > domain.MaxPageNumber {
		return fmt.Errorf("page must be between 1 and %d, got %d", domain.MaxPageNumber, p.Number)
	}
	if p.Limit < 1 || p.Limit > domain.MaxPageLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", domain.MaxPageLimit, p.Limit)
	}
	return nil
}
