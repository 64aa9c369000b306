package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

var taskColumns = []string{
	"id", "document_id", "document_title", "title", "description_en", "description_ml",
	"due_date", "status", "created_at", "updated_at", "assignment_id", "assignee_role", "assignee_user_id",
}

func newTaskRepoWithMock(t *testing.T) (*TaskRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewTaskRepository(db)
	repo.newID = func() string { return "upd-1" }
	return repo, mock, func() { _ = db.Close() }
}

func TestTaskRepositoryListTasksRestrictsNonAdminViewer(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("ENGINEER", "u-1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("FROM tasks t").
		WithArgs("ENGINEER", "u-1", "PENDING", 20, 0).
		WillReturnRows(sqlmock.NewRows(taskColumns).
			AddRow("t-1", "doc-1", "Circular", "Task 1: Inspect...", "Inspect", nil, "2026-03-09", "PENDING", now, now, "a-1", "ENGINEER", nil))

	viewer := domain.Actor{ID: "u-1", Role: domain.RoleEngineer}
	tasks, total, err := repo.ListTasks(context.Background(), domain.TaskFilter{
		Status: domain.TaskStatusPending,
		Viewer: &viewer,
		Page:   domain.Page{Number: 1, Limit: 20},
	})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if total != 1 || len(tasks) != 1 {
		t.Fatalf("expected 1 task, got total=%d len=%d", total, len(tasks))
	}
	if tasks[0].Assignment.AssigneeRole != domain.RoleEngineer || tasks[0].Assignment.TaskID != "t-1" {
		t.Fatalf("unexpected assignment: %+v", tasks[0].Assignment)
	}
	if tasks[0].DocumentTitle != "Circular" || tasks[0].DueDate != "2026-03-09" {
		t.Fatalf("unexpected task: %+v", tasks[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTaskRepositoryListTasksAdminSeesEverything(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs().
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM tasks t").
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows(taskColumns))

	admin := domain.Actor{ID: "a-1", Role: domain.RoleAdmin}
	tasks, _, err := repo.ListTasks(context.Background(), domain.TaskFilter{
		Viewer: &admin,
		Page:   domain.Page{Number: 2, Limit: 10},
	})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if tasks == nil || len(tasks) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", tasks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyChangeUpdatesStatusAndRecordsUpdate(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	next := domain.TaskStatusInProgress
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM tasks").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PENDING"))
	mock.ExpectExec("UPDATE tasks").
		WithArgs("t-1", "IN_PROGRESS", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO task_updates").
		WithArgs("upd-1", "t-1", "u-1", "started", "IN_PROGRESS", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ApplyChange(context.Background(), domain.TaskChange{
		TaskID:         "t-1",
		ExpectedStatus: domain.TaskStatusPending,
		NewStatus:      &next,
		Update:         domain.TaskUpdate{UpdatedBy: "u-1", Notes: "started", Status: next},
	})
	if err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyChangeWithoutStatusOnlyRecordsUpdate(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM tasks").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ESCALATED"))
	mock.ExpectExec("INSERT INTO task_updates").
		WithArgs("upd-1", "t-1", "u-1", "still waiting", "ESCALATED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ApplyChange(context.Background(), domain.TaskChange{
		TaskID:         "t-1",
		ExpectedStatus: domain.TaskStatusEscalated,
		Update:         domain.TaskUpdate{UpdatedBy: "u-1", Notes: "still waiting", Status: domain.TaskStatusEscalated},
	})
	if err != nil {
		t.Fatalf("ApplyChange() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyChangeReturnsConflictWhenStatusMoved(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	next := domain.TaskStatusEscalated
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM tasks").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("COMPLETED"))
	mock.ExpectRollback()

	err := repo.ApplyChange(context.Background(), domain.TaskChange{
		TaskID:         "t-1",
		ExpectedStatus: domain.TaskStatusInProgress,
		NewStatus:      &next,
		Update:         domain.TaskUpdate{UpdatedBy: "u-1", Notes: "late", Status: next},
	})
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyChangeReturnsNotFoundForMissingTask(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM tasks").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	err := repo.ApplyChange(context.Background(), domain.TaskChange{TaskID: "missing", ExpectedStatus: domain.TaskStatusPending})
	if !domain.IsKind(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateAssignmentReturnsNotFoundWhenNoRows(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	userID := "u-9"
	mock.ExpectExec("UPDATE task_assignments").
		WithArgs("missing", "DEPOT_MANAGER", "u-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateAssignment(context.Background(), "missing", domain.RoleDepotManager, &userID)
	if !domain.IsKind(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUpdatesOrdersHistory(t *testing.T) {
	repo, mock, done := newTaskRepoWithMock(t)
	defer done()

	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM task_updates").
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "task_id", "updated_by", "notes", "status", "created_at"}).
			AddRow("u1", "t-1", "u-1", "started", "IN_PROGRESS", first).
			AddRow("u2", "t-1", "u-1", "done", "COMPLETED", first.Add(time.Hour)))

	updates, err := repo.ListUpdates(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("ListUpdates() error = %v", err)
	}
	if len(updates) != 2 || updates[1].Status != domain.TaskStatusCompleted {
		t.Fatalf("unexpected updates: %+v", updates)
	}
}
