package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleEngineer      Role = "ENGINEER"
	RoleSubDivOfficer Role = "SUB_DIV_OFFICER"
	RoleDepotManager  Role = "DEPOT_MANAGER"
	RoleOther         Role = "OTHER"
)

// AssignableRoles is the fixed round-robin order used for default assignment.
var AssignableRoles = []Role{RoleEngineer, RoleSubDivOfficer, RoleDepotManager, RoleOther}

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleEngineer, RoleSubDivOfficer, RoleDepotManager, RoleOther:
		return role, true
	default:
		return "", false
	}
}

func (r Role) Assignable() bool {
	switch r {
	case RoleEngineer, RoleSubDivOfficer, RoleDepotManager, RoleOther:
		return true
	default:
		return false
	}
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusEscalated  TaskStatus = "ESCALATED"
)

func ParseTaskStatus(raw string) (TaskStatus, bool) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusEscalated:
		return status, true
	default:
		return "", false
	}
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusEscalated},
	TaskStatusInProgress: {TaskStatusInProgress, TaskStatusCompleted, TaskStatusEscalated},
	TaskStatusEscalated:  {TaskStatusEscalated, TaskStatusInProgress, TaskStatusCompleted},
	TaskStatusCompleted:  {TaskStatusCompleted},
}

// CanTransition reports whether a task in status from may move to status to.
// COMPLETED is terminal.
func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Task struct {
	ID            string         `json:"id"`
	DocumentID    string         `json:"document_id"`
	DocumentTitle string         `json:"document_title,omitempty"`
	Title         string         `json:"title"`
	DescriptionEN string         `json:"description_en"`
	DescriptionML *string        `json:"description_ml"`
	DueDate       string         `json:"due_date"`
	Status        TaskStatus     `json:"status"`
	Assignment    TaskAssignment `json:"assigned_to"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type TaskAssignment struct {
	ID             string  `json:"id"`
	TaskID         string  `json:"task_id"`
	AssigneeRole   Role    `json:"role"`
	AssigneeUserID *string `json:"user_id"`
}

type TaskUpdate struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	UpdatedBy string     `json:"updated_by"`
	Notes     string     `json:"notes"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// TaskChange is one atomic lifecycle mutation: an optional status change plus
// the audit row that always accompanies it.
type TaskChange struct {
	TaskID         string
	ExpectedStatus TaskStatus
	NewStatus      *TaskStatus
	Update         TaskUpdate
}

// Actor is the already-authenticated caller.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanModify reports whether the actor may mutate the task: administrators,
// holders of the assigned role, and the specifically assigned user.
func (a Actor) CanModify(task Task) bool {
	if a.IsAdmin() {
		return true
	}
	if a.Role != "" && a.Role == task.Assignment.AssigneeRole {
		return true
	}
	return task.Assignment.AssigneeUserID != nil && a.ID != "" && *task.Assignment.AssigneeUserID == a.ID
}

type TaskFilter struct {
	Role   Role
	Status TaskStatus
	// Viewer restricts results to tasks the actor may see; empty for admins.
	Viewer *Actor
	Page   Page
}

type TaskList struct {
	Tasks      []Task   `json:"tasks"`
	Pagination PageInfo `json:"pagination"`
}
