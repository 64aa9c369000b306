package analysis

import (
	"fmt"
	"time"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

// ActionKeywords mark sentences that describe work to be done.
var ActionKeywords = []string{
	"inspect", "check", "verify", "review", "maintain", "repair",
	"replace", "update", "install", "configure", "test", "monitor",
}

const (
	MaxGeneratedTasks  = 10
	taskSentenceMinLen = 20
	taskTitleMaxRunes  = 100
	dueDateLayout      = "2006-01-02"

	DefaultTaskTitle       = "Review Document"
	DefaultTaskDescription = "Please review the uploaded document and take necessary action"
)

// GenerateTasks turns action sentences into tasks. Priority sentences count
// as actions too. The n-th task is due n weeks after today. Text without any
// candidate yields a single review task due in one week.
func GenerateTasks(text string, today time.Time) []domain.GeneratedTask {
	tasks := make([]domain.GeneratedTask, 0, MaxGeneratedTasks)
	for _, sentence := range splitSentences(text, taskSentenceMinLen) {
		if len(tasks) == MaxGeneratedTasks {
			break
		}
		if !containsAny(sentence, ActionKeywords) && !containsAny(sentence, PriorityKeywords) {
			continue
		}
		index := len(tasks)
		tasks = append(tasks, domain.GeneratedTask{
			Title:         fmt.Sprintf("Task %d: %s...", index+1, truncateRunes(sentence, taskTitleMaxRunes)),
			DescriptionEN: sentence,
			DueDate:       DueDate(today, index),
		})
	}

	if len(tasks) == 0 {
		tasks = append(tasks, domain.GeneratedTask{
			Title:         DefaultTaskTitle,
			DescriptionEN: DefaultTaskDescription,
			DueDate:       DueDate(today, 0),
		})
	}
	return tasks
}

// DueDate is today plus one week per position, as a calendar date.
func DueDate(today time.Time, taskIndex int) string {
	return today.AddDate(0, 0, 7*(taskIndex+1)).Format(dueDateLayout)
}

// DefaultAssignments cycles through the assignable roles by task index.
func DefaultAssignments(taskCount int) []domain.Role {
	if taskCount <= 0 {
		return []domain.Role{}
	}
	roles := make([]domain.Role, taskCount)
	for i := range roles {
		roles[i] = domain.AssignableRoles[i%len(domain.AssignableRoles)]
	}
	return roles
}
