package model

import "time"

// Assignment statuses.
const (
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusRework     = "rework"
	StatusCompleted  = "completed"
	StatusOverdue    = "overdue"
)

// Overall (task-level) statuses in addition to the assignment ones.
const (
	OverallDeleted    = "deleted"
	OverallClosed     = "closed"
	OverallUnassigned = "unassigned"
)

var AssignmentStatuses = []string{
	StatusAssigned,
	StatusInProgress,
	StatusRework,
	StatusCompleted,
	StatusOverdue,
}

func IsAssignmentStatus(s string) bool {
	for _, x := range AssignmentStatuses {
		if x == s {
			return true
		}
	}
	return false
}

// IsPastDue reports whether a due date has passed at now.
func IsPastDue(due *time.Time, now time.Time) bool {
	return due != nil && due.Before(now)
}

// TracksOverdue reports whether a task is in scope for overdue detection:
// active and not closed.
func TracksOverdue(t *TaskModel) bool {
	return t != nil && t.Status == TaskActive && t.ClosedAt == nil
}

// EffectiveAssignmentStatus is the status a reader must see: the stored one,
// or overdue when the due date has passed and the row is not completed.
func EffectiveAssignmentStatus(t *TaskModel, a AssignmentModel, now time.Time) string {
	if a.Status == StatusCompleted {
		return StatusCompleted
	}
	if TracksOverdue(t) && IsPastDue(a.DueDate, now) {
		return StatusOverdue
	}
	return a.Status
}

// DeriveOverallStatus aggregates a task's status from its assignment
// statuses. It is pure; callers pass effective statuses.
//
// Priority: deleted, closed, unassigned (no rows), all completed, any overdue,
// any in_progress, any assigned, else unassigned.
func DeriveOverallStatus(taskStatus string, closedAt *time.Time, statuses []string) string {
	if taskStatus == TaskDeleted {
		return OverallDeleted
	}
	if closedAt != nil {
		return OverallClosed
	}
	if len(statuses) == 0 {
		return OverallUnassigned
	}

	var completed, overdue, inProgress, assigned int
	for _, s := range statuses {
		switch s {
		case StatusCompleted:
			completed++
		case StatusOverdue:
			overdue++
		case StatusInProgress:
			inProgress++
		case StatusAssigned:
			assigned++
		}
	}

	switch {
	case completed == len(statuses):
		return StatusCompleted
	case overdue > 0:
		return StatusOverdue
	case inProgress > 0:
		return StatusInProgress
	case assigned > 0:
		return StatusAssigned
	default:
		return OverallUnassigned
	}
}

// selfTransitions lists the moves an assignee may make on their own row.
// Same-state writes are always allowed for the self-settable statuses.
var selfTransitions = map[string][]string{
	StatusAssigned:   {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
	StatusOverdue:    {StatusCompleted},
	StatusRework:     {StatusInProgress, StatusCompleted},
	StatusCompleted:  {},
}

// IsSelfSettable reports whether an assignee may ever request this status.
func IsSelfSettable(s string) bool {
	return s == StatusAssigned || s == StatusInProgress || s == StatusCompleted
}

// CanSelfTransition reports whether an assignee may move their own assignment
// from the (effective) status from to the requested status to.
func CanSelfTransition(from, to string) bool {
	if !IsSelfSettable(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range selfTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
