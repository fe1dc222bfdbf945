// Package policy decides who may read or change a task.
package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	taskModel "schoolcrm_backend/internals/features/tasks/model"
	userModel "schoolcrm_backend/internals/features/users/model"
)

type Action string

const (
	ActionRead Action = "read"
	// ActionWrite covers editing, reassigning, date edits, close/reopen,
	// rework and delete.
	ActionWrite      Action = "write"
	ActionSelfUpdate Action = "self_update"
	ActionRestore    Action = "restore"
)

// ErrNotFound is returned for both a missing task and a denied one.
var ErrNotFound = errors.New("task not found or access denied")

// TaskResource is a task plus the facts the rules need.
type TaskResource struct {
	Task        *taskModel.TaskModel
	AssigneeIDs []uuid.UUID
	// TargetUserID is the owner of the assignment row for ActionSelfUpdate.
	TargetUserID uuid.UUID
}

func (r TaskResource) isAssignee(id uuid.UUID) bool {
	for _, a := range r.AssigneeIDs {
		if a == id {
			return true
		}
	}
	return false
}

type TaskPolicy struct{}

func NewTaskPolicy() *TaskPolicy {
	return &TaskPolicy{}
}

func (p *TaskPolicy) Can(_ context.Context, user *userModel.UserModel, action Action, res TaskResource) bool {
	if user == nil || user.ID == uuid.Nil || res.Task == nil {
		return false
	}
	switch action {
	case ActionRead:
		return CanRead(user, res)
	case ActionWrite:
		return CanWrite(user, res.Task)
	case ActionSelfUpdate:
		return CanSelfUpdate(user, res)
	case ActionRestore:
		return user.IsAdmin()
	default:
		return false
	}
}

// Authorize is Can with the uniform not-found error on deny.
func (p *TaskPolicy) Authorize(ctx context.Context, user *userModel.UserModel, action Action, res TaskResource) error {
	if !p.Can(ctx, user, action, res) {
		return ErrNotFound
	}
	return nil
}

// CanRead: admins read everything. Others read tasks they created, and open
// tasks they are assigned to. Deleted tasks keep the same rule.
func CanRead(user *userModel.UserModel, res TaskResource) bool {
	if user.IsAdmin() {
		return true
	}
	t := res.Task
	if t.CreatedBy == user.ID {
		return true
	}
	return !t.IsClosed() && res.isAssignee(user.ID)
}

// CanWrite: admins, or the creator of a live task.
func CanWrite(user *userModel.UserModel, t *taskModel.TaskModel) bool {
	if user.IsAdmin() {
		return true
	}
	return !t.IsDeleted() && t.CreatedBy == user.ID
}

// CanSelfUpdate: the actor changes only their own row, holds an assignment
// on the task and can read it.
func CanSelfUpdate(user *userModel.UserModel, res TaskResource) bool {
	if res.TargetUserID != user.ID {
		return false
	}
	if !res.isAssignee(user.ID) {
		return false
	}
	return CanRead(user, res)
}
