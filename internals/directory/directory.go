// Package directory is the single storage seam for users, tasks,
// assignments, files and activity logs.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	taskModel "schoolcrm_backend/internals/features/tasks/model"
	userModel "schoolcrm_backend/internals/features/users/model"
)

var (
	ErrNotFound  = errors.New("directory: record not found")
	ErrDuplicate = errors.New("directory: duplicate key")
)

/* ===================== Filters & rows ===================== */

type ClosedMode int

const (
	ClosedExclude ClosedMode = iota
	ClosedOnly
	ClosedAny
)

type TaskFilter struct {
	// VisibleTo limits the listing to tasks a non-admin may read. Nil means
	// no restriction (admin).
	VisibleTo      *uuid.UUID
	IncludeDeleted bool
	Closed         ClosedMode
	// Statuses keeps tasks with at least one assignment in one of these
	// statuses. Empty disables the filter.
	Statuses []string
	Search   string
	// Now is used to match unswept overdue rows when Statuses has overdue.
	Now time.Time
}

type LogFilter struct {
	// VisibleTo keeps logs of tasks the user may read, deleted ones included.
	VisibleTo *uuid.UUID
	Limit     int
}

type TaskRow struct {
	taskModel.TaskModel
	CreatorName         string  `json:"creator_name"`
	CreatorLogin        string  `json:"creator_login"`
	OriginalTaskTitle   *string `json:"original_task_title,omitempty"`
	OriginalCreatorName *string `json:"original_creator_name,omitempty"`
}

type AssignmentRow struct {
	taskModel.AssignmentModel
	UserName  string `json:"user_name"`
	UserLogin string `json:"user_login"`
}

type FileRow struct {
	taskModel.TaskFileModel
	UploaderName string `json:"uploader_name"`
}

type LogRow struct {
	taskModel.ActivityLogModel
	UserName  *string `json:"user_name"`
	TaskTitle *string `json:"task_title"`
}

/* ===================== Interface ===================== */

type Directory interface {
	// Transaction runs fn against a Directory bound to one transaction.
	Transaction(ctx context.Context, fn func(tx Directory) error) error

	// users
	FindUserByID(ctx context.Context, id uuid.UUID) (*userModel.UserModel, error)
	FindUserByLogin(ctx context.Context, login string) (*userModel.UserModel, error)
	FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]userModel.UserModel, error)
	CreateUserIfNotExists(ctx context.Context, u *userModel.UserModel) (bool, error)
	UpsertExternalUser(ctx context.Context, u *userModel.UserModel) (*userModel.UserModel, error)
	UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error
	ListUsers(ctx context.Context, search string) ([]userModel.UserModel, error)

	// tasks
	CreateTask(ctx context.Context, t *taskModel.TaskModel) error
	FindTask(ctx context.Context, id uuid.UUID) (*taskModel.TaskModel, error)
	SaveTask(ctx context.Context, t *taskModel.TaskModel) error
	FindTaskRow(ctx context.Context, id uuid.UUID) (*TaskRow, error)
	ListTaskRows(ctx context.Context, f TaskFilter) ([]TaskRow, error)

	// assignments
	ListAssignments(ctx context.Context, taskID uuid.UUID) ([]taskModel.AssignmentModel, error)
	ListAssignmentRows(ctx context.Context, taskIDs []uuid.UUID) ([]AssignmentRow, error)
	CreateAssignments(ctx context.Context, rows []taskModel.AssignmentModel) error
	DeleteAssignments(ctx context.Context, taskID uuid.UUID) error
	FindAssignment(ctx context.Context, taskID, userID uuid.UUID) (*taskModel.AssignmentModel, error)
	SaveAssignment(ctx context.Context, a *taskModel.AssignmentModel) error
	ReworkAssignments(ctx context.Context, taskID uuid.UUID, comment string) (int64, error)
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]taskModel.AssignmentModel, error)
	MarkOverdue(ctx context.Context, assignmentID uuid.UUID) (bool, error)

	// files
	CreateFile(ctx context.Context, f *taskModel.TaskFileModel) error
	FindFile(ctx context.Context, id uuid.UUID) (*taskModel.TaskFileModel, error)
	ListFiles(ctx context.Context, taskID uuid.UUID) ([]taskModel.TaskFileModel, error)
	ListFileRows(ctx context.Context, taskID uuid.UUID) ([]FileRow, error)

	// activity logs
	AppendLog(ctx context.Context, l *taskModel.ActivityLogModel) error
	ListLogRows(ctx context.Context, f LogFilter) ([]LogRow, error)
}
