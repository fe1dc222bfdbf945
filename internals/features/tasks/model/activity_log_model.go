package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Activity log actions.
const (
	ActionTaskCreated            = "TASK_CREATED"
	ActionTaskCopied             = "TASK_COPIED"
	ActionTaskAssigned           = "TASK_ASSIGNED"
	ActionFileUploaded           = "FILE_UPLOADED"
	ActionFileCopied             = "FILE_COPIED"
	ActionTaskUpdated            = "TASK_UPDATED"
	ActionTaskAssignmentsUpdated = "TASK_ASSIGNMENTS_UPDATED"
	ActionTaskSentForRework      = "TASK_SENT_FOR_REWORK"
	ActionTaskClosed             = "TASK_CLOSED"
	ActionTaskReopened           = "TASK_REOPENED"
	ActionAssignmentUpdated      = "ASSIGNMENT_UPDATED"
	ActionTaskDeleted            = "TASK_DELETED"
	ActionTaskRestored           = "TASK_RESTORED"
	ActionStatusChanged          = "STATUS_CHANGED"
)

type ActivityLogModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID    *uuid.UUID `gorm:"type:uuid;index" json:"task_id,omitempty"`
	UserID    *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
	Action    string     `gorm:"size:50;not null" json:"action"`
	Details   string     `gorm:"type:text" json:"details"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (ActivityLogModel) TableName() string {
	return "activity_logs"
}

func (l *ActivityLogModel) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
