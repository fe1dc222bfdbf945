package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task status (soft delete flag). Closing is tracked separately by ClosedAt.
const (
	TaskActive  = "active"
	TaskDeleted = "deleted"
)

type TaskModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string     `gorm:"size:500;not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	Status         string     `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedBy      uuid.UUID  `gorm:"type:uuid;not null;index" json:"created_by"`
	OriginalTaskID *uuid.UUID `gorm:"type:uuid" json:"original_task_id,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	ReworkComment  *string    `gorm:"type:text" json:"rework_comment,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	ClosedBy       *uuid.UUID `gorm:"type:uuid" json:"closed_by,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *uuid.UUID `gorm:"type:uuid" json:"deleted_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

func (t *TaskModel) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *TaskModel) IsDeleted() bool { return t.Status == TaskDeleted }

func (t *TaskModel) IsClosed() bool { return t.ClosedAt != nil }

// Close sets closed_at and closed_by together.
func (t *TaskModel) Close(by uuid.UUID, at time.Time) {
	t.ClosedAt = &at
	t.ClosedBy = &by
}

func (t *TaskModel) Reopen() {
	t.ClosedAt = nil
	t.ClosedBy = nil
}

func (t *TaskModel) MarkDeleted(by uuid.UUID, at time.Time) {
	t.Status = TaskDeleted
	t.DeletedAt = &at
	t.DeletedBy = &by
}

func (t *TaskModel) Restore() {
	t.Status = TaskActive
	t.DeletedAt = nil
	t.DeletedBy = nil
}
