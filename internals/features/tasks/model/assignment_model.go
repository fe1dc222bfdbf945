package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_task_assignee" json:"task_id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_task_assignee;index" json:"user_id"`
	Status        string     `gorm:"size:20;not null;default:assigned;index" json:"status"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ReworkComment *string    `gorm:"type:text" json:"rework_comment,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (AssignmentModel) TableName() string {
	return "task_assignments"
}

func (a *AssignmentModel) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// NewAssignment builds a fresh "assigned" row. Dates fall back to the task's
// when the assignment carries none of its own.
func NewAssignment(task *TaskModel, userID uuid.UUID, start, due *time.Time) AssignmentModel {
	if start == nil {
		start = task.StartDate
	}
	if due == nil {
		due = task.DueDate
	}
	return AssignmentModel{
		TaskID:    task.ID,
		UserID:    userID,
		Status:    StatusAssigned,
		StartDate: start,
		DueDate:   due,
	}
}
