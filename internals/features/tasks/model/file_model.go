package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskFileModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID       uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	UploadedBy   uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	OriginalName string    `gorm:"size:500;not null" json:"original_name"`
	StorageKey   string    `gorm:"type:text;not null" json:"-"`
	Size         int64     `gorm:"not null" json:"size"`
	UploadedAt   time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

func (TaskFileModel) TableName() string {
	return "task_files"
}

func (f *TaskFileModel) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
