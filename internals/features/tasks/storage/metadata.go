package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	taskModel "schoolcrm_backend/internals/features/tasks/model"
)

// TaskMetadata is the task.json mirror written next to a task's uploads.
type TaskMetadata struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Status         string         `json:"status"`
	CreatedBy      uuid.UUID      `json:"created_by"`
	OriginalTaskID *uuid.UUID     `json:"original_task_id"`
	StartDate      *time.Time     `json:"start_date"`
	DueDate        *time.Time     `json:"due_date"`
	ReworkComment  *string        `json:"rework_comment,omitempty"`
	ClosedAt       *time.Time     `json:"closed_at"`
	ClosedBy       *uuid.UUID     `json:"closed_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Files          []MetadataFile `json:"files"`
}

type MetadataFile struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"original_name"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	UploadedBy   uuid.UUID `json:"uploaded_by"`
}

// MetadataMirror writes <Root>/tasks/<id>/task.json. It is a secondary view;
// the database stays authoritative.
type MetadataMirror struct {
	Root string
}

func NewMetadataMirror(dataDir string) *MetadataMirror {
	return &MetadataMirror{Root: filepath.Join(dataDir, "uploads")}
}

func (m *MetadataMirror) PathFor(taskID uuid.UUID) string {
	return filepath.Join(m.Root, "tasks", taskID.String(), "task.json")
}

func BuildMetadata(t *taskModel.TaskModel, files []taskModel.TaskFileModel) TaskMetadata {
	md := TaskMetadata{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		CreatedBy:      t.CreatedBy,
		OriginalTaskID: t.OriginalTaskID,
		StartDate:      t.StartDate,
		DueDate:        t.DueDate,
		ReworkComment:  t.ReworkComment,
		ClosedAt:       t.ClosedAt,
		ClosedBy:       t.ClosedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		Files:          make([]MetadataFile, 0, len(files)),
	}
	for _, f := range files {
		md.Files = append(md.Files, MetadataFile{
			ID:           f.ID,
			OriginalName: f.OriginalName,
			Key:          f.StorageKey,
			Size:         f.Size,
			UploadedBy:   f.UploadedBy,
		})
	}
	return md
}

// Write replaces task.json via a temp file and rename.
func (m *MetadataMirror) Write(md TaskMetadata) error {
	if m == nil {
		return nil
	}
	dst := m.PathFor(md.ID)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	b, err := sonic.ConfigStd.MarshalIndent(md, "", "  ")
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// Read loads a previously written task.json.
func (m *MetadataMirror) Read(taskID uuid.UUID) (TaskMetadata, error) {
	var md TaskMetadata
	b, err := os.ReadFile(m.PathFor(taskID))
	if err != nil {
		return md, err
	}
	err = sonic.ConfigStd.Unmarshal(b, &md)
	return md, err
}
