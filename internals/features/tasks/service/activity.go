package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"schoolcrm_backend/internals/directory"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
)

// ActivityRecorder stores log entries in the directory and mirrors them as
// plain lines into an append-only file.
type ActivityRecorder struct {
	Path string

	mu sync.Mutex
}

func NewActivityRecorder(dataDir string) *ActivityRecorder {
	return &ActivityRecorder{Path: filepath.Join(dataDir, "logs", "activity.log")}
}

func entry(taskID, userID uuid.UUID, action, details string, at time.Time) taskModel.ActivityLogModel {
	tid, uid := taskID, userID
	return taskModel.ActivityLogModel{TaskID: &tid, UserID: &uid, Action: action, Details: details, CreatedAt: at}
}

// Write appends the entries through dir, usually a transaction.
func (r *ActivityRecorder) Write(ctx context.Context, dir directory.Directory, entries ...taskModel.ActivityLogModel) error {
	for i := range entries {
		if err := dir.AppendLog(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// Mirror appends one line per entry to the log file. Failures are logged.
func (r *ActivityRecorder) Mirror(entries ...taskModel.ActivityLogModel) {
	if r == nil || r.Path == "" || len(entries) == 0 {
		return
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s - User %s: %s - Task %s - %s\n",
			e.CreatedAt.UTC().Format(time.RFC3339), uuidOrDash(e.UserID), e.Action, uuidOrDash(e.TaskID), e.Details)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		log.Printf("[ACTIVITY] mkdir failed: %v", err)
		return
	}
	f, err := os.OpenFile(r.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[ACTIVITY] open failed: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		log.Printf("[ACTIVITY] write failed: %v", err)
	}
}

func uuidOrDash(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}
