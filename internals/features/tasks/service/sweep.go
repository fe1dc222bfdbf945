package service

import (
	"context"
	"log"
	"time"

	"schoolcrm_backend/internals/directory"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
)

// Sweep moves every past-due assignment of an active, open task to overdue
// and logs each transition. Rows that changed meanwhile are skipped, so
// running it again right away changes nothing.
func (s *TaskService) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	candidates, err := s.Dir.ListOverdueCandidates(ctx, now)
	if err != nil {
		return 0, storageErr("list overdue candidates", err)
	}

	var logs []taskModel.ActivityLogModel
	for _, a := range candidates {
		if err := ctx.Err(); err != nil {
			break
		}
		e := entry(a.TaskID, a.UserID, taskModel.ActionStatusChanged, "Status changed to: overdue (due date passed)", now)
		err := s.Dir.Transaction(ctx, func(tx directory.Directory) error {
			changed, err := tx.MarkOverdue(ctx, a.ID)
			if err != nil || !changed {
				return err
			}
			if err := s.Activity.Write(ctx, tx, e); err != nil {
				return err
			}
			logs = append(logs, e)
			return nil
		})
		if err != nil {
			log.Printf("[SWEEP] assignment %s: %v", a.ID, err)
		}
	}

	s.Activity.Mirror(logs...)
	if len(logs) > 0 {
		log.Printf("[SWEEP] %d assignment(s) marked overdue", len(logs))
	}
	return len(logs), ctx.Err()
}

// SweepJob adapts Sweep to the scheduler, bounding one pass to a minute.
func (s *TaskService) SweepJob() func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Printf("[SWEEP] failed: %v", err)
		}
	}
}
