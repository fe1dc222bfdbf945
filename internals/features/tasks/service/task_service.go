// Package service implements the task lifecycle: creation, copies, edits,
// rework, close/reopen, soft delete, assignee status changes, attachments and
// the overdue sweep.
package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"schoolcrm_backend/internals/directory"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
	"schoolcrm_backend/internals/features/tasks/notify"
	"schoolcrm_backend/internals/features/tasks/policy"
	"schoolcrm_backend/internals/features/tasks/storage"
	userModel "schoolcrm_backend/internals/features/users/model"
)

const (
	copyTitlePrefix      = "Copy: "
	defaultReworkComment = "Rework required"
)

// DefaultListStatuses is used when the listing has no status filter.
var DefaultListStatuses = []string{
	taskModel.StatusInProgress,
	taskModel.StatusAssigned,
	taskModel.StatusOverdue,
	taskModel.StatusRework,
}

type TaskService struct {
	Dir      directory.Directory
	Policy   *policy.TaskPolicy
	Files    storage.FileStore
	Mirror   *storage.MetadataMirror
	Notify   *notify.Trigger
	Activity *ActivityRecorder
	Now      func() time.Time
}

func NewTaskService(
	dir directory.Directory,
	files storage.FileStore,
	mirror *storage.MetadataMirror,
	trigger *notify.Trigger,
	activity *ActivityRecorder,
) *TaskService {
	return &TaskService{
		Dir:      dir,
		Policy:   policy.NewTaskPolicy(),
		Files:    files,
		Mirror:   mirror,
		Notify:   trigger,
		Activity: activity,
		Now:      time.Now,
	}
}

func (s *TaskService) now() time.Time { return s.Now().UTC() }

/* ===================== Inputs & views ===================== */

// Upload is one incoming attachment.
type Upload struct {
	Name   string
	Reader io.Reader
}

type AssigneeInput struct {
	UserID    uuid.UUID
	StartDate *time.Time
	DueDate   *time.Time
}

type CreateInput struct {
	Title       string
	Description string
	StartDate   *time.Time
	DueDate     *time.Time
	Assignees   []AssigneeInput
	Files       []Upload
}

type CopyInput struct {
	StartDate *time.Time
	DueDate   *time.Time
	Assignees []AssigneeInput
}

type UpdateInput struct {
	Title       string
	Description string
	StartDate   *time.Time
	DueDate     *time.Time
	// Assignees replaces every assignment when non-nil. Nil keeps them.
	Assignees []AssigneeInput
	Files     []Upload
}

type ListQuery struct {
	// Status is a CSV of assignment statuses, or "all", or "closed".
	Status      string
	Search      string
	ShowDeleted bool
}

// TaskView is a task as a reader sees it: assignment statuses are the
// effective ones and OverallStatus is derived on every read.
type TaskView struct {
	directory.TaskRow
	IsClosed      bool                      `json:"is_closed"`
	OverallStatus string                    `json:"overall_status"`
	Assignments   []directory.AssignmentRow `json:"assignments"`
}

func buildViews(rows []directory.TaskRow, assigns []directory.AssignmentRow, now time.Time) []TaskView {
	byTask := make(map[uuid.UUID][]directory.AssignmentRow, len(rows))
	for _, a := range assigns {
		byTask[a.TaskID] = append(byTask[a.TaskID], a)
	}

	out := make([]TaskView, 0, len(rows))
	for _, r := range rows {
		v := TaskView{TaskRow: r, IsClosed: r.ClosedAt != nil, Assignments: byTask[r.ID]}
		if v.Assignments == nil {
			v.Assignments = []directory.AssignmentRow{}
		}
		statuses := make([]string, 0, len(v.Assignments))
		for i := range v.Assignments {
			a := &v.Assignments[i]
			a.Status = taskModel.EffectiveAssignmentStatus(&r.TaskModel, a.AssignmentModel, now)
			statuses = append(statuses, a.Status)
		}
		v.OverallStatus = taskModel.DeriveOverallStatus(r.Status, r.ClosedAt, statuses)
		out = append(out, v)
	}
	return out
}

func (s *TaskService) view(ctx context.Context, id uuid.UUID) (*TaskView, error) {
	row, err := s.Dir.FindTaskRow(ctx, id)
	if err != nil {
		return nil, mapLookup("load task", err)
	}
	assigns, err := s.Dir.ListAssignmentRows(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, storageErr("load assignments", err)
	}
	views := buildViews([]directory.TaskRow{*row}, assigns, s.now())
	return &views[0], nil
}

/* ===================== Access ===================== */

type access struct {
	task        *taskModel.TaskModel
	assignments []taskModel.AssignmentModel
}

func (a *access) assigneeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.assignments))
	for _, x := range a.assignments {
		ids = append(ids, x.UserID)
	}
	return ids
}

// authorize loads the task and its assignments and checks action. A missing
// task and a denied one both come back as ErrNotFound.
func (s *TaskService) authorize(ctx context.Context, actor *userModel.UserModel, id uuid.UUID, action policy.Action, target uuid.UUID) (*access, error) {
	t, err := s.Dir.FindTask(ctx, id)
	if err != nil {
		return nil, mapLookup("load task", err)
	}
	assigns, err := s.Dir.ListAssignments(ctx, id)
	if err != nil {
		return nil, storageErr("load assignments", err)
	}
	acc := &access{task: t, assignments: assigns}
	res := policy.TaskResource{Task: t, AssigneeIDs: acc.assigneeIDs(), TargetUserID: target}
	if err := s.Policy.Authorize(ctx, actor, action, res); err != nil {
		return nil, mapLookup("authorize", err)
	}
	return acc, nil
}

/* ===================== Validation helpers ===================== */

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func checkDates(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return invalid("due_date", "due date must not be before start date")
	}
	return nil
}

// resolveAssignees drops duplicates and checks every user exists. It returns
// the inputs in request order and a display name per user.
func (s *TaskService) resolveAssignees(ctx context.Context, in []AssigneeInput) ([]AssigneeInput, map[uuid.UUID]string, error) {
	seen := make(map[uuid.UUID]bool, len(in))
	out := make([]AssigneeInput, 0, len(in))
	ids := make([]uuid.UUID, 0, len(in))
	for _, a := range in {
		if a.UserID == uuid.Nil {
			return nil, nil, invalid("assignees", "user id is required")
		}
		if err := checkDates(a.StartDate, a.DueDate); err != nil {
			return nil, nil, err
		}
		if seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		out = append(out, AssigneeInput{UserID: a.UserID, StartDate: utc(a.StartDate), DueDate: utc(a.DueDate)})
		ids = append(ids, a.UserID)
	}

	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, names, nil
	}
	users, err := s.Dir.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, storageErr("load assignees", err)
	}
	for _, u := range users {
		names[u.ID] = displayName(&u)
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return nil, nil, invalid("assignees", "unknown user "+id.String())
		}
	}
	return out, names, nil
}

func displayName(u *userModel.UserModel) string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Login
}

func assignmentRows(task *taskModel.TaskModel, in []AssigneeInput) []taskModel.AssignmentModel {
	rows := make([]taskModel.AssignmentModel, 0, len(in))
	for _, a := range in {
		rows = append(rows, taskModel.NewAssignment(task, a.UserID, a.StartDate, a.DueDate))
	}
	return rows
}

func inputIDs(in []AssigneeInput) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(in))
	for _, a := range in {
		ids = append(ids, a.UserID)
	}
	return ids
}

/* ===================== Side effects after commit ===================== */

// storeUploads writes blobs before the row transaction starts. Blobs left
// behind by a failed transaction are only logged.
func (s *TaskService) storeUploads(ctx context.Context, taskID uuid.UUID, actor *userModel.UserModel, uploads []Upload) ([]taskModel.TaskFileModel, error) {
	out := make([]taskModel.TaskFileModel, 0, len(uploads))
	for _, u := range uploads {
		name := strings.TrimSpace(u.Name)
		if name == "" {
			name = "file"
		}
		stored, err := s.Files.Put(ctx, taskID, actor.Login, u.Reader, name)
		if err != nil {
			return nil, storageErr("store upload "+name, err)
		}
		out = append(out, taskModel.TaskFileModel{
			TaskID:       taskID,
			UploadedBy:   actor.ID,
			OriginalName: name,
			StorageKey:   stored.Key,
			Size:         stored.Size,
		})
	}
	return out, nil
}

func (s *TaskService) logOrphans(files []taskModel.TaskFileModel) {
	for _, f := range files {
		log.Printf("[TASK] orphaned upload %s after failed write", f.StorageKey)
	}
}

// afterCommit mirrors log lines and refreshes task.json. Both are secondary
// views; failures are logged.
func (s *TaskService) afterCommit(ctx context.Context, taskID uuid.UUID, logs []taskModel.ActivityLogModel) {
	s.Activity.Mirror(logs...)
	if s.Mirror == nil {
		return
	}
	t, err := s.Dir.FindTask(ctx, taskID)
	if err != nil {
		log.Printf("[TASK] metadata sync for %s skipped: %v", taskID, err)
		return
	}
	files, err := s.Dir.ListFiles(ctx, taskID)
	if err != nil {
		log.Printf("[TASK] metadata sync for %s skipped: %v", taskID, err)
		return
	}
	if err := s.Mirror.Write(storage.BuildMetadata(t, files)); err != nil {
		log.Printf("[TASK] metadata sync for %s failed: %v", taskID, err)
	}
}

func (s *TaskService) notify(typ notify.EventType, t *taskModel.TaskModel, assignees []uuid.UUID, actor *userModel.UserModel, comment, status string) {
	s.Notify.Notify(notify.Event{
		Type:        typ,
		TaskID:      t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatorID:   t.CreatedBy,
		AssigneeIDs: assignees,
		ActorID:     actor.ID,
		ActorName:   displayName(actor),
		Comment:     comment,
		Status:      status,
	})
}

/* ===================== Reads ===================== */

// List returns the tasks the actor may see, filtered per q.
func (s *TaskService) List(ctx context.Context, actor *userModel.UserModel, q ListQuery) ([]TaskView, error) {
	now := s.now()
	f := directory.TaskFilter{Search: strings.TrimSpace(q.Search), Now: now}
	if !actor.IsAdmin() {
		id := actor.ID
		f.VisibleTo = &id
	}
	f.IncludeDeleted = q.ShowDeleted && actor.IsAdmin()

	raw := strings.TrimSpace(q.Status)
	if raw == "" {
		raw = strings.Join(DefaultListStatuses, ",")
	}
	var statuses []string
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		switch {
		case p == "":
		case p == "all":
			f.Closed = directory.ClosedAny
		case p == taskModel.OverallClosed:
			f.Closed = directory.ClosedOnly
		case taskModel.IsAssignmentStatus(p):
			statuses = append(statuses, p)
		default:
			return nil, invalid("status", "unknown status "+p)
		}
	}
	if f.Closed == directory.ClosedExclude {
		f.Statuses = statuses
	}

	rows, err := s.Dir.ListTaskRows(ctx, f)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assigns, err := s.Dir.ListAssignmentRows(ctx, ids)
	if err != nil {
		return nil, storageErr("list assignments", err)
	}
	return buildViews(rows, assigns, now), nil
}

func (s *TaskService) Get(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) (*TaskView, error) {
	if _, err := s.authorize(ctx, actor, id, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}
	return s.view(ctx, id)
}

/* ===================== Create / Copy / Update ===================== */

func (s *TaskService) Create(ctx context.Context, actor *userModel.UserModel, in CreateInput) (*TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	if err := checkDates(in.StartDate, in.DueDate); err != nil {
		return nil, err
	}
	assignees, names, err := s.resolveAssignees(ctx, in.Assignees)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := &taskModel.TaskModel{
		ID:          uuid.New(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      taskModel.TaskActive,
		CreatedBy:   actor.ID,
		StartDate:   utc(in.StartDate),
		DueDate:     utc(in.DueDate),
	}
	files, err := s.storeUploads(ctx, task.ID, actor, in.Files)
	if err != nil {
		return nil, err
	}

	var logs []taskModel.ActivityLogModel
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionTaskCreated, "Task created: "+title, now))

		for i := range files {
			if err := tx.CreateFile(ctx, &files[i]); err != nil {
				return err
			}
			logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionFileUploaded, "File uploaded: "+files[i].OriginalName, now))
		}

		if rows := assignmentRows(task, assignees); len(rows) > 0 {
			if err := tx.CreateAssignments(ctx, rows); err != nil {
				return err
			}
			for _, a := range assignees {
				logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionTaskAssigned, "Assigned to "+names[a.UserID], now))
			}
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		s.logOrphans(files)
		return nil, storageErr("create task", err)
	}

	s.afterCommit(ctx, task.ID, logs)
	s.notify(notify.EventCreated, task, inputIDs(assignees), actor, "", "")
	return s.view(ctx, task.ID)
}

// Copy clones a readable task with its files into a new task owned by actor.
// Dates not given fall back to the source's.
func (s *TaskService) Copy(ctx context.Context, actor *userModel.UserModel, sourceID uuid.UUID, in CopyInput) (*TaskView, error) {
	src, err := s.authorize(ctx, actor, sourceID, policy.ActionRead, uuid.Nil)
	if err != nil {
		return nil, err
	}
	start, due := utc(in.StartDate), utc(in.DueDate)
	if start == nil {
		start = src.task.StartDate
	}
	if due == nil {
		due = src.task.DueDate
	}
	if err := checkDates(start, due); err != nil {
		return nil, err
	}
	assignees, names, err := s.resolveAssignees(ctx, in.Assignees)
	if err != nil {
		return nil, err
	}
	srcFiles, err := s.Dir.ListFiles(ctx, sourceID)
	if err != nil {
		return nil, storageErr("load source files", err)
	}

	now := s.now()
	origin := sourceID
	task := &taskModel.TaskModel{
		ID:             uuid.New(),
		Title:          copyTitlePrefix + src.task.Title,
		Description:    src.task.Description,
		Status:         taskModel.TaskActive,
		CreatedBy:      actor.ID,
		OriginalTaskID: &origin,
		StartDate:      start,
		DueDate:        due,
	}

	files := make([]taskModel.TaskFileModel, 0, len(srcFiles))
	for _, f := range srcFiles {
		stored, err := s.Files.Copy(ctx, f.StorageKey, task.ID, actor.Login, f.OriginalName)
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("[TASK] copy %s: source blob %s missing, skipped", sourceID, f.StorageKey)
			continue
		}
		if err != nil {
			s.logOrphans(files)
			return nil, storageErr("copy file "+f.OriginalName, err)
		}
		files = append(files, taskModel.TaskFileModel{
			TaskID:       task.ID,
			UploadedBy:   actor.ID,
			OriginalName: f.OriginalName,
			StorageKey:   stored.Key,
			Size:         f.Size,
		})
	}

	var logs []taskModel.ActivityLogModel
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.CreateTask(ctx, task); err != nil {
			return err
		}
		logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionTaskCopied, "Copy created: "+task.Title, now))

		for i := range files {
			if err := tx.CreateFile(ctx, &files[i]); err != nil {
				return err
			}
			logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionFileCopied, "File copied: "+files[i].OriginalName, now))
		}

		if rows := assignmentRows(task, assignees); len(rows) > 0 {
			if err := tx.CreateAssignments(ctx, rows); err != nil {
				return err
			}
			for _, a := range assignees {
				logs = append(logs, entry(task.ID, actor.ID, taskModel.ActionTaskAssigned, "Assigned to "+names[a.UserID], now))
			}
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		s.logOrphans(files)
		return nil, storageErr("copy task", err)
	}

	s.afterCommit(ctx, task.ID, logs)
	if len(assignees) > 0 {
		s.notify(notify.EventCreated, task, inputIDs(assignees), actor, "", "")
	}
	return s.view(ctx, task.ID)
}

// Update replaces title, description and dates. A non-nil Assignees list
// replaces every assignment; progress on the old rows is discarded.
func (s *TaskService) Update(ctx context.Context, actor *userModel.UserModel, id uuid.UUID, in UpdateInput) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, id, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if acc.task.IsDeleted() {
		return nil, ErrNotFound
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title", "title is required")
	}
	if err := checkDates(in.StartDate, in.DueDate); err != nil {
		return nil, err
	}

	replace := in.Assignees != nil
	var (
		assignees []AssigneeInput
		names     map[uuid.UUID]string
	)
	if replace {
		if assignees, names, err = s.resolveAssignees(ctx, in.Assignees); err != nil {
			return nil, err
		}
	}
	files, err := s.storeUploads(ctx, id, actor, in.Files)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := acc.task
	task.Title = title
	task.Description = strings.TrimSpace(in.Description)
	task.StartDate = utc(in.StartDate)
	task.DueDate = utc(in.DueDate)

	var logs []taskModel.ActivityLogModel
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.SaveTask(ctx, task); err != nil {
			return err
		}
		logs = append(logs, entry(id, actor.ID, taskModel.ActionTaskUpdated, "Task updated: "+title, now))

		for i := range files {
			if err := tx.CreateFile(ctx, &files[i]); err != nil {
				return err
			}
			logs = append(logs, entry(id, actor.ID, taskModel.ActionFileUploaded, "File uploaded: "+files[i].OriginalName, now))
		}

		if replace {
			if err := tx.DeleteAssignments(ctx, id); err != nil {
				return err
			}
			if rows := assignmentRows(task, assignees); len(rows) > 0 {
				if err := tx.CreateAssignments(ctx, rows); err != nil {
					return err
				}
			}
			list := make([]string, 0, len(assignees))
			for _, a := range assignees {
				list = append(list, names[a.UserID])
			}
			logs = append(logs, entry(id, actor.ID, taskModel.ActionTaskAssignmentsUpdated, "Assignments updated: "+strings.Join(list, ", "), now))
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		s.logOrphans(files)
		return nil, storageErr("update task", err)
	}

	participants := acc.assigneeIDs()
	if replace {
		participants = inputIDs(assignees)
	}
	s.afterCommit(ctx, id, logs)
	s.notify(notify.EventUpdated, task, participants, actor, "", "")
	return s.view(ctx, id)
}

/* ===================== Task-level transitions ===================== */

// Rework stores comment on the task and forces every assignment to rework.
func (s *TaskService) Rework(ctx context.Context, actor *userModel.UserModel, id uuid.UUID, comment string) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, id, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = defaultReworkComment
	}

	now := s.now()
	task := acc.task
	task.ReworkComment = &comment
	var logs []taskModel.ActivityLogModel
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.SaveTask(ctx, task); err != nil {
			return err
		}
		if _, err := tx.ReworkAssignments(ctx, id, comment); err != nil {
			return err
		}
		logs = append(logs, entry(id, actor.ID, taskModel.ActionTaskSentForRework, "Sent for rework: "+comment, now))
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		return nil, storageErr("rework task", err)
	}

	s.afterCommit(ctx, id, logs)
	s.notify(notify.EventRework, task, acc.assigneeIDs(), actor, comment, "")
	return s.view(ctx, id)
}

// Close sets closed_at/closed_by. Closing a closed task changes nothing.
func (s *TaskService) Close(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, id, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if acc.task.IsClosed() {
		return s.view(ctx, id)
	}

	now := s.now()
	acc.task.Close(actor.ID, now)
	logs, err := s.saveTaskWithLog(ctx, acc.task, entry(id, actor.ID, taskModel.ActionTaskClosed, "Task closed", now))
	if err != nil {
		return nil, storageErr("close task", err)
	}
	s.afterCommit(ctx, id, logs)
	s.notify(notify.EventClosed, acc.task, acc.assigneeIDs(), actor, "", "")
	return s.view(ctx, id)
}

func (s *TaskService) Reopen(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, id, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !acc.task.IsClosed() {
		return s.view(ctx, id)
	}

	acc.task.Reopen()
	logs, err := s.saveTaskWithLog(ctx, acc.task, entry(id, actor.ID, taskModel.ActionTaskReopened, "Task reopened", s.now()))
	if err != nil {
		return nil, storageErr("reopen task", err)
	}
	s.afterCommit(ctx, id, logs)
	return s.view(ctx, id)
}

// Delete marks an active task deleted. Rows are kept.
func (s *TaskService) Delete(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) error {
	acc, err := s.authorize(ctx, actor, id, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return err
	}
	if acc.task.IsDeleted() {
		return ErrNotFound
	}

	now := s.now()
	acc.task.MarkDeleted(actor.ID, now)
	logs, err := s.saveTaskWithLog(ctx, acc.task, entry(id, actor.ID, taskModel.ActionTaskDeleted, "Task marked as deleted", now))
	if err != nil {
		return storageErr("delete task", err)
	}
	s.afterCommit(ctx, id, logs)
	return nil
}

// Restore is admin-only. Restoring an active task changes nothing.
func (s *TaskService) Restore(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, id, policy.ActionRestore, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if !acc.task.IsDeleted() {
		return s.view(ctx, id)
	}

	acc.task.Restore()
	logs, err := s.saveTaskWithLog(ctx, acc.task, entry(id, actor.ID, taskModel.ActionTaskRestored, "Task restored", s.now()))
	if err != nil {
		return nil, storageErr("restore task", err)
	}
	s.afterCommit(ctx, id, logs)
	return s.view(ctx, id)
}

func (s *TaskService) saveTaskWithLog(ctx context.Context, t *taskModel.TaskModel, e taskModel.ActivityLogModel) ([]taskModel.ActivityLogModel, error) {
	logs := []taskModel.ActivityLogModel{e}
	err := s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.SaveTask(ctx, t); err != nil {
			return err
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	return logs, err
}

/* ===================== Assignment-level transitions ===================== */

// UpdateAssignmentDates sets one assignee's own start and due dates.
func (s *TaskService) UpdateAssignmentDates(ctx context.Context, actor *userModel.UserModel, taskID, userID uuid.UUID, start, due *time.Time) (*TaskView, error) {
	acc, err := s.authorize(ctx, actor, taskID, policy.ActionWrite, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if err := checkDates(start, due); err != nil {
		return nil, err
	}
	a, err := s.Dir.FindAssignment(ctx, taskID, userID)
	if err != nil {
		return nil, mapLookup("load assignment", err)
	}
	target, err := s.Dir.FindUserByID(ctx, userID)
	if err != nil {
		return nil, mapLookup("load assignee", err)
	}

	a.StartDate = utc(start)
	a.DueDate = utc(due)
	logs := []taskModel.ActivityLogModel{
		entry(taskID, actor.ID, taskModel.ActionAssignmentUpdated, "Dates updated for "+displayName(target), s.now()),
	}
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.SaveAssignment(ctx, a); err != nil {
			return err
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		return nil, storageErr("update assignment", err)
	}

	s.afterCommit(ctx, taskID, logs)
	s.notify(notify.EventUpdated, acc.task, acc.assigneeIDs(), actor, "", "")
	return s.view(ctx, taskID)
}

// UpdateStatus lets an assignee move their own assignment. The check runs
// against the effective status, so an unswept past-due row counts as overdue.
func (s *TaskService) UpdateStatus(ctx context.Context, actor *userModel.UserModel, taskID, targetUserID uuid.UUID, status string) (*TaskView, error) {
	status = strings.TrimSpace(status)
	if targetUserID == uuid.Nil {
		return nil, invalid("user_id", "user_id is required")
	}
	if status == "" {
		return nil, invalid("status", "status is required")
	}
	if !taskModel.IsSelfSettable(status) {
		return nil, invalid("status", "status "+status+" cannot be set by an assignee")
	}

	acc, err := s.authorize(ctx, actor, taskID, policy.ActionSelfUpdate, targetUserID)
	if err != nil {
		return nil, err
	}
	var own *taskModel.AssignmentModel
	for i := range acc.assignments {
		if acc.assignments[i].UserID == targetUserID {
			own = &acc.assignments[i]
			break
		}
	}
	if own == nil {
		return nil, ErrNotFound
	}

	now := s.now()
	current := taskModel.EffectiveAssignmentStatus(acc.task, *own, now)
	if !taskModel.CanSelfTransition(current, status) {
		return nil, invalid("status", "cannot change status from "+current+" to "+status)
	}

	own.Status = status
	logs := []taskModel.ActivityLogModel{
		entry(taskID, targetUserID, taskModel.ActionStatusChanged, "Status changed to: "+status, now),
	}
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		if err := tx.SaveAssignment(ctx, own); err != nil {
			return err
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		return nil, storageErr("update status", err)
	}

	s.afterCommit(ctx, taskID, logs)
	s.notify(notify.EventStatusChanged, acc.task, acc.assigneeIDs(), actor, "", status)
	return s.view(ctx, taskID)
}

/* ===================== Files & activity ===================== */

// AddFiles attaches uploads to a task the actor can read.
func (s *TaskService) AddFiles(ctx context.Context, actor *userModel.UserModel, taskID uuid.UUID, uploads []Upload) ([]directory.FileRow, error) {
	if len(uploads) == 0 {
		return nil, invalid("files", "no files to upload")
	}
	if _, err := s.authorize(ctx, actor, taskID, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}
	files, err := s.storeUploads(ctx, taskID, actor, uploads)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var logs []taskModel.ActivityLogModel
	err = s.Dir.Transaction(ctx, func(tx directory.Directory) error {
		for i := range files {
			if err := tx.CreateFile(ctx, &files[i]); err != nil {
				return err
			}
			logs = append(logs, entry(taskID, actor.ID, taskModel.ActionFileUploaded, "File uploaded: "+files[i].OriginalName, now))
		}
		return s.Activity.Write(ctx, tx, logs...)
	})
	if err != nil {
		s.logOrphans(files)
		return nil, storageErr("add files", err)
	}

	s.afterCommit(ctx, taskID, logs)
	rows, err := s.Dir.ListFileRows(ctx, taskID)
	if err != nil {
		return nil, storageErr("list files", err)
	}
	return rows, nil
}

func (s *TaskService) ListFiles(ctx context.Context, actor *userModel.UserModel, taskID uuid.UUID) ([]directory.FileRow, error) {
	if _, err := s.authorize(ctx, actor, taskID, policy.ActionRead, uuid.Nil); err != nil {
		return nil, err
	}
	rows, err := s.Dir.ListFileRows(ctx, taskID)
	if err != nil {
		return nil, storageErr("list files", err)
	}
	return rows, nil
}

// OpenFile returns the file row and its content. The caller closes the reader.
func (s *TaskService) OpenFile(ctx context.Context, actor *userModel.UserModel, fileID uuid.UUID) (*taskModel.TaskFileModel, io.ReadCloser, error) {
	f, err := s.Dir.FindFile(ctx, fileID)
	if err != nil {
		return nil, nil, mapLookup("load file", err)
	}
	if _, err := s.authorize(ctx, actor, f.TaskID, policy.ActionRead, uuid.Nil); err != nil {
		return nil, nil, err
	}
	rc, err := s.Files.Open(ctx, f.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, storageErr("open file", err)
	}
	return f, rc, nil
}

// ListActivity returns the newest entries the actor may see.
func (s *TaskService) ListActivity(ctx context.Context, actor *userModel.UserModel, limit int) ([]directory.LogRow, error) {
	f := directory.LogFilter{Limit: limit}
	if !actor.IsAdmin() {
		id := actor.ID
		f.VisibleTo = &id
	}
	rows, err := s.Dir.ListLogRows(ctx, f)
	if err != nil {
		return nil, storageErr("list activity", err)
	}
	return rows, nil
}
