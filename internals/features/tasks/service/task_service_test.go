package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/constants"
	database "schoolcrm_backend/internals/databases"
	"schoolcrm_backend/internals/directory"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
	"schoolcrm_backend/internals/features/tasks/notify"
	"schoolcrm_backend/internals/features/tasks/storage"
	userModel "schoolcrm_backend/internals/features/users/model"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingNotifier) Send(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

func (r *recordingNotifier) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.sent...)
}

type fixture struct {
	svc      *TaskService
	dir      directory.Directory
	notifier *recordingNotifier
	dataDir  string
	now      time.Time
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database.TunePool(db, "sqlite")

	dataDir := t.TempDir()
	store, err := storage.NewLocalStore(dataDir + "/uploads")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	rec := &recordingNotifier{}
	dir := directory.NewGormDirectory(db)
	svc := NewTaskService(dir, store, storage.NewMetadataMirror(dataDir), notify.NewTrigger(rec, []string{"email"}, time.Second), NewActivityRecorder(dataDir))

	f := &fixture{svc: svc, dir: dir, notifier: rec, dataDir: dataDir, now: time.Now().UTC().Truncate(time.Second)}
	svc.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, login, role string) *userModel.UserModel {
	t.Helper()
	u := &userModel.UserModel{Login: login, Name: strings.ToUpper(login[:1]) + login[1:], Email: login + "@example.com", Role: role, AuthType: constants.AuthTypeLocal}
	if ok, err := f.dir.CreateUserIfNotExists(context.Background(), u); err != nil || !ok {
		t.Fatalf("seed %s: ok=%v err=%v", login, ok, err)
	}
	return u
}

func assignees(users ...*userModel.UserModel) []AssigneeInput {
	out := make([]AssigneeInput, 0, len(users))
	for _, u := range users {
		out = append(out, AssigneeInput{UserID: u.ID})
	}
	return out
}

func statusOf(v *TaskView, userID uuid.UUID) string {
	for _, a := range v.Assignments {
		if a.UserID == userID {
			return a.Status
		}
	}
	return ""
}

func TestLifecycleScenario(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Report", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := statusOf(v, bob.ID); got != taskModel.StatusAssigned {
		t.Fatalf("new assignment status = %q", got)
	}
	if v.OverallStatus != taskModel.StatusAssigned {
		t.Fatalf("overall = %q", v.OverallStatus)
	}

	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusInProgress); err != nil {
		t.Fatalf("bob -> in_progress: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, admin, v.ID, bob.ID, taskModel.StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("creator must not set bob's status, got %v", err)
	}

	past := f.now.Add(-time.Hour)
	if _, err := f.svc.UpdateAssignmentDates(ctx, admin, v.ID, bob.ID, nil, &past); err != nil {
		t.Fatalf("edit dates: %v", err)
	}

	n, err := f.svc.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, err := f.svc.Sweep(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep must be a no-op: n=%d err=%v", n, err)
	}
	stored, err := f.dir.FindAssignment(ctx, v.ID, bob.ID)
	if err != nil || stored.Status != taskModel.StatusOverdue {
		t.Fatalf("stored status after sweep = %v (err %v)", stored, err)
	}

	done, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusCompleted)
	if err != nil {
		t.Fatalf("bob -> completed: %v", err)
	}
	if got := statusOf(done, bob.ID); got != taskModel.StatusCompleted {
		t.Fatalf("final status = %q", got)
	}
	if done.OverallStatus != taskModel.StatusCompleted {
		t.Fatalf("final overall = %q", done.OverallStatus)
	}

	f.svc.Notify.Wait()
	for _, m := range f.notifier.messages() {
		for _, r := range m.Recipients {
			if strings.HasPrefix(m.Subject, "Task status changed") && r == bob.ID {
				t.Fatalf("actor received own status notification")
			}
		}
	}
}

func TestReadTimeOverdueBeforeSweep(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)

	due := f.now.Add(time.Hour)
	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Plan", DueDate: &due, Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	got, err := f.svc.Get(ctx, bob, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if statusOf(got, bob.ID) != taskModel.StatusOverdue || got.OverallStatus != taskModel.StatusOverdue {
		t.Fatalf("expected overdue before sweep, got %q / %q", statusOf(got, bob.ID), got.OverallStatus)
	}

	list, err := f.svc.List(ctx, bob, ListQuery{Status: taskModel.StatusOverdue})
	if err != nil || len(list) != 1 {
		t.Fatalf("overdue filter must match unswept row: n=%d err=%v", len(list), err)
	}
}

func TestWholesaleReassignment(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	u1 := f.user(t, "u1", constants.RoleTeacher)
	u2 := f.user(t, "u2", constants.RoleTeacher)
	u3 := f.user(t, "u3", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Essay", Assignees: assignees(u1, u2)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, u2, v.ID, u2.ID, taskModel.StatusInProgress); err != nil {
		t.Fatalf("u2 progress: %v", err)
	}

	up, err := f.svc.Update(ctx, admin, v.ID, UpdateInput{Title: "Essay v2", Assignees: assignees(u2, u3)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(up.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(up.Assignments))
	}
	for _, a := range up.Assignments {
		if a.UserID != u2.ID && a.UserID != u3.ID {
			t.Fatalf("unexpected assignee %s", a.UserID)
		}
		if a.Status != taskModel.StatusAssigned {
			t.Fatalf("assignment of %s not reset: %s", a.UserID, a.Status)
		}
	}

	kept, err := f.svc.Update(ctx, admin, v.ID, UpdateInput{Title: "Essay v3"})
	if err != nil {
		t.Fatalf("update without assignees: %v", err)
	}
	if len(kept.Assignments) != 2 || kept.Title != "Essay v3" {
		t.Fatalf("nil assignee list must keep assignments: %+v", kept.Assignments)
	}
}

func TestCopyDuplicatesFiles(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)

	src, err := f.svc.Create(ctx, admin, CreateInput{
		Title: "Lesson plan",
		Files: []Upload{{Name: "plan.txt", Reader: strings.NewReader("week 1")}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cp, err := f.svc.Copy(ctx, bob, src.ID, CopyInput{Assignees: assignees(bob)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob cannot read the source, expected ErrNotFound, got %v (%v)", err, cp)
	}

	cp, err = f.svc.Copy(ctx, admin, src.ID, CopyInput{Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if cp.Title != "Copy: Lesson plan" || cp.OriginalTaskID == nil || *cp.OriginalTaskID != src.ID {
		t.Fatalf("unexpected copy: %+v", cp.TaskRow)
	}
	if cp.OriginalTaskTitle == nil || *cp.OriginalTaskTitle != "Lesson plan" {
		t.Fatalf("lineage title missing")
	}

	srcFiles, _ := f.svc.ListFiles(ctx, admin, src.ID)
	cpFiles, _ := f.svc.ListFiles(ctx, admin, cp.ID)
	if len(srcFiles) != 1 || len(cpFiles) != 1 {
		t.Fatalf("file counts: src=%d copy=%d", len(srcFiles), len(cpFiles))
	}
	if cpFiles[0].OriginalName != srcFiles[0].OriginalName || cpFiles[0].Size != srcFiles[0].Size {
		t.Fatalf("copy file differs: %+v vs %+v", cpFiles[0], srcFiles[0])
	}
	if cpFiles[0].StorageKey == srcFiles[0].StorageKey {
		t.Fatalf("copy must not share the storage handle")
	}

	_, rc, err := f.svc.OpenFile(ctx, bob, cpFiles[0].ID)
	if err != nil {
		t.Fatalf("assignee opens copied file: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "week 1" {
		t.Fatalf("copied content = %q", b)
	}

	if _, err := f.svc.AddFiles(ctx, admin, src.ID, []Upload{{Name: "extra.txt", Reader: strings.NewReader("x")}}); err != nil {
		t.Fatalf("add to source: %v", err)
	}
	cpFiles, _ = f.svc.ListFiles(ctx, admin, cp.ID)
	if len(cpFiles) != 1 {
		t.Fatalf("later source files leaked into the copy: %d", len(cpFiles))
	}
}

func TestDeniedLooksLikeMissing(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	stranger := f.user(t, "eve", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Secret"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, denied := f.svc.Get(ctx, stranger, v.ID)
	_, missing := f.svc.Get(ctx, stranger, uuid.New())
	if !errors.Is(denied, ErrNotFound) || !errors.Is(missing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v / %v", denied, missing)
	}
	if denied.Error() != missing.Error() {
		t.Fatalf("messages differ: %q vs %q", denied, missing)
	}
}

func TestClosedTaskHiddenFromAssignee(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	creator := f.user(t, "carl", constants.RoleTeacher)
	bob := f.user(t, "bob", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, creator, CreateInput{Title: "Trip", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	closed, err := f.svc.Close(ctx, creator, v.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed.IsClosed || closed.OverallStatus != taskModel.OverallClosed || closed.ClosedBy == nil || *closed.ClosedBy != creator.ID {
		t.Fatalf("unexpected closed view: %+v", closed.TaskRow)
	}

	if _, err := f.svc.Get(ctx, bob, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assignee must lose access, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assignee must not update a closed task, got %v", err)
	}
	if list, _ := f.svc.List(ctx, bob, ListQuery{Status: "all"}); len(list) != 0 {
		t.Fatalf("closed task listed for assignee")
	}
	if list, _ := f.svc.List(ctx, creator, ListQuery{Status: "closed"}); len(list) != 1 {
		t.Fatalf("creator must see own closed task")
	}

	reopened, err := f.svc.Reopen(ctx, creator, v.ID)
	if err != nil || reopened.IsClosed {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.svc.Get(ctx, bob, v.ID); err != nil {
		t.Fatalf("assignee regains access after reopen: %v", err)
	}
}

func TestReworkOverridesEveryAssignment(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)
	dan := f.user(t, "dan", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Grades", Assignees: assignees(bob, dan)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusCompleted); err != nil {
		t.Fatalf("bob completes: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusInProgress); !errors.Is(err, ErrValidation) {
		t.Fatalf("completed is terminal, got %v", err)
	}

	rw, err := f.svc.Rework(ctx, admin, v.ID, "")
	if err != nil {
		t.Fatalf("rework: %v", err)
	}
	if rw.ReworkComment == nil || *rw.ReworkComment != defaultReworkComment {
		t.Fatalf("rework comment = %v", rw.ReworkComment)
	}
	for _, a := range rw.Assignments {
		if a.Status != taskModel.StatusRework || a.ReworkComment == nil || *a.ReworkComment != defaultReworkComment {
			t.Fatalf("assignment %s not in rework: %+v", a.UserID, a.AssignmentModel)
		}
	}
	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusInProgress); err != nil {
		t.Fatalf("resume after rework: %v", err)
	}
}

func TestDeleteAndRestore(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	creator := f.user(t, "carl", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, creator, CreateInput{Title: "Old"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Delete(ctx, creator, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.Delete(ctx, admin, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting a deleted task must be not-found, got %v", err)
	}
	if _, err := f.svc.Update(ctx, admin, v.ID, UpdateInput{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update of deleted task must be not-found, got %v", err)
	}
	if _, err := f.svc.Restore(ctx, creator, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore is admin only, got %v", err)
	}

	if list, _ := f.svc.List(ctx, admin, ListQuery{Status: "all"}); len(list) != 0 {
		t.Fatalf("deleted task listed without show_deleted")
	}
	if list, _ := f.svc.List(ctx, admin, ListQuery{Status: "all", ShowDeleted: true}); len(list) != 1 || list[0].OverallStatus != taskModel.OverallDeleted {
		t.Fatalf("admin must see deleted task with show_deleted")
	}

	r, err := f.svc.Restore(ctx, admin, v.ID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r.Status != taskModel.TaskActive || r.DeletedAt != nil || r.DeletedBy != nil {
		t.Fatalf("restore did not clear bookkeeping: %+v", r.TaskRow)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)

	_, err := f.svc.Create(ctx, admin, CreateInput{Title: "   "})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" || !errors.Is(err, ErrValidation) {
		t.Fatalf("expected title ValidationError, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("validation must be distinguishable from not-found")
	}

	_, err = f.svc.Create(ctx, admin, CreateInput{Title: "x", Assignees: []AssigneeInput{{UserID: uuid.New()}}})
	if !errors.As(err, &ve) || ve.Field != "assignees" {
		t.Fatalf("expected assignees ValidationError, got %v", err)
	}

	if _, err := f.svc.List(ctx, admin, ListQuery{Status: "bogus"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status filter must be a validation error, got %v", err)
	}
}

func TestNotificationsSkipActorAndEmptySets(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	carl := f.user(t, "carl", constants.RoleTeacher)
	bob := f.user(t, "bob", constants.RoleTeacher)

	if _, err := f.svc.Create(ctx, carl, CreateInput{Title: "Solo"}); err != nil {
		t.Fatalf("create solo: %v", err)
	}
	f.svc.Notify.Wait()
	if n := len(f.notifier.messages()); n != 0 {
		t.Fatalf("actor-only task must not notify, got %d", n)
	}

	v, err := f.svc.Create(ctx, carl, CreateInput{Title: "Shared", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create shared: %v", err)
	}
	f.svc.Notify.Wait()
	if _, err := f.svc.UpdateStatus(ctx, bob, v.ID, bob.ID, taskModel.StatusInProgress); err != nil {
		t.Fatalf("status: %v", err)
	}
	f.svc.Notify.Wait()

	msgs := f.notifier.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(msgs))
	}
	for _, m := range msgs {
		if len(m.Recipients) != 1 {
			t.Fatalf("unexpected recipients %v for %q", m.Recipients, m.Subject)
		}
	}
	if msgs[0].Recipients[0] != bob.ID || msgs[1].Recipients[0] != carl.ID {
		t.Fatalf("created must go to bob and status_changed to carl: %v / %v", msgs[0].Recipients, msgs[1].Recipients)
	}
}

func TestActivityMirrorAndListing(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)
	eve := f.user(t, "eve", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Audit", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	logs, err := f.svc.ListActivity(ctx, bob, 0)
	if err != nil || len(logs) != 2 {
		t.Fatalf("bob sees created+assigned: n=%d err=%v", len(logs), err)
	}
	if logs, _ := f.svc.ListActivity(ctx, eve, 0); len(logs) != 0 {
		t.Fatalf("stranger sees %d log rows", len(logs))
	}

	b, err := os.ReadFile(f.svc.Activity.Path)
	if err != nil {
		t.Fatalf("read activity mirror: %v", err)
	}
	if !strings.Contains(string(b), taskModel.ActionTaskCreated) || !strings.Contains(string(b), v.ID.String()) {
		t.Fatalf("mirror missing entry: %s", b)
	}

	md, err := f.svc.Mirror.Read(v.ID)
	if err != nil || md.Title != "Audit" {
		t.Fatalf("task.json not written: %+v err=%v", md, err)
	}
}

func TestExportXLSX(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)

	if _, err := f.svc.Create(ctx, admin, CreateInput{Title: "Exported", Assignees: assignees(bob)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	views, err := f.svc.List(ctx, admin, ListQuery{Status: "all"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	buf, err := ExportXLSX(views)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()
	title, _ := wb.GetCellValue(exportSheet, "A2")
	assigned, _ := wb.GetCellValue(exportSheet, "D2")
	if title != "Exported" || !strings.Contains(assigned, "Bob (assigned)") {
		t.Fatalf("unexpected row: %q / %q", title, assigned)
	}
}

func TestActivityHiddenFromAssigneeOfClosedTask(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice", constants.RoleTeacher)
	bob := f.user(t, "bob", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, alice, CreateInput{Title: "Secret plan", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if logs, _ := f.svc.ListActivity(ctx, bob, 0); len(logs) == 0 {
		t.Fatalf("assignee must see logs of an open task")
	}
	if _, err := f.svc.Close(ctx, alice, v.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := f.svc.Get(ctx, bob, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("closed task readable by assignee: %v", err)
	}
	logs, err := f.svc.ListActivity(ctx, bob, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	for _, l := range logs {
		if l.TaskID != nil && *l.TaskID == v.ID {
			t.Fatalf("assignee still sees %s of a closed task", l.Action)
		}
	}
	if logs, _ := f.svc.ListActivity(ctx, alice, 0); len(logs) < 3 {
		t.Fatalf("creator must keep the closed task's logs, got %d", len(logs))
	}
}

func TestDeletedTaskStaysReadableToCreator(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	alice := f.user(t, "alice", constants.RoleTeacher)
	bob := f.user(t, "bob", constants.RoleTeacher)
	eve := f.user(t, "eve", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, alice, CreateInput{
		Title:     "Draft",
		Assignees: assignees(bob),
		Files:     []Upload{{Name: "draft.txt", Reader: strings.NewReader("v1")}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.Delete(ctx, alice, v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := f.svc.Get(ctx, alice, v.ID)
	if err != nil || got.OverallStatus != taskModel.OverallDeleted {
		t.Fatalf("creator get deleted task: %v %+v", err, got)
	}
	if _, err := f.svc.Get(ctx, bob, v.ID); err != nil {
		t.Fatalf("assignee get deleted task: %v", err)
	}
	if files, err := f.svc.ListFiles(ctx, alice, v.ID); err != nil || len(files) != 1 {
		t.Fatalf("files of deleted task: n=%d err=%v", len(files), err)
	}
	if _, err := f.svc.Get(ctx, eve, v.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stranger must not read deleted task: %v", err)
	}
	if _, err := f.svc.Update(ctx, alice, v.ID, UpdateInput{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted task must not be editable: %v", err)
	}
	if list, _ := f.svc.List(ctx, alice, ListQuery{Status: "all", ShowDeleted: true}); len(list) != 0 {
		t.Fatalf("show_deleted is admin only, got %d rows", len(list))
	}
	if logs, _ := f.svc.ListActivity(ctx, bob, 0); len(logs) == 0 {
		t.Fatalf("assignee keeps logs of a deleted open task")
	}
}

func TestAssignmentDatesWithoutRowIsNotFound(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)
	bob := f.user(t, "bob", constants.RoleTeacher)
	eve := f.user(t, "eve", constants.RoleTeacher)

	v, err := f.svc.Create(ctx, admin, CreateInput{Title: "Dates", Assignees: assignees(bob)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	due := f.now.Add(48 * time.Hour)
	if _, err := f.svc.UpdateAssignmentDates(ctx, admin, v.ID, eve.ID, nil, &due); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user without assignment: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateAssignmentDates(ctx, admin, v.ID, uuid.New(), nil, &due); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestCopyWithoutAssigneesIsUnassigned(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	admin := f.user(t, "anna", constants.RoleAdmin)

	src, err := f.svc.Create(ctx, admin, CreateInput{Title: "Template"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cp, err := f.svc.Copy(ctx, admin, src.ID, CopyInput{})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(cp.Assignments) != 0 || cp.OverallStatus != taskModel.OverallUnassigned {
		t.Fatalf("copy = %d assignments, overall %q", len(cp.Assignments), cp.OverallStatus)
	}
	f.svc.Notify.Wait()
	if msgs := f.notifier.messages(); len(msgs) != 0 {
		t.Fatalf("expected no notifications, got %d", len(msgs))
	}
}
