package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolcrm_backend/internals/constants"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
	userModel "schoolcrm_backend/internals/features/users/model"
)

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Transaction(ctx context.Context, fn func(tx Directory) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDirectory{db: tx})
	})
}

/* ===================== Error mapping ===================== */

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

/* ===================== Users ===================== */

func (d *GormDirectory) FindUserByID(ctx context.Context, id uuid.UUID) (*userModel.UserModel, error) {
	var u userModel.UserModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (d *GormDirectory) FindUserByLogin(ctx context.Context, login string) (*userModel.UserModel, error) {
	var u userModel.UserModel
	if err := d.db.WithContext(ctx).Where("login = ?", login).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (d *GormDirectory) FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]userModel.UserModel, error) {
	out := make([]userModel.UserModel, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// CreateUserIfNotExists inserts u unless a user with the same login or email
// exists. It reports whether a row was created.
func (d *GormDirectory) CreateUserIfNotExists(ctx context.Context, u *userModel.UserModel) (bool, error) {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpsertExternalUser inserts or overwrites the directory-managed fields of an
// external user keyed by login, then returns the stored row.
func (d *GormDirectory) UpsertExternalUser(ctx context.Context, u *userModel.UserModel) (*userModel.UserModel, error) {
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "login"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "role", "groups", "description", "last_login", "updated_at",
			}),
		}).
		Create(u).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return d.FindUserByLogin(ctx, u.Login)
}

func (d *GormDirectory) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error {
	res := d.db.WithContext(ctx).Model(&userModel.UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *GormDirectory) ListUsers(ctx context.Context, search string) ([]userModel.UserModel, error) {
	q := d.db.WithContext(ctx).Model(&userModel.UserModel{}).
		Where("role IN ?", constants.AllRoles)
	if strings.TrimSpace(search) != "" {
		p := likePattern(search)
		q = q.Where("(LOWER(login) LIKE ? OR LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", p, p, p)
	}
	var out []userModel.UserModel
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

/* ===================== Tasks ===================== */

func (d *GormDirectory) CreateTask(ctx context.Context, t *taskModel.TaskModel) error {
	return mapErr(d.db.WithContext(ctx).Create(t).Error)
}

func (d *GormDirectory) FindTask(ctx context.Context, id uuid.UUID) (*taskModel.TaskModel, error) {
	var t taskModel.TaskModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (d *GormDirectory) SaveTask(ctx context.Context, t *taskModel.TaskModel) error {
	return mapErr(d.db.WithContext(ctx).Save(t).Error)
}

func (d *GormDirectory) taskRowQuery(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Table("tasks AS t").
		Select(`t.*,
			u.name AS creator_name,
			u.login AS creator_login,
			ot.title AS original_task_title,
			ou.name AS original_creator_name`).
		Joins("LEFT JOIN users u ON u.id = t.created_by").
		Joins("LEFT JOIN tasks ot ON ot.id = t.original_task_id").
		Joins("LEFT JOIN users ou ON ou.id = ot.created_by")
}

func (d *GormDirectory) FindTaskRow(ctx context.Context, id uuid.UUID) (*TaskRow, error) {
	var rows []TaskRow
	if err := d.taskRowQuery(ctx).Where("t.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (d *GormDirectory) ListTaskRows(ctx context.Context, f TaskFilter) ([]TaskRow, error) {
	q := d.taskRowQuery(ctx)

	// Non-admins read what they created, or open tasks they are assigned to.
	if f.VisibleTo != nil {
		q = q.Where(`(t.created_by = ? OR (t.closed_at IS NULL AND EXISTS (
			SELECT 1 FROM task_assignments va WHERE va.task_id = t.id AND va.user_id = ?)))`,
			*f.VisibleTo, *f.VisibleTo)
	}

	if !f.IncludeDeleted {
		q = q.Where("t.status = ?", taskModel.TaskActive)
	}

	switch f.Closed {
	case ClosedExclude:
		q = q.Where("t.closed_at IS NULL")
	case ClosedOnly:
		q = q.Where("t.closed_at IS NOT NULL")
	}

	if len(f.Statuses) > 0 {
		overdue := false
		for _, s := range f.Statuses {
			if s == taskModel.StatusOverdue {
				overdue = true
			}
		}
		if overdue {
			q = q.Where(`EXISTS (SELECT 1 FROM task_assignments fa WHERE fa.task_id = t.id AND
				(fa.status IN ? OR (t.status = ? AND t.closed_at IS NULL AND
				fa.due_date IS NOT NULL AND fa.due_date < ? AND fa.status <> ?)))`,
				f.Statuses, taskModel.TaskActive, f.Now, taskModel.StatusCompleted)
		} else {
			q = q.Where(`EXISTS (SELECT 1 FROM task_assignments fa WHERE fa.task_id = t.id AND fa.status IN ?)`,
				f.Statuses)
		}
	}

	if strings.TrimSpace(f.Search) != "" {
		p := likePattern(f.Search)
		q = q.Where("(LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ?)", p, p)
	}

	var rows []TaskRow
	if err := q.Order("t.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

/* ===================== Assignments ===================== */

func (d *GormDirectory) ListAssignments(ctx context.Context, taskID uuid.UUID) ([]taskModel.AssignmentModel, error) {
	var out []taskModel.AssignmentModel
	if err := d.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (d *GormDirectory) ListAssignmentRows(ctx context.Context, taskIDs []uuid.UUID) ([]AssignmentRow, error) {
	var rows []AssignmentRow
	if len(taskIDs) == 0 {
		return rows, nil
	}
	if err := d.db.WithContext(ctx).
		Table("task_assignments AS ta").
		Select("ta.*, u.name AS user_name, u.login AS user_login").
		Joins("LEFT JOIN users u ON u.id = ta.user_id").
		Where("ta.task_id IN ?", taskIDs).
		Order("ta.created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func (d *GormDirectory) CreateAssignments(ctx context.Context, rows []taskModel.AssignmentModel) error {
	if len(rows) == 0 {
		return nil
	}
	return mapErr(d.db.WithContext(ctx).Create(&rows).Error)
}

func (d *GormDirectory) DeleteAssignments(ctx context.Context, taskID uuid.UUID) error {
	return mapErr(d.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Delete(&taskModel.AssignmentModel{}).Error)
}

func (d *GormDirectory) FindAssignment(ctx context.Context, taskID, userID uuid.UUID) (*taskModel.AssignmentModel, error) {
	var a taskModel.AssignmentModel
	if err := d.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		First(&a).Error; err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (d *GormDirectory) SaveAssignment(ctx context.Context, a *taskModel.AssignmentModel) error {
	return mapErr(d.db.WithContext(ctx).Save(a).Error)
}

func (d *GormDirectory) ReworkAssignments(ctx context.Context, taskID uuid.UUID, comment string) (int64, error) {
	res := d.db.WithContext(ctx).Model(&taskModel.AssignmentModel{}).
		Where("task_id = ?", taskID).
		Updates(map[string]any{
			"status":         taskModel.StatusRework,
			"rework_comment": comment,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, mapErr(res.Error)
}

// ListOverdueCandidates returns assignments whose due date passed and that are
// neither completed nor already overdue, on active open tasks.
func (d *GormDirectory) ListOverdueCandidates(ctx context.Context, now time.Time) ([]taskModel.AssignmentModel, error) {
	var out []taskModel.AssignmentModel
	if err := d.db.WithContext(ctx).
		Table("task_assignments AS ta").
		Select("ta.*").
		Joins("JOIN tasks t ON t.id = ta.task_id").
		Where("ta.due_date IS NOT NULL AND ta.due_date < ?", now).
		Where("ta.status NOT IN ?", []string{taskModel.StatusCompleted, taskModel.StatusOverdue}).
		Where("t.status = ? AND t.closed_at IS NULL", taskModel.TaskActive).
		Scan(&out).Error; err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// MarkOverdue flips one assignment to overdue unless it has meanwhile become
// completed or overdue. It reports whether the row changed.
func (d *GormDirectory) MarkOverdue(ctx context.Context, assignmentID uuid.UUID) (bool, error) {
	res := d.db.WithContext(ctx).Model(&taskModel.AssignmentModel{}).
		Where("id = ?", assignmentID).
		Where("status NOT IN ?", []string{taskModel.StatusCompleted, taskModel.StatusOverdue}).
		Updates(map[string]any{
			"status":     taskModel.StatusOverdue,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

/* ===================== Files ===================== */

func (d *GormDirectory) CreateFile(ctx context.Context, f *taskModel.TaskFileModel) error {
	return mapErr(d.db.WithContext(ctx).Create(f).Error)
}

func (d *GormDirectory) FindFile(ctx context.Context, id uuid.UUID) (*taskModel.TaskFileModel, error) {
	var f taskModel.TaskFileModel
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, mapErr(err)
	}
	return &f, nil
}

func (d *GormDirectory) ListFiles(ctx context.Context, taskID uuid.UUID) ([]taskModel.TaskFileModel, error) {
	var out []taskModel.TaskFileModel
	if err := d.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("uploaded_at ASC").
		Find(&out).Error; err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (d *GormDirectory) ListFileRows(ctx context.Context, taskID uuid.UUID) ([]FileRow, error) {
	var rows []FileRow
	if err := d.db.WithContext(ctx).
		Table("task_files AS f").
		Select("f.*, u.name AS uploader_name").
		Joins("LEFT JOIN users u ON u.id = f.uploaded_by").
		Where("f.task_id = ?", taskID).
		Order("f.uploaded_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

/* ===================== Activity logs ===================== */

func (d *GormDirectory) AppendLog(ctx context.Context, l *taskModel.ActivityLogModel) error {
	return mapErr(d.db.WithContext(ctx).Create(l).Error)
}

func (d *GormDirectory) ListLogRows(ctx context.Context, f LogFilter) ([]LogRow, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q := d.db.WithContext(ctx).
		Table("activity_logs AS l").
		Select("l.*, u.name AS user_name, t.title AS task_title").
		Joins("LEFT JOIN users u ON u.id = l.user_id").
		Joins("LEFT JOIN tasks t ON t.id = l.task_id")
	if f.VisibleTo != nil {
		q = q.Where(`(t.created_by = ? OR (t.closed_at IS NULL AND EXISTS (
			SELECT 1 FROM task_assignments va WHERE va.task_id = l.task_id AND va.user_id = ?)))`,
			*f.VisibleTo, *f.VisibleTo)
	}
	var rows []LogRow
	if err := q.Order("l.created_at DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}
