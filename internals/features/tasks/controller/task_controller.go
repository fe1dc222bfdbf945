package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"schoolcrm_backend/internals/configs"
	"schoolcrm_backend/internals/constants"
	"schoolcrm_backend/internals/features/tasks/dto"
	"schoolcrm_backend/internals/features/tasks/service"
	userModel "schoolcrm_backend/internals/features/users/model"
	helper "schoolcrm_backend/internals/helpers"
)

var validate = validator.New()

const activityLimit = 100

type TaskController struct {
	Svc    *service.TaskService
	Limits helper.UploadLimits
}

func NewTaskController(svc *service.TaskService, storage configs.StorageConfig) *TaskController {
	return &TaskController{
		Svc: svc,
		Limits: helper.UploadLimits{
			MaxFiles:     storage.MaxUploadFiles,
			MaxFileBytes: storage.MaxUploadBytes,
		},
	}
}

/* ===================== Helpers ===================== */

// fail maps service errors onto the JSON envelope.
func fail(c *fiber.Ctx, err error) error {
	var ve *service.ValidationError
	var fe *fiber.Error
	switch {
	case errors.As(err, &ve):
		return helper.FieldError(c, ve.Field, ve.Message)
	case errors.Is(err, service.ErrNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, constants.ErrTaskNotFound)
	case errors.As(err, &fe):
		return helper.JsonError(c, fe.Code, fe.Message)
	default:
		log.Printf("[TASK] %s %s: %v", c.Method(), c.OriginalURL(), err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "Internal Server Error")
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(name)))
	if err != nil {
		// a malformed id cannot name anything the caller may see
		return uuid.Nil, service.ErrNotFound
	}
	return id, nil
}

// openUploads turns multipart parts into service uploads. The returned func
// closes every opened part.
func (ctl *TaskController) openUploads(files []*multipart.FileHeader) ([]service.Upload, func(), error) {
	if err := helper.CheckUploadLimits(files, ctl.Limits); err != nil {
		return nil, func() {}, err
	}
	uploads := make([]service.Upload, 0, len(files))
	opened := make([]io.Closer, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fiber.NewError(fiber.StatusBadRequest, "cannot read uploaded file "+fh.Filename)
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{Name: fh.Filename, Reader: f})
	}
	return uploads, closeAll, nil
}

// parseTaskRequest reads either a multipart form (with files) or JSON.
func (ctl *TaskController) parseTaskRequest(c *fiber.Ctx) (dto.TaskRequest, []service.Upload, func(), error) {
	noop := func() {}
	if helper.IsMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return dto.TaskRequest{}, nil, noop, fiber.NewError(fiber.StatusBadRequest, "Invalid multipart body")
		}
		req, err := dto.ParseTaskForm(form)
		if err != nil {
			return req, nil, noop, err
		}
		uploads, closeAll, err := ctl.openUploads(helper.CollectUploadFiles(form))
		return req, uploads, closeAll, err
	}

	var req dto.TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return req, nil, noop, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Normalize()
	return req, nil, noop, nil
}

func parseListQuery(c *fiber.Ctx) service.ListQuery {
	show := c.Query("show_deleted", c.Query("showDeleted"))
	return service.ListQuery{
		Status:      c.Query("status"),
		Search:      c.Query("search"),
		ShowDeleted: strings.EqualFold(show, "true") || show == "1",
	}
}

/* ===================== Reads ===================== */

// GET /api/tasks
func (ctl *TaskController) List(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	views, err := ctl.Svc.List(c.UserContext(), user, parseListQuery(c))
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonList(c, "ok", views)
}

// GET /api/tasks/export
func (ctl *TaskController) Export(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	views, err := ctl.Svc.List(c.UserContext(), user, parseListQuery(c))
	if err != nil {
		return fail(c, err)
	}
	buf, err := service.ExportXLSX(views)
	if err != nil {
		return fail(c, err)
	}
	name := fmt.Sprintf("tasks_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, constants.ContentTypeFromName(name))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(buf.Bytes())
}

// GET /api/tasks/:id
func (ctl *TaskController) Get(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.Get(c.UserContext(), user, id)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonOK(c, "ok", v)
}

/* ===================== Create / Copy / Update ===================== */

// POST /api/tasks
func (ctl *TaskController) Create(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	req, uploads, closeAll, err := ctl.parseTaskRequest(c)
	defer closeAll()
	if err != nil {
		return fail(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	in, err := req.ToCreateInput(uploads)
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.Create(c.UserContext(), user, in)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonCreated(c, "Task created", v)
}

// POST /api/tasks/:id/copy
func (ctl *TaskController) Copy(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req dto.CopyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	in, err := req.ToInput()
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.Copy(c.UserContext(), user, id, in)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonCreated(c, "Task copied", v)
}

// PUT /api/tasks/:id
func (ctl *TaskController) Update(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	req, uploads, closeAll, err := ctl.parseTaskRequest(c)
	defer closeAll()
	if err != nil {
		return fail(c, err)
	}
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	in, err := req.ToUpdateInput(uploads)
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.Update(c.UserContext(), user, id, in)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonUpdated(c, "Task updated", v)
}

/* ===================== Task-level transitions ===================== */

// POST /api/tasks/:id/rework
func (ctl *TaskController) Rework(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req dto.ReworkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := validate.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}
	v, err := ctl.Svc.Rework(c.UserContext(), user, id, req.Comment)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonUpdated(c, "Task sent for rework", v)
}

// POST /api/tasks/:id/close
func (ctl *TaskController) Close(c *fiber.Ctx) error {
	return ctl.transition(c, ctl.Svc.Close, "Task closed")
}

// POST /api/tasks/:id/reopen
func (ctl *TaskController) Reopen(c *fiber.Ctx) error {
	return ctl.transition(c, ctl.Svc.Reopen, "Task reopened")
}

// POST /api/tasks/:id/restore
func (ctl *TaskController) Restore(c *fiber.Ctx) error {
	return ctl.transition(c, ctl.Svc.Restore, "Task restored")
}

type transitionFunc func(ctx context.Context, actor *userModel.UserModel, id uuid.UUID) (*service.TaskView, error)

func (ctl *TaskController) transition(c *fiber.Ctx, fn transitionFunc, message string) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	v, err := fn(c.UserContext(), user, id)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonUpdated(c, message, v)
}

// DELETE /api/tasks/:id
func (ctl *TaskController) Delete(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := ctl.Svc.Delete(c.UserContext(), user, id); err != nil {
		return fail(c, err)
	}
	return helper.JsonDeleted(c, "Task deleted", fiber.Map{"id": id})
}

/* ===================== Assignment-level transitions ===================== */

// PUT /api/tasks/:id/assignments/:user_id
func (ctl *TaskController) UpdateAssignmentDates(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	userID, err := paramUUID(c, "user_id")
	if err != nil {
		return fail(c, err)
	}
	var req dto.AssignmentDatesRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	start, due, err := req.Parse()
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.UpdateAssignmentDates(c.UserContext(), user, taskID, userID, start, due)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonUpdated(c, "Assignment updated", v)
}

// PUT /api/tasks/:id/status
func (ctl *TaskController) UpdateStatus(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	target, err := req.Target()
	if err != nil {
		return fail(c, err)
	}
	v, err := ctl.Svc.UpdateStatus(c.UserContext(), user, taskID, target, req.Status)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonUpdated(c, "Status updated", v)
}

/* ===================== Files & activity ===================== */

// POST /api/tasks/:id/files
func (ctl *TaskController) AddFiles(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if !helper.IsMultipart(c) {
		return helper.FieldError(c, "files", "multipart/form-data with files is required")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid multipart body")
	}
	uploads, closeAll, err := ctl.openUploads(helper.CollectUploadFiles(form))
	defer closeAll()
	if err != nil {
		return fail(c, err)
	}
	rows, err := ctl.Svc.AddFiles(c.UserContext(), user, taskID, uploads)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonCreated(c, "Files uploaded", rows)
}

// GET /api/tasks/:id/files
func (ctl *TaskController) ListFiles(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	taskID, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := ctl.Svc.ListFiles(c.UserContext(), user, taskID)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonList(c, "ok", rows)
}

// GET /api/files/:id/download
func (ctl *TaskController) DownloadFile(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	fileID, err := uuid.Parse(strings.TrimSpace(c.Params("id")))
	if err != nil {
		return helper.JsonError(c, fiber.StatusNotFound, constants.ErrFileNotFound)
	}
	f, rc, err := ctl.Svc.OpenFile(c.UserContext(), user, fileID)
	if errors.Is(err, service.ErrNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, constants.ErrFileNotFound)
	}
	if err != nil {
		return fail(c, err)
	}

	c.Set(fiber.HeaderContentType, constants.ContentTypeFromName(f.OriginalName))
	c.Set(fiber.HeaderContentDisposition, contentDisposition(f.OriginalName))
	return c.SendStream(rc, int(f.Size))
}

// contentDisposition keeps non-ASCII names intact via RFC 5987.
func contentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, ascii, url.PathEscape(name))
}

// GET /api/activity-logs
func (ctl *TaskController) ListActivity(c *fiber.Ctx) error {
	user, err := helper.CurrentUser(c)
	if err != nil {
		return fail(c, err)
	}
	rows, err := ctl.Svc.ListActivity(c.UserContext(), user, activityLimit)
	if err != nil {
		return fail(c, err)
	}
	return helper.JsonList(c, "ok", rows)
}
