package route

import (
	"github.com/gofiber/fiber/v2"

	"schoolcrm_backend/internals/features/tasks/controller"
)

// TaskRoutes mounts the task endpoints on an authenticated /api group.
func TaskRoutes(api fiber.Router, ctl *controller.TaskController) {
	tasks := api.Group("/tasks")

	tasks.Get("/", ctl.List)
	tasks.Get("/export", ctl.Export)
	tasks.Post("/", ctl.Create)

	tasks.Get("/:id", ctl.Get)
	tasks.Put("/:id", ctl.Update)
	tasks.Delete("/:id", ctl.Delete)
	tasks.Post("/:id/restore", ctl.Restore)

	tasks.Post("/:id/copy", ctl.Copy)
	tasks.Post("/:id/rework", ctl.Rework)
	tasks.Post("/:id/close", ctl.Close)
	tasks.Post("/:id/reopen", ctl.Reopen)

	tasks.Put("/:id/assignments/:user_id", ctl.UpdateAssignmentDates)
	tasks.Put("/:id/status", ctl.UpdateStatus)

	tasks.Post("/:id/files", ctl.AddFiles)
	tasks.Get("/:id/files", ctl.ListFiles)

	api.Get("/files/:id/download", ctl.DownloadFile)
	api.Get("/activity-logs", ctl.ListActivity)
}
