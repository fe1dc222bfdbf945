// file: internals/route/index.go
package routes

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/configs"
	"schoolcrm_backend/internals/constants"
	"schoolcrm_backend/internals/directory"
	taskController "schoolcrm_backend/internals/features/tasks/controller"
	taskRoute "schoolcrm_backend/internals/features/tasks/route"
	taskService "schoolcrm_backend/internals/features/tasks/service"
	authController "schoolcrm_backend/internals/features/users/auth/controller"
	authRoute "schoolcrm_backend/internals/features/users/auth/route"
	authService "schoolcrm_backend/internals/features/users/auth/service"
	usersController "schoolcrm_backend/internals/features/users/controller"
	usersRoute "schoolcrm_backend/internals/features/users/route"
	rateLimiter "schoolcrm_backend/internals/middlewares"
	authMiddleware "schoolcrm_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	Config configs.Config
	DB     *gorm.DB
	Dir    directory.Directory
	Auth   *authService.AuthService
	Tasks  *taskService.TaskService
}

func SetupRoutes(app *fiber.App, d Deps) {
	startTime = time.Now()

	log.Println("[INFO] Setting up BaseRoutes...")
	BaseRoutes(app, d.DB, d.Config.Env)

	api := app.Group("/api", rateLimiter.GlobalRateLimiter())
	requireAuth := authMiddleware.AuthMiddleware(d.Auth.Tokens, d.Auth.Auth)

	// ===================== AUTH =====================
	log.Println("[INFO] Setting up AuthRoutes...")
	authRoute.AuthRoutes(api, authController.NewAuthController(d.Auth, d.Config.IsProduction()), requireAuth)

	// ===================== PRIVATE =====================
	private := api.Group("",
		requireAuth,
		authMiddleware.OnlyRoles("Forbidden: unknown role", constants.AllRoles...),
	)

	log.Println("[INFO] Mounting Users routes...")
	usersRoute.UsersRoutes(private, usersController.NewUsersController(d.Dir))

	log.Println("[INFO] Mounting Task routes...")
	taskRoute.TaskRoutes(private, taskController.NewTaskController(d.Tasks, d.Config.Storage))
}
