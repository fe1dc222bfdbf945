package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/configs"
	database "schoolcrm_backend/internals/databases"
	"schoolcrm_backend/internals/directory"
	"schoolcrm_backend/internals/features/tasks/notify"
	"schoolcrm_backend/internals/features/tasks/storage"
	taskService "schoolcrm_backend/internals/features/tasks/service"
	authService "schoolcrm_backend/internals/features/users/auth/service"
)

// application holds the wired collaborators shared by every command.
type application struct {
	cfg   configs.Config
	db    *gorm.DB
	redis *redis.Client
	dir   directory.Directory
	auth  *authService.AuthService
	tasks *taskService.TaskService
}

func bootstrap(cfg configs.Config) (*application, error) {
	// 🔌 DB connect + pool + schema
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	database.TunePool(db, cfg.Database.Driver)
	if err := database.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	database.WarmUpQueries(db)

	rdb := configs.ConnectRedis(cfg.RedisAddr)
	dir := directory.NewGormDirectory(db)

	var ext authService.ExternalVerifier
	if cfg.ExternalAuth.URL != "" {
		ext = authService.NewHTTPDirectoryClient(cfg.ExternalAuth.URL, cfg.ExternalAuth.Timeout)
	} else {
		log.Println("[AUTH] LDAP_AUTH_URL is not set, only local accounts can log in")
	}
	authn := authService.NewAuthenticator(dir, ext, cfg.ExternalAuth)
	tokens := authService.NewTokenService(cfg.JWTSecret, cfg.JWTTTL, db, rdb)

	files, err := storage.NewFileStore(cfg.Storage, cfg.DataDir)
	if err != nil {
		database.Close(db)
		return nil, fmt.Errorf("file store: %w", err)
	}
	trigger := notify.NewTrigger(notify.NewNotifier(cfg.Notification), cfg.Notification.Channels, cfg.Notification.Timeout)
	tasks := taskService.NewTaskService(
		dir,
		files,
		storage.NewMetadataMirror(cfg.DataDir),
		trigger,
		taskService.NewActivityRecorder(cfg.DataDir),
	)

	return &application{
		cfg:   cfg,
		db:    db,
		redis: rdb,
		dir:   dir,
		auth:  authService.NewAuthService(authn, tokens),
		tasks: tasks,
	}, nil
}

// bootstrapUsers creates the USER_n_* local accounts that are missing.
func (a *application) bootstrapUsers(ctx context.Context) error {
	if len(a.cfg.BootstrapUsers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := a.auth.Auth.BootstrapLocalUsers(ctx, a.cfg.BootstrapUsers)
	if err != nil {
		return err
	}
	log.Printf("[AUTH] bootstrap: %d new local user(s)", n)
	return nil
}

func (a *application) close() {
	a.tasks.Notify.Wait()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	database.Close(a.db)
}
