package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"schoolcrm_backend/internals/configs"
	authScheduler "schoolcrm_backend/internals/features/users/auth/scheduler"
	helper "schoolcrm_backend/internals/helpers"
	middlewares "schoolcrm_backend/internals/middlewares"
	routes "schoolcrm_backend/internals/route"
	"schoolcrm_backend/internals/scheduler"
	userSeeds "schoolcrm_backend/internals/seeds/users"
)

const requestTimeout = 60 * time.Second

func main() {
	configs.LoadEnv()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schoolcrm",
		Short:         "School task-management backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(newServeCmd(), newSweepCmd(), newUsersCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one overdue sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configs.Load())
			if err != nil {
				return err
			}
			defer app.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			n, err := app.tasks.Sweep(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("%d assignment(s) marked overdue\n", n)
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage local accounts"}
	users.AddCommand(&cobra.Command{
		Use:   "bootstrap",
		Short: "Create the USER_n_* local accounts that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configs.Load())
			if err != nil {
				return err
			}
			defer app.close()
			return app.bootstrapUsers(cmd.Context())
		},
	})

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create local accounts from a JSON seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(configs.Load())
			if err != nil {
				return err
			}
			defer app.close()
			_, err = userSeeds.SeedUsersFromJSON(cmd.Context(), app.auth.Auth, file)
			return err
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "internals/seeds/users/data_users.json", "path to the seed file")
	users.AddCommand(seed)
	return users
}

func runServe() error {
	cfg := configs.Load()
	app, err := bootstrap(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.bootstrapUsers(context.Background()); err != nil {
		log.Printf("[AUTH] bootstrap failed: %v", err)
	}

	// ⏱ scheduler after DB is ready
	sched := scheduler.New()
	if err := sched.Add("overdue-sweep", cfg.OverdueSweepSchedule, app.tasks.SweepJob()); err != nil {
		return err
	}
	if err := sched.Add("blacklist-cleanup", cfg.BlacklistCleanupSchedule, authScheduler.BlacklistCleanupJob(app.db, cfg.BlacklistTTLDays)); err != nil {
		return err
	}
	sched.Start()

	server := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ErrorHandler:          helper.FiberErrorHandler,
		BodyLimit:             bodyLimit(cfg),
		ReadTimeout:           5 * time.Minute,
		WriteTimeout:          5 * time.Minute,
		IdleTimeout:           90 * time.Second,
	})

	middlewares.SetupMiddlewares(server, cfg.CORSOrigins, requestTimeout)
	routes.SetupRoutes(server, routes.Deps{
		Config: cfg,
		DB:     app.db,
		Dir:    app.dir,
		Auth:   app.auth,
		Tasks:  app.tasks,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Printf("✅ Listening on :%s", cfg.Port)
		errCh <- server.Listen("0.0.0.0:" + cfg.Port)
	}()

	// graceful shutdown: stop intake, drain jobs, flush notifications, close pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Printf("[ERROR] server: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = server.ShutdownWithContext(ctx)
	sched.Stop(ctx)
	log.Println("[INFO] shutdown complete")
	return nil
}

// bodyLimit fits the largest allowed multipart request plus form overhead.
func bodyLimit(cfg configs.Config) int {
	files := int64(cfg.Storage.MaxUploadFiles)
	if files <= 0 {
		files = 1
	}
	limit := cfg.Storage.MaxUploadBytes*files + 1<<20
	const maxInt = int64(^uint(0) >> 1)
	if limit <= 0 || limit > maxInt {
		return int(maxInt)
	}
	return int(limit)
}
