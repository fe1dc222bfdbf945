package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schoolcrm_backend/internals/configs"
	taskModel "schoolcrm_backend/internals/features/tasks/model"
	authModel "schoolcrm_backend/internals/features/users/auth/model"
	userModel "schoolcrm_backend/internals/features/users/model"
)

var DB *gorm.DB

// ConnectDB opens the configured database and stores it in DB.
func ConnectDB(cfg configs.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         configs.NewGormLogger(cfg.Debug),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		log.Println("🔌 Connecting to PostgreSQL...")
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=schoolcrm&options=-c statement_timeout=5000",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
		)
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), gcfg)
	case "sqlite", "":
		log.Printf("🔌 Opening SQLite database %s...", cfg.Path)
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create db dir: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path+"?_foreign_keys=on&_busy_timeout=5000"), gcfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	DB = db
	log.Println("✅ DB connected.")
	return db, nil
}

// TunePool sizes the connection pool. SQLite gets a single writer connection.
func TunePool(db *gorm.DB, driver string) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	if driver == "postgres" {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(60 * time.Second)
		sqlDB.SetConnMaxLifetime(10 * time.Minute)
		return
	}
	sqlDB.SetMaxOpenConns(1)
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel.UserModel{},
		&taskModel.TaskModel{},
		&taskModel.AssignmentModel{},
		&taskModel.TaskFileModel{},
		&taskModel.ActivityLogModel{},
		&authModel.TokenBlacklist{},
	)
}

func WarmUpQueries(db *gorm.DB) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := Ping(db); err != nil {
			log.Printf("warm-up ping err: %v", err)
		}
	}()
}

func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
