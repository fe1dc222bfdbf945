package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const devJWTSecret = "dev-only-jwt-secret-change-me"

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] no .env file found, using system environment")
	} else {
		log.Println("[CONFIG] .env file loaded")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return strings.TrimSpace(value)
}

func getEnvInt(key string, def int) int {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] invalid integer for %s: %q, using %d", key, v, def)
		return def
	}
	return i
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[CONFIG] invalid duration for %s: %q, using %s", key, v, def)
		return def
	}
	return d
}

// ParseBool reads an env var as bool with default.
func ParseBool(key string, def bool) bool {
	if v := GetEnv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("[CONFIG] invalid boolean for %s: %s", key, v)
			return def
		}
		return b
	}
	return def
}

// =======================
// TYPED CONFIG
// =======================

type DatabaseConfig struct {
	Driver   string
	Path     string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	Debug    bool
}

type ExternalAuthConfig struct {
	URL           string
	AllowedGroups []string
	EmailDomain   string
	Timeout       time.Duration
}

type NotificationConfig struct {
	URL      string
	Login    string
	Password string
	Channels []string
	Timeout  time.Duration
}

// Enabled reports whether all notification service settings are present.
func (n NotificationConfig) Enabled() bool {
	return n.URL != "" && n.Login != "" && n.Password != ""
}

type StorageConfig struct {
	Driver         string
	OSSEndpoint    string
	OSSAccessKey   string
	OSSSecretKey   string
	OSSBucket      string
	OSSSecurityTok string
	MaxUploadBytes int64
	MaxUploadFiles int
}

type BootstrapUser struct {
	Login    string
	Password string
	Name     string
	Email    string
	Role     string
}

type Config struct {
	Port        string
	Env         string
	DataDir     string
	CORSOrigins []string

	Database DatabaseConfig

	JWTSecret        string
	JWTTTL           time.Duration
	BlacklistTTLDays int

	ExternalAuth ExternalAuthConfig
	Notification NotificationConfig
	Storage      StorageConfig

	BootstrapUsers []BootstrapUser

	OverdueSweepSchedule     string
	BlacklistCleanupSchedule string

	RedisAddr string
}

// IsProduction reports APP_ENV=production.
func (c Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// Load reads the whole configuration from the environment with defaults.
func Load() Config {
	cfg := Config{
		Port:    GetEnv("PORT", "3000"),
		Env:     GetEnv("APP_ENV", "development"),
		DataDir: GetEnv("DATA_DIR", "data"),
	}
	cfg.CORSOrigins = splitCSV(GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"))

	cfg.Database = DatabaseConfig{
		Driver:   strings.ToLower(GetEnv("DB_DRIVER", "sqlite")),
		Path:     GetEnv("DB_PATH", cfg.DataDir+"/school_crm.db"),
		Host:     GetEnv("DB_HOST", "localhost"),
		Port:     GetEnv("DB_PORT", "5432"),
		User:     GetEnv("DB_USER"),
		Password: GetEnv("DB_PASSWORD"),
		Name:     GetEnv("DB_NAME", "school_crm"),
		SSLMode:  GetEnv("DB_SSLMODE", "disable"),
		Debug:    ParseBool("DB_DEBUG", false),
	}

	cfg.JWTSecret = GetEnv("JWT_SECRET")
	cfg.JWTTTL = time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour
	cfg.BlacklistTTLDays = getEnvInt("TOKEN_BLACKLIST_TTL_DAYS", 7)

	cfg.ExternalAuth = ExternalAuthConfig{
		URL:           GetEnv("LDAP_AUTH_URL"),
		AllowedGroups: ParseAllowList(GetEnv("ALLOWED_GROUPS")),
		EmailDomain:   GetEnv("EXTERNAL_EMAIL_DOMAIN", "school25.ru"),
		Timeout:       getEnvDuration("EXTERNAL_AUTH_TIMEOUT", 5*time.Second),
	}

	cfg.Notification = NotificationConfig{
		URL:      GetEnv("NOTIFICATION_SERVICE_URL"),
		Login:    GetEnv("NOTIFICATION_SERVICE_LOGIN"),
		Password: GetEnv("NOTIFICATION_SERVICE_PASSWORD"),
		Channels: splitCSV(GetEnv("NOTIFICATION_CHANNELS", "email,telegram,vk")),
		Timeout:  getEnvDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
	}

	cfg.Storage = StorageConfig{
		Driver:         strings.ToLower(GetEnv("STORAGE_DRIVER", "local")),
		OSSEndpoint:    GetEnv("ALI_OSS_ENDPOINT"),
		OSSAccessKey:   GetEnv("ALI_OSS_ACCESS_KEY"),
		OSSSecretKey:   GetEnv("ALI_OSS_SECRET_KEY"),
		OSSBucket:      GetEnv("ALI_OSS_BUCKET"),
		OSSSecurityTok: GetEnv("ALI_OSS_SECURITY_TOKEN"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 300)) * 1024 * 1024,
		MaxUploadFiles: getEnvInt("MAX_UPLOAD_FILES", 15),
	}

	for i := 1; i <= 3; i++ {
		prefix := "USER_" + strconv.Itoa(i) + "_"
		u := BootstrapUser{
			Login:    GetEnv(prefix + "LOGIN"),
			Password: GetEnv(prefix + "PASSWORD"),
			Name:     GetEnv(prefix + "NAME"),
			Email:    GetEnv(prefix + "EMAIL"),
			Role:     GetEnv(prefix+"ROLE", "teacher"),
		}
		if u.Login != "" && u.Password != "" {
			cfg.BootstrapUsers = append(cfg.BootstrapUsers, u)
		}
	}

	cfg.OverdueSweepSchedule = GetEnv("OVERDUE_SWEEP_SCHEDULE", "@every 60s")
	cfg.BlacklistCleanupSchedule = GetEnv("BLACKLIST_CLEANUP_SCHEDULE", "@daily")
	cfg.RedisAddr = GetEnv("REDIS_ADDR")

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			log.Fatal("[CONFIG] JWT_SECRET is not set")
		}
		log.Println("[CONFIG] JWT_SECRET is not set, using development secret")
		cfg.JWTSecret = devJWTSecret
	}

	return cfg
}

// ParseAllowList splits a comma-separated group list, trimming whitespace.
// Group names stay case-sensitive.
func ParseAllowList(raw string) []string {
	return splitCSV(raw)
}

func splitCSV(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger(debug bool) gormLogger.Interface {
	level := gormLogger.Warn
	if debug {
		level = gormLogger.Info
	}
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      level,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		log.Printf("[INFO] "+msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		log.Printf("[WARN] "+msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		log.Printf("[ERROR] "+msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error && !isRecordNotFound(err):
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	case l.LogLevel >= gormLogger.Info:
		log.Printf("[QUERY] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}

func isRecordNotFound(err error) bool {
	return err != nil && err.Error() == "record not found"
}
