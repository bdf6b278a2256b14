// Package config loads process settings from config.yaml, .env and the
// environment. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	OxiDB  OxiDBConfig  `mapstructure:"oxidb"`
	Files  FilesConfig  `mapstructure:"files"`
	S3     S3Config     `mapstructure:"s3"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Log    LogConfig    `mapstructure:"log"`
	Wizard WizardConfig `mapstructure:"wizard"`
	Upload UploadConfig `mapstructure:"upload"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type OxiDBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	PoolSize int    `mapstructure:"pool_size"`
}

type FilesConfig struct {
	Driver string `mapstructure:"driver"`
	Bucket string `mapstructure:"bucket"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	GelfAddr string `mapstructure:"gelf_addr"`
}

type WizardConfig struct {
	SessionCache   int           `mapstructure:"session_cache"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// Store and file drivers.
const (
	StoreOxiDB    = "oxidb"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	FilesOxiDB    = "oxidb"
	FilesS3       = "s3"
)

// Load reads .env (if present), then config.yaml from . or ./configs (if
// present), then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("store.driver", StoreOxiDB)
	v.SetDefault("oxidb.host", "127.0.0.1")
	v.SetDefault("oxidb.port", 4444)
	v.SetDefault("oxidb.pool_size", 3)
	v.SetDefault("files.driver", FilesOxiDB)
	v.SetDefault("files.bucket", "intake-documents")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("jwt.secret", "deductly-dev-secret-change-me")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("admin.email", "admin@deductly.local")
	v.SetDefault("admin.password", "admin12345")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("wizard.session_cache", 1024)
	v.SetDefault("wizard.persist_timeout", 10*time.Second)
	v.SetDefault("upload.max_bytes", 12<<20)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("server.addr", "INTAKE_ADDR")
	v.BindEnv("server.shutdown_timeout", "INTAKE_SHUTDOWN_TIMEOUT")
	v.BindEnv("server.cors_origin", "INTAKE_CORS_ORIGIN")

	v.BindEnv("store.driver", "INTAKE_STORE")
	v.BindEnv("store.dsn", "INTAKE_STORE_DSN")

	v.BindEnv("oxidb.host", "OXIDB_HOST")
	v.BindEnv("oxidb.port", "OXIDB_PORT")
	v.BindEnv("oxidb.pool_size", "INTAKE_POOL_SIZE")

	v.BindEnv("files.driver", "INTAKE_FILES")
	v.BindEnv("files.bucket", "INTAKE_FILES_BUCKET")

	v.BindEnv("s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("s3.region", "S3_REGION")
	v.BindEnv("s3.access_key", "S3_ACCESS_KEY")
	v.BindEnv("s3.secret_key", "S3_SECRET_KEY")
	v.BindEnv("s3.use_ssl", "S3_USE_SSL")

	v.BindEnv("jwt.secret", "INTAKE_JWT_SECRET")
	v.BindEnv("jwt.ttl", "INTAKE_JWT_TTL")

	v.BindEnv("admin.email", "INTAKE_ADMIN_EMAIL")
	v.BindEnv("admin.password", "INTAKE_ADMIN_PASS")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("log.gelf_addr", "GELF_ADDR")

	v.BindEnv("wizard.session_cache", "INTAKE_SESSION_CACHE")
	v.BindEnv("wizard.persist_timeout", "INTAKE_PERSIST_TIMEOUT")
	v.BindEnv("upload.max_bytes", "INTAKE_UPLOAD_MAX_BYTES")
}

// Validate rejects unknown drivers and unusable limits.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreOxiDB, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == StorePostgres && c.Store.DSN == "" {
		return errors.New("store.dsn is required for postgres")
	}
	switch c.Files.Driver {
	case FilesOxiDB:
	case FilesS3:
		if c.S3.Endpoint == "" {
			return errors.New("s3.endpoint is required for the s3 file driver")
		}
	default:
		return fmt.Errorf("unknown files driver %q", c.Files.Driver)
	}
	if c.OxiDB.PoolSize < 1 {
		return fmt.Errorf("oxidb.pool_size must be positive, got %d", c.OxiDB.PoolSize)
	}
	if c.Wizard.SessionCache < 1 {
		return fmt.Errorf("wizard.session_cache must be positive, got %d", c.Wizard.SessionCache)
	}
	if c.Upload.MaxBytes < 1 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	return nil
}

// SQLiteDSN returns the sqlite DSN, defaulting to a file in the working
// directory.
func (c *Config) SQLiteDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return "file:intake.db"
}

// UsesOxiDB reports whether any backend needs the OxiDB connection pool.
func (c *Config) UsesOxiDB() bool {
	return c.Store.Driver == StoreOxiDB || c.Files.Driver == FilesOxiDB
}
