package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	JWTAccessSecret         string
	JWTRefreshSecret        string
	JWTAccessTTL            time.Duration
	JWTRefreshTTL           time.Duration
	BcryptCost              int
	CORSOrigins             []string
	RateLimitRPM            int
	AuthRateLimitRPM        int
	CleanupEnabled          bool
	CleanupInterval         time.Duration
	LogLevel                string
}

// fileConfig mirrors the optional YAML config file. Env vars take precedence
// over anything set here.
type fileConfig struct {
	Server struct {
		Port              string `yaml:"port"`
		ReadHeaderTimeout string `yaml:"readHeaderTimeout"`
		WriteTimeout      string `yaml:"writeTimeout"`
		IdleTimeout       string `yaml:"idleTimeout"`
		RequestTimeout    string `yaml:"requestTimeout"`
	} `yaml:"server"`
	Database struct {
		URL      string `yaml:"url"`
		MaxConns int    `yaml:"maxConns"`
		MinConns int    `yaml:"minConns"`
	} `yaml:"database"`
	JWT struct {
		AccessSecret  string `yaml:"accessSecret"`
		RefreshSecret string `yaml:"refreshSecret"`
		AccessTTL     string `yaml:"accessExpires"`
		RefreshTTL    string `yaml:"refreshExpires"`
	} `yaml:"jwt"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
	RateLimit struct {
		GeneralRPM int `yaml:"generalRpm"`
		AuthRPM    int `yaml:"authRpm"`
	} `yaml:"rateLimit"`
	Cleanup struct {
		Enabled  *bool  `yaml:"enabled"`
		Interval string `yaml:"interval"`
	} `yaml:"cleanup"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	file, err := loadFile()
	if err != nil {
		return nil, err
	}

	cleanupEnabled := true
	if file.Cleanup.Enabled != nil {
		cleanupEnabled = *file.Cleanup.Enabled
	}

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", orDefault(file.Server.Port, "8080")),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", fileDuration(file.Server.ReadHeaderTimeout, 15*time.Second)),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", fileDuration(file.Server.WriteTimeout, 30*time.Second)),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", fileDuration(file.Server.IdleTimeout, 120*time.Second)),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", fileDuration(file.Server.RequestTimeout, 30*time.Second)),
		DatabaseURL:             getEnv("DATABASE_URL", file.Database.URL),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", orDefaultInt(file.Database.MaxConns, 10))),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", orDefaultInt(file.Database.MinConns, 2))),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", file.JWT.AccessSecret),
		JWTRefreshSecret:        getEnv("JWT_REFRESH_SECRET", file.JWT.RefreshSecret),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", fileDuration(file.JWT.AccessTTL, 15*time.Minute)),
		JWTRefreshTTL:           getDuration("JWT_REFRESH_TTL", fileDuration(file.JWT.RefreshTTL, 168*time.Hour)),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		CORSOrigins:             corsOrigins(file.CORS.Origins),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", orDefaultInt(file.RateLimit.GeneralRPM, 100)),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", orDefaultInt(file.RateLimit.AuthRPM, 10)),
		CleanupEnabled:          getBool("CLEANUP_ENABLED", cleanupEnabled),
		CleanupInterval:         getDuration("CLEANUP_INTERVAL", fileDuration(file.Cleanup.Interval, time.Hour)),
		LogLevel:                getEnv("LOG_LEVEL", orDefault(file.Log.Level, "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTAccessSecret) == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	if strings.TrimSpace(c.JWTRefreshSecret) == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	// Leaking one token class must not compromise the other.
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.JWTAccessTTL <= 0 || c.JWTRefreshTTL <= 0 {
		return fmt.Errorf("JWT TTLs must be positive")
	}

	if c.JWTRefreshTTL <= c.JWTAccessTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.CleanupEnabled && c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive")
	}

	return nil
}

// loadFile reads the optional YAML config file. CONFIG_FILE wins; otherwise
// config.<RUNNING_ENV>.yml is tried before config.yml. A missing file is not
// an error.
func loadFile() (*fileConfig, error) {
	file := &fileConfig{}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		if env := strings.TrimSpace(os.Getenv("RUNNING_ENV")); env != "" {
			candidate := "config." + env + ".yml"
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	if path == "" {
		if _, err := os.Stat("config.yml"); err == nil {
			path = "config.yml"
		}
	}
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return file, nil
}

func corsOrigins(fromFile []string) []string {
	if raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); raw != "" {
		return splitCSV(raw)
	}
	if len(fromFile) > 0 {
		return fromFile
	}
	return []string{"*"}
}

func orDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func orDefaultInt(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func fileDuration(raw string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return v
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
