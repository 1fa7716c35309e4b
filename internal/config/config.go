package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string // Empty disables JWT verification (dev only)
	CORSOrigins string
	TablePrefix string
	// Document store client
	DocstoreURL   string
	DocstoreToken string
	// Persistence
	PersistMode    string // "remote" or "local"
	LocalStore     string // "sqlite", "redis" or "memory"
	LocalStorePath string
	RedisAddr      string
	// Autosave timings
	AutosaveDebounce time.Duration
	SavedBadge       time.Duration
	// Logging
	LogDir string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:             getEnv("PORT", "8080"),
		Environment:      env,
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWKSURL:          getEnv("JWKS_URL", ""),
		CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:5173"),
		TablePrefix:      tablePrefix,
		DocstoreURL:      getEnv("DOCSTORE_URL", "http://localhost:8080"),
		DocstoreToken:    getEnv("DOCSTORE_TOKEN", ""),
		PersistMode:      getEnv("PERSIST_MODE", "remote"),
		LocalStore:       getEnv("LOCAL_STORE", "sqlite"),
		LocalStorePath:   getEnv("LOCAL_STORE_PATH", defaultLocalStorePath()),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		AutosaveDebounce: getDurationMs("AUTOSAVE_DEBOUNCE_MS", DefaultAutosaveDebounce),
		SavedBadge:       getDurationMs("SAVED_BADGE_MS", DefaultSavedBadge),
		LogDir:           getEnv("LOG_DIR", ""),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

// defaultLocalStorePath places the local store next to the user's config
func defaultLocalStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "formbuilder-local.db"
	}
	return dir + string(os.PathSeparator) + "formbuilder" + string(os.PathSeparator) + "local.db"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationMs reads an integer millisecond value, falling back on parse errors
func getDurationMs(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
