package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload" // load .env in dev
)

type Config struct {
	HTTPAddr string

	DBDriver string
	DBDSN    string

	AuthSecret string
	// DevMode keeps the JWT claim-role fallback on when the users table
	// has no row for the subject.
	DevMode bool

	CORSOrigins []string

	// Timed-exam enforcement knobs.
	SubmitGraceSec int           // server-side slack past the deadline
	SweepInterval  time.Duration // overdue-attempt sweep period
	ExamCacheTTL   time.Duration // question bank cache

	ArtifactBasePath string

	// Bootstrap admin, created on startup when missing.
	AdminUser    string
	AdminPass    string
	AdminDisplay string
}

func FromEnv() Config {
	return Config{
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		DBDriver:         envOr("DB_DRIVER", "sqlite"),
		DBDSN:            envOr("DB_DSN", ""),
		AuthSecret:       envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		DevMode:          envBool("DEV_MODE", true),
		CORSOrigins:      csvOr("CORS_ORIGINS", "http://localhost:3000"),
		SubmitGraceSec:   envInt("SUBMIT_GRACE_SEC", 30),
		SweepInterval:    envDuration("SWEEP_INTERVAL", 2*time.Minute),
		ExamCacheTTL:     envDuration("EXAM_CACHE_TTL", 5*time.Minute),
		ArtifactBasePath: envOr("ARTIFACT_BASE_PATH", "./data"),
		AdminUser:        envOr("ADMIN_USER", "admin"),
		AdminPass:        os.Getenv("ADMIN_PASS"),
		AdminDisplay:     envOr("ADMIN_DISPLAY_NAME", "Administrator"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
