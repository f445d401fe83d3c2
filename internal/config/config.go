package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store driver names accepted in STORE_DRIVER.
const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

type Config struct {
	Env  string
	Port int

	// JWTSecret signs bearer tokens. Load fails hard when it is absent
	// because every protected route would reject every request.
	JWTSecret string

	StoreDriver string
	DBURL       string

	FirestoreProjectID       string
	FirestoreCredentialsFile string

	OTLPEndpoint       string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
}

// Load reads configuration from the environment. A .env file is picked
// up when present so local runs match the deployed process.
func Load() (Config, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_TOKEN_KEY")
	if secret == "" {
		return Config{}, fmt.Errorf("JWT_TOKEN_KEY must be set")
	}

	cfg := Config{
		Env:                      getEnv("APP_ENV", "dev"),
		Port:                     getEnvInt("PORT", 8080),
		JWTSecret:                secret,
		StoreDriver:              getEnv("STORE_DRIVER", DriverMemory),
		DBURL:                    buildDBURL(),
		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", "./service-account.json"),
		OTLPEndpoint:             os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CORSAllowedOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxBodyBytes:             int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
	}

	switch cfg.StoreDriver {
	case DriverFirestore, DriverPostgres, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.StoreDriver == DriverFirestore && cfg.FirestoreProjectID == "" {
		return Config{}, fmt.Errorf("FIRESTORE_PROJECT_ID must be set for the firestore driver")
	}

	return cfg, nil
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "builderhub")
	pass := getEnv("DB_PASSWORD", "builderhub")
	name := getEnv("DB_NAME", "builderhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a single store or hash operation.
func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}

	return fallback
}
