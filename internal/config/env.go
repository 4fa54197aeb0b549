package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	JWTSecret      string
	AllowedOrigins []string

	MaxChunkSize      int
	ChunkOverlap      int
	SearchLimit       int
	RetrievalStrategy string
	VocabularyPath    string
	IngestWorkers     int

	EmbedProvider string
	EmbedModel    string
	EmbedDim      int

	LLMProvider  string
	AIAPIKey     string
	GenModel     string
	OpenAIAPIKey string
	OpenAIModel  string
	LLMTimeout   time.Duration

	AuditDBPath        string
	QueryRatePerMinute int

	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
}

// LoadConfig loads the environment variables (and a .env file when present)
// and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		MaxChunkSize:      getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("CHUNK_OVERLAP", 200),
		SearchLimit:       getEnvInt("SEARCH_LIMIT", 5),
		RetrievalStrategy: strings.ToLower(getEnv("RETRIEVAL_STRATEGY", "keyword")),
		VocabularyPath:    getEnv("VOCABULARY_PATH", ""),
		IngestWorkers:     getEnvInt("INGEST_WORKERS", 2),

		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", "lexical")),
		EmbedModel:    getEnv("EMBED_MODEL", ""),
		EmbedDim:      getEnvInt("EMBED_DIM", 384),

		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		AIAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 30*time.Second),

		AuditDBPath:        getEnv("AUDIT_DB_PATH", "neurodoc_audit.db"),
		QueryRatePerMinute: getEnvInt("QUERY_RATE_PER_MINUTE", 30),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// ArchiveDBEnabled reports whether a Postgres archive is configured.
func (c *Config) ArchiveDBEnabled() bool { return c.DatabaseURL != "" }

// ObjectStoreEnabled reports whether S3 credentials and a bucket are configured.
func (c *Config) ObjectStoreEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback.
// A variable set to the empty string counts as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are seconds
		if n, nerr := strconv.Atoi(v); nerr == nil {
			return time.Duration(n) * time.Second
		}
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
