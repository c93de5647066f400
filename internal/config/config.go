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
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Policy    PolicyConfig
	Audit     AuditConfig
	SMTP      SMTPConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	LogLevel           string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	ServiceName        string
}

type DatabaseConfig struct {
	Connection string
}

type AuthConfig struct {
	JWTSecret   string
	// AuditRoles may read and verify the ledger; IngestRoles may load documents.
	AuditRoles  []string
	IngestRoles []string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "jina"
	EmbeddingModel    string
	JinaAPIKey        string
	OllamaBaseURL     string
	LLMProvider       string // "ollama" or "none" for extractive answers only
	LLMModel          string
	LLMTimeout        time.Duration
}

// ModeProfile is the fusion weighting of one retrieval mode.
type ModeProfile struct {
	Alpha    float64
	Discount float64
}

type RetrievalConfig struct {
	Precision        ModeProfile
	Recall           ModeProfile
	DefaultMode      string
	GraphHops        int
	NeighborhoodHops int
	VectorOverfetch  int
	SourceTimeout    time.Duration
	QueryDeadline    time.Duration
	ClassifyWorkers  int
	MetadataCacheTTL time.Duration
	MaxTopK          int
}

type PolicyConfig struct {
	BlockThreshold      float64
	RedactThreshold     float64
	Version             string
	// PrivilegeConfigPath points at the YAML signal ensemble; empty means defaults.
	PrivilegeConfigPath string
	// CounselRoster is appended to the roster of the YAML file.
	CounselRoster       []string
}

type AuditConfig struct {
	Backend         string // memory | file | postgres | redis
	FilePath        string
	RedisKey        string
	// RelayToNats forwards appended events to JetStream.
	RelayToNats     bool
	// AlertRecipients are mailed when a verification finds a broken chain.
	AlertRecipients []string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			LogLevel:           getEnv("LOG_LEVEL", ""),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			ServiceName:        getEnv("OTEL_SERVICE_NAME", "legal-discovery-backend"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			AuditRoles:  getEnvAsList("AUDIT_ROLES", "auditor", "admin"),
			IngestRoles: getEnvAsList("INGEST_ROLES", "admin"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			JinaAPIKey:        getEnv("JINA_API_KEY", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "none"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			LLMTimeout:        getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Retrieval: RetrievalConfig{
			Precision: ModeProfile{
				Alpha:    getEnvAsFloat("FUSION_PRECISION_ALPHA", 0.7),
				Discount: getEnvAsFloat("FUSION_PRECISION_DISCOUNT", 0.5),
			},
			Recall: ModeProfile{
				Alpha:    getEnvAsFloat("FUSION_RECALL_ALPHA", 0.5),
				Discount: getEnvAsFloat("FUSION_RECALL_DISCOUNT", 0.8),
			},
			DefaultMode:      getEnv("RETRIEVAL_DEFAULT_MODE", "precision"),
			GraphHops:        getEnvAsInt("GRAPH_HOPS", 2),
			NeighborhoodHops: getEnvAsInt("PRIVILEGE_NEIGHBORHOOD_HOPS", 2),
			VectorOverfetch:  getEnvAsInt("VECTOR_OVERFETCH", 3),
			SourceTimeout:    getEnvAsDuration("SOURCE_TIMEOUT", 3*time.Second),
			QueryDeadline:    getEnvAsDuration("QUERY_DEADLINE", 15*time.Second),
			ClassifyWorkers:  getEnvAsInt("CLASSIFY_WORKERS", 4),
			MetadataCacheTTL: getEnvAsDuration("METADATA_CACHE_TTL", 10*time.Minute),
			MaxTopK:          getEnvAsInt("MAX_TOP_K", 50),
		},
		Policy: PolicyConfig{
			BlockThreshold:      getEnvAsFloat("POLICY_BLOCK_THRESHOLD", 0.8),
			RedactThreshold:     getEnvAsFloat("POLICY_REDACT_THRESHOLD", 0.5),
			Version:             getEnv("POLICY_VERSION", "2026.1"),
			PrivilegeConfigPath: getEnv("PRIVILEGE_CONFIG_PATH", ""),
			CounselRoster:       getEnvAsList("COUNSEL_ROSTER"),
		},
		Audit: AuditConfig{
			Backend:         getEnv("AUDIT_BACKEND", "file"),
			FilePath:        getEnv("AUDIT_FILE_PATH", "data/audit.jsonl"),
			RedisKey:        getEnv("AUDIT_REDIS_KEY", "discovery:audit:events"),
			RelayToNats:     getEnvAsBool("AUDIT_RELAY_NATS", false),
			AlertRecipients: getEnvAsList("AUDIT_ALERT_RECIPIENTS"),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Discovery Audit"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback ...string) []string {
	if _, exists := os.LookupEnv(key); !exists {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
