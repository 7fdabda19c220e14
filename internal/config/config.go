package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	DatabasePath string

	// LLM provider selection: "openai" (default, any OpenAI-compatible
	// endpoint such as GLM) or "gemini".
	LLMProvider    string
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	EmbeddingModel string
	GeminiAPIKey   string
	GeminiModel    string

	DoctorName             string
	ConsultationFeeCents   int
	MaxMedicalInquiries    int
	DoctorJWTSecret        string
	CORSAllowedOrigins     []string
	ChatCompletionTimeout  time.Duration
	EmbeddingTimeout       time.Duration
	HistoryCacheTTL        time.Duration
	HistoryCacheMaxEntries int

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	DoctorEmail       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		DatabasePath: getEnv("DB_PATH", "data/local.db"),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "glm-4-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "embedding-3"),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		DoctorName:             getEnv("DOCTOR_NAME", "张医生"),
		ConsultationFeeCents:   getEnvAsInt("CONSULTATION_FEE_CENTS", 1999),
		MaxMedicalInquiries:    getEnvAsInt("MAX_MEDICAL_INQUIRIES", 3),
		DoctorJWTSecret:        getEnv("DOCTOR_JWT_SECRET", ""),
		CORSAllowedOrigins:     splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		ChatCompletionTimeout:  getEnvAsDuration("CHAT_COMPLETION_TIMEOUT", 30*time.Second),
		EmbeddingTimeout:       getEnvAsDuration("EMBEDDING_TIMEOUT", 15*time.Second),
		HistoryCacheTTL:        getEnvAsDuration("HISTORY_CACHE_TTL", 24*time.Hour),
		HistoryCacheMaxEntries: getEnvAsInt("HISTORY_CACHE_MAX_ENTRIES", 20),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Intake"),
		DoctorEmail:       getEnv("DOCTOR_EMAIL", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
