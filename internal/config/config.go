package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT issued by the identity provider
	JWTSecret string

	// Vision model (OpenAI-compatible chat completions)
	VisionProvider       string
	VisionAPIURL         string
	VisionAPIKey         string
	VisionModel          string
	VisionFallbackAPIURL string
	VisionFallbackAPIKey string
	VisionFallbackModel  string

	AITimeout time.Duration

	// Verification pipeline
	ImageByteBudget     int
	ConfidenceThreshold int
	CacheTTL            time.Duration

	// Image storage (S3-compatible)
	S3Endpoint        string
	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "litterquest"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		VisionProvider:       getEnv("VISION_PROVIDER", "openai"),
		VisionAPIURL:         getEnv("VISION_API_URL", "https://api.openai.com/v1/chat/completions"),
		VisionAPIKey:         getEnv("VISION_API_KEY", ""),
		VisionModel:          getEnv("VISION_MODEL", "gpt-4o-mini"),
		VisionFallbackAPIURL: getEnv("VISION_FALLBACK_API_URL", "https://api.z.ai/api/paas/v4/chat/completions"),
		VisionFallbackAPIKey: getEnv("VISION_FALLBACK_API_KEY", ""),
		VisionFallbackModel:  getEnv("VISION_FALLBACK_MODEL", "glm-4v-plus"),

		AITimeout: parseDuration(getEnv("AI_TIMEOUT", "60s"), 60*time.Second),

		ImageByteBudget:     parseInt(getEnv("IMAGE_BYTE_BUDGET", "1048576"), 1<<20),
		ConfidenceThreshold: parseInt(getEnv("CONFIDENCE_THRESHOLD", "50"), 50),
		CacheTTL:            parseDuration(getEnv("CACHE_TTL", "5m"), 5*time.Minute),

		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3Region:          getEnv("S3_REGION", "auto"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
