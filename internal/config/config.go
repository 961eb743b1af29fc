package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	HFToken          string
	HFHubURL         string
	InferenceTimeout time.Duration

	SessionIdleTTL  time.Duration
	SubmitRateLimit int

	// опционально: таблица сбоев
	DatabaseURL string

	// опционально: копии клипов в S3
	S3 S3Config

	// опционально: алерты админу
	TelegramBotToken    string
	TelegramAdminChatID int64
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
}

func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, relying on system environment variables")
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		HFToken:          getEnv("HF_TOKEN", ""),
		HFHubURL:         getEnv("HF_HUB_URL", "https://huggingface.co"),
		InferenceTimeout: getDuration("INFERENCE_TIMEOUT", 3*time.Minute),
		SessionIdleTTL:   getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SubmitRateLimit:  getInt("SUBMIT_RATE_LIMIT", 20),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", ""),
			Secure:    getEnv("S3_SECURE", "true") == "true",
		},
		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: int64(getInt("TELEGRAM_ADMIN_CHAT_ID", 0)),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
