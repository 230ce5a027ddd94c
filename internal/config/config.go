package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
	ASR             ASRConfig
	Upload          UploadConfig
	Database        DatabaseConfig
}

type ASRConfig struct {
	Backend          string
	Model            string
	Language         string
	ChunkLengthS     int
	StrideLengthS    int
	ReturnTimestamps string
	Threads          int
	MaxConcurrent    int
	RequestTimeout   time.Duration
	BaseURL          string
	APIKey           string
	Command          string
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// DatabaseConfig selects where transcription history is kept. Driver is one of
// "sqlite", "postgres" or "memory".
type DatabaseConfig struct {
	Driver string
	Path   string
	DSN    string
}

// Load reads .env (when present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPPort:        getEnv("PORT", "9000"),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        getLevel("ASR_LOG_LEVEL", slog.LevelInfo),
		ASR: ASRConfig{
			Backend:          strings.ToLower(getEnv("ASR_BACKEND", "openai")),
			Model:            getEnv("ASR_MODEL", "Xenova/whisper-small"),
			Language:         getEnv("ASR_LANGUAGE", "en"),
			ChunkLengthS:     getInt("ASR_CHUNK_LENGTH_S", 30),
			StrideLengthS:    getInt("ASR_STRIDE_LENGTH_S", 5),
			ReturnTimestamps: getEnv("ASR_RETURN_TIMESTAMPS", "word"),
			Threads:          getInt("ASR_THREADS", 1),
			MaxConcurrent:    getInt("ASR_MAX_CONCURRENT_INFERENCE", 1),
			RequestTimeout:   getDuration("ASR_REQUEST_TIMEOUT", 0),
			BaseURL:          getEnv("ASR_BASE_URL", "http://localhost:8000/v1"),
			APIKey:           os.Getenv("ASR_API_KEY"),
			Command:          getEnv("ASR_COMMAND", "whisperx"),
		},
		Upload: UploadConfig{
			Dir:      getEnv("ASR_UPLOAD_DIR", "uploads"),
			MaxBytes: int64(getInt("ASR_MAX_UPLOAD_BYTES", 100<<20)),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
			Path:   getEnv("DATABASE_PATH", "data/local-asr.db"),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getLevel(key string, fallback slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return fallback
	}
	return level
}
