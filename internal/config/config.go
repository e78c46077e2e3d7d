package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// SupportedLanguages - языки, для которых разрешена генерация историй.
var SupportedLanguages = []string{"en", "es", "fr", "de", "zh", "ja"}

// Политики обработки страниц при повторной генерации истории.
const (
	PageRegenerationAppend  = "append"
	PageRegenerationReplace = "replace"
)

// secretsDir is where docker secrets are mounted. Variable for tests.
var secretsDir = "/run/secrets"

// Config holds the application configuration.
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"debug"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`
	ServerPort string `envconfig:"SERVER_PORT" default:"8000"`
	APIPrefix  string `envconfig:"API_PREFIX" default:"/api/v1"`
	AppVersion string `envconfig:"APP_VERSION" default:"1.0.0"`

	// Database
	DBHost           string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort           string        `envconfig:"DB_PORT" default:"5432"`
	DBUser           string        `envconfig:"DB_USER" default:"postgres"`
	DBName           string        `envconfig:"DB_NAME" default:"aitale"`
	DBSSLMode        string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConnections int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout    time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Redis (токены)
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Необязательный секрет
	RedisPassword string

	// JWT
	JWTSecret       string
	PasswordPepper  string
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"60m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	UserCacheTTL    time.Duration `envconfig:"USER_CACHE_TTL" default:"30s"`

	// Лимит запросов к /auth с одного IP. 0 отключает лимит.
	AuthRateLimit  uint          `envconfig:"AUTH_RATE_LIMIT" default:"10"`
	AuthRateWindow time.Duration `envconfig:"AUTH_RATE_WINDOW" default:"1m"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// AI (text)
	AIClientType   string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL      string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AITimeout      time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	StoryGenModel  string        `envconfig:"STORY_GEN_MODEL" default:"gpt-4-turbo"`
	MaxStoryLength int           `envconfig:"MAX_STORY_LENGTH" default:"5000"`
	AIAPIKey       string

	// AI (images)
	ImageGenModel          string  `envconfig:"IMAGE_GEN_MODEL" default:"dall-e-3"`
	ImageSize              string  `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	ImageQuality           string  `envconfig:"IMAGE_QUALITY" default:"standard"`
	ImagePromptConcurrency int     `envconfig:"IMAGE_PROMPT_CONCURRENCY" default:"1"`
	AIRequestsPerSecond    float64 `envconfig:"AI_REQUESTS_PER_SECOND" default:"0"`

	// Blob storage (GCS). Пустой бакет = хранилище не настроено.
	GCSBucket          string `envconfig:"GCS_BUCKET"`
	GCSCDNDomain       string `envconfig:"GCS_CDN_DOMAIN"`
	GCSCredentialsFile string `envconfig:"GCS_CREDENTIALS_FILE"`

	// Background tasks
	MaxBackgroundTasks     int           `envconfig:"MAX_BACKGROUND_TASKS" default:"10"`
	TaskCleanupInterval    time.Duration `envconfig:"TASK_CLEANUP_INTERVAL" default:"10m"`
	PageRegenerationPolicy string        `envconfig:"PAGE_REGENERATION_POLICY" default:"append"`
}

// GetAllowedOrigins splits the CORSAllowedOrigins string into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// BlobStorageEnabled reports whether generated images are copied to GCS.
func (c *Config) BlobStorageEnabled() bool {
	return c.GCSBucket != ""
}

// Validate checks values that envconfig cannot check by itself.
func (c *Config) Validate() error {
	switch c.PageRegenerationPolicy {
	case PageRegenerationAppend, PageRegenerationReplace:
	default:
		return fmt.Errorf("invalid PAGE_REGENERATION_POLICY %q: expected %q or %q",
			c.PageRegenerationPolicy, PageRegenerationAppend, PageRegenerationReplace)
	}
	if c.MaxStoryLength <= 0 {
		return errors.New("MAX_STORY_LENGTH must be positive")
	}
	if c.ImagePromptConcurrency <= 0 {
		c.ImagePromptConcurrency = 1
	}
	if c.JWTSecret == "" {
		return errors.New("jwt secret is not configured (secret file jwt_secret or env JWT_SECRET)")
	}
	return nil
}

// IsSupportedLanguage reports whether lang is one of SupportedLanguages.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig(envFilePath string) (*Config, error) {
	if _, err := os.Stat(envFilePath); err == nil {
		if err = godotenv.Load(envFilePath); err != nil {
			log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
		} else {
			log.Printf("Loaded configuration from %s", envFilePath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
	}

	var cfg Config
	// Загружаем НЕсекретные переменные из окружения
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	cfg.DBPassword = readSecretOrEnv("db_password", "DB_PASSWORD")
	cfg.RedisPassword = readSecretOrEnv("redis_password", "REDIS_PASSWORD")
	cfg.JWTSecret = readSecretOrEnv("jwt_secret", "JWT_SECRET")
	cfg.PasswordPepper = readSecretOrEnv("password_pepper", "PASSWORD_PEPPER")
	cfg.AIAPIKey = readSecretOrEnv("openai_api_key", "OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Println("Configuration loaded successfully")
	return &cfg, nil
}

// ReadSecret reads a docker secret from /run/secrets/{name}.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("%s/%s", secretsDir, secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// readSecretOrEnv prefers the secret file and falls back to the env variable.
func readSecretOrEnv(secretName, envName string) string {
	if v, err := ReadSecret(secretName); err == nil {
		return v
	}
	return os.Getenv(envName)
}
