package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию игрового процесса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"Europe/Amsterdam"`
	Port   int    `envconfig:"PORT" default:"8080"`

	// PublicBaseURL — база для ссылок контроллера, которые уходят клиентам.
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	GameVersion string `envconfig:"GAME_VERSION" default:"1.0.0"`

	OpenAI struct {
		APIKey         string `envconfig:"OPENAI_API_KEY"`
		BaseURL        string `envconfig:"OPENAI_BASE_URL"`
		Model          string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		TimeoutSeconds int    `envconfig:"OPENAI_TIMEOUT_SECONDS" default:"120"`
	} `envconfig:""`

	// ContentBackend: openai либо simple (детерминированный офлайн-генератор).
	ContentBackend string `envconfig:"CONTENT_BACKEND" default:"openai"`

	Storage struct {
		// Backend: file, postgres либо redis.
		Backend  string `envconfig:"STORAGE_BACKEND" default:"file"`
		FilePath string `envconfig:"STORAGE_FILE_PATH" default:"data/game.json"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr    string `envconfig:"REDIS_ADDR"`
	RedisGameKey string `envconfig:"REDIS_GAME_KEY" default:"feedgame:save"`

	Sync struct {
		LinkTTLSeconds     int `envconfig:"SYNC_LINK_TTL_SECONDS" default:"120"`
		IdleTimeoutSeconds int `envconfig:"SYNC_IDLE_TIMEOUT_SECONDS" default:"300"`
	} `envconfig:""`

	Clock struct {
		// TickMillis — реальный интервал дрейфа фиктивных часов.
		TickMillis int `envconfig:"CLOCK_TICK_MILLIS" default:"1000"`
	} `envconfig:""`

	// RestartCredential защищает эндпоинт перезапуска игры.
	RestartCredential string `envconfig:"RESTART_CREDENTIAL"`

	Seed struct {
		Users      int `envconfig:"SEED_USERS" default:"12"`
		MaxFollows int `envconfig:"SEED_MAX_FOLLOWS" default:"5"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_NOTIFY_CHAT_ID"`
	} `envconfig:""`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
