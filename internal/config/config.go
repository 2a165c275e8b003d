// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	// Обязательный канал (@username) — на него ведёт кнопка «Подписаться»,
	// по нему же резервная проверка смотрит членство.
	ChannelUsername string  `envconfig:"CHANNEL_USERNAME" required:"true"`
	AdminIDsRaw     string  `envconfig:"ADMIN_IDS" default:""`
	AdminIDs        []int64 `envconfig:"-"` // заполним вручную

	// --- SubGram ---
	SubgramAPIKey  string        `envconfig:"SUBGRAM_API_KEY" required:"true"`
	SubgramBaseURL string        `envconfig:"SUBGRAM_BASE_URL" default:"https://api.subgram.org"`
	SubgramTimeout time.Duration `envconfig:"SUBGRAM_TIMEOUT" default:"10s"`
	// Резервная проверка членства через Telegram API
	// для вердикта «неизвестный аккаунт».
	FallbackCheckEnabled bool `envconfig:"FALLBACK_CHECK_ENABLED" default:"true"`
	// Тайм-аут одной резервной проверки. Без него зависший вызов
	// Telegram API держал бы замок пользователя бесконечно.
	FallbackTimeout time.Duration `envconfig:"FALLBACK_TIMEOUT" default:"10s"`

	// --- Webhook-сервер ---
	WebhookHost string `envconfig:"WEBHOOK_HOST" default:"0.0.0.0"`
	WebhookPort int    `envconfig:"WEBHOOK_PORT" default:"50000"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"subgram_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Бонусы ---
	// Стартовый баланс новичка.
	StartBonus int64 `envconfig:"START_BONUS" default:"3"`
	// Награда пригласившему за сигнал «неизвестный аккаунт».
	ReferralBonus int64 `envconfig:"REFERRAL_BONUS" default:"1"`

	// --- Ночная сверка подписок ---
	SweepEnabled bool   `envconfig:"SWEEP_ENABLED" default:"true"`
	SweepCron    string `envconfig:"SWEEP_CRON" default:"0 4 * * *"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// WebhookAddr возвращает адрес, на котором слушает webhook-сервер.
func (c *Config) WebhookAddr() string {
	return fmt.Sprintf("%s:%d", c.WebhookHost, c.WebhookPort)
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.ChannelUsername, "@") {
		return fmt.Errorf("CHANNEL_USERNAME должен начинаться с @")
	}
	if c.SubgramTimeout <= 0 {
		return fmt.Errorf("SUBGRAM_TIMEOUT должен быть > 0")
	}
	if c.FallbackCheckEnabled && c.FallbackTimeout <= 0 {
		return fmt.Errorf("FALLBACK_TIMEOUT должен быть > 0")
	}
	if c.SweepEnabled {
		if _, err := cron.ParseStandard(c.SweepCron); err != nil {
			return fmt.Errorf("некорректный SWEEP_CRON %q: %w", c.SweepCron, err)
		}
	}
	if c.WebhookPort <= 0 || c.WebhookPort > 65535 {
		return fmt.Errorf("некорректный WEBHOOK_PORT")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.ReferralBonus <= 0 {
		return fmt.Errorf("REFERRAL_BONUS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
