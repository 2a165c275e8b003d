// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, гейт,
// webhook-сервер и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/bot"
	"subgram-bot/internal/config"
	"subgram-bot/internal/db/postgres"
	"subgram-bot/internal/features/gate"
	"subgram-bot/internal/features/users"
	"subgram-bot/internal/jobs"
	"subgram-bot/internal/subgram"
	"subgram-bot/internal/web"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Web       *web.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории и сервисы ===
	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo, cfg.StartBonus)

	// === 4. Оракул и резервная проверка ===
	oracle := subgram.NewClient(cfg.SubgramAPIKey, cfg.SubgramBaseURL, cfg.SubgramTimeout)

	// У резервной проверки свой клиент с тайм-аутом: общий клиент бота
	// ограничивать нельзя, он держит длинные запросы GetUpdates.
	var fallback gate.FallbackVerifier
	if cfg.FallbackCheckEnabled {
		verifierAPI, err := tgbotapi.NewBotAPIWithClient(
			cfg.TelegramBotToken,
			tgbotapi.APIEndpoint,
			&http.Client{Timeout: cfg.FallbackTimeout},
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания API резервной проверки: %w", err)
		}
		fallback = gate.NewChatMemberVerifier(verifierAPI, cfg.ChannelUsername)
	}

	// === 5. Гейт ===
	gateService := gate.NewService(userService, oracle, fallback, cfg.ReferralBonus, cfg.AdminIDs)

	// === 6. Бот и webhook-сервер ===
	b := bot.New(botAPI, cfg, gateService, userService)
	webServer := web.New(cfg, gateService, b)

	// === 7. Планировщик задач ===
	var scheduler *jobs.Scheduler
	if cfg.SweepEnabled {
		if fallback == nil {
			log.Warn("Сверка подписок включена, но резервная проверка выключена — сверка не запустится")
		} else {
			scheduler = jobs.NewScheduler(userService, fallback, b.NotifyUnsubscribed, cfg.SweepCron)
		}
	}

	return &App{
		Bot:       b,
		Web:       webServer,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []postgres.Migration{
		{Version: 1, SQL: migration001Users},
		{Version: 2, SQL: migration002RewardGrants},
	}
	return postgres.Migrate(ctx, pool, migrations)
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    telegram_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    referred_by BIGINT,
    verified BOOLEAN DEFAULT FALSE,
    balance BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_telegram_id ON users(telegram_id);
CREATE INDEX IF NOT EXISTS idx_users_referred_by ON users(referred_by);
CREATE INDEX IF NOT EXISTS idx_users_verified ON users(verified);
`

var migration002RewardGrants = `
CREATE TABLE IF NOT EXISTS reward_grants (
    grant_key TEXT PRIMARY KEY,
    referrer_id BIGINT NOT NULL,
    referral_id BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reward_grants_referrer ON reward_grants(referrer_id);
`
