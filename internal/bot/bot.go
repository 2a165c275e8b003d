// Package bot содержит транспортный слой Telegram: long polling, прогон
// каждого апдейта через гейт и исполнение принятого решения.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/bot/middleware"
	"subgram-bot/internal/config"
	"subgram-bot/internal/features/gate"
	"subgram-bot/internal/features/users"
)

// Bot — главная структура бота.
type Bot struct {
	api   *tgbotapi.BotAPI
	cfg   *config.Config
	gate  *gate.Service
	users *users.Service

	rateLimiter *middleware.RateLimiter

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(api *tgbotapi.BotAPI, cfg *config.Config, gateService *gate.Service, userService *users.Service) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		gate:        gateService,
		users:       userService,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает события...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление: гейт, исполнение решения,
// затем (если гейт пропустил) — маршрутизация команд.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	ev, ok := inlineEventFrom(update)
	if !ok {
		return
	}

	middleware.LogUpdate(update)

	// Rate limiting — только для сообщений: callback-и гейта должны
	// доходить всегда, иначе пользователь застрянет на промпте.
	if update.Message != nil && !b.rateLimiter.Allow(ev.UserID) {
		log.WithField("user_id", ev.UserID).Debug("rate limited")
		return
	}

	decision, err := b.gate.HandleInlineEvent(ctx, ev)
	if err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Error("Ошибка гейта")
	}
	b.execute(ctx, update, ev, decision)

	if !decision.Proceed {
		return
	}

	if update.Message != nil {
		b.routeCommand(ctx, ev, update.Message.Text)
	}
}

// inlineEventFrom собирает событие гейта из апдейта Telegram.
// Апдейты без пользователя или чата (служебные, из каналов) пропускаются.
func inlineEventFrom(update tgbotapi.Update) (gate.InlineEvent, bool) {
	var ev gate.InlineEvent

	switch {
	case update.Message != nil && update.Message.From != nil:
		m := update.Message
		ev.UserID = m.From.ID
		ev.ChatID = m.Chat.ID
		ev.FirstName = m.From.FirstName
		ev.LanguageCode = m.From.LanguageCode
		ev.Text = m.Text
		if m.From.UserName != "" {
			name := m.From.UserName
			ev.Username = &name
		}
		return ev, true

	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		cq := update.CallbackQuery
		ev.UserID = cq.From.ID
		ev.ChatID = cq.Message.Chat.ID
		ev.FirstName = cq.From.FirstName
		ev.LanguageCode = cq.From.LanguageCode
		ev.CallbackData = cq.Data
		ev.IsGateCallback = strings.HasPrefix(cq.Data, "subgram")
		if cq.From.UserName != "" {
			name := cq.From.UserName
			ev.Username = &name
		}
		return ev, true
	}

	return ev, false
}

// routeCommand маршрутизирует команды, прошедшие гейт.
func (b *Bot) routeCommand(ctx context.Context, ev gate.InlineEvent, text string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	cmd := strings.ToLower(strings.Fields(text)[0])
	// отрезаем @botname в группах
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		b.TriggerStartFlow(ctx, ev.UserID, ev.ChatID, ev.Username)
	case "/balance":
		b.handleBalance(ctx, ev.ChatID, ev.UserID)
	}
}
