// Package web поднимает HTTP-сервер для push-уведомлений SubGram.
// SubGram ретраит доставку при любом ответе, кроме {"status": true},
// поэтому сервер отвечает успехом всегда — даже на мусорные запросы.
package web

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/config"
	"subgram-bot/internal/features/gate"
)

// Gate принимает события webhook-пути и возвращает решение.
type Gate interface {
	HandleWebhookEvent(ctx context.Context, userID int64, status string, username *string) (gate.Decision, error)
}

// Notifier исполняет побочные эффекты решения (сообщения пользователю).
type Notifier interface {
	TriggerStartFlow(ctx context.Context, userID, chatID int64, username *string)
	NotifyUnsubscribed(chatID int64)
}

// webhookPayload — тело push-уведомления SubGram.
type webhookPayload struct {
	Webhooks []webhookEvent `json:"webhooks"`
}

type webhookEvent struct {
	UserID   int64  `json:"user_id"`
	Status   string `json:"status"`
	Username string `json:"username"`
}

// Server — HTTP-сервер webhook-пути.
type Server struct {
	cfg      *config.Config
	gate     Gate
	notifier Notifier
	srv      *http.Server
}

func New(cfg *config.Config, g Gate, n Notifier) *Server {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, gate: g, notifier: n}

	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/subgram_webhook", s.handleWebhook)

	s.srv = &http.Server{
		Addr:         cfg.WebhookAddr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run блокирует до остановки сервера.
func (s *Server) Run() error {
	log.WithField("addr", s.srv.Addr).Info("Webhook-сервер запущен")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleWebhook обрабатывает batch push-уведомлений.
// Любой исход завершается ответом {"status": true}: неуспешный ответ
// заставит SubGram бесконечно ретраить доставку.
func (s *Server) handleWebhook(c *gin.Context) {
	defer c.JSON(http.StatusOK, gin.H{"status": true})

	key := c.GetHeader("Api-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.SubgramAPIKey)) != 1 {
		log.Warn("Webhook с неверным Api-Key отброшен")
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		log.WithError(err).Warn("Не удалось прочитать тело webhook")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.WithError(err).Warn("Некорректный JSON в webhook")
		return
	}

	for _, ev := range payload.Webhooks {
		s.processEvent(c.Request.Context(), ev)
	}
}

// processEvent прогоняет одно событие через гейт и исполняет решение.
func (s *Server) processEvent(ctx context.Context, ev webhookEvent) {
	if ev.UserID == 0 {
		log.WithField("status", ev.Status).Warn("Webhook-событие без user_id пропущено")
		return
	}

	var username *string
	if ev.Username != "" {
		username = &ev.Username
	}

	log.WithFields(log.Fields{
		"user_id": ev.UserID,
		"status":  ev.Status,
	}).Info("Webhook-событие SubGram")

	d, err := s.gate.HandleWebhookEvent(ctx, ev.UserID, ev.Status, username)
	if err != nil {
		log.WithError(err).WithField("user_id", ev.UserID).Error("Ошибка обработки webhook-события")
		return
	}

	// В push-уведомлениях чат совпадает с личкой пользователя.
	if d.StartFlow {
		s.notifier.TriggerStartFlow(ctx, ev.UserID, ev.UserID, username)
	}
	if d.NotifyUnsubscribed {
		s.notifier.NotifyUnsubscribed(ev.UserID)
	}
}
