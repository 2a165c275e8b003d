// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// LogUpdate логирует входящий апдейт: сообщение или callback.
// Записывает: user_id, chat_id, username, текст (первые 50 символов).
func LogUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		m := update.Message
		log.WithFields(log.Fields{
			"user_id":  m.From.ID,
			"chat_id":  m.Chat.ID,
			"username": m.From.UserName,
			"text":     truncate(m.Text, 50),
			"time":     time.Now().Format("15:04:05"),
		}).Debug("Входящее сообщение")

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		fields := log.Fields{
			"user_id":  cq.From.ID,
			"username": cq.From.UserName,
			"data":     truncate(cq.Data, 50),
			"time":     time.Now().Format("15:04:05"),
		}
		if cq.Message != nil {
			fields["chat_id"] = cq.Message.Chat.ID
		}
		log.WithFields(fields).Debug("Входящий callback")
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
