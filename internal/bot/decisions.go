// Package bot — decisions.go исполняет решения гейта: отправка блокирующих
// сообщений, ответы на callback-и, запуск стартового сценария, уведомления.
// Сам гейт транспорта не касается.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/common"
	"subgram-bot/internal/features/gate"
)

// execute выполняет все побочные эффекты решения для inline-пути.
func (b *Bot) execute(ctx context.Context, update tgbotapi.Update, ev gate.InlineEvent, d gate.Decision) {
	if d.AckCallback && update.CallbackQuery != nil {
		b.ackCallback(update.CallbackQuery)
	}
	if d.DeletePrompt && update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		del := tgbotapi.NewDeleteMessage(ev.ChatID, update.CallbackQuery.Message.MessageID)
		if _, err := b.api.Request(del); err != nil {
			// Сообщение могло быть уже удалено — не страшно.
			log.WithError(err).WithField("chat_id", ev.ChatID).Debug("Не удалось удалить промпт")
		}
	}
	if d.Prompt != nil {
		b.sendPrompt(ev.ChatID, d.Prompt)
	}
	if d.RewardNote != nil {
		b.notifyReferrer(d.RewardNote)
	}
	if d.StartFlow {
		b.TriggerStartFlow(ctx, ev.UserID, ev.ChatID, ev.Username)
	}
	if d.NotifyUnsubscribed {
		b.NotifyUnsubscribed(ev.ChatID)
	}
}

// ackCallback отвечает на callback, чтобы у пользователя пропали «часики».
func (b *Bot) ackCallback(cq *tgbotapi.CallbackQuery) {
	text := ""
	if cq.Data == gate.CallbackDone {
		text = "⏳ Проверяем задания..."
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

// sendPrompt отправляет блокирующее сообщение с клавиатурой.
func (b *Bot) sendPrompt(chatID int64, p *gate.Prompt) {
	msg := tgbotapi.NewMessage(chatID, p.Text)
	if markup := promptKeyboard(p); len(markup.InlineKeyboard) > 0 {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Не удалось отправить блокирующее сообщение")
	}
}

// promptKeyboard строит inline-клавиатуру: кнопки-ссылки по одной в ряду,
// чисто callback-овые промпты (пол/возраст) — по две в ряду.
func promptKeyboard(p *gate.Prompt) tgbotapi.InlineKeyboardMarkup {
	callbackOnly := true
	for _, a := range p.Actions {
		if a.URL != "" {
			callbackOnly = false
			break
		}
	}
	perRow := 1
	if callbackOnly && len(p.Actions) > 1 {
		perRow = 2
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, a := range p.Actions {
		var btn tgbotapi.InlineKeyboardButton
		if a.URL != "" {
			btn = tgbotapi.NewInlineKeyboardButtonURL(a.Text, a.URL)
		} else {
			btn = tgbotapi.NewInlineKeyboardButtonData(a.Text, a.Callback)
		}
		row = append(row, btn)
		if len(row) == perRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// TriggerStartFlow запускает стартовый сценарий: приветствие, баланс
// и реферальная ссылка. Вызывается и по команде /start, и решением гейта
// (первая верификация), и webhook-путём.
func (b *Bot) TriggerStartFlow(ctx context.Context, userID, chatID int64, username *string) {
	balance, err := b.users.GetBalance(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось получить баланс для приветствия")
	}

	greeting := "👋 Добро пожаловать!"
	if username != nil && *username != "" {
		greeting = fmt.Sprintf("👋 Добро пожаловать, @%s!", *username)
	}
	text := fmt.Sprintf(
		"%s\n\n💰 Баланс: %s\n🔗 Ваша реферальная ссылка:\nhttps://t.me/%s?start=ref%d",
		greeting, common.FormatBalance(balance), b.api.Self.UserName, userID,
	)
	b.sendMessage(chatID, text)
}

// NotifyUnsubscribed напоминает пользователю подписаться обратно.
func (b *Bot) NotifyUnsubscribed(chatID int64) {
	text := "Мы заметили, что вы отписались от обязательных каналов. " +
		"Подпишитесь снова, чтобы продолжить пользоваться ботом."

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Подписаться", "https://t.me/"+trimAt(b.cfg.ChannelUsername)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Я подписался", gate.CallbackDone),
		),
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Не удалось отправить напоминание об отписке")
	}
}

// notifyReferrer сообщает пригласившему о начисленной награде.
// Вызывается только после подтверждённой записи начисления.
func (b *Bot) notifyReferrer(note *gate.RewardNote) {
	who := fmt.Sprintf("пользователь %d", note.ReferralID)
	if note.ReferralUsername != nil && *note.ReferralUsername != "" {
		who = "@" + *note.ReferralUsername
	}
	text := fmt.Sprintf("🎉 Ваш реферал %s принёс вам +%s!", who, common.FormatBalance(note.Amount))
	b.sendMessage(note.ReferrerID, text)
}

// handleBalance обрабатывает команду /balance.
func (b *Bot) handleBalance(ctx context.Context, chatID, userID int64) {
	balance, err := b.users.GetBalance(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		b.sendMessage(chatID, "❌ Ошибка получения баланса")
		return
	}
	text := fmt.Sprintf(
		"💰 Баланс: %s\n🔗 Приглашайте друзей:\nhttps://t.me/%s?start=ref%d",
		common.FormatBalance(balance), b.api.Self.UserName, userID,
	)
	b.sendMessage(chatID, text)
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func trimAt(channel string) string {
	if len(channel) > 0 && channel[0] == '@' {
		return channel[1:]
	}
	return channel
}
