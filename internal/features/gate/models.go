// Package gate — ядро бота: решает, пускать ли пользователя к функциям,
// исходя из вердикта SubGram. Обрабатывает оба канала доставки: inline-путь
// (событие из Telegram) и webhook-путь (push от SubGram). models.go
// описывает входные события и решение гейта.
package gate

import (
	"strconv"
	"strings"
)

// Callback-данные, которые рисуют клавиатуры гейта.
const (
	// CallbackDone — кнопка «✅ Я выполнил» / «Продолжить».
	CallbackDone = "subgram-op"
	// CallbackGenderPrefix + male|female — ответ на вопрос о поле.
	CallbackGenderPrefix = "subgram_gender_"
	// CallbackAgePrefix + c1..c6 — ответ на вопрос о возрасте.
	CallbackAgePrefix = "subgram_age_"
)

// Статусы webhook-событий SubGram.
const (
	StatusSubscribed   = "subscribed"
	StatusNotGetted    = "notgetted"
	StatusUnsubscribed = "unsubscribed"
)

// InlineEvent — одно событие inline-пути: сообщение или callback.
type InlineEvent struct {
	UserID       int64
	ChatID       int64
	Username     *string
	FirstName    string
	LanguageCode string

	// Text — текст сообщения; из него извлекается реферальная метка
	// и признак команды /start.
	Text string

	// IsGateCallback — событие порождено клавиатурой самого гейта
	// (кнопка «Я выполнил», ответ на вопрос о поле/возрасте).
	IsGateCallback bool
	// CallbackData — сырые callback-данные (для извлечения ответа).
	CallbackData string
}

// ReferrerID извлекает ID пригласившего из «/start refNNN».
// Метка имеет смысл только на первом контакте; самоприглашение отбрасывается.
func (ev *InlineEvent) ReferrerID() *int64 {
	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, "/start") {
		return nil
	}
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return nil
	}
	arg := strings.ToLower(parts[1])
	if !strings.HasPrefix(arg, "ref") {
		return nil
	}
	id, err := strconv.ParseInt(arg[3:], 10, 64)
	if err != nil || id <= 0 || id == ev.UserID {
		return nil
	}
	return &id
}

// IsStartCommand сообщает, является ли событие командой /start:
// для неё не нужно дополнительно запускать стартовый сценарий.
func (ev *InlineEvent) IsStartCommand() bool {
	return strings.HasPrefix(strings.TrimSpace(ev.Text), "/start")
}

// GenderAnswer возвращает ответ на вопрос о поле, если событие — такой callback.
func (ev *InlineEvent) GenderAnswer() string {
	if strings.HasPrefix(ev.CallbackData, CallbackGenderPrefix) {
		return strings.TrimPrefix(ev.CallbackData, CallbackGenderPrefix)
	}
	return ""
}

// AgeAnswer возвращает ответ на вопрос о возрасте, если событие — такой callback.
func (ev *InlineEvent) AgeAnswer() string {
	if strings.HasPrefix(ev.CallbackData, CallbackAgePrefix) {
		return strings.TrimPrefix(ev.CallbackData, CallbackAgePrefix)
	}
	return ""
}

// PromptAction — одна кнопка блокирующего сообщения.
type PromptAction struct {
	Text     string
	URL      string // открыть внешнюю ссылку (спонсор, регистрация)
	Callback string // callback-данные для повторного входа в гейт
}

// Prompt — блокирующее сообщение: текст плюс кнопки.
// Промпты не персистятся и пересчитываются на каждом событии.
type Prompt struct {
	Text    string
	Actions []PromptAction
}

// RewardNote — уведомление пригласившему об успешно начисленной награде.
// Появляется в решении только после подтверждённой записи в базу.
type RewardNote struct {
	ReferrerID       int64
	ReferralID       int64
	ReferralUsername *string
	Amount           int64
}

// Decision — результат обработки одного события. Побочные эффекты
// исполняет транспортный слой бота.
type Decision struct {
	// Proceed — пропустить событие дальше, к обработчикам бота.
	Proceed bool
	// Prompt — показать блокирующее сообщение (Proceed при этом false).
	Prompt *Prompt
	// StartFlow — запустить стартовый сценарий (первая верификация).
	StartFlow bool
	// NotifyUnsubscribed — напомнить пользователю подписаться обратно.
	NotifyUnsubscribed bool
	// AckCallback/DeletePrompt — ответить на callback гейта и убрать
	// устаревшее блокирующее сообщение.
	AckCallback  bool
	DeletePrompt bool
	// RewardNote — уведомить пригласившего о награде.
	RewardNote *RewardNote
}
