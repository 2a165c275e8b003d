// Package users управляет записями пользователей бота: создание, флаг
// верификации, пригласивший, баланс. models.go описывает структуры данных
// для работы с таблицей users.
package users

import "time"

// User представляет пользователя бота в базе данных.
// Запись создаётся лениво: при первом событии от пользователя
// (сообщение, callback или webhook от SubGram).
type User struct {
	ID         int64     `db:"id"`          // Автоинкрементный ID записи в БД
	TelegramID int64     `db:"telegram_id"` // Telegram user ID (уникальный)
	Username   *string   `db:"username"`    // @username (может быть nil)
	ReferredBy *int64    `db:"referred_by"` // Кто пригласил; записывается один раз и навсегда
	Verified   bool      `db:"verified"`    // Прошёл ли проверку SubGram
	Balance    int64     `db:"balance"`     // Счётчик баллов
	CreatedAt  time.Time `db:"created_at"`  // Когда запись создана
	UpdatedAt  time.Time `db:"updated_at"`  // Последнее обновление записи
}

// RewardGrant — разовая награда пригласившему за сигнал «неизвестный аккаунт».
// grant_key — идемпотентный ключ конкретного ответа оракула: повторная
// обработка того же ответа не даёт второй записи.
type RewardGrant struct {
	GrantKey   string    `db:"grant_key"`
	ReferrerID int64     `db:"referrer_id"`
	ReferralID int64     `db:"referral_id"`
	Amount     int64     `db:"amount"`
	CreatedAt  time.Time `db:"created_at"`
}
