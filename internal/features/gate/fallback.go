// Package gate — fallback.go: резервная проверка аккаунта.
// Включается только на вердикте «неизвестный аккаунт»: SubGram не смог
// распознать пользователя, и последнее слово остаётся за проверкой членства
// в обязательном канале через Telegram API.
package gate

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// FallbackVerifier — внешняя антифрод-проверка. Реализация может
// отсутствовать (nil): тогда вердикт «неизвестный аккаунт» пропускается как ok.
type FallbackVerifier interface {
	Verify(ctx context.Context, userID int64) (bool, error)
}

// ChatMemberVerifier проверяет членство пользователя в обязательном канале.
type ChatMemberVerifier struct {
	api     *tgbotapi.BotAPI
	channel string // @username канала
}

// NewChatMemberVerifier создаёт проверку членства. api должен быть собран
// с HTTP-клиентом с ограниченным тайм-аутом: на время вызова удерживается
// замок пользователя.
func NewChatMemberVerifier(api *tgbotapi.BotAPI, channel string) *ChatMemberVerifier {
	return &ChatMemberVerifier{api: api, channel: channel}
}

// Verify возвращает true, если пользователь состоит в канале.
// Статусы creator/administrator/member/restricted считаются членством,
// left и kicked — нет.
func (v *ChatMemberVerifier) Verify(_ context.Context, userID int64) (bool, error) {
	member, err := v.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: v.channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, err
	}

	switch member.Status {
	case "left", "kicked":
		return false, nil
	}
	return true, nil
}
