// Package gate — prompt.go строит блокирующие сообщения по вердикту оракула.
// Чистые функции без состояния: промпт пересобирается на каждом событии.
package gate

import (
	"fmt"
	"strings"

	"subgram-bot/internal/subgram"
)

// Тексты блокирующих сообщений.
const (
	textRetryLater = "Не удалось проверить выполнение заданий. Повторите попытку позже."
	textOracleErr  = "Ошибка при проверке заданий. Попробуйте еще раз позже."
	textAntiFraud  = "Не удалось подтвердить ваш аккаунт. Подпишитесь на обязательный канал и попробуйте ещё раз."
	textGender     = "Укажите ваш пол:"
	textAge        = "Укажите ваш возраст:"
	textRegister   = "Для продолжения, пожалуйста, пройдите быструю регистрацию."
)

// ageCategories — шесть фиксированных возрастных категорий SubGram.
var ageCategories = []struct {
	Code  string
	Label string
}{
	{"c1", "Младше 10"},
	{"c2", "11-13"},
	{"c3", "14-15"},
	{"c4", "16-17"},
	{"c5", "18-24"},
	{"c6", "25 и старше"},
}

// BuildPrompt строит блокирующее сообщение по вердикту.
// Возвращает nil, если показывать нечего (например, ни одного актуального
// задания): в этом случае гейт пропускает пользователя, а не блокирует
// его пустым сообщением.
func BuildPrompt(v *subgram.Verdict) *Prompt {
	switch v.Kind {
	case subgram.KindWarning:
		return buildSponsorPrompt(v.Sponsors)
	case subgram.KindGender:
		return &Prompt{
			Text: textGender,
			Actions: []PromptAction{
				{Text: "Мужской", Callback: CallbackGenderPrefix + "male"},
				{Text: "Женский", Callback: CallbackGenderPrefix + "female"},
			},
		}
	case subgram.KindAge:
		p := &Prompt{Text: textAge}
		for _, c := range ageCategories {
			p.Actions = append(p.Actions, PromptAction{Text: c.Label, Callback: CallbackAgePrefix + c.Code})
		}
		return p
	case subgram.KindRegister:
		return buildRegisterPrompt(v)
	}
	return nil
}

// buildSponsorPrompt собирает список актуальных заданий: спонсор доступен
// прямо сейчас и ещё не выполнен. Пустой список — нет промпта.
func buildSponsorPrompt(sponsors []subgram.Sponsor) *Prompt {
	actions, names := sponsorActions(sponsors)
	if len(actions) == 0 {
		return nil
	}
	actions = append(actions, PromptAction{Text: "✅ Я выполнил", Callback: CallbackDone})

	var lines []string
	for _, name := range names {
		lines = append(lines, "• "+name)
	}
	text := fmt.Sprintf(
		"Чтобы продолжить, выполните задания:\n%s\n\nПосле выполнения нажмите «✅ Я выполнил».",
		strings.Join(lines, "\n"),
	)
	return &Prompt{Text: text, Actions: actions}
}

// buildRegisterPrompt строит промпт регистрации. Если вместе с регистрацией
// пришли и задания спонсоров — оба списка сливаются в одно сообщение.
func buildRegisterPrompt(v *subgram.Verdict) *Prompt {
	if v.RegistrationURL == "" {
		return nil
	}

	actions, _ := sponsorActions(v.Sponsors)
	actions = append(actions,
		PromptAction{Text: "✅ Пройти регистрацию", URL: v.RegistrationURL},
		PromptAction{Text: "Продолжить", Callback: CallbackDone},
	)
	return &Prompt{Text: textRegister, Actions: actions}
}

func sponsorActions(sponsors []subgram.Sponsor) ([]PromptAction, []string) {
	var actions []PromptAction
	var names []string
	for _, sp := range sponsors {
		if !sp.AvailableNow || sp.Status != "unsubscribed" || sp.Link == "" {
			continue
		}
		buttonText := sp.ButtonText
		if buttonText == "" {
			buttonText = "Подписаться"
		}
		name := sp.ResourceName
		if name == "" {
			name = buttonText
		}
		actions = append(actions, PromptAction{Text: buttonText, URL: sp.Link})
		names = append(names, name)
	}
	return actions, names
}

// retryLaterPrompt — мягкий отказ при транспортном сбое.
func retryLaterPrompt() *Prompt {
	return &Prompt{Text: textRetryLater}
}

// oracleErrorPrompt — ошибка на стороне SubGram, с его сообщением, если есть.
func oracleErrorPrompt(message string) *Prompt {
	if message == "" {
		message = textOracleErr
	}
	return &Prompt{Text: message}
}

// antiFraudPrompt — резервная проверка не подтвердила аккаунт.
func antiFraudPrompt() *Prompt {
	return &Prompt{Text: textAntiFraud}
}
