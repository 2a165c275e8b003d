package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subgram-bot/internal/features/gate"
)

func TestInlineEventFrom_Message(t *testing.T) {
	update := tgbotapi.Update{
		Message: &tgbotapi.Message{
			From: &tgbotapi.User{ID: 10, UserName: "vasya", FirstName: "Вася", LanguageCode: "ru"},
			Chat: &tgbotapi.Chat{ID: 20},
			Text: "/start ref77",
		},
	}

	ev, ok := inlineEventFrom(update)

	require.True(t, ok)
	assert.Equal(t, int64(10), ev.UserID)
	assert.Equal(t, int64(20), ev.ChatID)
	require.NotNil(t, ev.Username)
	assert.Equal(t, "vasya", *ev.Username)
	assert.Equal(t, "Вася", ev.FirstName)
	assert.Equal(t, "ru", ev.LanguageCode)
	assert.Equal(t, "/start ref77", ev.Text)
	assert.False(t, ev.IsGateCallback)
}

func TestInlineEventFrom_GateCallback(t *testing.T) {
	update := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			From: &tgbotapi.User{ID: 10, FirstName: "Вася"},
			Message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: 20},
			},
			Data: gate.CallbackGenderPrefix + "male",
		},
	}

	ev, ok := inlineEventFrom(update)

	require.True(t, ok)
	assert.True(t, ev.IsGateCallback)
	assert.Equal(t, gate.CallbackGenderPrefix+"male", ev.CallbackData)
	assert.Nil(t, ev.Username)
}

func TestInlineEventFrom_ForeignCallbackNotGate(t *testing.T) {
	update := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			From: &tgbotapi.User{ID: 10},
			Message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: 20},
			},
			Data: "menu_open",
		},
	}

	ev, ok := inlineEventFrom(update)

	require.True(t, ok)
	assert.False(t, ev.IsGateCallback)
}

func TestInlineEventFrom_ServiceUpdateSkipped(t *testing.T) {
	_, ok := inlineEventFrom(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestPromptKeyboard_CallbackOnlyTwoPerRow(t *testing.T) {
	p := &gate.Prompt{
		Text: "Укажите ваш пол:",
		Actions: []gate.PromptAction{
			{Text: "Мужской", Callback: gate.CallbackGenderPrefix + "male"},
			{Text: "Женский", Callback: gate.CallbackGenderPrefix + "female"},
		},
	}

	markup := promptKeyboard(p)

	require.Len(t, markup.InlineKeyboard, 1)
	assert.Len(t, markup.InlineKeyboard[0], 2)
}

func TestPromptKeyboard_MixedOnePerRow(t *testing.T) {
	p := &gate.Prompt{
		Text: "Задания",
		Actions: []gate.PromptAction{
			{Text: "Канал A", URL: "https://t.me/a"},
			{Text: "✅ Я выполнил", Callback: gate.CallbackDone},
		},
	}

	markup := promptKeyboard(p)

	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/a", *markup.InlineKeyboard[0][0].URL)
	require.NotNil(t, markup.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, gate.CallbackDone, *markup.InlineKeyboard[1][0].CallbackData)
}

func TestTrimAt(t *testing.T) {
	assert.Equal(t, "channel", trimAt("@channel"))
	assert.Equal(t, "channel", trimAt("channel"))
	assert.Equal(t, "", trimAt(""))
}
