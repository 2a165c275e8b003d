package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineEvent_ReferrerID(t *testing.T) {
	tests := []struct {
		name   string
		userID int64
		text   string
		want   *int64
	}{
		{name: "Обычная метка", userID: 1, text: "/start ref77", want: int64Ptr(77)},
		{name: "Метка в верхнем регистре", userID: 1, text: "/start REF77", want: int64Ptr(77)},
		{name: "Без метки", userID: 1, text: "/start"},
		{name: "Не /start", userID: 1, text: "привет ref77"},
		{name: "Самоприглашение", userID: 77, text: "/start ref77"},
		{name: "Не число", userID: 1, text: "/start refabc"},
		{name: "Отрицательный ID", userID: 1, text: "/start ref-5"},
		{name: "Нулевой ID", userID: 1, text: "/start ref0"},
		{name: "Чужой параметр", userID: 1, text: "/start promo77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := InlineEvent{UserID: tt.userID, Text: tt.text}
			got := ev.ReferrerID()
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestInlineEvent_IsStartCommand(t *testing.T) {
	assert.True(t, (&InlineEvent{Text: "/start"}).IsStartCommand())
	assert.True(t, (&InlineEvent{Text: "  /start ref5  "}).IsStartCommand())
	assert.False(t, (&InlineEvent{Text: "/balance"}).IsStartCommand())
	assert.False(t, (&InlineEvent{Text: "привет"}).IsStartCommand())
}

func TestInlineEvent_Answers(t *testing.T) {
	ev := InlineEvent{CallbackData: CallbackGenderPrefix + "female"}
	assert.Equal(t, "female", ev.GenderAnswer())
	assert.Empty(t, ev.AgeAnswer())

	ev = InlineEvent{CallbackData: CallbackAgePrefix + "c5"}
	assert.Equal(t, "c5", ev.AgeAnswer())
	assert.Empty(t, ev.GenderAnswer())

	ev = InlineEvent{CallbackData: CallbackDone}
	assert.Empty(t, ev.GenderAnswer())
	assert.Empty(t, ev.AgeAnswer())
}

func int64Ptr(v int64) *int64 { return &v }
