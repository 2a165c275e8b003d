package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifierAPI собирает BotAPI поверх тестового сервера с клиентским
// тайм-аутом — так же, как это делает сборка приложения.
func verifierAPI(srvURL string, timeout time.Duration) *tgbotapi.BotAPI {
	api := &tgbotapi.BotAPI{
		Token:  "test-token",
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	api.SetAPIEndpoint(srvURL + "/bot%s/%s")
	return api
}

func TestChatMemberVerifier_Statuses(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"creator", true},
		{"administrator", true},
		{"member", true},
		{"restricted", true},
		{"left", false},
		{"kicked", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"ok":true,"result":{"status":"%s","user":{"id":5}}}`, tt.status)
			}))
			defer srv.Close()

			v := NewChatMemberVerifier(verifierAPI(srv.URL, time.Second), "@channel")
			member, err := v.Verify(context.Background(), 5)

			require.NoError(t, err)
			assert.Equal(t, tt.want, member)
		})
	}
}

func TestChatMemberVerifier_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	defer srv.Close()

	v := NewChatMemberVerifier(verifierAPI(srv.URL, time.Second), "@channel")
	_, err := v.Verify(context.Background(), 5)

	assert.Error(t, err)
}

func TestChatMemberVerifier_BoundedTimeout(t *testing.T) {
	// Зависший Telegram API не должен держать замок пользователя:
	// клиент верификатора обрывает запрос по своему тайм-ауту.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	v := NewChatMemberVerifier(verifierAPI(srv.URL, 150*time.Millisecond), "@channel")

	start := time.Now()
	_, err := v.Verify(context.Background(), 5)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, time.Second, "запрос должен оборваться по тайм-ауту клиента")
}
