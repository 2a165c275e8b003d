package subgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Check(t *testing.T) {
	tests := []struct {
		name        string
		httpStatus  int
		body        string
		wantKind    Kind
		wantMessage string
	}{
		{
			name:       "Все задания выполнены",
			httpStatus: http.StatusOK,
			body:       `{"status":"ok","code":200}`,
			wantKind:   KindOk,
		},
		{
			name:       "Невыполненные подписки",
			httpStatus: http.StatusOK,
			body: `{"status":"warning","code":200,"additional":{"sponsors":[
				{"link":"https://t.me/a","button_text":"A","resource_name":"Канал A","available_now":true,"status":"unsubscribed"}
			]}}`,
			wantKind: KindWarning,
		},
		{
			name:       "Нужен пол",
			httpStatus: http.StatusOK,
			body:       `{"status":"gender","code":200}`,
			wantKind:   KindGender,
		},
		{
			name:       "Нужен возраст",
			httpStatus: http.StatusOK,
			body:       `{"status":"age","code":200}`,
			wantKind:   KindAge,
		},
		{
			name:       "Требуется регистрация",
			httpStatus: http.StatusOK,
			body:       `{"status":"register","code":200,"additional":{"registration_url":"https://example.com/reg"}}`,
			wantKind:   KindRegister,
		},
		{
			name:        "Неизвестный аккаунт",
			httpStatus:  http.StatusNotFound,
			body:        `{"status":"error","code":404,"message":"Неизвестный аккаунт"}`,
			wantKind:    KindUnknown,
			wantMessage: "Неизвестный аккаунт",
		},
		{
			name:        "Прочая ошибка оракула",
			httpStatus:  http.StatusTooManyRequests,
			body:        `{"status":"error","code":429,"message":"Лимит запросов"}`,
			wantKind:    KindError,
			wantMessage: "Лимит запросов",
		},
		{
			name:       "Незнакомый статус — ошибка, не блокировка навсегда",
			httpStatus: http.StatusOK,
			body:       `{"status":"brand_new_thing","code":200}`,
			wantKind:   KindError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, getSponsorsPath, r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("Auth"))

				raw, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				var req CheckRequest
				require.NoError(t, json.Unmarshal(raw, &req))
				assert.Equal(t, int64(123), req.UserID)
				assert.Equal(t, "subscribe", req.Action)

				w.WriteHeader(tt.httpStatus)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", srv.URL, 5*time.Second)
			v, err := client.Check(context.Background(), CheckRequest{UserID: 123, ChatID: 123})

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, v.Kind)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, v.Message)
			}
			if tt.wantKind == KindUnknown {
				assert.NotEmpty(t, v.Token, "сигнал «неизвестный аккаунт» получает идемпотентный ключ")
			} else {
				assert.Empty(t, v.Token)
			}
		})
	}
}

func TestClient_Check_TokensDifferPerResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":"error","code":404,"message":"Неизвестный аккаунт"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, 5*time.Second)

	first, err := client.Check(context.Background(), CheckRequest{UserID: 1, ChatID: 1})
	require.NoError(t, err)
	second, err := client.Check(context.Background(), CheckRequest{UserID: 1, ChatID: 1})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token, "каждый экземпляр ответа получает свой ключ")
}

func TestClient_Check_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // сервер уже закрыт — соединение откажет

	client := NewClient("test-key", srv.URL, time.Second)
	v, err := client.Check(context.Background(), CheckRequest{UserID: 1, ChatID: 1})

	require.Error(t, err)
	assert.Nil(t, v)
}

func TestClient_Check_NonJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, time.Second)
	v, err := client.Check(context.Background(), CheckRequest{UserID: 1, ChatID: 1})

	require.Error(t, err)
	assert.Nil(t, v)
}

func TestDecodeVerdict_Blocking(t *testing.T) {
	blocking := []Kind{KindWarning, KindGender, KindAge, KindRegister}
	for _, k := range blocking {
		assert.True(t, (&Verdict{Kind: k}).Blocking(), k.String())
	}
	nonBlocking := []Kind{KindOk, KindError, KindUnknown, KindNoResponse}
	for _, k := range nonBlocking {
		assert.False(t, (&Verdict{Kind: k}).Blocking(), k.String())
	}
}
