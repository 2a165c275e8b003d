package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"subgram-bot/internal/config"
	"subgram-bot/internal/features/gate"
)

type mockGate struct {
	mock.Mock
}

func (m *mockGate) HandleWebhookEvent(ctx context.Context, userID int64, status string, username *string) (gate.Decision, error) {
	args := m.Called(ctx, userID, status, username)
	return args.Get(0).(gate.Decision), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) TriggerStartFlow(ctx context.Context, userID, chatID int64, username *string) {
	m.Called(ctx, userID, chatID, username)
}

func (m *mockNotifier) NotifyUnsubscribed(chatID int64) {
	m.Called(chatID)
}

func testConfig() *config.Config {
	return &config.Config{
		SubgramAPIKey:  "secret-key",
		WebhookPort:    50000,
		SubgramTimeout: 10 * time.Second,
	}
}

func post(t *testing.T, srv *Server, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/subgram_webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Api-Key", apiKey)
	}
	w := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestWebhook_ValidBatch(t *testing.T) {
	g := &mockGate{}
	n := &mockNotifier{}
	srv := New(testConfig(), g, n)

	name := "vasya"
	g.On("HandleWebhookEvent", mock.Anything, int64(1), "subscribed", &name).
		Return(gate.Decision{StartFlow: true}, nil)
	g.On("HandleWebhookEvent", mock.Anything, int64(2), "unsubscribed", (*string)(nil)).
		Return(gate.Decision{NotifyUnsubscribed: true}, nil)
	n.On("TriggerStartFlow", mock.Anything, int64(1), int64(1), &name).Return()
	n.On("NotifyUnsubscribed", int64(2)).Return()

	w := post(t, srv, "secret-key", `{"webhooks":[
		{"user_id":1,"status":"subscribed","username":"vasya"},
		{"user_id":2,"status":"unsubscribed"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true}`, w.Body.String())
	g.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestWebhook_BadAPIKey(t *testing.T) {
	g := &mockGate{}
	n := &mockNotifier{}
	srv := New(testConfig(), g, n)

	w := post(t, srv, "wrong-key", `{"webhooks":[{"user_id":1,"status":"subscribed"}]}`)

	// Ответ всегда успешный, но события не обрабатываются.
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true}`, w.Body.String())
	g.AssertNotCalled(t, "HandleWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhook_MissingAPIKey(t *testing.T) {
	g := &mockGate{}
	srv := New(testConfig(), g, &mockNotifier{})

	w := post(t, srv, "", `{"webhooks":[{"user_id":1,"status":"subscribed"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	g.AssertNotCalled(t, "HandleWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhook_MalformedJSON(t *testing.T) {
	g := &mockGate{}
	srv := New(testConfig(), g, &mockNotifier{})

	w := post(t, srv, "secret-key", `{"webhooks": [broken`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true}`, w.Body.String())
	g.AssertNotCalled(t, "HandleWebhookEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhook_EventWithoutUserIDSkipped(t *testing.T) {
	g := &mockGate{}
	n := &mockNotifier{}
	srv := New(testConfig(), g, n)

	g.On("HandleWebhookEvent", mock.Anything, int64(5), "notgetted", (*string)(nil)).
		Return(gate.Decision{StartFlow: true}, nil)
	n.On("TriggerStartFlow", mock.Anything, int64(5), int64(5), (*string)(nil)).Return()

	w := post(t, srv, "secret-key", `{"webhooks":[
		{"status":"subscribed"},
		{"user_id":5,"status":"notgetted"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code)
	g.AssertNumberOfCalls(t, "HandleWebhookEvent", 1)
	g.AssertExpectations(t)
}

func TestWebhook_GateErrorStillRespondsOK(t *testing.T) {
	g := &mockGate{}
	n := &mockNotifier{}
	srv := New(testConfig(), g, n)

	g.On("HandleWebhookEvent", mock.Anything, int64(1), "subscribed", (*string)(nil)).
		Return(gate.Decision{}, assert.AnError)

	w := post(t, srv, "secret-key", `{"webhooks":[{"user_id":1,"status":"subscribed"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":true}`, w.Body.String())
	n.AssertNotCalled(t, "TriggerStartFlow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	n.AssertNotCalled(t, "NotifyUnsubscribed", mock.Anything)
}
