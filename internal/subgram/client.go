// Package subgram — client.go выполняет HTTP-запросы к API SubGram.
// Чистый ввод-вывод: никакой политики, только запрос, таймаут и разбор
// ответа в Verdict.
package subgram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const getSponsorsPath = "/get-sponsors"

// codeUnknownAccount — код ответа SubGram «аккаунт не распознан».
const codeUnknownAccount = 404

// CheckRequest — параметры одной проверки пользователя.
type CheckRequest struct {
	UserID       int64  `json:"user_id"`
	ChatID       int64  `json:"chat_id"`
	FirstName    string `json:"first_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	// is_premium остаётся пустым: используемая версия Bot API
	// не отдаёт этот флаг пользователя.
	IsPremium *bool `json:"is_premium,omitempty"`
	// Ответы на блокирующие вопросы (пол/возраст), если пользователь
	// уже отвечал.
	Gender string `json:"gender,omitempty"`
	Age    string `json:"age,omitempty"`
	Action string `json:"action,omitempty"`
}

// apiResponse — сырой JSON ответа SubGram.
type apiResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
	Additional struct {
		Sponsors        []Sponsor `json:"sponsors"`
		RegistrationURL string    `json:"registration_url"`
	} `json:"additional"`
}

// Client — HTTP-клиент SubGram. Безопасен для конкурентного использования.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient создаёт клиент с ограниченным таймаутом запроса.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Check отправляет запрос проверки и возвращает вердикт.
// Ошибка возвращается только при транспортном сбое или нечитаемом ответе —
// вызывающий трактует её как «нет ответа», не трогая флаг верификации.
func (c *Client) Check(ctx context.Context, req CheckRequest) (*Verdict, error) {
	if req.Action == "" {
		req.Action = "subscribe"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования запроса: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+getSponsorsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Auth", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к SubGram: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа SubGram: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		log.WithFields(log.Fields{
			"user_id":     req.UserID,
			"http_status": resp.StatusCode,
		}).Error("SubGram вернул не-JSON ответ")
		return nil, fmt.Errorf("ошибка разбора ответа SubGram: %w", err)
	}

	if resp.StatusCode >= 400 {
		log.WithFields(log.Fields{
			"user_id":     req.UserID,
			"http_status": resp.StatusCode,
			"status":      api.Status,
			"code":        api.Code,
		}).Warn("SubGram ответил ошибочным HTTP-статусом")
	}

	v := decodeVerdict(&api)
	log.WithFields(log.Fields{
		"user_id": req.UserID,
		"chat_id": req.ChatID,
		"verdict": v.Kind.String(),
	}).Debug("Ответ SubGram получен")
	return v, nil
}

// decodeVerdict отображает сырой ответ в закрытую систему вердиктов.
// Это единственное место, где разглядываются сырые поля.
func decodeVerdict(api *apiResponse) *Verdict {
	switch api.Status {
	case "ok":
		return &Verdict{Kind: KindOk}
	case "warning":
		return &Verdict{Kind: KindWarning, Sponsors: api.Additional.Sponsors}
	case "gender":
		return &Verdict{Kind: KindGender}
	case "age":
		return &Verdict{Kind: KindAge}
	case "register":
		return &Verdict{
			Kind:            KindRegister,
			Sponsors:        api.Additional.Sponsors,
			RegistrationURL: api.Additional.RegistrationURL,
		}
	case "error":
		if api.Code == codeUnknownAccount {
			return &Verdict{
				Kind:    KindUnknown,
				Message: api.Message,
				Token:   uuid.NewString(),
			}
		}
		return &Verdict{Kind: KindError, Message: api.Message}
	}
	// Незнакомый статус приравниваем к ошибке оракула: блокировать
	// пользователя навсегда из-за нового статуса нельзя.
	return &Verdict{Kind: KindError, Message: api.Message}
}
