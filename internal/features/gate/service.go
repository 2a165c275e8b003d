// Package gate — service.go реализует алгоритм принятия решения.
// Оба пути (inline и webhook) читают и пишут одну и ту же запись
// пользователя, поэтому обработка сериализуется пошардовым замком
// по user id, а решения выводятся из состояния ДО мутации
// (compare-and-set): повторная доставка того же события — no-op.
package gate

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/common"
	"subgram-bot/internal/features/users"
	"subgram-bot/internal/subgram"
)

// UserStore — атомарные пополевые операции над записью пользователя.
// Кросс-полевых транзакций гейту не нужно: однократность пригласившего
// и начислений обеспечивают check-and-set внутри самих операций.
type UserStore interface {
	Get(ctx context.Context, telegramID int64) (*users.User, error)
	CreateIfAbsent(ctx context.Context, telegramID int64, username *string, referredBy *int64) error
	UpdateUsername(ctx context.Context, telegramID int64, username string) error
	AssignReferrer(ctx context.Context, telegramID, referrerID int64) error
	SetVerified(ctx context.Context, telegramID int64, verified bool) error
	GrantReward(ctx context.Context, grantKey string, referrerID, referralID, amount int64) (bool, error)
}

// Oracle — клиент проверки SubGram.
type Oracle interface {
	Check(ctx context.Context, req subgram.CheckRequest) (*subgram.Verdict, error)
}

// Service — движок гейта.
type Service struct {
	store    UserStore
	oracle   Oracle
	fallback FallbackVerifier // nil — резервной проверки нет
	ledger   *Ledger
	locks    *userLocks
	admins   map[int64]struct{}
}

// NewService создаёт гейт. fallback может быть nil.
func NewService(store UserStore, oracle Oracle, fallback FallbackVerifier, rewardAmount int64, adminIDs []int64) *Service {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Service{
		store:    store,
		oracle:   oracle,
		fallback: fallback,
		ledger:   NewLedger(store, rewardAmount),
		locks:    newUserLocks(),
		admins:   admins,
	}
}

// HandleInlineEvent обрабатывает одно событие inline-пути и возвращает
// решение. Ошибка возвращается вместе с осмысленным решением: даже при
// сбое записи пользователь получает «повторите позже», а не тишину.
func (s *Service) HandleInlineEvent(ctx context.Context, ev InlineEvent) (Decision, error) {
	unlock := s.locks.Lock(ev.UserID)
	defer unlock()

	// Админы гейт не проходят.
	if _, ok := s.admins[ev.UserID]; ok {
		return Decision{Proceed: true}, nil
	}

	u, err := s.store.Get(ctx, ev.UserID)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return Decision{}, err
	}
	wasVerified := u != nil && u.Verified

	// Быстрый путь: верифицированный пользователь не трогает оракула.
	if wasVerified {
		if ev.IsGateCallback {
			// Запоздалый клик по старой клавиатуре гейта: убираем её.
			return Decision{Proceed: true, AckCallback: true, DeletePrompt: true}, nil
		}
		return Decision{Proceed: true}, nil
	}

	u, err = s.ensureUser(ctx, u, ev)
	if err != nil {
		return Decision{}, err
	}

	verdict, err := s.oracle.Check(ctx, s.checkRequest(ev))
	if err != nil {
		// Транспортный сбой — мягкая ошибка. Флаг верификации не трогаем.
		log.WithError(err).WithField("user_id", ev.UserID).Warn("SubGram недоступен")
		verdict = &subgram.Verdict{Kind: subgram.KindNoResponse}
	}

	switch verdict.Kind {
	case subgram.KindNoResponse:
		return s.block(ev, retryLaterPrompt()), nil

	case subgram.KindError:
		log.WithFields(log.Fields{
			"user_id": ev.UserID,
			"message": verdict.Message,
		}).Warn("SubGram ответил ошибкой")
		return s.block(ev, oracleErrorPrompt(verdict.Message)), nil
	}

	// «Неизвестный аккаунт»: награда пригласившему плюс резервная проверка.
	var note *RewardNote
	if verdict.Kind == subgram.KindUnknown {
		note = s.awardReferrer(ctx, u, verdict.Token)

		if s.fallback != nil {
			member, err := s.fallback.Verify(ctx, ev.UserID)
			if err != nil {
				log.WithError(err).WithField("user_id", ev.UserID).Warn("Резервная проверка недоступна")
				d := s.block(ev, retryLaterPrompt())
				d.RewardNote = note
				return d, nil
			}
			if !member {
				d := s.block(ev, antiFraudPrompt())
				d.RewardNote = note
				return d, nil
			}
		}
		// Резерв пройден (или не настроен) — считаем вердикт ok.
	}

	if verdict.Blocking() {
		if p := BuildPrompt(verdict); p != nil {
			return s.block(ev, p), nil
		}
		// Актуальных заданий нет — открываем доступ, а не блокируем
		// пустым сообщением.
	}

	if err := s.store.SetVerified(ctx, ev.UserID, true); err != nil {
		// Флаг не записан — доступ не даём и просим повторить,
		// иначе «верифицированность» существовала бы только в памяти.
		d := s.block(ev, retryLaterPrompt())
		d.RewardNote = note
		return d, err
	}

	d := Decision{Proceed: true, RewardNote: note}
	if !wasVerified && !ev.IsStartCommand() {
		d.StartFlow = true
	}
	if ev.IsGateCallback {
		d.AckCallback = true
		d.DeletePrompt = true
	}
	return d, nil
}

// HandleWebhookEvent обрабатывает один push от SubGram. Доставка
// «как минимум один раз»: решение выводится из состояния до мутации,
// поэтому повторная доставка не дублирует ни стартовый сценарий,
// ни напоминание об отписке.
func (s *Service) HandleWebhookEvent(ctx context.Context, userID int64, status string, username *string) (Decision, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	switch status {
	case StatusSubscribed, StatusNotGetted:
		u, err := s.ensureRecord(ctx, userID, username)
		if err != nil {
			return Decision{}, err
		}
		if err := s.store.SetVerified(ctx, userID, true); err != nil {
			return Decision{}, err
		}
		if u.Verified {
			return Decision{}, nil
		}
		return Decision{StartFlow: true}, nil

	case StatusUnsubscribed:
		u, err := s.ensureRecord(ctx, userID, username)
		if err != nil {
			return Decision{}, err
		}
		if err := s.store.SetVerified(ctx, userID, false); err != nil {
			return Decision{}, err
		}
		return Decision{NotifyUnsubscribed: u.Verified}, nil
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"status":  status,
	}).Info("Необработанный статус вебхука SubGram")
	return Decision{}, nil
}

// ensureUser лениво создаёт запись и согласует username/пригласившего
// с данными события. Пригласивший записывается только если его ещё нет.
func (s *Service) ensureUser(ctx context.Context, u *users.User, ev InlineEvent) (*users.User, error) {
	ref := ev.ReferrerID()

	if u == nil {
		if err := s.store.CreateIfAbsent(ctx, ev.UserID, ev.Username, ref); err != nil {
			return nil, err
		}
		return s.store.Get(ctx, ev.UserID)
	}

	if ev.Username != nil && (u.Username == nil || *u.Username != *ev.Username) {
		if err := s.store.UpdateUsername(ctx, ev.UserID, *ev.Username); err != nil {
			return nil, err
		}
		u.Username = ev.Username
	}

	if ref != nil && u.ReferredBy == nil {
		err := s.store.AssignReferrer(ctx, ev.UserID, *ref)
		switch {
		case err == nil:
			u.ReferredBy = ref
		case errors.Is(err, common.ErrSelfReferral):
			// Отбрасывается молча: ReferrerID такое уже не пропускает,
			// но хранилище стоит на страже в любом случае.
		default:
			return nil, err
		}
	}

	return u, nil
}

// ensureRecord — ленивое создание записи для webhook-пути (без пригласившего).
func (s *Service) ensureRecord(ctx context.Context, userID int64, username *string) (*users.User, error) {
	u, err := s.store.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		if err := s.store.CreateIfAbsent(ctx, userID, username, nil); err != nil {
			return nil, err
		}
		return s.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	if username != nil && (u.Username == nil || *u.Username != *username) {
		if err := s.store.UpdateUsername(ctx, userID, *username); err != nil {
			return nil, err
		}
		u.Username = username
	}
	return u, nil
}

// awardReferrer начисляет награду за сигнал «неизвестный аккаунт», если
// у пользователя есть пригласивший. Уведомление строится только после
// подтверждённого начисления.
func (s *Service) awardReferrer(ctx context.Context, u *users.User, token string) *RewardNote {
	if u == nil || u.ReferredBy == nil {
		return nil
	}
	outcome := s.ledger.AwardFakeAccountSignal(ctx, token, *u.ReferredBy, u.TelegramID)
	if !outcome.Granted {
		log.WithFields(log.Fields{
			"user_id": u.TelegramID,
			"reason":  outcome.Reason,
		}).Debug("Реферальная награда пропущена")
		return nil
	}
	return &RewardNote{
		ReferrerID:       *u.ReferredBy,
		ReferralID:       u.TelegramID,
		ReferralUsername: u.Username,
		Amount:           s.ledger.amount,
	}
}

// checkRequest собирает параметры запроса к оракулу из события.
func (s *Service) checkRequest(ev InlineEvent) subgram.CheckRequest {
	req := subgram.CheckRequest{
		UserID:       ev.UserID,
		ChatID:       ev.ChatID,
		FirstName:    ev.FirstName,
		LanguageCode: ev.LanguageCode,
		Gender:       ev.GenderAnswer(),
		Age:          ev.AgeAnswer(),
	}
	if ev.Username != nil {
		req.Username = *ev.Username
	}
	return req
}

// block — решение «заблокировать с сообщением». На callback гейта
// дополнительно отвечаем и убираем устаревшую клавиатуру.
func (s *Service) block(ev InlineEvent, p *Prompt) Decision {
	return Decision{
		Prompt:       p,
		AckCallback:  ev.IsGateCallback,
		DeletePrompt: ev.IsGateCallback,
	}
}
