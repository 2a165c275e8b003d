// Package users — service.go содержит бизнес-логику вокруг записей
// пользователей. Сервис валидирует назначение пригласившего и прячет
// детали хранения от гейта и обработчиков бота.
package users

import (
	"context"

	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/common"
)

// Service управляет записями пользователей.
type Service struct {
	repo       *Repository
	startBonus int64 // стартовый баланс новичка
}

// NewService создаёт новый сервис пользователей.
func NewService(repo *Repository, startBonus int64) *Service {
	return &Service{repo: repo, startBonus: startBonus}
}

// Get возвращает пользователя по Telegram ID. ErrNotFound, если записи нет.
func (s *Service) Get(ctx context.Context, telegramID int64) (*User, error) {
	return s.repo.GetByTelegramID(ctx, telegramID)
}

// CreateIfAbsent лениво создаёт запись пользователя. Самоприглашение
// отбрасывается ещё до записи: такое значение не должно попасть в базу
// ни при каком раскладе.
func (s *Service) CreateIfAbsent(ctx context.Context, telegramID int64, username *string, referredBy *int64) error {
	if referredBy != nil && *referredBy == telegramID {
		log.WithField("user_id", telegramID).Warn("Самоприглашение отброшено при создании")
		referredBy = nil
	}
	return s.repo.Create(ctx, &User{
		TelegramID: telegramID,
		Username:   username,
		ReferredBy: referredBy,
		Balance:    s.startBonus,
	})
}

// UpdateUsername обновляет последний известный @username.
func (s *Service) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	return s.repo.UpdateUsername(ctx, telegramID, username)
}

// AssignReferrer записывает пригласившего (один раз и навсегда).
// Возвращает ErrSelfReferral при попытке указать самого себя.
func (s *Service) AssignReferrer(ctx context.Context, telegramID, referrerID int64) error {
	if telegramID == referrerID {
		return common.ErrSelfReferral
	}
	assigned, err := s.repo.AssignReferrer(ctx, telegramID, referrerID)
	if err != nil {
		return err
	}
	if assigned {
		log.WithFields(log.Fields{
			"user_id":     telegramID,
			"referrer_id": referrerID,
		}).Info("Пригласивший записан")
	}
	return nil
}

// SetVerified выставляет флаг верификации.
func (s *Service) SetVerified(ctx context.Context, telegramID int64, verified bool) error {
	return s.repo.SetVerified(ctx, telegramID, verified)
}

// GrantReward начисляет награду пригласившему, не более одного раза
// на идемпотентный ключ. Возвращает true, если начисление произошло.
func (s *Service) GrantReward(ctx context.Context, grantKey string, referrerID, referralID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, common.ErrInvalidAmount
	}
	return s.repo.GrantReward(ctx, grantKey, referrerID, referralID, amount)
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	u, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return 0, err
	}
	return u.Balance, nil
}

// ListVerifiedIDs — верифицированные пользователи для ночной сверки.
func (s *Service) ListVerifiedIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListVerifiedIDs(ctx)
}
