// Package users — repository.go отвечает за все операции с таблицами users
// и reward_grants в БД. Каждая модификация отдельного поля атомарна сама по
// себе: гейт полагается на это при гонках между inline-проверкой и webhook.
package users

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// ErrNotFound возвращается, когда пользователя нет в базе.
var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет нового пользователя. Если запись уже есть — ничего не
// делает: одновременные создания из двух каналов доставки схлопываются
// на уникальности telegram_id.
func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (telegram_id, username, referred_by, verified, balance)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		u.TelegramID, u.Username, u.ReferredBy, u.Verified, u.Balance,
	)
	if err != nil {
		return errors.Wrapf(err, "create user %d", u.TelegramID)
	}
	return nil
}

// GetByTelegramID: если не найден — ErrNotFound.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	query := `
		SELECT id, telegram_id, username, referred_by, verified, balance,
		       created_at, updated_at
		FROM users
		WHERE telegram_id = $1
	`
	var u User
	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.ReferredBy,
		&u.Verified, &u.Balance, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get user %d", telegramID)
	}
	return &u, nil
}

// SetVerified выставляет флаг верификации. Идемпотентно.
func (r *Repository) SetVerified(ctx context.Context, telegramID int64, verified bool) error {
	query := `UPDATE users SET verified = $2, updated_at = NOW() WHERE telegram_id = $1`
	if _, err := r.db.Exec(ctx, query, telegramID, verified); err != nil {
		return errors.Wrapf(err, "set verified=%v for %d", verified, telegramID)
	}
	return nil
}

// UpdateUsername обновляет последний известный @username.
func (r *Repository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	query := `UPDATE users SET username = $2, updated_at = NOW() WHERE telegram_id = $1`
	if _, err := r.db.Exec(ctx, query, telegramID, username); err != nil {
		return errors.Wrapf(err, "update username for %d", telegramID)
	}
	return nil
}

// AssignReferrer записывает пригласившего. Запись разовая: условие
// referred_by IS NULL делает UPDATE атомарным check-and-set, так что при
// двух конкурентных событиях победит ровно одно. Самоприглашение отсекается
// на уровне запроса. Возвращает true, если запись действительно произошла.
func (r *Repository) AssignReferrer(ctx context.Context, telegramID, referrerID int64) (bool, error) {
	query := `
		UPDATE users
		SET referred_by = $2, updated_at = NOW()
		WHERE telegram_id = $1 AND referred_by IS NULL AND telegram_id <> $2
	`
	tag, err := r.db.Exec(ctx, query, telegramID, referrerID)
	if err != nil {
		return false, errors.Wrapf(err, "assign referrer %d -> %d", referrerID, telegramID)
	}
	return tag.RowsAffected() > 0, nil
}

// AddBalance атомарно изменяет баланс на delta.
func (r *Repository) AddBalance(ctx context.Context, telegramID int64, delta int64) error {
	query := `UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE telegram_id = $1`
	if _, err := r.db.Exec(ctx, query, telegramID, delta); err != nil {
		return errors.Wrapf(err, "add balance %+d for %d", delta, telegramID)
	}
	return nil
}

// GrantReward начисляет награду пригласившему ровно один раз на grantKey.
// Вставка в reward_grants и начисление идут в одной транзакции: запись ключа
// без начисления (и наоборот) невозможна. Возвращает true, если награда
// была начислена этим вызовом, и false — если ключ уже встречался.
func (r *Repository) GrantReward(ctx context.Context, grantKey string, referrerID, referralID, amount int64) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin grant tx")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO reward_grants (grant_key, referrer_id, referral_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (grant_key) DO NOTHING
	`, grantKey, referrerID, referralID, amount)
	if err != nil {
		return false, errors.Wrapf(err, "insert grant %s", grantKey)
	}
	if tag.RowsAffected() == 0 {
		// Этот ответ оракула уже обработан.
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE telegram_id = $1
	`, referrerID, amount)
	if err != nil {
		return false, errors.Wrapf(err, "credit referrer %d", referrerID)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit grant tx")
	}
	return true, nil
}

// ListVerifiedIDs возвращает telegram_id всех верифицированных пользователей.
// Используется ночной сверкой подписок.
func (r *Repository) ListVerifiedIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT telegram_id FROM users WHERE verified = TRUE ORDER BY telegram_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list verified users")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan telegram_id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "read verified users")
	}
	return ids, nil
}
