// Package postgres — migrate.go выполняет SQL-миграции, встроенные в код.
// Применённые версии запоминаются в таблице schema_migrations, так что
// повторный запуск безопасен.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migration — одна миграция: номер версии и SQL-код.
type Migration struct {
	Version int
	SQL     string
}

// Migrate применяет миграции по порядку. Каждая выполняется в своей
// транзакции вместе с записью версии: либо применилась целиком, либо нет.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		applied, err := applyOne(ctx, pool, m)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.Version, err)
		}
		if applied {
			log.Infof("Миграция %d применена", m.Version)
		}
	}
	return nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки версии: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("ошибка выполнения SQL: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", m.Version,
	); err != nil {
		return false, fmt.Errorf("ошибка записи версии: %w", err)
	}

	return true, tx.Commit(ctx)
}
