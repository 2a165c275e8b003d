// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ночная сверка подписок
// у верифицированных пользователей.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"subgram-bot/internal/features/gate"
	"subgram-bot/internal/features/users"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron     *cron.Cron
	users    *users.Service
	verifier gate.FallbackVerifier
	notify   func(chatID int64)
	spec     string
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
// notify вызывается для каждого пользователя, потерявшего подписку.
func NewScheduler(userService *users.Service, verifier gate.FallbackVerifier, notify func(chatID int64), spec string) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		users:    userService,
		verifier: verifier,
		notify:   notify,
		spec:     spec,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Расписание приходит из конфигурации, поэтому ошибку парсинга
	// нельзя молча проглотить: сверка осталась бы выключенной.
	_, err := s.cron.AddFunc(s.spec, func() {
		log.Info("[CRON] Ночная сверка подписок")
		if err := s.sweep(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка сверки")
		}
	})
	if err != nil {
		log.WithError(err).WithField("spec", s.spec).Error("Не удалось запланировать сверку подписок")
		return
	}

	s.cron.Start()
	log.WithField("spec", s.spec).Info("Планировщик задач запущен (Europe/Moscow)")
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// sweep перепроверяет членство в канале у всех верифицированных
// пользователей и снимает флаг у отписавшихся. Пауза между проверками
// держит нас в стороне от лимитов Telegram API.
func (s *Scheduler) sweep(ctx context.Context) error {
	ids, err := s.users.ListVerifiedIDs(ctx)
	if err != nil {
		return err
	}

	var dropped int
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		member, err := s.verifier.Verify(ctx, id)
		if err != nil {
			log.WithError(err).WithField("user_id", id).Warn("[CRON] Не удалось проверить подписку")
			continue
		}
		if !member {
			if err := s.users.SetVerified(ctx, id, false); err != nil {
				log.WithError(err).WithField("user_id", id).Error("[CRON] Не удалось снять верификацию")
				continue
			}
			dropped++
			if s.notify != nil {
				s.notify(id)
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	log.WithFields(log.Fields{
		"checked": len(ids),
		"dropped": dropped,
	}).Info("[CRON] Сверка подписок завершена")
	return nil
}
