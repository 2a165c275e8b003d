// Package gate — referral.go ведёт учёт реферальных наград.
// Награда привязана к конкретному экземпляру ответа оракула (его
// идемпотентному ключу): сколько бы раз один и тот же ответ ни был
// обработан, начисление произойдёт не более одного раза.
package gate

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Outcome — результат попытки начисления награды.
type Outcome struct {
	Granted bool
	Reason  string // почему пропущено, если Granted == false
}

// Ledger начисляет награду пригласившему при сигнале «неизвестный аккаунт».
type Ledger struct {
	store  UserStore
	amount int64
}

// NewLedger создаёт реестр наград с фиксированной суммой начисления.
func NewLedger(store UserStore, amount int64) *Ledger {
	return &Ledger{store: store, amount: amount}
}

// AwardFakeAccountSignal начисляет награду referrerID за реферала referralID.
// Ошибка записи не всплывает наружу: уведомление пригласившему положено
// только после подтверждённого начисления, поэтому сбой просто логируется
// и награда считается пропущенной.
func (l *Ledger) AwardFakeAccountSignal(ctx context.Context, grantKey string, referrerID, referralID int64) Outcome {
	if referrerID == 0 {
		return Outcome{Reason: "нет пригласившего"}
	}
	if referrerID == referralID {
		return Outcome{Reason: "самоприглашение"}
	}
	if grantKey == "" {
		return Outcome{Reason: "нет идемпотентного ключа"}
	}

	granted, err := l.store.GrantReward(ctx, grantKey, referrerID, referralID, l.amount)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"referrer_id": referrerID,
			"referral_id": referralID,
		}).Error("Не удалось начислить реферальную награду")
		return Outcome{Reason: "ошибка начисления"}
	}
	if !granted {
		return Outcome{Reason: "уже начислено"}
	}

	log.WithFields(log.Fields{
		"referrer_id": referrerID,
		"referral_id": referralID,
		"amount":      l.amount,
	}).Info("Реферальная награда начислена")
	return Outcome{Granted: true}
}
