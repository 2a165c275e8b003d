package gate

import "sync"

// userLocks сериализует обработку событий одного пользователя: inline-путь
// и webhook-путь могут прийти одновременно за одним user id. Замок шардирован,
// чтобы не превращаться в глобальный: события разных пользователей почти
// никогда не делят мьютекс.
type userLocks struct {
	shards [64]sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{}
}

// Lock блокирует шард пользователя и возвращает функцию разблокировки.
func (l *userLocks) Lock(userID int64) func() {
	m := &l.shards[uint64(userID)%uint64(len(l.shards))]
	m.Lock()
	return m.Unlock
}
