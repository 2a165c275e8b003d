package gate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := newUserLocks()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(42)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestUserLocks_DifferentShardsIndependent(t *testing.T) {
	locks := newUserLocks()

	// Пользователи из разных шардов не ждут друг друга.
	unlockA := locks.Lock(1)
	unlockB := locks.Lock(2)
	unlockB()
	unlockA()
}

func TestUserLocks_NegativeID(t *testing.T) {
	locks := newUserLocks()

	unlock := locks.Lock(-100)
	unlock()
}
