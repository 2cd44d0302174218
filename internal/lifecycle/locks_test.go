package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintLocks_SerializesSameKey(t *testing.T) {
	locks := NewFingerprintLocks()

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Lock("fp-a")
			defer release()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, order, 5)
}

func TestFingerprintLocks_DifferentKeysDoNotBlock(t *testing.T) {
	locks := NewFingerprintLocks()

	releaseA := locks.Lock("fp-a")
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB := locks.Lock("fp-b")
		defer releaseB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different fingerprint should not block")
	}
}

func TestFingerprintLocks_TryLockFailsWhenHeld(t *testing.T) {
	locks := NewFingerprintLocks()

	release, ok := locks.TryLock("fp-a")
	assert.True(t, ok)

	_, ok = locks.TryLock("fp-a")
	assert.False(t, ok)

	release()
	release2, ok := locks.TryLock("fp-a")
	assert.True(t, ok)
	release2()
}
