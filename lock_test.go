package xantippe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManagerReadersCoexist(t *testing.T) {
	m := NewLockManager()
	h1, h2 := NewHolder(), NewHolder()

	m.RLock(1, h1)
	done := make(chan struct{})
	go func() {
		m.RLock(1, h2)
		m.RUnlock(1, h2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked behind first reader")
	}
	m.RUnlock(1, h1)
}

func TestLockManagerWriterExcludesReaders(t *testing.T) {
	m := NewLockManager()
	h1, h2 := NewHolder(), NewHolder()

	m.Lock(1, h1)
	acquired := make(chan struct{})
	go func() {
		m.RLock(1, h2)
		close(acquired)
		m.RUnlock(1, h2)
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired lock while writer held it")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock(1, h1)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never unblocked after writer released")
	}
}

func TestLockManagerSoleReaderUpgrade(t *testing.T) {
	m := NewLockManager()
	h := NewHolder()

	m.RLock(1, h)
	done := make(chan struct{})
	go func() {
		m.Lock(1, h)
		close(done)
		m.Unlock(1, h)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sole reader failed to upgrade to writer")
	}
	m.RUnlock(1, h)
}

func TestLockManagerUpgradeBlocksBehindOtherReaders(t *testing.T) {
	m := NewLockManager()
	h1, h2 := NewHolder(), NewHolder()

	m.RLock(1, h1)
	m.RLock(1, h2)

	upgraded := make(chan struct{})
	go func() {
		m.Lock(1, h1)
		close(upgraded)
		m.Unlock(1, h1)
	}()

	select {
	case <-upgraded:
		t.Fatal("writer upgrade proceeded while a second reader was present")
	case <-time.After(50 * time.Millisecond):
	}

	m.RUnlock(1, h2)
	select {
	case <-upgraded:
	case <-time.After(time.Second):
		t.Fatal("writer upgrade never completed once the only other reader released")
	}
	m.RUnlock(1, h1)
}

func TestLockManagerReentrantWrite(t *testing.T) {
	m := NewLockManager()
	h := NewHolder()

	m.Lock(1, h)
	m.Lock(1, h)
	m.Unlock(1, h)
	m.Unlock(1, h)

	released := make(chan struct{})
	h2 := NewHolder()
	go func() {
		m.Lock(1, h2)
		close(released)
		m.Unlock(1, h2)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("lock never fully released after matched reentrant unlocks")
	}
}

func TestLockManagerFIFOFairness(t *testing.T) {
	m := NewLockManager()
	holder := NewHolder()
	m.Lock(1, holder)

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		idx := i
		h := NewHolder()
		go func() {
			defer wg.Done()
			m.Lock(1, h)
			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
			m.Unlock(1, h)
		}()
		time.Sleep(10 * time.Millisecond) // let each goroutine enqueue in order
	}

	m.Unlock(1, holder)
	wg.Wait()

	require.Len(t, order, 3)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestLockManagerForgetDropsState(t *testing.T) {
	m := NewLockManager()
	h := NewHolder()
	m.Lock(1, h)
	m.Unlock(1, h)
	m.forget(1)

	m.mu.Lock()
	_, present := m.locks[1]
	m.mu.Unlock()
	assert.False(t, present)
}
