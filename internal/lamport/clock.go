// Package lamport tracks the server-assigned Lamport high-water mark on the client.
//
// The server is the only party that assigns Lamport timestamps. The client
// never ticks the clock itself, it only witnesses values returned by the
// server and keeps the maximum as its sync cursor.
package lamport

import "sync"

// Clock хранит максимальный Lamport timestamp, полученный от сервера
type Clock struct {
	counter int64      // монотонно неубывающий high-water mark
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewClock creates a clock seeded with a persisted high-water mark
func NewClock(seed int64) *Clock {
	if seed < 0 {
		seed = 0
	}
	return &Clock{counter: seed}
}

// Witness записывает timestamp, полученный от сервера.
// Значение никогда не уменьшается: counter = max(counter, ts).
// Возвращает текущий high-water mark.
func (c *Clock) Witness(timestamps ...int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ts := range timestamps {
		if ts > c.counter {
			c.counter = ts
		}
	}

	return c.counter
}

// Current returns the high-water mark without changing it
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counter
}

// Reset устанавливает счетчик в заданное значение.
// Используется при повторной инициализации из сохраненного SyncState.
func (c *Clock) Reset(ts int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts < 0 {
		ts = 0
	}
	c.counter = ts
}
