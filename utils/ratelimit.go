package utils

import (
	"sync"
	"time"
)

// RateLimiter ограничивает частоту обращений по ключу (IP клиента) в
// скользящем окне. Обращения старше окна не учитываются.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
}

// NewRateLimiter создает ограничитель: не более limit обращений за window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
	}
}

// pruneLocked отбрасывает обращения, вышедшие за окно. Вызывается под мьютексом.
func (rl *RateLimiter) pruneLocked(key string, now time.Time) {
	cutoff := now.Add(-rl.window)
	recent := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	rl.hits[key] = recent
}

// Allow учитывает обращение и сообщает, укладывается ли оно в лимит
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(key, now)

	if len(rl.hits[key]) >= rl.limit {
		return false
	}

	rl.hits[key] = append(rl.hits[key], now)
	return true
}

// GetRemaining возвращает остаток лимита в текущем окне
func (rl *RateLimiter) GetRemaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.pruneLocked(key, time.Now())
	return rl.limit - len(rl.hits[key])
}

// GetResetTime возвращает момент, когда самое старое обращение выйдет из окна
func (rl *RateLimiter) GetResetTime(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.hits[key]) == 0 {
		return time.Now()
	}
	return rl.hits[key][0].Add(rl.window)
}
