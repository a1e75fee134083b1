package domain

import (
	"sync"
	"time"
)

// Clock 分配交易時間戳，保證在單一 process 內不遞減
// 系統時鐘往回跳 (NTP 校時) 時沿用上一次的值
type Clock struct {
	mu   sync.Mutex
	last time.Time
}

func NewClock() *Clock {
	return &Clock{}
}

// Now 回傳目前時間，且不會早於上一次回傳的值
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}
