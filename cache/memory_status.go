package cache

import (
	"context"
	"sync"
)

// MemoryStatusHub 进程内状态订阅管理器，Redis 未配置时使用
type MemoryStatusHub struct {
	mu     sync.RWMutex
	nextID int
	// mediaID -> 订阅者集合
	subscribers map[uint]map[int]chan StatusEvent
}

// NewMemoryStatusHub creates an empty hub.
func NewMemoryStatusHub() *MemoryStatusHub {
	return &MemoryStatusHub{subscribers: make(map[uint]map[int]chan StatusEvent)}
}

// Publish never blocks; a subscriber that is not keeping up misses events.
func (h *MemoryStatusHub) Publish(_ context.Context, ev StatusEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers[ev.MediaID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

func (h *MemoryStatusHub) Subscribe(ctx context.Context, mediaID uint) (<-chan StatusEvent, func(), error) {
	ch := make(chan StatusEvent, 16)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subscribers[mediaID] == nil {
		h.subscribers[mediaID] = make(map[int]chan StatusEvent)
	}
	h.subscribers[mediaID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.subscribers[mediaID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subscribers, mediaID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

// SubscriberCount 获取订阅者数量
func (h *MemoryStatusHub) SubscriberCount(mediaID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[mediaID])
}
