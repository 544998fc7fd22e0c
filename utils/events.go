package utils

import (
	"sync"
)

// События жизненного цикла сделки. События носят информационный характер
// и не входят в контракт согласованности данных.
const (
	EventDealCreated           = "dealCreated"
	EventDealCompleted         = "dealCompleted"
	EventDealFullyPaid         = "dealFullyPaid"
	EventPropertyStatusChanged = "propertyStatusChanged"
)

// EventListener представляет обработчик события
type EventListener func(event string, payload map[string]interface{})

// EventBus представляет внутрипроцессную шину событий
type EventBus struct {
	mu        sync.RWMutex
	listeners map[string][]EventListener
}

var (
	bus     *EventBus
	busOnce sync.Once
)

// GetEventBus возвращает экземпляр шины событий
func GetEventBus() *EventBus {
	busOnce.Do(func() {
		bus = &EventBus{
			listeners: make(map[string][]EventListener),
		}
	})
	return bus
}

// Subscribe подписывает обработчик на событие
func (b *EventBus) Subscribe(event string, listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], listener)
}

// Publish рассылает событие всем подписчикам. Паника в обработчике
// не прерывает публикацию.
func (b *EventBus) Publish(event string, payload map[string]interface{}) {
	b.mu.RLock()
	listeners := make([]EventListener, len(b.listeners[event]))
	copy(listeners, b.listeners[event])
	b.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					LogError("Паника в обработчике события %s: %v", event, r)
				}
			}()
			listener(event, payload)
		}()
	}
}
