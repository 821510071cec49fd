package event

import (
	"sync"

	"go.uber.org/zap"
)

type Listener struct {
	eventType Type
	callback  func(msg interface{})
}

// Manager dispatches events to its own listeners only, so independent server
// instances do not observe each other's subscriptions.
type Manager struct {
	mu        sync.RWMutex
	listeners []*Listener
}

func NewManager() *Manager {
	return &Manager{listeners: make([]*Listener, 0)}
}

func (m *Manager) AddEventListener(eventType Type, callback func(msg interface{})) {
	zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: AddListener")

	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, &Listener{eventType: eventType, callback: callback})
}

// EmitEvent invokes matching listeners synchronously, after the emitting
// operation has committed.
func (m *Manager) EmitEvent(eventType Type, msg interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, listener := range m.listeners {
		if listener.eventType == eventType {
			zap.L().With(zap.String("type", string(eventType))).Debug("EventManager: Emitting event")
			listener.callback(msg)
		}
	}
}
