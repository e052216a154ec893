package signal

import (
	"sync"
)

// NotificationMethod selects where an input port runs PacketReceived callbacks.
type NotificationMethod int

const (
	// NotifySameThread runs the callback on the producer goroutine inside SendPacket.
	NotifySameThread NotificationMethod = iota
	// NotifyScheduler posts the callback to the port's Scheduler.
	NotifyScheduler
)

func (m NotificationMethod) String() string {
	switch m {
	case NotifySameThread:
		return "SameThread"
	case NotifyScheduler:
		return "Scheduler"
	default:
		return "Unknown"
	}
}

// ParseNotificationMethod converts a config string into a NotificationMethod.
func ParseNotificationMethod(s string) (NotificationMethod, bool) {
	switch s {
	case "", "same_thread", "SameThread":
		return NotifySameThread, true
	case "scheduler", "Scheduler":
		return NotifyScheduler, true
	default:
		return NotifySameThread, false
	}
}

// Scheduler runs callbacks off the producer goroutine. *worker.Scheduler implements it.
type Scheduler interface {
	ScheduleWork(fn func()) error
}

// InputPortNotifications receives the life-cycle callbacks of an input port.
// Readers implement it; a port forwards to exactly one listener.
//
// Callbacks must not call Connect or Disconnect on the same port.
type InputPortNotifications interface {
	// AcceptsSignal is consulted by Connect; returning false rejects the signal.
	AcceptsSignal(port *InputPort, sig *Signal) bool
	// Connected runs after the connection is established.
	Connected(port *InputPort)
	// Disconnected runs after the connection is torn down, including on signal removal.
	Disconnected(port *InputPort)
	// PacketReceived runs after one or more packets were enqueued.
	PacketReceived(port *InputPort)
}

// TypeManager resolves struct type names used by struct descriptors.
type TypeManager interface {
	HasType(name string) bool
}

// MapTypeManager is an in-memory TypeManager.
type MapTypeManager struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

// NewMapTypeManager creates a type manager preloaded with names.
func NewMapTypeManager(names ...string) *MapTypeManager {
	m := &MapTypeManager{types: make(map[string]struct{}, len(names))}
	for _, n := range names {
		m.types[n] = struct{}{}
	}
	return m
}

// AddType registers a struct type name.
func (m *MapTypeManager) AddType(name string) {
	m.mu.Lock()
	m.types[name] = struct{}{}
	m.mu.Unlock()
}

// HasType reports whether name is registered.
func (m *MapTypeManager) HasType(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.types[name]
	return ok
}
