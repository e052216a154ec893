package testutil

import (
	"sync"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// RecordingListener is an InputPortNotifications that counts callbacks.
type RecordingListener struct {
	mu sync.Mutex

	// Reject makes AcceptsSignal return false.
	Reject bool

	ConnectedCalls    int
	DisconnectedCalls int
	PacketCalls       int

	packets chan struct{}
}

// NewRecordingListener creates a listener that accepts every signal.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{packets: make(chan struct{}, 1024)}
}

func (l *RecordingListener) AcceptsSignal(*signal.InputPort, *signal.Signal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.Reject
}

func (l *RecordingListener) Connected(*signal.InputPort) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ConnectedCalls++
}

func (l *RecordingListener) Disconnected(*signal.InputPort) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.DisconnectedCalls++
}

func (l *RecordingListener) PacketReceived(*signal.InputPort) {
	l.mu.Lock()
	l.PacketCalls++
	l.mu.Unlock()
	select {
	case l.packets <- struct{}{}:
	default:
	}
}

// Counts returns the connected, disconnected and packet callback counts.
func (l *RecordingListener) Counts() (connected, disconnected, packets int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ConnectedCalls, l.DisconnectedCalls, l.PacketCalls
}

// WaitForPacket waits for one PacketReceived callback.
func (l *RecordingListener) WaitForPacket(timeout time.Duration) bool {
	select {
	case <-l.packets:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ManualScheduler queues scheduled callbacks until Run is called.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
	fail  bool
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// SetFailing makes ScheduleWork reject new work.
func (s *ManualScheduler) SetFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *ManualScheduler) ScheduleWork(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.WrapTransient(errors.ErrResourceExhausted, "ManualScheduler", "ScheduleWork", "submit")
	}
	s.queue = append(s.queue, fn)
	return nil
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run executes and clears the queued callbacks, returning how many ran.
func (s *ManualScheduler) Run() int {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, fn := range queue {
		fn()
	}
	return len(queue)
}
