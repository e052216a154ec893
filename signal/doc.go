// Package signal implements the producer side of the data path: signals, the input
// ports that consume them, and the connections carrying packets between the two.
//
// # Data Flow
//
//	sig, _ := signal.NewSignal("ai0", desc, signal.WithDomainSignal(timeSig))
//	port := signal.NewInputPort("in0", signal.WithListener(reader))
//	_ = port.Connect(sig)       // enqueues a descriptor-changed event first
//	_ = sig.SendPacket(pkt)     // fans out to every connection, then notifies
//
// Each Connection is an unbounded FIFO (optionally capped with WithQueueCapacity)
// built on pkg/buffer. The cap drops data packets only. SendPacket never blocks on
// consumers.
//
// # Notifications
//
// An InputPort forwards Connected, Disconnected and PacketReceived to one
// InputPortNotifications listener. PacketReceived runs on the producer goroutine
// (NotifySameThread) or through a Scheduler (NotifyScheduler). When the scheduler
// rejects work the port falls back to same-thread delivery and logs a rate-limited
// warning.
//
// Listener callbacks never run while a signal holds its locks, so a listener may
// read from the port it was notified for.
//
// # Removal
//
// Removing a signal disconnects every port with a Disconnected callback. Removing a
// port disconnects it and rejects further Connect calls.
package signal
