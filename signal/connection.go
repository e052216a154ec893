package signal

import (
	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/pkg/buffer"
)

// Connection is the packet FIFO between one signal and one input port.
// Every packet is dequeued exactly once, in send order. Producers never block.
// Past the queue limit only data packets are dropped; event packets are always kept.
type Connection struct {
	signal  *Signal
	port    *InputPort
	queue   buffer.Buffer[packet.Packet]
	metrics *metric.Metrics
}

func newConnection(sig *Signal, port *InputPort) (*Connection, error) {
	opts := []buffer.Option[packet.Packet]{
		buffer.WithOverflowPolicy[packet.Packet](buffer.Grow),
		buffer.WithMaxCapacity[packet.Packet](port.queueLimit),
		buffer.WithRetain(func(p packet.Packet) bool {
			return p.Type() == packet.TypeEvent
		}),
		buffer.WithDropCallback(func(p packet.Packet) {
			port.onPacketDropped(p)
		}),
	}
	if port.bufferRegistry != nil {
		opts = append(opts, buffer.WithMetrics[packet.Packet](port.bufferRegistry, "conn_"+port.globalID))
	}

	queue, err := buffer.NewCircularBuffer[packet.Packet](port.queueCapacity, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Connection", "newConnection", "queue creation")
	}
	return &Connection{
		signal:  sig,
		port:    port,
		queue:   queue,
		metrics: port.metrics,
	}, nil
}

// Signal returns the producing signal.
func (c *Connection) Signal() *Signal { return c.signal }

// InputPort returns the consuming port.
func (c *Connection) InputPort() *InputPort { return c.port }

// Enqueue appends p and notifies the port.
func (c *Connection) Enqueue(p packet.Packet) error {
	if err := c.push(p); err != nil {
		return err
	}
	c.port.notifyPacketReceived()
	return nil
}

// EnqueueMultiple appends packets in order with a single notification.
func (c *Connection) EnqueueMultiple(ps []packet.Packet) error {
	if len(ps) == 0 {
		return nil
	}
	if err := c.pushBatch(ps); err != nil {
		return err
	}
	c.port.notifyPacketReceived()
	return nil
}

func (c *Connection) push(p packet.Packet) error {
	if p == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "Connection", "Enqueue", "packet check")
	}
	if err := c.queue.Write(p); err != nil {
		return errors.Wrap(err, "Connection", "Enqueue", "queue write")
	}
	c.metrics.RecordEnqueued(c.port.localID, 1, c.queue.Size())
	return nil
}

func (c *Connection) pushBatch(ps []packet.Packet) error {
	for _, p := range ps {
		if p == nil {
			return errors.WrapInvalid(errors.ErrArgumentNull, "Connection", "EnqueueMultiple", "packet check")
		}
	}
	if err := c.queue.WriteBatch(ps); err != nil {
		return errors.Wrap(err, "Connection", "EnqueueMultiple", "queue write")
	}
	c.metrics.RecordEnqueued(c.port.localID, len(ps), c.queue.Size())
	return nil
}

// Dequeue removes and returns the oldest packet. It never blocks.
func (c *Connection) Dequeue() (packet.Packet, bool) {
	p, ok := c.queue.Read()
	if ok {
		c.metrics.RecordQueueDepth(c.port.localID, c.queue.Size())
	}
	return p, ok
}

// DequeueAll removes and returns every queued packet.
func (c *Connection) DequeueAll() []packet.Packet {
	ps := c.queue.ReadAll()
	if len(ps) > 0 {
		c.metrics.RecordQueueDepth(c.port.localID, 0)
	}
	return ps
}

// Peek returns the oldest packet without removing it.
func (c *Connection) Peek() (packet.Packet, bool) {
	return c.queue.Peek()
}

// PacketCount returns the number of queued packets.
func (c *Connection) PacketCount() int {
	return c.queue.Size()
}

// AvailableSamples counts samples in data packets queued before the first event packet.
func (c *Connection) AvailableSamples() int {
	total := 0
	c.queue.Range(func(_ int, p packet.Packet) bool {
		dp, ok := p.(*packet.DataPacket)
		if !ok {
			return false
		}
		total += dp.SampleCount()
		return true
	})
	return total
}

// HasEventPacket reports whether any event packet is queued.
func (c *Connection) HasEventPacket() bool {
	found := false
	c.queue.Range(func(_ int, p packet.Packet) bool {
		if p.Type() == packet.TypeEvent {
			found = true
			return false
		}
		return true
	})
	return found
}

// Stats returns the queue statistics.
func (c *Connection) Stats() buffer.StatsSummary {
	return c.queue.Stats().Summary()
}

func (c *Connection) close() {
	_ = c.queue.Close()
}
