package reader

import (
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// ReaderConfig is a reader whose ports and read position can be adopted by a new
// reader of different value and domain types. Adoption invalidates the source
// reader without disconnecting its ports.
type ReaderConfig interface {
	InputPorts() []*signal.InputPort
	IsValid() bool

	handoff(adopt func(*handoffState) error) error
}

// handoffState is the snapshot passed from a source reader to its successor.
type handoffState struct {
	opts   options
	ports  []*signal.InputPort
	owned  bool
	onData func()

	valueDesc  *packet.DataDescriptor
	domainDesc *packet.DataDescriptor

	// pending is the partially read data packet; pendingPos samples were consumed.
	pending    *packet.DataPacket
	pendingPos int
}

// snapshot fills the port and callback fields of a handoff from b.
func (b *binding) snapshot(o options) *handoffState {
	_, onData := b.callbacks()
	o.external, _ = b.callbacks()
	o.name = b.name
	return &handoffState{
		opts:   o,
		ports:  b.ports,
		owned:  b.owned,
		onData: onData,
	}
}

// takeOver builds the successor binding from st and moves the ports to it.
func takeOver(kind string, st *handoffState) *binding {
	b := newBinding(kind, st.opts)
	b.onData = st.onData
	b.adopt(st.owned, st.ports...)
	return b
}
