package reader

import (
	"github.com/openDAQ/openDAQ-sub014/packet"
)

// Number is the set of Go types a typed reader can produce.
type Number interface {
	int | int8 | int16 | int32 | int64 |
		uint | uint8 | uint16 | uint32 | uint64 |
		float32 | float64
}

// ReadMode selects how much of the descriptor's value transform is applied on read.
type ReadMode int

const (
	// Scaled applies the data rule and post-scaling.
	Scaled ReadMode = iota
	// Unscaled decodes the raw sample type without post-scaling.
	Unscaled
	// Raw requires the read type to match the raw sample type exactly.
	Raw
)

func (m ReadMode) String() string {
	switch m {
	case Scaled:
		return "Scaled"
	case Unscaled:
		return "Unscaled"
	case Raw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// ParseReadMode converts a config string into a ReadMode.
func ParseReadMode(s string) (ReadMode, bool) {
	switch s {
	case "", "scaled", "Scaled":
		return Scaled, true
	case "unscaled", "Unscaled":
		return Unscaled, true
	case "raw", "Raw":
		return Raw, true
	default:
		return Scaled, false
	}
}

// ReadTimeoutType selects when a blocking read returns before its deadline.
type ReadTimeoutType int

const (
	// All waits until the full count is read or the deadline passes.
	All ReadTimeoutType = iota
	// Any returns as soon as at least one sample was read.
	Any
)

func (t ReadTimeoutType) String() string {
	switch t {
	case All:
		return "All"
	case Any:
		return "Any"
	default:
		return "Unknown"
	}
}

// ParseReadTimeoutType converts a config string into a ReadTimeoutType.
func ParseReadTimeoutType(s string) (ReadTimeoutType, bool) {
	switch s {
	case "", "all", "All":
		return All, true
	case "any", "Any":
		return Any, true
	default:
		return All, false
	}
}

// ReadStatus is the outcome of a single read call.
type ReadStatus int

const (
	// Ok means the read stopped on count or timeout.
	Ok ReadStatus = iota
	// Event means the read stopped on an event packet.
	Event
	// Fail means the reader could not continue; see ReaderStatus.Valid.
	Fail
)

func (s ReadStatus) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Event:
		return "Event"
	case Fail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// ReaderStatus describes the outcome of a read. Timeouts are reported as Ok with a
// short count.
type ReaderStatus struct {
	Valid      bool
	ReadStatus ReadStatus
	// EventPacket is the event that stopped the read, nil otherwise.
	EventPacket *packet.EventPacket
	// Offset is the domain value of the first returned sample. HasOffset is false when
	// nothing was read or the data carried no domain packet.
	Offset    int64
	HasOffset bool
}

// DescriptorChange returns the descriptors announced by the event that stopped the
// read. ok is false when the read did not stop on a descriptor change.
func (s ReaderStatus) DescriptorChange() (value, domain *packet.DataDescriptor, ok bool) {
	if s.EventPacket == nil {
		return nil, nil, false
	}
	return packet.DescriptorChange(s.EventPacket)
}

// MultiReaderStatus extends ReaderStatus with the events seen on each port, indexed
// like the reader's ports. Ports without an event hold nil.
type MultiReaderStatus struct {
	ReaderStatus
	EventPackets []*packet.EventPacket
}

func validStatus() ReaderStatus {
	return ReaderStatus{Valid: true, ReadStatus: Ok}
}

func invalidStatus() ReaderStatus {
	return ReaderStatus{Valid: false, ReadStatus: Fail}
}
