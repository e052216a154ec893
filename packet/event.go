package packet

// Well-known event IDs and parameter names.
const (
	EventDataDescriptorChanged = "DATA_DESCRIPTOR_CHANGED"

	ParamDataDescriptor       = "DataDescriptor"
	ParamDomainDataDescriptor = "DomainDataDescriptor"
)

// NewDataDescriptorChangedEvent announces a new value and/or domain descriptor.
// A nil descriptor means that side is unchanged.
func NewDataDescriptorChangedEvent(value, domain *DataDescriptor) *EventPacket {
	return NewEventPacket(EventDataDescriptorChanged, map[string]any{
		ParamDataDescriptor:       value,
		ParamDomainDataDescriptor: domain,
	})
}

// IsDescriptorChanged reports whether p is a descriptor-changed event.
func IsDescriptorChanged(p Packet) bool {
	e, ok := p.(*EventPacket)
	return ok && e.id == EventDataDescriptorChanged
}

// DescriptorChange extracts the descriptors carried by a descriptor-changed event.
// ok is false for any other packet.
func DescriptorChange(p Packet) (value, domain *DataDescriptor, ok bool) {
	e, isEvent := p.(*EventPacket)
	if !isEvent || e.id != EventDataDescriptorChanged {
		return nil, nil, false
	}
	value, _ = e.params[ParamDataDescriptor].(*DataDescriptor)
	domain, _ = e.params[ParamDomainDataDescriptor].(*DataDescriptor)
	return value, domain, true
}
