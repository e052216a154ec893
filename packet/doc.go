// Package packet defines the data model carried along the signal data path:
// sample types, data descriptors and the two packet kinds.
//
// A DataDescriptor is the structural metadata of a sample stream. Descriptors are
// immutable and built through DataDescriptorBuilder:
//
//	desc, err := packet.NewDataDescriptorBuilder().
//		SetName("voltage").
//		SetSampleType(packet.SampleTypeInt16).
//		SetPostScaling(packet.Scaling{
//			InputType:  packet.SampleTypeInt16,
//			OutputType: packet.SampleTypeFloat64,
//			Scale:      0.001,
//		}).
//		Build()
//
// DataPacket carries samples. RawData holds the buffer in the raw sample type; Data
// evaluates implicit rules and post-scaling lazily, once per packet. Packets are
// shared by pointer between every connection of a signal and must not be modified
// after they are sent.
//
// EventPacket carries control events. The only event the readers interpret is
// DATA_DESCRIPTOR_CHANGED; see NewDataDescriptorChangedEvent.
package packet
