package reader

import (
	"github.com/openDAQ/openDAQ-sub014/packet"
)

// sampleDecoder tracks the active value and domain descriptors of one port and
// converts packet payloads into typed slices.
type sampleDecoder[V, D Number] struct {
	mode ReadMode

	valueDesc  *packet.DataDescriptor
	domainDesc *packet.DataDescriptor
	valueConv  *converter[V]
	domainConv *converter[D]

	valueTransform  Transform[V]
	domainTransform Transform[D]
}

// apply switches to new descriptors. A nil descriptor leaves that side unchanged.
// On error neither side changes.
func (d *sampleDecoder[V, D]) apply(value, domain *packet.DataDescriptor) error {
	var vc *converter[V]
	var dc *converter[D]
	var err error
	if value != nil {
		if vc, err = newConverter[V](value, d.mode); err != nil {
			return err
		}
	}
	if domain != nil {
		// Domain values are always read through their rule; Raw applies to values only.
		if dc, err = newConverter[D](domain, Scaled); err != nil {
			return err
		}
	}
	if vc != nil {
		d.valueDesc, d.valueConv = value, vc
	}
	if dc != nil {
		d.domainDesc, d.domainConv = domain, dc
	}
	return nil
}

// values converts samples [from, from+len(dst)) of p.
func (d *sampleDecoder[V, D]) values(p *packet.DataPacket, from int, dst []V) error {
	if d.valueConv == nil || d.valueConv.desc != p.Descriptor() {
		vc, err := newConverter[V](p.Descriptor(), d.mode)
		if err != nil {
			return err
		}
		d.valueConv = vc
		if d.valueDesc == nil {
			d.valueDesc = p.Descriptor()
		}
	}
	d.valueConv.convert(p, from, dst)
	if d.valueTransform != nil {
		d.valueTransform(dst, d.valueConv.desc)
	}
	return nil
}

// domains converts the matching domain samples of p. It reports false, leaving dst
// zeroed, when p carries no domain packet.
func (d *sampleDecoder[V, D]) domains(p *packet.DataPacket, from int, dst []D) (bool, error) {
	dom := p.Domain()
	if dom == nil || dom.SampleCount() < from+len(dst) {
		clear(dst)
		return false, nil
	}
	if d.domainConv == nil || d.domainConv.desc != dom.Descriptor() {
		dc, err := newConverter[D](dom.Descriptor(), Scaled)
		if err != nil {
			return false, err
		}
		d.domainConv = dc
		if d.domainDesc == nil {
			d.domainDesc = dom.Descriptor()
		}
	}
	d.domainConv.convert(dom, from, dst)
	if d.domainTransform != nil {
		d.domainTransform(dst, d.domainConv.desc)
	}
	return true, nil
}

// offsetOf returns the domain value of sample i of p.
func offsetOf(p *packet.DataPacket, i int) (int64, bool) {
	dom := p.Domain()
	if dom == nil || i >= dom.SampleCount() || !dom.Descriptor().SampleType().IsNumeric() {
		return 0, false
	}
	return dom.Int64At(i), true
}
