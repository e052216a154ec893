package packet

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/pkg/timestamp"
)

// Ratio is a rational number, used for tick resolutions.
type Ratio struct {
	Num int64 `json:"num" yaml:"num"`
	Den int64 `json:"den" yaml:"den"`
}

// Float returns the ratio as float64, 0 for an invalid denominator.
func (r Ratio) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether the ratio is unset.
func (r Ratio) IsZero() bool {
	return r.Num == 0 && r.Den == 0
}

// Simplify reduces the ratio by the greatest common divisor.
func (r Ratio) Simplify() Ratio {
	g := GCD(r.Num, r.Den)
	if g == 0 {
		return r
	}
	return Ratio{Num: r.Num / g, Den: r.Den / g}
}

// Equal compares two ratios by value, so 1/1000 equals 2/2000.
func (r Ratio) Equal(o Ratio) bool {
	return r.Simplify() == o.Simplify()
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// GCD returns the greatest common divisor of a and b (always >= 0).
func GCD(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Unit describes the physical unit of a signal.
type Unit struct {
	ID       int    `json:"id,omitempty" yaml:"id,omitempty"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// Range is the expected value range of a signal.
type Range struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// RuleType selects how sample values are produced.
type RuleType int

const (
	// RuleExplicit means values are stored in the packet buffer.
	RuleExplicit RuleType = iota
	// RuleLinear computes value i as packetOffset + start + delta*i.
	RuleLinear
	// RuleConstant yields the same value for every sample of a packet.
	RuleConstant
)

func (t RuleType) String() string {
	switch t {
	case RuleExplicit:
		return "Explicit"
	case RuleLinear:
		return "Linear"
	case RuleConstant:
		return "Constant"
	default:
		return "Unknown"
	}
}

// DataRule describes whether values are explicit or computed.
type DataRule struct {
	Type     RuleType `json:"type" yaml:"type"`
	Delta    int64    `json:"delta,omitempty" yaml:"delta,omitempty"`
	Start    int64    `json:"start,omitempty" yaml:"start,omitempty"`
	Constant float64  `json:"constant,omitempty" yaml:"constant,omitempty"`
}

// ExplicitRule returns the default rule.
func ExplicitRule() DataRule { return DataRule{Type: RuleExplicit} }

// LinearRule returns a linear rule with the given delta and start.
func LinearRule(delta, start int64) DataRule {
	return DataRule{Type: RuleLinear, Delta: delta, Start: start}
}

// ConstantRule returns a constant rule with a default value.
func ConstantRule(value float64) DataRule {
	return DataRule{Type: RuleConstant, Constant: value}
}

// IsImplicit reports whether the rule computes values instead of storing them.
func (r DataRule) IsImplicit() bool {
	return r.Type != RuleExplicit
}

// Scaling is a linear post-scaling applied to raw values: out = raw*Scale + Offset.
type Scaling struct {
	InputType  SampleType `json:"input_type" yaml:"input_type"`
	OutputType SampleType `json:"output_type" yaml:"output_type"`
	Scale      float64    `json:"scale" yaml:"scale"`
	Offset     float64    `json:"offset" yaml:"offset"`
}

// Apply scales a single raw value.
func (s Scaling) Apply(raw float64) float64 {
	return raw*s.Scale + s.Offset
}

// Dimension describes one axis of a multi-element sample.
type Dimension struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

// StructField is one member of a composite sample.
type StructField struct {
	Name       string          `json:"name" yaml:"name"`
	Descriptor *DataDescriptor `json:"descriptor" yaml:"descriptor"`
}

// DataDescriptor is the structural metadata of a signal's sample stream.
// Descriptors are immutable; use DataDescriptorBuilder to derive a changed copy.
type DataDescriptor struct {
	name           string
	sampleType     SampleType
	dimensions     []Dimension
	unit           Unit
	valueRange     *Range
	rule           DataRule
	postScaling    *Scaling
	structFields   []StructField
	structName     string
	tickResolution Ratio
	origin         string
	metadata       map[string]string
}

func (d *DataDescriptor) Name() string             { return d.name }
func (d *DataDescriptor) SampleType() SampleType   { return d.sampleType }
func (d *DataDescriptor) Dimensions() []Dimension  { return slices.Clone(d.dimensions) }
func (d *DataDescriptor) Unit() Unit               { return d.unit }
func (d *DataDescriptor) Rule() DataRule           { return d.rule }
func (d *DataDescriptor) TickResolution() Ratio    { return d.tickResolution }
func (d *DataDescriptor) Origin() string           { return d.origin }
func (d *DataDescriptor) StructName() string       { return d.structName }
func (d *DataDescriptor) Fields() []StructField    { return slices.Clone(d.structFields) }
func (d *DataDescriptor) Metadata() map[string]string { return maps.Clone(d.metadata) }

// ValueRange returns the value range and whether one was set.
func (d *DataDescriptor) ValueRange() (Range, bool) {
	if d.valueRange == nil {
		return Range{}, false
	}
	return *d.valueRange, true
}

// PostScaling returns the post-scaling and whether one was set.
func (d *DataDescriptor) PostScaling() (Scaling, bool) {
	if d.postScaling == nil {
		return Scaling{}, false
	}
	return *d.postScaling, true
}

// RawSampleType is the type of values stored in packet buffers, which differs from
// SampleType when post-scaling is configured.
func (d *DataDescriptor) RawSampleType() SampleType {
	if d.postScaling != nil {
		return d.postScaling.InputType
	}
	return d.sampleType
}

// ElementCount is the number of elements in one sample (product of dimension sizes).
func (d *DataDescriptor) ElementCount() int {
	n := 1
	for _, dim := range d.dimensions {
		n *= dim.Size
	}
	return n
}

// SampleSize is the size in bytes of one sample after scaling.
func (d *DataDescriptor) SampleSize() int {
	if d.sampleType == SampleTypeStruct {
		size := 0
		for _, f := range d.structFields {
			size += f.Descriptor.SampleSize()
		}
		return size * d.ElementCount()
	}
	return d.sampleType.Size() * d.ElementCount()
}

// RawSampleSize is the size in bytes of one sample as stored in a packet buffer.
func (d *DataDescriptor) RawSampleSize() int {
	if d.postScaling != nil {
		return d.postScaling.InputType.Size() * d.ElementCount()
	}
	return d.SampleSize()
}

// IsDomain reports whether the descriptor carries a tick resolution.
func (d *DataDescriptor) IsDomain() bool {
	return !d.tickResolution.IsZero()
}

// TickToTime converts a tick of this domain into wall-clock time.
func (d *DataDescriptor) TickToTime(tick int64) (time.Time, error) {
	return timestamp.FromTicks(tick, d.tickResolution.Num, d.tickResolution.Den, d.origin)
}

// SampleRate returns samples per second for a linear domain descriptor, 0 otherwise.
func (d *DataDescriptor) SampleRate() float64 {
	if d.rule.Type != RuleLinear || d.rule.Delta == 0 || d.tickResolution.Float() == 0 {
		return 0
	}
	return 1 / (float64(d.rule.Delta) * d.tickResolution.Float())
}

// Validate checks internal consistency of the descriptor.
func (d *DataDescriptor) Validate() error {
	if d == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "DataDescriptor", "Validate", "nil descriptor")
	}
	if d.sampleType == SampleTypeUndefined || d.sampleType == SampleTypeNull {
		return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
			"sample type %s is not a valid stream type", d.sampleType)
	}
	for _, dim := range d.dimensions {
		if dim.Size <= 0 {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"dimension %q has size %d", dim.Name, dim.Size)
		}
	}
	if d.sampleType == SampleTypeStruct {
		if len(d.structFields) == 0 {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"struct descriptor %q has no fields", d.name)
		}
		for _, f := range d.structFields {
			if f.Descriptor == nil {
				return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
					"struct field %q has no descriptor", f.Name)
			}
			if err := f.Descriptor.Validate(); err != nil {
				return errors.Wrap(err, "DataDescriptor", "Validate", fmt.Sprintf("struct field %q", f.Name))
			}
		}
	} else if len(d.structFields) > 0 {
		return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
			"struct fields set on %s descriptor", d.sampleType)
	}
	switch d.rule.Type {
	case RuleLinear:
		if !d.sampleType.IsNumeric() {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"linear rule requires numeric sample type, got %s", d.sampleType)
		}
		if d.postScaling != nil {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"post-scaling cannot be combined with an implicit rule")
		}
	case RuleConstant:
		if !d.sampleType.IsNumeric() {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"constant rule requires numeric sample type, got %s", d.sampleType)
		}
	}
	if s := d.postScaling; s != nil {
		if !s.InputType.IsNumeric() || !s.OutputType.IsNumeric() {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"post-scaling requires numeric types, got %s -> %s", s.InputType, s.OutputType)
		}
		if s.OutputType != d.sampleType {
			return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
				"post-scaling output %s differs from sample type %s", s.OutputType, d.sampleType)
		}
	}
	if !d.tickResolution.IsZero() && d.tickResolution.Den == 0 {
		return errors.Invalidf(errors.ErrInvalidDescriptor, "DataDescriptor", "Validate",
			"tick resolution %s has zero denominator", d.tickResolution)
	}
	return nil
}

// Equal compares two descriptors by value.
func (d *DataDescriptor) Equal(o *DataDescriptor) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.name != o.name || d.sampleType != o.sampleType || d.unit != o.unit ||
		d.rule != o.rule || d.tickResolution != o.tickResolution || d.origin != o.origin ||
		d.structName != o.structName {
		return false
	}
	if !slices.Equal(d.dimensions, o.dimensions) || !maps.Equal(d.metadata, o.metadata) {
		return false
	}
	if (d.valueRange == nil) != (o.valueRange == nil) || (d.valueRange != nil && *d.valueRange != *o.valueRange) {
		return false
	}
	if (d.postScaling == nil) != (o.postScaling == nil) || (d.postScaling != nil && *d.postScaling != *o.postScaling) {
		return false
	}
	return slices.EqualFunc(d.structFields, o.structFields, func(a, b StructField) bool {
		return a.Name == b.Name && a.Descriptor.Equal(b.Descriptor)
	})
}

func (d *DataDescriptor) String() string {
	if d == nil {
		return "<nil descriptor>"
	}
	return fmt.Sprintf("%s(%s, rule=%s)", d.name, d.sampleType, d.rule.Type)
}

// DataDescriptorBuilder assembles a DataDescriptor.
type DataDescriptorBuilder struct {
	d DataDescriptor
}

// NewDataDescriptorBuilder starts a builder with an explicit Float64 layout.
func NewDataDescriptorBuilder() *DataDescriptorBuilder {
	return &DataDescriptorBuilder{d: DataDescriptor{sampleType: SampleTypeFloat64}}
}

// DataDescriptorBuilderFrom starts a builder from an existing descriptor.
func DataDescriptorBuilderFrom(src *DataDescriptor) *DataDescriptorBuilder {
	b := &DataDescriptorBuilder{d: *src}
	b.d.dimensions = slices.Clone(src.dimensions)
	b.d.structFields = slices.Clone(src.structFields)
	b.d.metadata = maps.Clone(src.metadata)
	return b
}

func (b *DataDescriptorBuilder) SetName(name string) *DataDescriptorBuilder {
	b.d.name = name
	return b
}

func (b *DataDescriptorBuilder) SetSampleType(st SampleType) *DataDescriptorBuilder {
	b.d.sampleType = st
	return b
}

func (b *DataDescriptorBuilder) SetDimensions(dims ...Dimension) *DataDescriptorBuilder {
	b.d.dimensions = slices.Clone(dims)
	return b
}

func (b *DataDescriptorBuilder) SetUnit(u Unit) *DataDescriptorBuilder {
	b.d.unit = u
	return b
}

func (b *DataDescriptorBuilder) SetValueRange(r Range) *DataDescriptorBuilder {
	b.d.valueRange = &r
	return b
}

func (b *DataDescriptorBuilder) SetRule(r DataRule) *DataDescriptorBuilder {
	b.d.rule = r
	return b
}

// SetPostScaling sets a linear post-scaling; the descriptor's sample type becomes
// the scaling output type.
func (b *DataDescriptorBuilder) SetPostScaling(s Scaling) *DataDescriptorBuilder {
	b.d.postScaling = &s
	b.d.sampleType = s.OutputType
	return b
}

func (b *DataDescriptorBuilder) SetStructFields(structName string, fields ...StructField) *DataDescriptorBuilder {
	b.d.sampleType = SampleTypeStruct
	b.d.structName = structName
	b.d.structFields = slices.Clone(fields)
	return b
}

func (b *DataDescriptorBuilder) SetTickResolution(r Ratio) *DataDescriptorBuilder {
	b.d.tickResolution = r
	return b
}

func (b *DataDescriptorBuilder) SetOrigin(origin string) *DataDescriptorBuilder {
	b.d.origin = origin
	return b
}

func (b *DataDescriptorBuilder) SetMetadata(key, value string) *DataDescriptorBuilder {
	if b.d.metadata == nil {
		b.d.metadata = make(map[string]string)
	}
	b.d.metadata[key] = value
	return b
}

// Build validates and returns the descriptor.
func (b *DataDescriptorBuilder) Build() (*DataDescriptor, error) {
	d := b.d
	d.dimensions = slices.Clone(b.d.dimensions)
	d.structFields = slices.Clone(b.d.structFields)
	d.metadata = maps.Clone(b.d.metadata)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// MustBuild is Build that panics on validation errors. Intended for static setups and tests.
func (b *DataDescriptorBuilder) MustBuild() *DataDescriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
