// Package reader provides typed readers over input ports.
//
// Four readers share one port binding, which owns wake-ups and validity. None
// of them is built on another:
//
//	PacketReader   dequeues raw packets
//	StreamReader   reads samples of one signal in order, converted to V
//	TailReader     returns the newest samples of one signal without consuming them
//	MultiReader    reads several signals in blocks aligned on a common time base
//
// Typed readers are generic over the value type V and the domain type D, both
// numeric. Values are converted from the packet sample type according to the
// ReadMode; domain values are always evaluated through their data rule.
//
// # Reading
//
//	r, err := reader.NewStreamReader[float64, int64](sig)
//	values := make([]float64, 100)
//	n, status, err := r.Read(values, 50*time.Millisecond)
//
// A read returns the number of samples copied and a ReaderStatus. A read stops
// early at an event packet and reports it with status Event, so the caller sees
// descriptor changes on the sample boundary where they happen. Blocking reads wait
// for new packets until the timeout expires; with ReadTimeoutType Any they return
// as soon as some samples are available.
//
// # Validity
//
// A reader becomes invalid when its port is disconnected, when MarkAsInvalid is
// called, after a conversion failure and after its port is handed to another reader
// with one of the FromExisting constructors. Reads on an invalid reader return zero
// samples with status.Valid false and no error. A blocked read wakes immediately.
package reader
