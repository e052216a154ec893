// Package testutil provides fixtures for data path and reader tests.
//
// Descriptor factories build valid value, scaled, struct and linear time
// descriptors. RampProducer drives a value signal and its domain signal with
// sample i carrying value i and tick i*delta, so tests can assert on exact
// positions:
//
//	p := testutil.NewRampProducer(t, "ai0", 10)
//	r, _ := reader.NewStreamReader[float64, int64](p.Value)
//	p.Send(t, 100)
//
// RecordingListener counts InputPortNotifications callbacks and ManualScheduler
// holds scheduled callbacks until the test runs them.
package testutil
