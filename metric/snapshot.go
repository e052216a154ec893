package metric

import (
	"strings"

	dto "github.com/prometheus/client_model/go"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

// CounterTotals gathers the registry and sums every counter family whose name
// starts with prefix over all label sets.
func (r *MetricsRegistry) CounterTotals(prefix string) (map[string]float64, error) {
	families, err := r.prometheusRegistry.Gather()
	if err != nil {
		return nil, errors.WrapTransient(err, "MetricsRegistry", "CounterTotals", "gather")
	}
	return counterTotals(families, prefix), nil
}

func counterTotals(families []*dto.MetricFamily, prefix string) map[string]float64 {
	totals := make(map[string]float64)
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER || !strings.HasPrefix(family.GetName(), prefix) {
			continue
		}
		var sum float64
		for _, m := range family.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		totals[family.GetName()] = sum
	}
	return totals
}
