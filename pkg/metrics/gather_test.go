package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

// metricWithLabels returns the series of family carrying every label in want.
func metricWithLabels(family *dto.MetricFamily, want map[string]string) *dto.Metric {
	if family == nil {
		return nil
	}
	for _, metric := range family.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return metric
		}
	}
	return nil
}

func fetchCounterValue(families []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric := metricWithLabels(findMetricFamily(families, name), map[string]string{label: value})
	if metric == nil {
		return 0, fmt.Errorf("%s{%s=%q} not found", name, label, value)
	}
	return metric.GetCounter().GetValue(), nil
}
