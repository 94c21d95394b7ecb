package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	m.ObserveRun("reservation_sweeper", 250*time.Millisecond, nil)
	m.ObserveRun("reservation_sweeper", time.Second, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	runs := findMetricFamily(families, "leafshop_cron_job_runs_total")
	if runs == nil {
		t.Fatal("runs counter not exported")
	}
	for _, tc := range []struct {
		job, result string
		want        float64
	}{
		{"reservation_sweeper", resultSuccess, 1},
		{"reservation_sweeper", resultFailure, 1},
		{"unknown", resultSuccess, 1},
	} {
		metric := metricWithLabels(runs, map[string]string{"job": tc.job, "result": tc.result})
		if metric == nil || metric.GetCounter().GetValue() != tc.want {
			t.Fatalf("runs{job=%s,result=%s}: got %v", tc.job, tc.result, metric)
		}
	}

	last := metricWithLabels(findMetricFamily(families, "leafshop_cron_job_last_success_timestamp_seconds"), map[string]string{"job": "reservation_sweeper"})
	if last == nil || last.GetGauge().GetValue() != float64(fixed.Unix()) {
		t.Fatalf("unexpected last success gauge %v", last)
	}

	hist := metricWithLabels(findMetricFamily(families, "leafshop_cron_job_duration_seconds"), map[string]string{"job": "reservation_sweeper"})
	if hist == nil || hist.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected two duration samples, got %v", hist)
	}
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, nil)
	NewCronJobMetrics(nil).ObserveRun("job", time.Second, errors.New("x"))
}
