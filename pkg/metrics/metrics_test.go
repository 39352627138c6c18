package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSessionMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSessionMetrics(reg)
	metrics.Observe("login", OutcomeSuccess, 250*time.Millisecond)
	metrics.Observe("login", OutcomeRejected, 10*time.Millisecond)
	metrics.Observe("refresh", OutcomeFailure, 10*time.Millisecond)
	metrics.IncStorageWipe()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "session_operations_total", map[string]string{"operation": "login", "outcome": OutcomeSuccess}); err != nil {
		t.Fatalf("fetch login success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected login success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "session_operations_total", map[string]string{"operation": "refresh", "outcome": OutcomeFailure}); err != nil {
		t.Fatalf("fetch refresh failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected refresh failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "session_operation_duration_seconds", map[string]string{"operation": "login"}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0.25 {
		t.Fatalf("expected duration sum > 0.25, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "session_storage_wipes_total", nil); err != nil {
		t.Fatalf("fetch wipes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected wipes=1, got %f", got)
	}
}

func TestOnboardingMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewOnboardingMetrics(reg)
	metrics.IncTransition("awaiting_profile", "creating_profile")
	metrics.IncCall("upload_logo", OutcomeSuccess)
	metrics.IncCall("", OutcomeFailure)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "onboarding_transitions_total", map[string]string{"from": "awaiting_profile", "to": "creating_profile"}); err != nil {
		t.Fatalf("fetch transition: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transition=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "onboarding_remote_calls_total", map[string]string{"call": "unknown", "outcome": OutcomeFailure}); err != nil {
		t.Fatalf("fetch unknown call: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown call=1, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var session *SessionMetrics
	session.Observe("login", OutcomeSuccess, time.Second)
	session.IncStorageWipe()
	NewSessionMetrics(nil).Observe("login", OutcomeSuccess, time.Second)

	var onboarding *OnboardingMetrics
	onboarding.IncTransition("a", "b")
	onboarding.IncCall("create_profile", OutcomeSuccess)
	NewOnboardingMetrics(nil).IncCall("create_profile", OutcomeSuccess)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
