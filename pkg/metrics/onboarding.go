package metrics

import "github.com/prometheus/client_golang/prometheus"

// OnboardingMetrics records wizard transitions and remote call outcomes.
type OnboardingMetrics struct {
	transitions *prometheus.CounterVec
	calls       *prometheus.CounterVec
}

// NewOnboardingMetrics registers the onboarding metrics on the provided registerer.
func NewOnboardingMetrics(reg prometheus.Registerer) *OnboardingMetrics {
	if reg == nil {
		return &OnboardingMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_transitions_total",
		Help: "Wizard phase transitions.",
	}, []string{"from", "to"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_remote_calls_total",
		Help: "Remote calls issued by the wizard by call and outcome.",
	}, []string{"call", "outcome"})
	reg.MustRegister(transitions, calls)
	return &OnboardingMetrics{
		transitions: transitions,
		calls:       calls,
	}
}

// IncTransition counts a phase change.
func (o *OnboardingMetrics) IncTransition(from, to string) {
	if o == nil || o.transitions == nil {
		return
	}
	o.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncCall counts a remote call outcome.
func (o *OnboardingMetrics) IncCall(call, outcome string) {
	if o == nil || o.calls == nil {
		return
	}
	o.calls.WithLabelValues(normalizeLabel(call), normalizeLabel(outcome)).Inc()
}
