package telemetry

import "github.com/prometheus/client_golang/prometheus"

// MonitorMetrics holds the divergence monitor's exported gauges.
type MonitorMetrics struct {
	JensenShannon *prometheus.GaugeVec
	Wasserstein   *prometheus.GaugeVec
	Kolmogorov    *prometheus.GaugeVec
	FamilyStatus  *prometheus.GaugeVec
	AlertsActive  *prometheus.GaugeVec
}

// NewMonitorMetrics constructs and registers the monitor's gauges.
func NewMonitorMetrics(r *Registry) *MonitorMetrics {
	m := &MonitorMetrics{
		JensenShannon: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "divergence_jensen_shannon",
			Help: "Jensen-Shannon divergence per family and distribution type.",
		}, []string{"family_id", "distribution_type"}),
		Wasserstein: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "divergence_wasserstein",
			Help: "Wasserstein-like distance per family.",
		}, []string{"family_id"}),
		Kolmogorov: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "divergence_kolmogorov_smirnov",
			Help: "KS-like statistic per family.",
		}, []string{"family_id"}),
		FamilyStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "family_status",
			Help: "0=green 1=amber 2=red per family.",
		}, []string{"family_id", "metric_name"}),
		AlertsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alerts_active",
			Help: "Active alerts by severity and type.",
		}, []string{"severity", "type"}),
	}
	r.MustRegister(m.JensenShannon, m.Wasserstein, m.Kolmogorov, m.FamilyStatus, m.AlertsActive)
	return m
}
