package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iml1s/xmrigminer/internal/model"
)

const namespace = "xmrigminer"

// Metrics mirrors the published snapshot as prometheus collectors.
type Metrics struct {
	hashrate     *prometheus.GaugeVec
	shares       *prometheus.GaugeVec
	difficulty   prometheus.Gauge
	running      prometheus.Gauge
	pollFailures prometheus.Counter
}

// NewMetrics registers the collectors in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		hashrate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hashrate",
			Help:      "Worker hashrate in H/s per averaging window.",
		}, []string{"window"}),
		shares: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shares",
			Help:      "Shares of the current session by result.",
		}, []string{"result"}),
		difficulty: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "difficulty",
			Help:      "Current job difficulty.",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the worker is running.",
		}),
		pollFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_failures_total",
			Help:      "Failed status polls.",
		}),
	}
}

func (m *Metrics) active() {
	if m == nil {
		return
	}
	m.running.Set(1)
}

func (m *Metrics) observe(st model.MiningStats) {
	if m == nil {
		return
	}
	m.hashrate.WithLabelValues("current").Set(st.Hashrate)
	m.hashrate.WithLabelValues("10s").Set(st.Hashrate10s)
	m.hashrate.WithLabelValues("60s").Set(st.Hashrate60s)
	m.hashrate.WithLabelValues("15m").Set(st.Hashrate15m)
	m.shares.WithLabelValues("accepted").Set(float64(st.SharesAccepted))
	m.shares.WithLabelValues("rejected").Set(float64(st.SharesRejected))
	m.difficulty.Set(float64(st.Difficulty))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.pollFailures.Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.running.Set(0)
	m.hashrate.Reset()
	m.shares.Reset()
	m.difficulty.Set(0)
}
