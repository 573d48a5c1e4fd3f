package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "orderflood"

// Recorder holds the collectors for one run. Each run gets its own set so
// tests and repeated runs in one process never share counters.
type Recorder struct {
	Initiated prometheus.Counter
	Requests  *prometheus.CounterVec
	InFlight  prometheus.Gauge
	Latency   prometheus.Histogram
	Ticks     prometheus.Counter
}

func NewRecorder() *Recorder {
	return &Recorder{
		Initiated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_initiated_total",
			Help:      "Sends handed to the sender",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Settled sends by outcome",
		}, []string{"status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Sends initiated but not yet settled",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from send start to settle",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks that dispatched a batch",
		}),
	}
}

func (r *Recorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.Initiated, r.Requests, r.InFlight, r.Latency, r.Ticks}
}

// Registry returns a fresh registry with this recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range r.Collectors() {
		reg.MustRegister(c)
	}
	return reg
}

func (r *Recorder) ObserveSettled(ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	r.Requests.WithLabelValues(status).Inc()
	r.Latency.Observe(seconds)
}
