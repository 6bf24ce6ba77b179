package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FileName is the node-exporter textfile written with -d stats.
const FileName = "metrics.prom"

type Metric struct {
	name string
	/// Number of times we've hit the code path.
	count int
	/// Total time we've spent on the code path.
	sum time.Duration
}

// Metrics records per-phase timings and per-unit outcomes of one build.
type Metrics struct {
	registry_ *prometheus.Registry
	units_    *prometheus.CounterVec
	duration_ *prometheus.HistogramVec
	phases_   *prometheus.GaugeVec

	mu_      sync.Mutex
	metrics_ map[string]*Metric
}

func NewMetrics() *Metrics {
	ret := &Metrics{
		registry_: prometheus.NewRegistry(),
		units_: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "megaton_units_total",
			Help: "Compile and link units run, by kind and result.",
		}, []string{"kind", "result"}),
		duration_: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "megaton_unit_duration_seconds",
			Help:    "Wall time of compile and link units.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
		phases_: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "megaton_phase_duration_seconds",
			Help: "Wall time spent in each build phase.",
		}, []string{"phase"}),
		metrics_: make(map[string]*Metric),
	}
	ret.registry_.MustRegister(ret.units_, ret.duration_, ret.phases_)
	return ret
}

func (this *Metrics) record(name string, d time.Duration) {
	this.mu_.Lock()
	defer this.mu_.Unlock()
	m, ok := this.metrics_[name]
	if !ok {
		m = &Metric{name: name}
		this.metrics_[name] = m
	}
	m.count++
	m.sum += d
}

// Unit records one finished compile or link.
func (this *Metrics) Unit(kind string, success bool, d time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	this.units_.WithLabelValues(kind, result).Inc()
	this.duration_.WithLabelValues(kind).Observe(d.Seconds())
	this.record(kind, d)
}

// Phase starts timing a build phase; call the returned func when it ends.
func (this *Metrics) Phase(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		this.phases_.WithLabelValues(name).Add(d.Seconds())
		this.record(name, d)
	}
}

// WriteTextfile writes the registry in the text exposition format.
func (this *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, this.registry_)
}

// / Print a summary report.
func (this *Metrics) Report(w io.Writer) {
	this.mu_.Lock()
	defer this.mu_.Unlock()
	names := make([]string, 0, len(this.metrics_))
	width := len("metric")
	for name := range this.metrics_ {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	fmt.Fprintf(w, "%-*s\t%-6s\t%-9s\t%s\n", width, "metric", "count", "avg (us)", "total (ms)")
	for _, name := range names {
		m := this.metrics_[name]
		micros := m.sum.Microseconds()
		total := float64(micros) / 1000
		avg := float64(micros) / float64(m.count)
		fmt.Fprintf(w, "%-*s\t%-6d\t%-8.1f\t%.1f\n", width, m.name, m.count, avg, total)
	}
}
