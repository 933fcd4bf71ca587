// pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values besides the atomicfile kinds.
const (
	ResultOK    = "ok"
	ResultOther = "error"
)

// Collectors groups the commit metrics exported on /metrics.
type Collectors struct {
	Commits  *prometheus.CounterVec
	Bytes    prometheus.Counter
	Duration prometheus.Histogram
}

func New() *Collectors {
	return &Collectors{
		Commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atomicw_commits_total",
			Help: "Atomic commits by result.",
		}, []string{"result"}),
		Bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atomicw_bytes_written_total",
			Help: "Bytes made visible by successful commits.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atomicw_commit_duration_seconds",
			Help:    "Latency of write+commit, including sync.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// MustRegister registers every collector with reg.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.Commits, c.Bytes, c.Duration)
}

// Observe records one commit attempt. A nil receiver is a no-op.
func (c *Collectors) Observe(start time.Time, n int64, err error) {
	if c == nil {
		return
	}
	c.Duration.Observe(time.Since(start).Seconds())
	c.Commits.WithLabelValues(Result(err)).Inc()
	if err == nil {
		c.Bytes.Add(float64(n))
	}
}

// Result maps err to a result label.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	if k := atomicfile.KindOf(err); k != 0 {
		return k.String()
	}
	return ResultOther
}
