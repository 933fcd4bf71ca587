package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	c := New()
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	start := time.Now()
	c.Observe(start, 5, nil)
	c.Observe(start, 7, nil)
	c.Observe(start, 3, &atomicfile.Error{Kind: atomicfile.KindAlreadyExists, Path: "/x"})
	c.Observe(start, 3, errors.New("bad key"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Commits.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Commits.WithLabelValues("already_exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Commits.WithLabelValues(ResultOther)))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.Bytes))

	n, err := testutil.GatherAndCount(reg, "atomicw_commit_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestObserveNil(t *testing.T) {
	var c *Collectors
	assert.NotPanics(t, func() { c.Observe(time.Now(), 1, nil) })
}
