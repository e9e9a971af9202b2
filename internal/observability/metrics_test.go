package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnregisteredMetrics_StaysOffDefaultRegistry(t *testing.T) {
	a := NewUnregisteredMetrics()
	b := NewUnregisteredMetrics()
	a.RecordsPublished.Add(3)

	assert.InDelta(t, 3, testutil.ToFloat64(a.RecordsPublished), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.RecordsPublished), 0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.False(t, strings.HasPrefix(f.GetName(), namespace+"_"), "unexpected registered metric %s", f.GetName())
	}
}

func TestNewUnregisteredMetrics_Registrable(t *testing.T) {
	m := NewUnregisteredMetrics()
	reg := prometheus.NewRegistry()

	require.NoError(t, reg.Register(m.RecordsLoaded))
	require.NoError(t, reg.Register(m.RowsDropped))
}
