package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

func TestCollectorCounts(t *testing.T) {
	m := block.NewManager(block.NewResourceMonitor(1 << 20))
	c := NewCollector(m)
	c.AddStats("Filter", executor.Stats{Filtered: 3})
	c.AddStats("Limit", executor.Stats{FullCount: 5})
	c.AddStats("Limit", executor.Stats{})
	c.ObservePull("Filter", types.StateHasMore, 4)
	c.ObservePull("Filter", types.StateWaiting, 0)

	require.Equal(t, 3.0, testutil.ToFloat64(c.filtered.WithLabelValues("Filter")))
	require.Equal(t, 5.0, testutil.ToFloat64(c.fullCount.WithLabelValues("Limit")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.pulls.WithLabelValues("Filter", "WAITING")))
	require.Equal(t, 4.0, testutil.ToFloat64(c.rows.WithLabelValues("Filter")))
}

func TestCollectorBudgetGauges(t *testing.T) {
	m := block.NewManager(block.NewResourceMonitor(1 << 20))
	c := NewCollector(m)
	b, err := m.RequestBlock(4, 2)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, "blockexec_block_bytes_limit 1.048576e+06")
	require.Contains(t, body, "blockexec_blocks_requested_total 1")
	require.True(t, strings.Contains(body, "blockexec_block_bytes_in_use 192"), body)
	m.ReturnBlock(b)
}
