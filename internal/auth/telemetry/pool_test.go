package telemetry_test

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	red "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/mentorlink/internal/auth/telemetry"
)

func TestPoolCollector(t *testing.T) {
	mr := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	require.NoError(t, client.Ping(context.Background()).Err())

	reg := prometheus.NewRegistry()
	_, err := telemetry.NewPoolCollector(telemetry.Options{Registerer: reg}, client)
	require.NoError(t, err)

	// Re-registering returns the existing collector.
	_, err = telemetry.NewPoolCollector(telemetry.Options{Registerer: reg}, client)
	require.NoError(t, err)

	stats := client.PoolStats()
	expected := `
# HELP mentorlink_redis_pool_connections Connections currently in the pool.
# TYPE mentorlink_redis_pool_connections gauge
mentorlink_redis_pool_connections ` + itoa(stats.TotalConns) + `
# HELP mentorlink_redis_pool_hits_total Times a free connection was found in the pool.
# TYPE mentorlink_redis_pool_hits_total counter
mentorlink_redis_pool_hits_total ` + itoa(stats.Hits) + `
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"mentorlink_redis_pool_connections",
		"mentorlink_redis_pool_hits_total",
	))
	require.Positive(t, stats.TotalConns)
	require.Positive(t, stats.Hits)
}

func itoa(n uint32) string {
	return strconv.FormatUint(uint64(n), 10)
}
