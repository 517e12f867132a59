package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gatehouse-app/gatehouse/backend/internal/gate"
	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GateStats{}))
	return db
}

func newTestAggregator(t *testing.T) (*Aggregator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	agg := NewAggregator(setupTestDB(t), store, "aggregator-test-secret")
	return agg, store
}

func TestAggregator_RecordBlocked(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/pricing", ClientIP: "203.0.113.9"})
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/pricing", ClientIP: "203.0.113.9"})
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/about", ClientIP: "203.0.113.10"})

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), out.AllTime.Blocked)
	assert.Equal(t, int64(0), out.AllTime.Bypass)
	assert.Equal(t, int64(3), out.Last24h.Blocked)
	assert.Equal(t, 2, out.Last24h.UniqueVisitors)

	require.Len(t, out.Last24h.TopBlockedPaths, 2)
	assert.Equal(t, PathCount{Path: "/pricing", Count: 2}, out.Last24h.TopBlockedPaths[0])
	assert.Equal(t, PathCount{Path: "/about", Count: 1}, out.Last24h.TopBlockedPaths[1])
}

func TestAggregator_RecordBypass(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		agg.RecordBypass(ctx, gate.RequestInfo{Path: "/", ClientIP: "203.0.113.9"}, gate.ReasonIPWhitelist)
	}
	agg.RecordBypass(ctx, gate.RequestInfo{Path: "/", ClientIP: "203.0.113.9"}, gate.ReasonPrivateCookie)

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.AllTime.Bypass)
	assert.Equal(t, int64(4), out.Last24h.Bypass)
	// Bypass traffic never feeds the unique-visitor set.
	assert.Equal(t, 0, out.Last24h.UniqueVisitors)

	require.Len(t, out.Last24h.ByReason, 2)
	assert.Equal(t, ReasonCount{Reason: "ip_whitelist", Count: 3}, out.Last24h.ByReason[0])
	assert.Equal(t, ReasonCount{Reason: "private_cookie", Count: 1}, out.Last24h.ByReason[1])
	assert.Equal(t, out.Last24h.ByReason, out.AllTime.ByReason)
}

func TestAggregator_ReasonTieBreak(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.RecordBypass(ctx, gate.RequestInfo{Path: "/"}, gate.ReasonPrivateToken)
	agg.RecordBypass(ctx, gate.RequestInfo{Path: "/"}, gate.ReasonIPWhitelist)

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)

	// Equal counts sort by reason name.
	require.Len(t, out.Last24h.ByReason, 2)
	assert.Equal(t, "ip_whitelist", out.Last24h.ByReason[0].Reason)
	assert.Equal(t, "private_token", out.Last24h.ByReason[1].Reason)
}

func TestAggregator_SkipsNonVisitorTraffic(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", IsPreview: true})
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", IsAdmin: true})
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", IsCron: true})
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", IsCLI: true})
	agg.RecordBypass(ctx, gate.RequestInfo{Path: "/x", IsAdmin: true}, gate.ReasonAdmin)
	agg.RecordBypass(ctx, gate.RequestInfo{Path: "/x"}, gate.ReasonNone)

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.AllTime.Blocked)
	assert.Zero(t, out.AllTime.Bypass)
	assert.Zero(t, out.Last24h.Blocked)
	assert.Zero(t, out.Last24h.Bypass)
}

func TestAggregator_TopPathsLimit(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		path := "/section-" + string(rune('a'+i))
		for j := 0; j <= i; j++ {
			agg.RecordBlocked(ctx, gate.RequestInfo{Path: path, ClientIP: "203.0.113.9"})
		}
	}

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)

	require.Len(t, out.Last24h.TopBlockedPaths, 10)
	assert.Equal(t, int64(15), out.Last24h.TopBlockedPaths[0].Count)
	assert.Equal(t, "/section-o", out.Last24h.TopBlockedPaths[0].Path)
	assert.Equal(t, int64(6), out.Last24h.TopBlockedPaths[9].Count)
}

func TestAggregator_PathsAreMaskedAndHashed(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/posts/12345", ClientIP: "203.0.113.9"})

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)
	require.Len(t, out.Last24h.TopBlockedPaths, 1)
	assert.Equal(t, "/posts/{n}", out.Last24h.TopBlockedPaths[0].Path)

	// Neither the raw path nor the raw IP lands in the stored blob.
	raw, err := store.Get(ctx, "gatehouse:stats:rolling")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "12345")
	assert.NotContains(t, string(raw), "203.0.113.9")
}

func TestAggregator_Reset(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", ClientIP: "203.0.113.9"})
	require.NoError(t, agg.Reset(ctx))

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.AllTime.Blocked)
	assert.Zero(t, out.Last24h.Blocked)
	assert.Zero(t, out.Last24h.UniqueVisitors)

	raw, err := store.Get(ctx, "gatehouse:stats:rolling")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestAggregator_CorruptBlobStartsOver(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "gatehouse:stats:rolling", []byte("{corrupt"), time.Hour))

	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", ClientIP: "203.0.113.9"})

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Last24h.Blocked)
}

func TestAggregator_SweepExpiresOldEntries(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	agg.now = func() time.Time { return base }
	agg.RecordBlocked(ctx, gate.RequestInfo{Path: "/x", ClientIP: "203.0.113.9"})

	// A day later the sweep clears the per-entry state. The plain counters
	// stay until the blob's TTL expires it wholesale.
	agg.now = func() time.Time { return base.Add(25 * time.Hour) }
	require.NoError(t, agg.Sweep(ctx))

	out, err := agg.GetOverview(ctx)
	require.NoError(t, err)
	assert.Zero(t, out.Last24h.UniqueVisitors)
	assert.Empty(t, out.Last24h.TopBlockedPaths)
}

func TestAggregator_SweepWithoutBlobIsNoop(t *testing.T) {
	agg, _ := newTestAggregator(t)
	require.NoError(t, agg.Sweep(context.Background()))
}
