package analytics

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gatehouse-app/gatehouse/backend/internal/gate"
	"github.com/gatehouse-app/gatehouse/backend/internal/logger"
	"github.com/gatehouse-app/gatehouse/backend/internal/metrics"
	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

const (
	rollingKey = "gatehouse:stats:rolling"
	// rollingTTL exceeds the window by an hour so an idle site eventually
	// drops the blob entirely instead of pruning it forever.
	rollingTTL = 25 * time.Hour

	topPathLimit = 10
)

// Aggregator records gate outcomes into the all-time counters (relational)
// and the 24h rolling blob (TTL store). Writes are best effort: a failed
// store write drops the tally rather than failing the request.
type Aggregator struct {
	db     *gorm.DB
	store  Store
	secret []byte
	now    func() time.Time
}

// NewAggregator wires an aggregator. secret keys the HMAC applied to every
// IP and masked path before storage.
func NewAggregator(db *gorm.DB, store Store, secret string) *Aggregator {
	return &Aggregator{db: db, store: store, secret: []byte(secret), now: time.Now}
}

// RecordBlocked tallies a blocked request.
func (a *Aggregator) RecordBlocked(ctx context.Context, req gate.RequestInfo) {
	a.record(ctx, req, gate.ReasonNone, true)
}

// RecordBypass tallies a request that passed the gate with the given reason.
func (a *Aggregator) RecordBypass(ctx context.Context, req gate.RequestInfo, reason gate.Reason) {
	if reason == gate.ReasonNone {
		return
	}
	a.record(ctx, req, reason, false)
}

func (a *Aggregator) record(ctx context.Context, req gate.RequestInfo, reason gate.Reason, blocked bool) {
	// Only real end-user traffic is counted.
	if req.IsPreview || req.IsAdmin || req.IsCron || req.IsCLI {
		return
	}

	if blocked {
		metrics.IncBlocked()
	} else {
		metrics.IncBypass(string(reason))
	}

	a.recordAllTime(reason, blocked)
	a.recordRolling(ctx, req, reason, blocked)
}

func (a *Aggregator) recordAllTime(reason gate.Reason, blocked bool) {
	var stats models.GateStats
	err := a.db.First(&stats).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		stats = models.GateStats{UUID: uuid.NewString(), ByReason: "{}"}
	case err != nil:
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("load all-time gate stats")
		return
	}

	if blocked {
		stats.BlockedTotal++
	} else {
		stats.BypassTotal++
		counts := stats.ReasonCounts()
		counts[string(reason)]++
		stats.SetReasonCounts(counts)
	}

	if err := a.db.Save(&stats).Error; err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("save all-time gate stats")
	}
}

func (a *Aggregator) recordRolling(ctx context.Context, req gate.RequestInfo, reason gate.Reason, blocked bool) {
	rolling, err := a.loadRolling(ctx)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("load rolling gate stats")
		return
	}

	now := a.now()
	rolling.Prune(now)

	masked := MaskPath(req.Path)
	bucket := rolling.Paths.Bypass
	if blocked {
		rolling.Blocked++
		bucket = rolling.Paths.Blocked
		if req.ClientIP != "" {
			rolling.Unique[a.hash(req.ClientIP)] = now.Unix()
		}
	} else {
		rolling.Bypass++
		rolling.ByReason[string(reason)]++
	}

	entry := bucket[a.hash(masked)]
	entry.Count++
	entry.Masked = masked
	entry.LastSeen = now.Unix()
	bucket[a.hash(masked)] = entry

	rolling.Prune(now)
	if err := a.saveRolling(ctx, rolling); err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("save rolling gate stats")
	}
}

// ReasonCount pairs a bypass reason with its tally.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// PathCount pairs a masked path with its tally.
type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// Overview is the assembled analytics summary served to the admin UI.
type Overview struct {
	AllTime struct {
		Blocked  int64         `json:"blocked"`
		Bypass   int64         `json:"bypass"`
		ByReason []ReasonCount `json:"by_reason"`
		Since    time.Time     `json:"since"`
	} `json:"all_time"`
	Last24h struct {
		Blocked         int64         `json:"blocked"`
		Bypass          int64         `json:"bypass"`
		ByReason        []ReasonCount `json:"by_reason"`
		UniqueVisitors  int           `json:"unique_visitors"`
		TopBlockedPaths []PathCount   `json:"top_blocked_paths"`
		TopBypassPaths  []PathCount   `json:"top_bypass_paths"`
	} `json:"last_24h"`
}

// GetOverview assembles all-time and rolling totals, reason breakdowns
// sorted descending and the top masked paths per bucket.
func (a *Aggregator) GetOverview(ctx context.Context) (*Overview, error) {
	out := &Overview{}

	var stats models.GateStats
	err := a.db.First(&stats).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err == nil {
		out.AllTime.Blocked = stats.BlockedTotal
		out.AllTime.Bypass = stats.BypassTotal
		out.AllTime.ByReason = sortedReasons(stats.ReasonCounts())
		out.AllTime.Since = stats.CreatedAt
	}

	rolling, err := a.loadRolling(ctx)
	if err != nil {
		return nil, err
	}
	rolling.Prune(a.now())

	out.Last24h.Blocked = rolling.Blocked
	out.Last24h.Bypass = rolling.Bypass
	out.Last24h.ByReason = sortedReasons(rolling.ByReason)
	out.Last24h.UniqueVisitors = len(rolling.Unique)
	out.Last24h.TopBlockedPaths = topPaths(rolling.Paths.Blocked, topPathLimit)
	out.Last24h.TopBypassPaths = topPaths(rolling.Paths.Bypass, topPathLimit)

	return out, nil
}

// Reset wipes both the all-time row and the rolling blob.
func (a *Aggregator) Reset(ctx context.Context) error {
	if err := a.db.Where("1 = 1").Delete(&models.GateStats{}).Error; err != nil {
		return err
	}
	return a.store.Delete(ctx, rollingKey)
}

// Sweep re-prunes the persisted rolling blob. Ran periodically by the
// janitor so bounded memory holds even when traffic stops mid-window.
func (a *Aggregator) Sweep(ctx context.Context) error {
	raw, err := a.store.Get(ctx, rollingKey)
	if err != nil || raw == nil {
		return err
	}
	rolling := &Rolling{}
	if err := json.Unmarshal(raw, rolling); err != nil {
		return a.store.Delete(ctx, rollingKey)
	}
	rolling.Prune(a.now())
	return a.saveRolling(ctx, rolling)
}

func (a *Aggregator) loadRolling(ctx context.Context) (*Rolling, error) {
	rolling := &Rolling{}
	raw, err := a.store.Get(ctx, rollingKey)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, rolling); err != nil {
			// A corrupt blob starts over rather than poisoning every write.
			rolling = &Rolling{}
		}
	}
	rolling.ensure()
	return rolling, nil
}

func (a *Aggregator) saveRolling(ctx context.Context, rolling *Rolling) error {
	raw, err := json.Marshal(rolling)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, rollingKey, raw, rollingTTL)
}

// hash anonymizes a value with the site-keyed HMAC before storage.
func (a *Aggregator) hash(value string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func sortedReasons(counts map[string]int64) []ReasonCount {
	out := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func topPaths(bucket map[string]PathEntry, limit int) []PathCount {
	out := make([]PathCount, 0, len(bucket))
	for _, entry := range bucket {
		out = append(out, PathCount{Path: entry.Masked, Count: entry.Count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
