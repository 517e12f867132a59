package analytics

import (
	"sort"
	"time"
)

// Bounded-memory limits for the rolling window. Whatever the traffic volume,
// the blob never holds more than maxUniqueEntries visitor hashes and
// maxPathEntries paths per bucket.
const (
	rollingWindow    = 24 * time.Hour
	maxUniqueEntries = 10000
	maxPathEntries   = 400
)

// PathEntry is one masked path's tally inside the rolling window. Short JSON
// keys keep the serialized blob compact.
type PathEntry struct {
	Count    int64  `json:"c"`
	Masked   string `json:"m"`
	LastSeen int64  `json:"t"`
}

// PathBuckets splits path tallies by outcome.
type PathBuckets struct {
	Blocked map[string]PathEntry `json:"blocked"`
	Bypass  map[string]PathEntry `json:"bypass"`
}

// Rolling is the 24-hour analytics blob persisted in the TTL store. All keys
// in Unique and Paths are HMAC digests; raw IPs and paths never land here.
type Rolling struct {
	Blocked  int64            `json:"blocked"`
	Bypass   int64            `json:"bypass"`
	ByReason map[string]int64 `json:"bypass_by_reason"`
	Unique   map[string]int64 `json:"unique"` // ip hash -> last seen unix
	Paths    PathBuckets      `json:"paths"`
}

func (r *Rolling) ensure() {
	if r.ByReason == nil {
		r.ByReason = make(map[string]int64)
	}
	if r.Unique == nil {
		r.Unique = make(map[string]int64)
	}
	if r.Paths.Blocked == nil {
		r.Paths.Blocked = make(map[string]PathEntry)
	}
	if r.Paths.Bypass == nil {
		r.Paths.Bypass = make(map[string]PathEntry)
	}
}

// Prune drops entries older than the window and enforces the cardinality
// caps, evicting lowest-recency entries first. Called on every read and
// write of the blob.
func (r *Rolling) Prune(now time.Time) {
	r.ensure()
	cutoff := now.Add(-rollingWindow).Unix()

	for hash, seen := range r.Unique {
		if seen < cutoff {
			delete(r.Unique, hash)
		}
	}
	capRecency(r.Unique, maxUniqueEntries)

	prunePathBucket(r.Paths.Blocked, cutoff)
	prunePathBucket(r.Paths.Bypass, cutoff)
}

func prunePathBucket(bucket map[string]PathEntry, cutoff int64) {
	for hash, entry := range bucket {
		if entry.LastSeen < cutoff {
			delete(bucket, hash)
		}
	}
	if len(bucket) <= maxPathEntries {
		return
	}

	type keyed struct {
		key  string
		seen int64
	}
	entries := make([]keyed, 0, len(bucket))
	for hash, entry := range bucket {
		entries = append(entries, keyed{hash, entry.LastSeen})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seen > entries[j].seen })
	for _, e := range entries[maxPathEntries:] {
		delete(bucket, e.key)
	}
}

func capRecency(m map[string]int64, max int) {
	if len(m) <= max {
		return
	}
	type keyed struct {
		key  string
		seen int64
	}
	entries := make([]keyed, 0, len(m))
	for k, v := range m {
		entries = append(entries, keyed{k, v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seen > entries[j].seen })
	for _, e := range entries[max:] {
		delete(m, e.key)
	}
}
