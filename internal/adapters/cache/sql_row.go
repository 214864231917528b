package cache

import (
	"time"

	"github.com/mikey/phishing-detector/internal/core"
)

// verdictRow is the verdict_cache row shared by the SQL caches; times are unix seconds
type verdictRow struct {
	Key          string `db:"cache_key"`
	IsSuspicious bool   `db:"is_suspicious"`
	Explanation  string `db:"explanation"`
	CreatedAt    int64  `db:"created_at"`
	ExpiresAt    int64  `db:"expires_at"`
}

func toRow(entry *core.CachedVerdict) verdictRow {
	return verdictRow{
		Key:          entry.Key,
		IsSuspicious: entry.IsSuspicious,
		Explanation:  entry.Explanation,
		CreatedAt:    entry.CreatedAt.Unix(),
		ExpiresAt:    entry.ExpiresAt.Unix(),
	}
}

func (r verdictRow) toEntry() *core.CachedVerdict {
	return &core.CachedVerdict{
		Key:          r.Key,
		IsSuspicious: r.IsSuspicious,
		Explanation:  r.Explanation,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
		ExpiresAt:    time.Unix(r.ExpiresAt, 0).UTC(),
	}
}
