// Package history persists the append-only hardware and rental price time
// series and answers range and stats queries over them.
package history

import (
	"context"

	"github.com/voltmark/hwpricer/internal/catalog"
	"github.com/voltmark/hwpricer/internal/domain"
)

// DefaultQueryLimit caps range queries that do not specify their own limit.
const DefaultQueryLimit = 1000

// MaxQueryLimit is the hard ceiling for a single range query.
const MaxQueryLimit = 10000

// Query filters a range query. Zero values mean "no constraint".
type Query struct {
	SeriesKey string // Asset ID or GPU type
	StartTime int64  // ms, inclusive
	EndTime   int64  // ms, inclusive
	Limit     int    // DefaultQueryLimit when <= 0
}

// normalized clamps the limit into [1, MaxQueryLimit].
func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}
	if q.Limit > MaxQueryLimit {
		q.Limit = MaxQueryLimit
	}
	return q
}

// SeriesStats summarizes one stored series.
type SeriesStats struct {
	TotalRecords    int64            `json:"totalRecords"`
	OldestTimestamp int64            `json:"oldestTimestamp"` // 0 when empty
	NewestTimestamp int64            `json:"newestTimestamp"` // 0 when empty
	PerKey          map[string]int64 `json:"perKey"`
}

// Store is the persistence contract for both time series. Implementations:
// the local sqlite store and the remote REST store.
type Store interface {
	InsertHardware(ctx context.Context, rec domain.HardwareHistoryRecord) error
	InsertRental(ctx context.Context, rec domain.RentalHistoryRecord) error

	// Range queries return rows ordered by timestamp descending.
	QueryHardware(ctx context.Context, q Query) ([]domain.HardwareHistoryRecord, error)
	QueryRental(ctx context.Context, q Query) ([]domain.RentalHistoryRecord, error)

	HardwareStats(ctx context.Context) (*SeriesStats, error)
	RentalStats(ctx context.Context) (*SeriesStats, error)

	// Cleanup deletes rows older than cutoff (ms) from both series and
	// returns the number of rows removed.
	Cleanup(ctx context.Context, cutoff int64) (int64, error)

	Close() error
}

// hardwareKeys and rentalKeys enumerate the series keys for stats queries.
func hardwareKeys() []string { return catalog.HardwareAssetIDs() }
func rentalKeys() []string   { return catalog.RentalGPUTypeIDs() }
