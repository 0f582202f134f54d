package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/voltmark/hwpricer/internal/database"
	"github.com/voltmark/hwpricer/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS hardware_prices (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	asset_id     TEXT    NOT NULL,
	timestamp    INTEGER NOT NULL,
	price        REAL    NOT NULL,
	twap         REAL    NOT NULL,
	source_count INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hardware_asset_ts ON hardware_prices(asset_id, timestamp);

CREATE TABLE IF NOT EXISTS rental_prices (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	gpu_type          TEXT    NOT NULL,
	timestamp         INTEGER NOT NULL,
	avg_price         REAL    NOT NULL,
	min_price         REAL    NOT NULL,
	max_price         REAL    NOT NULL,
	offer_count       INTEGER NOT NULL,
	interruptible_avg REAL    NOT NULL,
	on_demand_avg     REAL    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rental_gpu_ts ON rental_prices(gpu_type, timestamp);
`

// SQLiteStore keeps both time series in a local sqlite database.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSQLiteStore opens (or creates) the history database at path.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := database.New(database.Config{
		Path: path,
		Name: "history",
	})
	if err != nil {
		return nil, err
	}

	if _, err := db.Conn().Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	// A corrupt database file should fail startup, not the first query hours
	// later.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.HealthCheck(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "history_sqlite").Logger(),
	}, nil
}

// InsertHardware implements Store.
func (s *SQLiteStore) InsertHardware(ctx context.Context, rec domain.HardwareHistoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hardware_prices (asset_id, timestamp, price, twap, source_count) VALUES (?, ?, ?, ?, ?)`,
		rec.AssetID, rec.Timestamp, rec.Price, rec.TWAP, rec.SourceCount)
	if err != nil {
		return fmt.Errorf("failed to insert hardware history row: %w", err)
	}
	return nil
}

// InsertRental implements Store.
func (s *SQLiteStore) InsertRental(ctx context.Context, rec domain.RentalHistoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rental_prices (gpu_type, timestamp, avg_price, min_price, max_price, offer_count, interruptible_avg, on_demand_avg)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GPUType, rec.Timestamp, rec.AvgPrice, rec.MinPrice, rec.MaxPrice,
		rec.OfferCount, rec.InterruptibleAvg, rec.OnDemandAvg)
	if err != nil {
		return fmt.Errorf("failed to insert rental history row: %w", err)
	}
	return nil
}

// rangeClause builds the shared WHERE clause for a range query.
func rangeClause(keyColumn string, q Query) (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}
	if q.SeriesKey != "" {
		clause += " AND " + keyColumn + " = ?"
		args = append(args, q.SeriesKey)
	}
	if q.StartTime > 0 {
		clause += " AND timestamp >= ?"
		args = append(args, q.StartTime)
	}
	if q.EndTime > 0 {
		clause += " AND timestamp <= ?"
		args = append(args, q.EndTime)
	}
	clause += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, q.Limit)
	return clause, args
}

// QueryHardware implements Store.
func (s *SQLiteStore) QueryHardware(ctx context.Context, q Query) ([]domain.HardwareHistoryRecord, error) {
	q = q.normalized()
	clause, args := rangeClause("asset_id", q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, timestamp, price, twap, source_count FROM hardware_prices`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("hardware history query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.HardwareHistoryRecord
	for rows.Next() {
		var rec domain.HardwareHistoryRecord
		if err := rows.Scan(&rec.AssetID, &rec.Timestamp, &rec.Price, &rec.TWAP, &rec.SourceCount); err != nil {
			return nil, fmt.Errorf("failed to scan hardware history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// QueryRental implements Store.
func (s *SQLiteStore) QueryRental(ctx context.Context, q Query) ([]domain.RentalHistoryRecord, error) {
	q = q.normalized()
	clause, args := rangeClause("gpu_type", q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT gpu_type, timestamp, avg_price, min_price, max_price, offer_count, interruptible_avg, on_demand_avg
		 FROM rental_prices`+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("rental history query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.RentalHistoryRecord
	for rows.Next() {
		var rec domain.RentalHistoryRecord
		if err := rows.Scan(&rec.GPUType, &rec.Timestamp, &rec.AvgPrice, &rec.MinPrice, &rec.MaxPrice,
			&rec.OfferCount, &rec.InterruptibleAvg, &rec.OnDemandAvg); err != nil {
			return nil, fmt.Errorf("failed to scan rental history row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) tableStats(ctx context.Context, table, keyColumn string) (*SeriesStats, error) {
	stats := &SeriesStats{PerKey: make(map[string]int64)}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM `+table).
		Scan(&stats.TotalRecords, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("stats query failed for %s: %w", table, err)
	}
	stats.OldestTimestamp = oldest.Int64
	stats.NewestTimestamp = newest.Int64

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+keyColumn+`, COUNT(*) FROM `+table+` GROUP BY `+keyColumn)
	if err != nil {
		return nil, fmt.Errorf("per-key stats query failed for %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.PerKey[key] = count
	}
	return stats, rows.Err()
}

// HardwareStats implements Store.
func (s *SQLiteStore) HardwareStats(ctx context.Context) (*SeriesStats, error) {
	return s.tableStats(ctx, "hardware_prices", "asset_id")
}

// RentalStats implements Store.
func (s *SQLiteStore) RentalStats(ctx context.Context) (*SeriesStats, error) {
	return s.tableStats(ctx, "rental_prices", "gpu_type")
}

// Cleanup implements Store. Both series are swept in one transaction so a
// failure on the second table never leaves a half-done sweep behind.
func (s *SQLiteStore) Cleanup(ctx context.Context, cutoff int64) (int64, error) {
	var removed int64
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		for _, table := range []string{"hardware_prices", "rental_prices"} {
			res, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE timestamp < ?`, cutoff)
			if err != nil {
				return fmt.Errorf("cleanup failed for %s: %w", table, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				removed += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		if err := s.db.WALCheckpoint(""); err != nil {
			s.log.Warn().Err(err).Msg("WAL checkpoint after cleanup failed")
		}
	}
	return removed, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }
