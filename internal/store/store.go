// Package store persists vehicle positions in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ptv-collector/internal/ptv"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Store writes vehicle positions to the vehicle_locations table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Stats summarizes the stored data.
type Stats struct {
	TotalRecords   int64
	UniqueVehicles int64
	OldestRecord   sql.NullString
	NewestRecord   sql.NullString
}

// EnsureSchema creates the vehicle_locations table and its conflict key if
// they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := `
CREATE TABLE IF NOT EXISTS vehicle_locations (
    id           BIGSERIAL PRIMARY KEY,
    vehicle_id   TEXT NOT NULL,
    route_id     TEXT,
    run_id       TEXT,
    latitude     DOUBLE PRECISION NOT NULL,
    longitude    DOUBLE PRECISION NOT NULL,
    "timestamp"  TEXT NOT NULL,
    direction_id INTEGER,
    heading      DOUBLE PRECISION,
    route_type   INTEGER NOT NULL DEFAULT 0,
    inserted_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (vehicle_id, "timestamp")
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertVehiclesBulk writes a batch in a single multi-row INSERT. Duplicate
// (vehicle_id, timestamp) pairs are silently skipped, so replays of the same
// position are harmless. Returns the number of rows submitted.
func (s *Store) InsertVehiclesBulk(ctx context.Context, vehicles []ptv.VehiclePosition) (int, error) {
	if len(vehicles) == 0 {
		return 0, nil
	}
	query, args := buildBulkInsert(vehicles)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("bulk insert vehicles: %w", err)
	}
	return len(vehicles), nil
}

func buildBulkInsert(vehicles []ptv.VehiclePosition) (string, []any) {
	const cols = 9
	var sb strings.Builder
	sb.WriteString(`INSERT INTO vehicle_locations
  (vehicle_id, route_id, run_id, latitude, longitude, "timestamp", direction_id, heading, route_type)
VALUES `)
	args := make([]any, 0, len(vehicles)*cols)
	for i, v := range vehicles {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * cols
		sb.WriteString("(")
		for j := 1; j <= cols; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			v.VehicleID, v.RouteID, v.RunID,
			v.Latitude, v.Longitude, v.Timestamp,
			nullableInt(v.DirectionID), nullableFloat(v.Heading), v.RouteType,
		)
	}
	sb.WriteString(` ON CONFLICT (vehicle_id, "timestamp") DO NOTHING`)
	return sb.String(), args
}

// Prune deletes records older than the retention horizon, measured against
// insertion time. Returns the number of deleted rows.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	q := `DELETE FROM vehicle_locations WHERE inserted_at < NOW() - $1::interval`
	res, err := s.db.ExecContext(ctx, q, fmt.Sprintf("%d seconds", int64(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("prune old data: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GetStats returns record counts and the stored time range.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	q := `
SELECT COUNT(*),
       COUNT(DISTINCT vehicle_id),
       MIN("timestamp")::text,
       MAX("timestamp")::text
FROM vehicle_locations`
	var st Stats
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.TotalRecords, &st.UniqueVehicles, &st.OldestRecord, &st.NewestRecord); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return st, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
