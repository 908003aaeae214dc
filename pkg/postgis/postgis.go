// Package postgis is a record store backed by a PostGIS table. The GIST
// index only narrows a query to envelope candidates; the exact box and
// radius semantics come from geofilter.
package postgis

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/config"
	"github.com/1F47E/geo-filter/pkg/geo"
	"github.com/1F47E/geo-filter/pkg/geofilter"
	"github.com/1F47E/geo-filter/pkg/models"
)

const batchSize = 10000

type PostGISIndex struct {
	db *sql.DB
}

// connString builds a lib/pq key=value DSN
func connString(cfg config.PostGISConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", cfg.User),
		fmt.Sprintf("dbname=%s", cfg.Database),
		"sslmode=disable",
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	if cfg.ConnectionTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", cfg.ConnectionTimeout))
	}
	return strings.Join(parts, " ")
}

// NewPostGISIndex opens and pings a PostGIS connection
func NewPostGISIndex(ctx context.Context, cfg config.PostGISConfig) (*PostGISIndex, error) {
	connector, err := pq.NewConnector(connString(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid connection settings: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxConns := cmp.Or(cfg.MaxConnections, 25)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostGISIndex{db: db}, nil
}

// InitSchema recreates the points table
func (p *PostGISIndex) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,
		`DROP TABLE IF EXISTS geo_points;`,
		`CREATE TABLE geo_points (
			id TEXT PRIMARY KEY,
			location GEOMETRY(POINT, 4326)
		);`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// CreateSpatialIndex creates a GIST index on the geometry column and
// returns how long it took
func (p *PostGISIndex) CreateSpatialIndex(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := p.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_geo_points_location ON geo_points USING GIST(location);`); err != nil {
		return 0, fmt.Errorf("failed to create spatial index: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, "ANALYZE geo_points;"); err != nil {
		return 0, fmt.Errorf("failed to analyze table: %w", err)
	}

	return time.Since(start), nil
}

// BulkInsertPoints inserts points in committed batches. Points without a
// location are skipped.
func (p *PostGISIndex) BulkInsertPoints(ctx context.Context, points []*models.Point) error {
	for start := 0; start < len(points); start += batchSize {
		end := min(start+batchSize, len(points))
		if err := p.insertBatch(ctx, points[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostGISIndex) insertBatch(ctx context.Context, points []*models.Point) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO geo_points (id, location)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, point := range points {
		if point == nil || point.Location == nil {
			continue
		}
		if err := geo.ValidateLocation(*point.Location); err != nil {
			return fmt.Errorf("point %s: %w", point.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, point.ID, point.Location.Lon, point.Location.Lat); err != nil {
			return fmt.Errorf("failed to insert point %s: %w", point.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// DeletePoints removes the points with the given ids and returns how many
// rows went away
func (p *PostGISIndex) DeletePoints(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := p.db.ExecContext(ctx, `DELETE FROM geo_points WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to delete points: %w", err)
	}
	return res.RowsAffected()
}

// envelopeArgs orders a box as ST_MakeEnvelope expects: xmin, ymin, xmax, ymax
func envelopeArgs(box models.BoundingBox) []any {
	return []any{
		box.TopLeft.Lon, box.BottomRight.Lat,
		box.BottomRight.Lon, box.TopLeft.Lat,
	}
}

// candidates returns the rows whose location falls in the envelope of box
func (p *PostGISIndex) candidates(ctx context.Context, box models.BoundingBox) ([]*models.Point, error) {
	query := `
		SELECT id, ST_Y(location) as lat, ST_X(location) as lon
		FROM geo_points
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)
	`

	rows, err := p.db.QueryContext(ctx, query, envelopeArgs(box)...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return scanPoints(rows)
}

func scanPoints(rows *sql.Rows) ([]*models.Point, error) {
	defer rows.Close()

	var results []*models.Point
	for rows.Next() {
		var id string
		var lat, lon float64

		if err := rows.Scan(&id, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		results = append(results, &models.Point{
			ID:       id,
			Location: &models.Location{Lat: lat, Lon: lon},
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

// QueryBox returns the stored points inside box
func (p *PostGISIndex) QueryBox(ctx context.Context, box models.BoundingBox) ([]*models.Point, error) {
	if err := bbox.Validate(box); err != nil {
		return nil, fmt.Errorf("box: %w", err)
	}

	candidates, err := p.candidates(ctx, box)
	if err != nil {
		return nil, err
	}
	return geofilter.FilterByBox(candidates, box, geofilter.WithKeys(models.FieldLat, models.FieldLon))
}

// QueryRadius returns the stored points within radius meters of center
func (p *PostGISIndex) QueryRadius(ctx context.Context, center models.Location, radius float64, order geofilter.Order) ([]geofilter.Match[*models.Point], error) {
	box, err := bbox.ComputeBox(center, radius)
	if err != nil {
		return nil, err
	}

	candidates, err := p.candidates(ctx, box)
	if err != nil {
		return nil, err
	}
	return geofilter.FilterByRadius(candidates, center, radius, order,
		geofilter.WithKeys(models.FieldLat, models.FieldLon))
}

// NearestNeighbors returns the n points closest to center by great-circle
// distance. The KNN operator ranks in planar degrees, so it over-fetches.
func (p *PostGISIndex) NearestNeighbors(ctx context.Context, center models.Location, n int) ([]geofilter.Match[*models.Point], error) {
	if n <= 0 {
		return nil, nil
	}
	if err := geo.ValidateLocation(center); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, ST_Y(location) as lat, ST_X(location) as lon
		FROM geo_points
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)
		LIMIT $3
	`, center.Lon, center.Lat, n*2)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	points, err := scanPoints(rows)
	if err != nil {
		return nil, err
	}

	return rankNearest(center, points, n), nil
}

// rankNearest orders points by distance from center, ties by id, and keeps n
func rankNearest(center models.Location, points []*models.Point, n int) []geofilter.Match[*models.Point] {
	ranked := make([]geofilter.Match[*models.Point], 0, len(points))
	for _, point := range points {
		ranked = append(ranked, geofilter.Match[*models.Point]{
			Record:   point,
			Distance: geo.Distance(center, *point.Location),
		})
	}

	slices.SortStableFunc(ranked, func(a, b geofilter.Match[*models.Point]) int {
		return cmp.Or(
			cmp.Compare(a.Distance, b.Distance),
			strings.Compare(a.Record.ID, b.Record.ID),
		)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Count returns the number of points in the database
func (p *PostGISIndex) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM geo_points").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return count, nil
}

// Stats describes the storage used by the points table
type Stats struct {
	DatabaseSize string
	TableSize    string
	IndexSize    string
	RowCount     int64
}

// GetDatabaseStats returns database size and table statistics
func (p *PostGISIndex) GetDatabaseStats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := p.db.QueryRowContext(ctx, `SELECT pg_size_pretty(pg_database_size(current_database()))`).Scan(&stats.DatabaseSize)
	if err != nil {
		return stats, fmt.Errorf("failed to get database size: %w", err)
	}

	err = p.db.QueryRowContext(ctx, `
		SELECT
			pg_size_pretty(pg_total_relation_size('geo_points')) as total_size,
			pg_size_pretty(pg_indexes_size('geo_points')) as index_size
	`).Scan(&stats.TableSize, &stats.IndexSize)
	if err != nil {
		// table might not exist yet
		stats.TableSize = "0 bytes"
		stats.IndexSize = "0 bytes"
	}

	stats.RowCount, _ = p.Count(ctx)
	return stats, nil
}

// Close closes the database connection
func (p *PostGISIndex) Close() error {
	return p.db.Close()
}
