// Package postgres is the durable Store backend: pgx's database/sql driver
// for connection management, sqlx for struct scanning, goose for schema
// migrations. Everything is JSON/HTTP-free; this package only talks SQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/cityresilience/scenario-engine/pkg/asset"
)

// Store is a postgres-backed implementation of store.Store.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn using pgx's stdlib driver in DescribeExec mode,
// which avoids stale prepared-statement plans across schema migrations
// applied to a long-running connection pool.
func Open(ctx context.Context, dsn string) (*Store, error) {
	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec

	sqlDB := stdlib.OpenDB(*connConfig)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

// NewFromDB wraps an already-open *sql.DB, used by tests against
// go-sqlmock's fake driver.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "pgx")}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for schema migration.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

func (s *Store) UpsertAsset(ctx context.Context, a asset.Asset) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal asset metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assets (id, name, sector, subtype, city, lat, lng, criticality, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, sector = EXCLUDED.sector, subtype = EXCLUDED.subtype,
			city = EXCLUDED.city, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
			criticality = EXCLUDED.criticality, metadata = EXCLUDED.metadata
	`, a.ID, a.Name, a.Sector, a.Subtype, a.City, a.Lat, a.Lng, a.Criticality, metadata)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.ID, err)
	}
	return nil
}

type assetRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Sector      string `db:"sector"`
	Subtype     string `db:"subtype"`
	City        string `db:"city"`
	Lat         float64 `db:"lat"`
	Lng         float64 `db:"lng"`
	Criticality int     `db:"criticality"`
	Metadata    []byte  `db:"metadata"`
}

func (r assetRow) toAsset() (asset.Asset, error) {
	a := asset.Asset{
		ID: r.ID, Name: r.Name, Sector: asset.Sector(r.Sector), Subtype: r.Subtype,
		City: r.City, Lat: r.Lat, Lng: r.Lng, Criticality: r.Criticality,
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &a.Metadata); err != nil {
			return asset.Asset{}, fmt.Errorf("unmarshal asset metadata for %s: %w", r.ID, err)
		}
	}
	return a, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, bool, error) {
	var row assetRow
	err := s.db.GetContext(ctx, &row, `SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata FROM assets WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return asset.Asset{}, false, nil
	}
	if err != nil {
		return asset.Asset{}, false, fmt.Errorf("get asset %s: %w", id, err)
	}
	a, err := row.toAsset()
	return a, true, err
}

func (s *Store) AssetsByIDs(ctx context.Context, ids []string) ([]asset.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata FROM assets WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build IN query: %w", err)
	}
	query = s.db.Rebind(query)

	var rows []assetRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select assets by ids: %w", err)
	}
	return assetsFromRows(rows)
}

func (s *Store) AssetsByCitySectorSubtype(ctx context.Context, city string, sector asset.Sector, subtype string) ([]asset.Asset, error) {
	var rows []assetRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata
		FROM assets WHERE city = $1 AND sector = $2 AND ($3 = '' OR subtype = $3)
	`, city, string(sector), subtype)
	if err != nil {
		return nil, fmt.Errorf("select assets by city/sector/subtype: %w", err)
	}
	return assetsFromRows(rows)
}

func (s *Store) ListAssetsByCity(ctx context.Context, city string) ([]asset.Asset, error) {
	var rows []assetRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata FROM assets WHERE city = $1`, city)
	if err != nil {
		return nil, fmt.Errorf("list assets by city: %w", err)
	}
	return assetsFromRows(rows)
}

func assetsFromRows(rows []assetRow) ([]asset.Asset, error) {
	out := make([]asset.Asset, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAsset()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) UpsertDependency(ctx context.Context, d asset.Dependency) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dependencies (provider_asset_id, consumer_asset_id, dependency_type, priority, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_asset_id, consumer_asset_id, dependency_type) DO UPDATE SET
			priority = EXCLUDED.priority, is_active = EXCLUDED.is_active
	`, d.ProviderAssetID, d.ConsumerAssetID, d.DependencyType, d.Priority, d.IsActive)
	if err != nil {
		return fmt.Errorf("upsert dependency %s->%s: %w", d.ProviderAssetID, d.ConsumerAssetID, err)
	}
	return nil
}

type dependencyRow struct {
	ProviderAssetID string `db:"provider_asset_id"`
	ConsumerAssetID string `db:"consumer_asset_id"`
	DependencyType  string `db:"dependency_type"`
	Priority        int    `db:"priority"`
	IsActive        bool   `db:"is_active"`
}

func (s *Store) ActiveDependencies(ctx context.Context, city string) ([]asset.Dependency, error) {
	var rows []dependencyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT d.provider_asset_id, d.consumer_asset_id, d.dependency_type, d.priority, d.is_active
		FROM dependencies d
		JOIN assets p ON p.id = d.provider_asset_id
		JOIN assets c ON c.id = d.consumer_asset_id
		WHERE d.is_active = true AND ($1 = '' OR p.city = $1 OR c.city = $1)
	`, city)
	if err != nil {
		return nil, fmt.Errorf("select active dependencies: %w", err)
	}
	out := make([]asset.Dependency, 0, len(rows))
	for _, r := range rows {
		out = append(out, asset.Dependency{
			ProviderAssetID: r.ProviderAssetID, ConsumerAssetID: r.ConsumerAssetID,
			DependencyType: asset.DependencyType(r.DependencyType), Priority: r.Priority, IsActive: r.IsActive,
		})
	}
	return out, nil
}

func (s *Store) SetOperationalState(ctx context.Context, st asset.OperationalState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operational_states (asset_id, status) VALUES ($1, $2)
		ON CONFLICT (asset_id) DO UPDATE SET status = EXCLUDED.status
	`, st.AssetID, st.Status)
	if err != nil {
		return fmt.Errorf("set operational state for %s: %w", st.AssetID, err)
	}
	return nil
}

func (s *Store) GetOperationalState(ctx context.Context, assetID string) (asset.OperationalState, bool, error) {
	var row struct {
		AssetID string `db:"asset_id"`
		Status  string `db:"status"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT asset_id, status FROM operational_states WHERE asset_id = $1`, assetID)
	if err == sql.ErrNoRows {
		return asset.OperationalState{}, false, nil
	}
	if err != nil {
		return asset.OperationalState{}, false, fmt.Errorf("get operational state for %s: %w", assetID, err)
	}
	return asset.OperationalState{AssetID: row.AssetID, Status: asset.Status(row.Status)}, true, nil
}

func (s *Store) ListOperationalStates(ctx context.Context, city string) ([]asset.OperationalState, error) {
	var rows []struct {
		AssetID string `db:"asset_id"`
		Status  string `db:"status"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT os.asset_id, os.status FROM operational_states os
		JOIN assets a ON a.id = os.asset_id WHERE a.city = $1
	`, city)
	if err != nil {
		return nil, fmt.Errorf("list operational states for %s: %w", city, err)
	}
	out := make([]asset.OperationalState, 0, len(rows))
	for _, r := range rows {
		out = append(out, asset.OperationalState{AssetID: r.AssetID, Status: asset.Status(r.Status)})
	}
	return out, nil
}
