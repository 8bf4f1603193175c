package postgres

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewFromDB(db), mock
}

func TestUpsertAssetExecutesUpsert(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO assets").WithArgs(
		"sub-1", "Substation 1", "electricity", "substation", "metro", 1.0, 2.0, 3, sqlmock.AnyArg(),
	).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.UpsertAsset(context.Background(), asset.Asset{
		ID: "sub-1", Name: "Substation 1", Sector: asset.SectorElectricity, Subtype: "substation",
		City: "metro", Lat: 1.0, Lng: 2.0, Criticality: 3,
	})
	if err != nil {
		t.Fatalf("UpsertAsset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetAssetReturnsNotFoundOnNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata FROM assets").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sector", "subtype", "city", "lat", "lng", "criticality", "metadata"}))

	_, ok, err := s.GetAsset(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing asset")
	}
}

func TestGetAssetUnmarshalsMetadata(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"id", "name", "sector", "subtype", "city", "lat", "lng", "criticality", "metadata"}).
		AddRow("sub-1", "Substation 1", "electricity", "substation", "metro", 1.0, 2.0, 3, []byte(`{"owner":"utility-co"}`))
	mock.ExpectQuery("SELECT id, name, sector, subtype, city, lat, lng, criticality, metadata FROM assets").
		WithArgs("sub-1").
		WillReturnRows(rows)

	a, ok, err := s.GetAsset(context.Background(), "sub-1")
	if err != nil || !ok {
		t.Fatalf("GetAsset: ok=%v err=%v", ok, err)
	}
	if a.Metadata["owner"] != "utility-co" {
		t.Fatalf("expected metadata to round-trip, got %+v", a.Metadata)
	}
}

func TestActiveDependenciesQueriesJoinedAssets(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows([]string{"provider_asset_id", "consumer_asset_id", "dependency_type", "priority", "is_active"}).
		AddRow("plant-1", "feed-1", "power_feed", 1, true)
	mock.ExpectQuery("SELECT d.provider_asset_id").WithArgs("metro").WillReturnRows(rows)

	deps, err := s.ActiveDependencies(context.Background(), "metro")
	if err != nil {
		t.Fatalf("ActiveDependencies: %v", err)
	}
	if len(deps) != 1 || deps[0].ProviderAssetID != "plant-1" {
		t.Fatalf("unexpected dependencies: %+v", deps)
	}
}

func TestSaveEventsRunsInATransaction(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM events").WithArgs("run-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	events := []scenario.Event{
		{InstanceID: "run-1", TickIndex: 0, EventKind: scenario.EventKindImpact, AssetID: "a1", PerformancePct: 40},
	}
	if err := s.SaveEvents(context.Background(), "run-1", events); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
