package postgres

import (
	"context"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

const idempotentRuleCSV = `template_id,template_name,hazard_type,rule_id,event_kind,time_pct,time_jitter_pct,selection_scope,sector,subtype,target_mode,target_value,allow_reuse_asset,performance_pct,repair_time_min,repair_time_max,geo_anchor,geo_param_1_km,priority,notes
EQ_030,Earthquake M7,EARTHQUAKE,EQ_030_R1,IMPACT,20,5,GEO_RADIUS,electricity,substation,PCT,40,0,10,60,180,EPICENTER,15,0,primary substation damage
`

// TestImportRulesCSVReimportIsIdempotent proves re-importing the same rule
// CSV issues the identical upsert (same SQL, same bound args) on the second
// pass, which is what makes the rules table byte-identical across re-import
// per the fixed (template_id)/(rule_id) upsert keys.
func TestImportRulesCSVReimportIsIdempotent(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	expectOneImport := func() {
		mock.ExpectExec("INSERT INTO templates").WithArgs(
			"EQ_030", "Earthquake M7", "EARTHQUAKE", 1, true,
		).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO rules").WithArgs(
			"EQ_030_R1", "EQ_030", "IMPACT", 20.0, 5.0, "GEO_RADIUS",
			"electricity", "substation", "PCT", 40.0, false, 10.0,
			60, 180, "EPICENTER", 15.0, 0, true,
		).WillReturnResult(sqlmock.NewResult(0, 1))
	}

	expectOneImport()
	n1, err := scenario.ImportRulesCSV(ctx, s, strings.NewReader(idempotentRuleCSV))
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected 1 row imported, got %d", n1)
	}

	expectOneImport()
	n2, err := scenario.ImportRulesCSV(ctx, s, strings.NewReader(idempotentRuleCSV))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if n2 != n1 {
		t.Fatalf("expected the re-import to upsert the same row count, got %d vs %d", n2, n1)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
