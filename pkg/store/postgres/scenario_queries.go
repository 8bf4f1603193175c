package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

func (s *Store) UpsertTemplate(ctx context.Context, t scenario.Template) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (template_id, name, hazard_type, version, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (template_id) DO UPDATE SET
			name = EXCLUDED.name, hazard_type = EXCLUDED.hazard_type,
			version = EXCLUDED.version, is_active = EXCLUDED.is_active
	`, t.TemplateID, t.Name, t.HazardType, t.Version, t.IsActive)
	if err != nil {
		return fmt.Errorf("upsert template %s: %w", t.TemplateID, err)
	}
	return nil
}

func (s *Store) UpsertRule(ctx context.Context, r scenario.Rule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (
			rule_id, template_id, event_kind, time_pct, time_jitter_pct, selection_scope,
			sector, subtype, target_mode, target_value, allow_reuse_asset, performance_pct,
			repair_time_min, repair_time_max, geo_anchor, geo_param_1_km, priority, enabled
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (rule_id) DO UPDATE SET
			template_id = EXCLUDED.template_id, event_kind = EXCLUDED.event_kind,
			time_pct = EXCLUDED.time_pct, time_jitter_pct = EXCLUDED.time_jitter_pct,
			selection_scope = EXCLUDED.selection_scope, sector = EXCLUDED.sector,
			subtype = EXCLUDED.subtype, target_mode = EXCLUDED.target_mode,
			target_value = EXCLUDED.target_value, allow_reuse_asset = EXCLUDED.allow_reuse_asset,
			performance_pct = EXCLUDED.performance_pct, repair_time_min = EXCLUDED.repair_time_min,
			repair_time_max = EXCLUDED.repair_time_max, geo_anchor = EXCLUDED.geo_anchor,
			geo_param_1_km = EXCLUDED.geo_param_1_km, priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled
	`, r.RuleID, r.TemplateID, r.EventKind, r.TimePct, r.TimeJitterPct, r.SelectionScope,
		r.Sector, r.Subtype, r.TargetMode, r.TargetValue, r.AllowReuseAsset, r.PerformancePct,
		r.RepairTimeMin, r.RepairTimeMax, r.GeoAnchor, r.GeoParam1Km, r.Priority, r.Enabled)
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", r.RuleID, err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, templateID string) (scenario.Template, bool, error) {
	var row struct {
		TemplateID string `db:"template_id"`
		Name       string `db:"name"`
		HazardType string `db:"hazard_type"`
		Version    int    `db:"version"`
		IsActive   bool   `db:"is_active"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT template_id, name, hazard_type, version, is_active FROM templates WHERE template_id = $1`, templateID)
	if err == sql.ErrNoRows {
		return scenario.Template{}, false, nil
	}
	if err != nil {
		return scenario.Template{}, false, fmt.Errorf("get template %s: %w", templateID, err)
	}
	return scenario.Template{
		TemplateID: row.TemplateID, Name: row.Name,
		HazardType: scenario.HazardType(row.HazardType), Version: row.Version, IsActive: row.IsActive,
	}, true, nil
}

type ruleRow struct {
	RuleID          string  `db:"rule_id"`
	TemplateID      string  `db:"template_id"`
	EventKind       string  `db:"event_kind"`
	TimePct         float64 `db:"time_pct"`
	TimeJitterPct   float64 `db:"time_jitter_pct"`
	SelectionScope  string  `db:"selection_scope"`
	Sector          string  `db:"sector"`
	Subtype         string  `db:"subtype"`
	TargetMode      string  `db:"target_mode"`
	TargetValue     float64 `db:"target_value"`
	AllowReuseAsset bool    `db:"allow_reuse_asset"`
	PerformancePct  float64 `db:"performance_pct"`
	RepairTimeMin   *int    `db:"repair_time_min"`
	RepairTimeMax   *int    `db:"repair_time_max"`
	GeoAnchor       string  `db:"geo_anchor"`
	GeoParam1Km     float64 `db:"geo_param_1_km"`
	Priority        int     `db:"priority"`
	Enabled         bool    `db:"enabled"`
}

func (r ruleRow) toRule() scenario.Rule {
	return scenario.Rule{
		RuleID: r.RuleID, TemplateID: r.TemplateID, EventKind: scenario.EventKind(r.EventKind),
		TimePct: r.TimePct, TimeJitterPct: r.TimeJitterPct, SelectionScope: scenario.SelectionScope(r.SelectionScope),
		Sector: asset.Sector(r.Sector), Subtype: r.Subtype, TargetMode: scenario.TargetMode(r.TargetMode),
		TargetValue: r.TargetValue, AllowReuseAsset: r.AllowReuseAsset, PerformancePct: r.PerformancePct,
		RepairTimeMin: r.RepairTimeMin, RepairTimeMax: r.RepairTimeMax, GeoAnchor: r.GeoAnchor,
		GeoParam1Km: r.GeoParam1Km, Priority: r.Priority, Enabled: r.Enabled,
	}
}

func (s *Store) RulesByTemplate(ctx context.Context, templateID string) ([]scenario.Rule, error) {
	var rows []ruleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT rule_id, template_id, event_kind, time_pct, time_jitter_pct, selection_scope,
			sector, subtype, target_mode, target_value, allow_reuse_asset, performance_pct,
			repair_time_min, repair_time_max, geo_anchor, geo_param_1_km, priority, enabled
		FROM rules WHERE template_id = $1
	`, templateID)
	if err != nil {
		return nil, fmt.Errorf("select rules for template %s: %w", templateID, err)
	}
	out := make([]scenario.Rule, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRule())
	}
	return out, nil
}

func (s *Store) CreateInstance(ctx context.Context, inst scenario.Instance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (id, city, scenario_key, hazard_type, template_id, duration_hours, tick_minutes, repair_crews, status, created_at_unix, seed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, inst.ID, inst.City, inst.ScenarioKey, inst.HazardType, inst.TemplateID, inst.DurationHours,
		inst.TickMinutes, inst.RepairCrews, inst.Status, inst.CreatedAtUnix, inst.Seed)
	if err != nil {
		return fmt.Errorf("create instance %s: %w", inst.ID, err)
	}
	return nil
}

type instanceRow struct {
	ID            string `db:"id"`
	City          string `db:"city"`
	ScenarioKey   string `db:"scenario_key"`
	HazardType    string `db:"hazard_type"`
	TemplateID    string `db:"template_id"`
	DurationHours int    `db:"duration_hours"`
	TickMinutes   int    `db:"tick_minutes"`
	RepairCrews   int    `db:"repair_crews"`
	Status        string `db:"status"`
	CreatedAtUnix int64  `db:"created_at_unix"`
	Seed          int64  `db:"seed"`
}

func (r instanceRow) toInstance() scenario.Instance {
	return scenario.Instance{
		ID: r.ID, City: r.City, ScenarioKey: r.ScenarioKey, HazardType: scenario.HazardType(r.HazardType),
		TemplateID: r.TemplateID, DurationHours: r.DurationHours, TickMinutes: r.TickMinutes,
		RepairCrews: r.RepairCrews, Status: r.Status, CreatedAtUnix: r.CreatedAtUnix, Seed: r.Seed,
	}
}

func (s *Store) GetInstance(ctx context.Context, instanceID string) (scenario.Instance, bool, error) {
	var row instanceRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, city, scenario_key, hazard_type, template_id, duration_hours, tick_minutes, repair_crews, status, created_at_unix, seed
		FROM instances WHERE id = $1
	`, instanceID)
	if err == sql.ErrNoRows {
		return scenario.Instance{}, false, nil
	}
	if err != nil {
		return scenario.Instance{}, false, fmt.Errorf("get instance %s: %w", instanceID, err)
	}
	return row.toInstance(), true, nil
}

func (s *Store) ListInstances(ctx context.Context, city string) ([]scenario.Instance, error) {
	var rows []instanceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, city, scenario_key, hazard_type, template_id, duration_hours, tick_minutes, repair_crews, status, created_at_unix, seed
		FROM instances WHERE $1 = '' OR city = $1
	`, city)
	if err != nil {
		return nil, fmt.Errorf("list instances for city %s: %w", city, err)
	}
	out := make([]scenario.Instance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toInstance())
	}
	return out, nil
}

func (s *Store) AddAnchor(ctx context.Context, a scenario.Anchor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anchors (instance_id, anchor_type, lat, lng) VALUES ($1,$2,$3,$4)
	`, a.InstanceID, a.AnchorType, a.Lat, a.Lng)
	if err != nil {
		return fmt.Errorf("add anchor for instance %s: %w", a.InstanceID, err)
	}
	return nil
}

func (s *Store) AnchorsByInstance(ctx context.Context, instanceID string) ([]scenario.Anchor, error) {
	var rows []struct {
		InstanceID string  `db:"instance_id"`
		AnchorType string  `db:"anchor_type"`
		Lat        float64 `db:"lat"`
		Lng        float64 `db:"lng"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT instance_id, anchor_type, lat, lng FROM anchors WHERE instance_id = $1`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("select anchors for instance %s: %w", instanceID, err)
	}
	out := make([]scenario.Anchor, 0, len(rows))
	for _, r := range rows {
		out = append(out, scenario.Anchor{InstanceID: r.InstanceID, AnchorType: r.AnchorType, Lat: r.Lat, Lng: r.Lng})
	}
	return out, nil
}

func (s *Store) SaveEvents(ctx context.Context, instanceID string, events []scenario.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save events tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE instance_id = $1`, instanceID); err != nil {
		return fmt.Errorf("clear existing events for instance %s: %w", instanceID, err)
	}
	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (instance_id, tick_index, event_kind, asset_id, performance_pct, repair_time_minutes, source_rule_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, instanceID, ev.TickIndex, ev.EventKind, ev.AssetID, ev.PerformancePct, ev.RepairTimeMinutes, ev.SourceRuleID)
		if err != nil {
			return fmt.Errorf("insert event for instance %s tick %d: %w", instanceID, ev.TickIndex, err)
		}
	}
	return tx.Commit()
}

func (s *Store) EventsByInstance(ctx context.Context, instanceID string) ([]scenario.Event, error) {
	var rows []struct {
		InstanceID        string  `db:"instance_id"`
		TickIndex         int     `db:"tick_index"`
		EventKind         string  `db:"event_kind"`
		AssetID           string  `db:"asset_id"`
		PerformancePct    float64 `db:"performance_pct"`
		RepairTimeMinutes *int    `db:"repair_time_minutes"`
		SourceRuleID      string  `db:"source_rule_id"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT instance_id, tick_index, event_kind, asset_id, performance_pct, repair_time_minutes, source_rule_id
		FROM events WHERE instance_id = $1 ORDER BY tick_index ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("select events for instance %s: %w", instanceID, err)
	}
	out := make([]scenario.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, scenario.Event{
			InstanceID: r.InstanceID, TickIndex: r.TickIndex, EventKind: scenario.EventKind(r.EventKind),
			AssetID: r.AssetID, PerformancePct: r.PerformancePct, RepairTimeMinutes: r.RepairTimeMinutes,
			SourceRuleID: r.SourceRuleID,
		})
	}
	return out, nil
}
