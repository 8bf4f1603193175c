package scenario

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/pkg/asset"
)

// csvHeader is the exact, required header row for the rule import format.
var csvHeader = []string{
	"template_id", "template_name", "hazard_type", "rule_id", "event_kind",
	"time_pct", "time_jitter_pct", "selection_scope", "sector", "subtype",
	"target_mode", "target_value", "allow_reuse_asset", "performance_pct",
	"repair_time_min", "repair_time_max", "geo_anchor", "geo_param_1_km",
	"priority", "notes",
}

// RuleSink is the subset of the store the CSV importer writes to. Upsert is
// by template_id for templates and rule_id for rules, so re-import is
// idempotent.
type RuleSink interface {
	UpsertTemplate(ctx context.Context, t Template) error
	UpsertRule(ctx context.Context, r Rule) error
}

// ImportRulesCSV parses and upserts a rule CSV per the fixed header
// contract in csvHeader. It does not abort on a single bad row; it collects and
// returns all row-level problems as BAD_INPUT, after applying every
// well-formed row.
func ImportRulesCSV(ctx context.Context, sink RuleSink, r io.Reader) (imported int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return 0, apierr.BadInput(fmt.Sprintf("read CSV header: %v", err))
	}
	if len(header) != len(csvHeader) {
		return 0, apierr.BadInput("CSV header column count mismatch")
	}
	for i, want := range csvHeader {
		if strings.TrimSpace(header[i]) != want {
			return 0, apierr.BadInput(fmt.Sprintf("CSV header column %d: expected %q, got %q", i, want, header[i]))
		}
	}

	var problems []string
	rowNum := 1
	for {
		row, rerr := reader.Read()
		if rerr == io.EOF {
			break
		}
		rowNum++
		if rerr != nil {
			problems = append(problems, fmt.Sprintf("row %d: %v", rowNum, rerr))
			continue
		}

		tmpl, rule, perr := parseCSVRow(row)
		if perr != nil {
			problems = append(problems, fmt.Sprintf("row %d: %v", rowNum, perr))
			continue
		}

		if err := sink.UpsertTemplate(ctx, tmpl); err != nil {
			return imported, apierr.Wrap(err, "upsert template")
		}
		if err := sink.UpsertRule(ctx, rule); err != nil {
			return imported, apierr.Wrap(err, "upsert rule")
		}
		imported++
	}

	if len(problems) > 0 {
		return imported, apierr.BadInput(strings.Join(problems, "; "))
	}
	return imported, nil
}

func parseCSVRow(row []string) (Template, Rule, error) {
	get := func(i int) string { return strings.TrimSpace(row[i]) }

	tmpl := Template{
		TemplateID: get(0),
		Name:       get(1),
		HazardType: HazardType(strings.ToUpper(get(2))),
		Version:    1,
		IsActive:   true,
	}
	if tmpl.TemplateID == "" {
		return tmpl, Rule{}, fmt.Errorf("template_id is required")
	}

	timePct, err := parseFloat(get(5))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("time_pct: %w", err)
	}
	timeJitter, _ := parseFloat(get(6))
	targetValue, err := parseFloat(get(11))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("target_value: %w", err)
	}
	allowReuse, err := parseBool(get(12))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("allow_reuse_asset: %w", err)
	}
	perfPct, err := parseFloat(get(13))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("performance_pct: %w", err)
	}
	repairMin, err := parseOptionalInt(get(14))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("repair_time_min: %w", err)
	}
	repairMax, err := parseOptionalInt(get(15))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("repair_time_max: %w", err)
	}
	geoParam, _ := parseFloat(get(17))
	priority, err := parseOptionalInt(get(18))
	if err != nil {
		return tmpl, Rule{}, fmt.Errorf("priority: %w", err)
	}
	priorityVal := 0
	if priority != nil {
		priorityVal = *priority
	}

	rule := Rule{
		RuleID:          get(3),
		TemplateID:      tmpl.TemplateID,
		EventKind:       EventKind(strings.ToUpper(get(4))),
		TimePct:         timePct,
		TimeJitterPct:   timeJitter,
		SelectionScope:  SelectionScope(strings.ToUpper(get(7))),
		Sector:          asset.Sector(get(8)),
		Subtype:         get(9),
		TargetMode:      TargetMode(strings.ToUpper(get(10))),
		TargetValue:     targetValue,
		AllowReuseAsset: allowReuse,
		PerformancePct:  perfPct,
		RepairTimeMin:   repairMin,
		RepairTimeMax:   repairMax,
		GeoAnchor:       get(16),
		GeoParam1Km:     geoParam,
		Priority:        priorityVal,
		Enabled:         true,
	}
	if rule.RuleID == "" {
		return tmpl, rule, fmt.Errorf("rule_id is required")
	}

	return tmpl, rule, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseOptionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	v := int(f)
	return &v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	default:
		return false, fmt.Errorf("unrecognized boolean %q", s)
	}
}
