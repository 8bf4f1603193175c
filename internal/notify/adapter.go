package notify

import (
	"context"

	"github.com/cityresilience/scenario-engine/pkg/asset"
)

// SectorAlerter adapts a Notifier to the runner package's SectorAlerter
// interface, keeping pkg/runner free of a direct dependency on the
// notification backend.
type SectorAlerter struct {
	Notifier Notifier
}

// NotifyCriticalSector implements runner.SectorAlerter.
func (a SectorAlerter) NotifyCriticalSector(ctx context.Context, simRunID, city string, sector asset.Sector, pct int) {
	a.Notifier.Notify(ctx, Event{SimRunID: simRunID, City: city, Sector: string(sector), Pct: pct})
}
