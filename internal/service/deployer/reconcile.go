package deployer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshuvalov/bot-deployer/internal/domain/deploy"
	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/repository/marker"
	"github.com/oshuvalov/bot-deployer/internal/service/initsystem"
)

// Reconciler applies the run's report to the init system: reload when unit
// definitions changed, restart when anything changed or the version advanced,
// and persist the version marker according to the active/inactive rules.
type Reconciler struct {
	// initSystem is the service-supervision control surface.
	initSystem initsystem.InitSystem
	// markers persists the installed-version marker.
	markers marker.Repository
	// serviceName is the managed unit.
	serviceName string
}

// NewReconciler wires the reconciler to its collaborators.
func NewReconciler(initSystem initsystem.InitSystem, markers marker.Repository, serviceName string) *Reconciler {
	return &Reconciler{
		initSystem:  initSystem,
		markers:     markers,
		serviceName: serviceName,
	}
}

// Reconcile executes the reload and restart decisions and records the actions
// taken on the report.
func (r *Reconciler) Reconcile(ctx context.Context, report *deploy.Report) error {
	previous, err := r.markers.Load(ctx)
	if err != nil && !errors.Is(err, marker.ErrNotFound) {
		return err
	}

	report.PreviousVersion = previous

	if report.NeedsReload() {
		logger.Info(ctx, "Unit definitions changed, reloading the unit cache")

		if err = r.initSystem.DaemonReload(ctx); err != nil {
			return err
		}

		report.ReloadIssued = true
	}

	active, err := r.initSystem.IsActive(ctx, r.serviceName)
	if err != nil {
		return err
	}

	if report.NeedsRestart(active) {
		logger.InfoKV(ctx, "Restarting service", "service", r.serviceName,
			"changed", report.AnyChanged(), "from", report.PreviousVersion, "to", report.TargetVersion)

		if err = r.initSystem.Restart(ctx, r.serviceName); err != nil {
			return err
		}

		report.RestartIssued = true
	}

	if report.NeedsMarkerUpdate(active) {
		if err = r.markers.Save(ctx, report.TargetVersion); err != nil {
			return fmt.Errorf("persist version marker: %w", err)
		}

		report.MarkerUpdated = true
	}

	if !report.RestartIssued {
		logger.InfoKV(ctx, "Service left untouched", "service", r.serviceName, "active", active)
	}

	return nil
}
