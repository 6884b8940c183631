package deploy

// Report accumulates the observable result of a single deployment run.
// Installer stages set the change flags; the reconciler consumes them and
// records the actions it took.
type Report struct {
	// TargetVersion is the highest tag resolved from the remote for this run.
	TargetVersion string
	// PreviousVersion is the persisted version marker, empty on first install.
	PreviousVersion string
	// ServiceChanged is true when an installed unit file differed from the new one.
	ServiceChanged bool
	// ConfigChanged is true when the non-secret configuration differed.
	ConfigChanged bool
	// SecretChanged is true when the secret file differed or was absent.
	SecretChanged bool
	// ReloadIssued records that the init system's unit cache was reloaded.
	ReloadIssued bool
	// RestartIssued records that a restart of the managed service was requested.
	RestartIssued bool
	// MarkerUpdated records that the version marker was persisted.
	MarkerUpdated bool
}

// AnyChanged reports whether any tracked artifact category changed this run.
func (r *Report) AnyChanged() bool {
	return r.ServiceChanged || r.ConfigChanged || r.SecretChanged
}

// VersionAdvanced reports whether the resolved target differs from the marker.
// A missing marker (first install) counts as advanced.
func (r *Report) VersionAdvanced() bool {
	return r.TargetVersion != r.PreviousVersion
}

// NeedsReload reports whether the init system must reload unit definitions.
func (r *Report) NeedsReload() bool {
	return r.ServiceChanged
}

// NeedsRestart decides whether the managed service must be restarted,
// given whether the init system reports it active. An inactive service is
// never restarted.
func (r *Report) NeedsRestart(active bool) bool {
	if !active {
		return false
	}

	return r.AnyChanged() || r.VersionAdvanced()
}

// NeedsMarkerUpdate decides whether the version marker should be persisted.
// On the inactive path the marker always advances: the install completed and
// there is no running process to disturb. On the active path it advances only
// when a real change occurred or the version moved, and is deliberately left
// untouched otherwise.
func (r *Report) NeedsMarkerUpdate(active bool) bool {
	if !active {
		return true
	}

	return r.AnyChanged() || r.VersionAdvanced()
}
