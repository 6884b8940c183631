package initsystem

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// InitSystem is the control surface the reconciler consumes: query active
// status, reload unit definitions, and issue a non-blocking restart.
type InitSystem interface {
	IsActive(ctx context.Context, unit string) (bool, error)
	DaemonReload(ctx context.Context) error
	Restart(ctx context.Context, unit string) error
}

// ErrServiceControl is returned when an init-system operation fails.
// Failures are surfaced, not swallowed.
var ErrServiceControl = errors.New("init system operation failed")

// Systemd drives the init system through systemctl.
type Systemd struct {
	// timeout bounds each systemctl invocation.
	timeout time.Duration
}

// NewSystemd creates a systemctl-backed init system client.
func NewSystemd(timeout time.Duration) *Systemd {
	return &Systemd{timeout: timeout}
}

// IsActive queries whether the unit is currently active. A non-zero exit
// status means inactive, not an error.
func (s *Systemd) IsActive(ctx context.Context, unit string) (bool, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := exec.CommandContext(cmdCtx, "systemctl", "is-active", "--quiet", unit).Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}

	return false, fmt.Errorf("%w: is-active %s: %v", ErrServiceControl, unit, err)
}

// DaemonReload instructs systemd to reload its unit definitions.
func (s *Systemd) DaemonReload(ctx context.Context) error {
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := exec.CommandContext(cmdCtx, "systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("%w: daemon-reload: %v", ErrServiceControl, err)
	}

	return nil
}

// Restart queues a restart of the unit without waiting for its shutdown and
// startup sequencing to complete.
func (s *Systemd) Restart(ctx context.Context, unit string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := exec.CommandContext(cmdCtx, "systemctl", "restart", "--no-block", unit).Run(); err != nil {
		return fmt.Errorf("%w: restart %s: %v", ErrServiceControl, unit, err)
	}

	return nil
}
