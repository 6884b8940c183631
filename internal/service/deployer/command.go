package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshuvalov/bot-deployer/internal/config"
	"github.com/oshuvalov/bot-deployer/internal/domain/deploy"
	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/repository/marker"
	"github.com/oshuvalov/bot-deployer/internal/service/backup"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
	"github.com/oshuvalov/bot-deployer/internal/service/initsystem"
	"github.com/oshuvalov/bot-deployer/internal/service/installer"
	"github.com/oshuvalov/bot-deployer/internal/service/sandbox"
	"github.com/oshuvalov/bot-deployer/internal/service/selfupdate"
	"github.com/oshuvalov/bot-deployer/internal/service/source"
)

var errDeployerAlreadyRunning = errors.New("the deployer is already running")

// Options are inputs accepted by the deployer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// runner holds the state and collaborators of a single deployment run.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg          *config.Config    // Deployment settings loaded from YAML.
	sandboxOwner common.Identity   // Unprivileged identity owning downloads.
	box          *sandbox.Sandbox  // Workspace for untrusted content.
	report       *deploy.Report    // Accumulated change flags and actions.
	markerPath   string            // Run-marker location claiming this run.
	deployerPath string            // Installed deployer this process runs from.
}

// Run executes the deployment pipeline and is the public entry point for the
// CLI. The returned outcome tells the caller whether to hand control to a
// replaced deployer instead of finishing normally.
func Run(ctx context.Context, opts *Options) (deploy.Outcome, error) {
	ctx = logger.WithName(ctx, "bot-deployer")

	// Privilege precondition comes before any side effect.
	if err := common.RequireRoot(); err != nil {
		return deploy.Continue(), err
	}

	r, err := newRunner(ctx, opts)
	if err != nil {
		// A concurrent run owns the marker; only release it otherwise.
		if !errors.Is(err, errDeployerAlreadyRunning) {
			r.cleanup(ctx)
		}

		return deploy.Continue(), err
	}

	defer r.cleanup(ctx)

	outcome, err := r.run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Deployment failed", "error", err)

		return outcome, err
	}

	if outcome.Replaced {
		logger.InfoKV(ctx, "Deployer replaced, handing off", "path", outcome.Path)
	} else {
		logger.InfoKV(ctx, "Deployment completed",
			"version", r.report.TargetVersion,
			"restart", r.report.RestartIssued,
			"reload", r.report.ReloadIssued)
	}

	return outcome, nil
}

// newRunner loads settings and claims the run marker so two deployments never
// overlap.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	r := &runner{
		report:     &deploy.Report{},
		markerPath: defaultMarkerPath(),
	}

	if isDeployerRunningNow(ctx, r.markerPath) {
		return r, errDeployerAlreadyRunning
	}

	if err := createRunMarker(r.markerPath); err != nil {
		return r, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return r, err
	}

	r.cfg = cfg

	r.sandboxOwner, err = common.LookupIdentity(cfg.SandboxUser)
	if err != nil {
		return r, err
	}

	r.deployerPath = cfg.DeployerPath
	if r.deployerPath == "" {
		if r.deployerPath, err = os.Executable(); err != nil {
			return r, fmt.Errorf("locate running deployer: %w", err)
		}
	}

	return r, nil
}

// run executes the pipeline stages in order:
// 1) Provision the sandbox.
// 2) Resolve the target version.
// 3) Fetch and unpack the artifact.
// 4) Check the entry file, then the self-update gate.
// 5) Snapshot installed files.
// 6) Install units, application files, configuration and secret.
// 7) Reconcile the service and the version marker.
func (r *runner) run(ctx context.Context) (deploy.Outcome, error) {
	box, err := sandbox.New(ctx, r.sandboxOwner)
	if err != nil {
		return deploy.Continue(), err
	}

	r.box = box

	logger.Info(ctx, "Resolving the latest version from the remote")

	resolver := source.NewResolver(r.cfg.RepoURL, r.sandboxOwner, r.cfg.Timeout)

	tag, err := resolver.LatestTag(ctx)
	if err != nil {
		return deploy.Continue(), fmt.Errorf("resolve target version: %w", err)
	}

	r.report.TargetVersion = tag

	logger.InfoKV(ctx, "Fetching the release artifact", "version", tag)

	fetcher := source.NewFetcher(r.cfg.ArchiveURLTemplate, r.cfg.ArtifactURL, r.sandboxOwner, r.cfg.Timeout)

	sourceRoot, err := fetcher.Fetch(ctx, tag, box.Dir)
	if err != nil {
		return deploy.Continue(), fmt.Errorf("fetch artifact: %w", err)
	}

	inst := installer.NewInstaller(r.cfg, common.Root(), r.cfg.Timeout)

	// The entry file is checked before any mutation so a broken artifact
	// cannot leave a partial install behind.
	if err = inst.EnsureEntryPresent(sourceRoot); err != nil {
		return deploy.Continue(), err
	}

	logger.Info(ctx, "Checking whether the release bundles a newer deployer")

	gate := selfupdate.NewGate(r.deployerPath, r.cfg.DeployerSource)

	outcome, err := gate.Check(ctx, sourceRoot)
	if err != nil {
		return deploy.Continue(), fmt.Errorf("self-update gate: %w", err)
	}

	if outcome.Replaced {
		// The remaining stages belong to the replacement's own run.
		return outcome, nil
	}

	logger.Info(ctx, "Backing up the installed files")

	backups := backup.NewManager(r.cfg.BackupDir)
	if _, err = backups.Snapshot(ctx,
		r.cfg.AppEntryPath(),
		r.cfg.ConfigPath(),
		r.cfg.SecretPath(),
		r.cfg.UnitPath(r.cfg.ServiceName),
	); err != nil {
		return deploy.Continue(), fmt.Errorf("backup installed files: %w", err)
	}

	logger.Info(ctx, "Installing the release")

	if err = inst.InstallUnits(ctx, sourceRoot, r.report); err != nil {
		return deploy.Continue(), fmt.Errorf("install units: %w", err)
	}

	if err = inst.InstallApp(ctx, sourceRoot); err != nil {
		return deploy.Continue(), fmt.Errorf("install application files: %w", err)
	}

	if err = inst.InstallConfig(ctx, sourceRoot, r.report); err != nil {
		return deploy.Continue(), fmt.Errorf("install configuration: %w", err)
	}

	if err = inst.InstallSecret(ctx, sourceRoot, r.report); err != nil {
		return deploy.Continue(), fmt.Errorf("install secret: %w", err)
	}

	logger.Info(ctx, "Reconciling the service state")

	reconciler := NewReconciler(
		initsystem.NewSystemd(r.cfg.Timeout),
		marker.NewFileRepository(r.cfg.VersionFilePath()),
		r.cfg.ServiceName,
	)

	if err = reconciler.Reconcile(ctx, r.report); err != nil {
		return deploy.Continue(), fmt.Errorf("reconcile service: %w", err)
	}

	return deploy.Continue(), nil
}

// cleanup releases the run marker and the sandbox on every exit path.
func (r *runner) cleanup(ctx context.Context) {
	removeRunMarker(r.markerPath)
	r.box.Close(ctx)
}
