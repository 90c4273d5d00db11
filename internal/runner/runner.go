// Package runner implements the Run Driver (§4.5): the glue that loads
// config, acquires the single-instance lock, builds the Router Facade, and
// invokes the enabled phases in order. Only the orchestration shape is
// core; the pieces it calls live in their own packages.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/readysettech/proxysql-scheduler/internal/config"
	"github.com/readysettech/proxysql-scheduler/internal/discovery"
	"github.com/readysettech/proxysql-scheduler/internal/lockfile"
	"github.com/readysettech/proxysql-scheduler/internal/logging"
	"github.com/readysettech/proxysql-scheduler/internal/router"
)

// ErrFatalStartup covers the §7 "fatal startup" category: config not
// readable/parseable, lock file not openable, lock not acquirable, or
// Router not connectable. The run has no side effects when this is
// returned.
var ErrFatalStartup = errors.New("runner: fatal startup error")

// ErrFatalCommit covers the §7 "fatal commit" category: a Router write
// fails after the decision to change state has already been made.
// Previously committed changes are left in place.
var ErrFatalCommit = errors.New("runner: fatal commit error")

// Options carries the CLI flags that shape a single run.
type Options struct {
	ConfigPath string
	DryRun     bool
}

// Run executes one scheduler invocation end to end (§4.5 steps 2-7). Step 1
// (CLI parsing) happens in the caller, cmd/readyset-scheduler, before Run is
// called.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatalStartup, err)
	}
	logging.Default.SetThreshold(logging.ParseLevel(cfg.LogVerbosity))

	logging.Default.Info("Running readyset_scheduler")

	lock, err := lockfile.TryLock(cfg.LockFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatalStartup, err)
	}
	defer lock.Unlock()

	facade, err := router.New(ctx, cfg, opts.DryRun)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFatalStartup, err)
	}
	defer facade.Close()

	if cfg.RunsHealthCheck() {
		if err := facade.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%w: health check: %v", ErrFatalCommit, err)
		}
	}

	if cfg.RunsQueryDiscovery() {
		engine := discovery.New(facade, cfg)
		if err := engine.Run(ctx); err != nil {
			return fmt.Errorf("%w: query discovery: %v", ErrFatalCommit, err)
		}
	}

	logging.Default.Info("Finished readyset_scheduler")
	return nil
}
