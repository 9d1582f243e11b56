// Package configurator is the engine that edits an nginx installation:
// it resolves server blocks for a domain, deploys certificate material
// into them, applies follow-up enhancements, and guards every change
// with a checkpointed transaction validated by nginx itself.
package configurator

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ksyq12/nginxtls/internal/config"
	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/executor"
	"github.com/ksyq12/nginxtls/internal/logger"
	"github.com/ksyq12/nginxtls/internal/nginx"
	"github.com/ksyq12/nginxtls/internal/revert"
	"github.com/ksyq12/nginxtls/internal/webroot"
)

// SelectFunc chooses a subset of candidate vhosts when a wildcard
// domain cannot be resolved mechanically. The CLI installs an
// interactive prompt; the default keeps every candidate.
type SelectFunc func(prompt string, candidates []*nginx.VirtualHost) ([]*nginx.VirtualHost, error)

// Configurator drives all configuration changes. Call Load before
// read-only queries and Prepare before mutations.
type Configurator struct {
	settings *config.Settings
	exec     executor.CommandExecutor
	reverter *revert.Manager

	tree     *nginx.Config
	detected *Detected

	// Session state: wildcard selections are remembered per domain so
	// a multi-domain run never re-prompts, and a vhost duplicated from
	// the default server is reused by every later deploy.
	wildcardVHosts         map[string][]*nginx.VirtualHost
	wildcardRedirectVHosts map[string][]*nginx.VirtualHost
	newVHost               *nginx.VirtualHost
	deployedNames          []string

	// Injection points for the CLI and tests.
	Select     SelectFunc
	LookupAddr func(addr string) ([]string, error)
	Hostname   func() (string, error)
	sleepFn    func(time.Duration)
}

// New builds a Configurator around loaded settings.
func New(settings *config.Settings, exe executor.CommandExecutor) *Configurator {
	return &Configurator{
		settings:               settings,
		exec:                   exe,
		reverter:               revert.NewManager(settings.WorkDir, settings.LockWait.Std()),
		wildcardVHosts:         make(map[string][]*nginx.VirtualHost),
		wildcardRedirectVHosts: make(map[string][]*nginx.VirtualHost),
		Select:                 selectAll,
		LookupAddr:             net.LookupAddr,
		Hostname:               os.Hostname,
		sleepFn:                time.Sleep,
	}
}

func selectAll(_ string, candidates []*nginx.VirtualHost) ([]*nginx.VirtualHost, error) {
	return candidates, nil
}

// Settings returns the settings the engine was built with.
func (c *Configurator) Settings() *config.Settings { return c.settings }

// DetectedVersion returns what Prepare learned about the nginx binary,
// nil before Prepare ran.
func (c *Configurator) DetectedVersion() *Detected { return c.detected }

// Tree returns the loaded configuration, nil before Load.
func (c *Configurator) Tree() *nginx.Config { return c.tree }

// rootConf is the configuration path handed to nginx invocations.
func (c *Configurator) rootConf() string {
	return filepath.Join(c.settings.ServerRoot, "nginx.conf")
}

// Load parses the configuration tree. Read-only commands need nothing
// more.
func (c *Configurator) Load() error {
	tree, err := nginx.Load(c.settings.ServerRoot)
	if err != nil {
		return err
	}
	c.tree = tree
	return nil
}

// Probe resolves the nginx binary and detects its capabilities without
// touching the configuration.
func (c *Configurator) Probe() (*Detected, error) {
	if _, err := c.exec.LookPath(c.settings.NginxBin); err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("nginx binary %q not found on PATH", c.settings.NginxBin), err)
	}
	d, err := DetectVersion(c.exec, c.settings.NginxBin)
	if err != nil {
		return nil, err
	}
	c.detected = d
	return d, nil
}

// Prepare readies the engine for mutations: the nginx binary must
// resolve, report a TLS-capable build of a supported version, the
// configuration must parse, and the shared TLS options file must be
// in place.
func (c *Configurator) Prepare() error {
	d, err := c.Probe()
	if err != nil {
		return err
	}
	if err := c.Load(); err != nil {
		return err
	}
	return InstallOptionsFile(c.settings.TLSOptionsPath, d)
}

// Begin opens a transaction. Every mutation until Commit or Rollback
// belongs to it.
func (c *Configurator) Begin(title string) error {
	return c.reverter.Begin(title)
}

// Commit writes dirty files, lets nginx validate the result and
// finalizes the checkpoint. Any failure restores the pre-transaction
// bytes and reloads the tree from disk so memory matches reality again.
func (c *Configurator) Commit() error {
	for _, path := range c.tree.DirtyPaths() {
		if err := c.reverter.Protect(path); err != nil {
			return c.abort(err)
		}
		if err := c.tree.WriteFile(path); err != nil {
			return c.abort(err)
		}
	}
	if err := c.ConfigTest(); err != nil {
		return c.abort(err)
	}
	c.tree.ClearDirty()
	return c.reverter.Commit()
}

// abort rolls the open transaction back after a failed commit step and
// discards in-memory edits.
func (c *Configurator) abort(reason error) error {
	if err := c.reverter.Rollback(); err != nil {
		logger.Error("Rollback after failed commit: %v", err)
	}
	if err := c.tree.Reload(); err != nil {
		logger.Error("Reload after failed commit: %v", err)
	}
	return reason
}

// Rollback discards the open transaction, restoring every protected
// file.
func (c *Configurator) Rollback() error {
	err := c.reverter.Rollback()
	if c.tree != nil {
		if rerr := c.tree.Reload(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

// RollbackN undoes the newest n finalized checkpoints.
func (c *Configurator) RollbackN(n int) error {
	if err := c.reverter.RollbackN(n); err != nil {
		return err
	}
	if c.tree != nil {
		return c.tree.Reload()
	}
	return nil
}

// Recover restores whatever an interrupted earlier run left behind:
// an in-progress transaction and any temporary challenge-time state.
func (c *Configurator) Recover() error {
	return c.reverter.Recover()
}

// Checkpoints lists finalized checkpoints, newest first.
func (c *Configurator) Checkpoints() ([]revert.Checkpoint, error) {
	return c.reverter.List()
}

// CheckLock probes whether the work directory lock is obtainable.
func (c *Configurator) CheckLock() error {
	return c.reverter.CheckLock()
}

// Restart makes nginx serve the configuration on disk.
func (c *Configurator) Restart() error {
	return Restart(c.exec, c.settings.NginxBin, c.rootConf(), c.settings.RestartSleep.Std(), c.sleepFn)
}

// ConfigTest validates the configuration on disk.
func (c *Configurator) ConfigTest() error {
	return ConfigTest(c.exec, c.settings.NginxBin, c.rootConf())
}

// WriteChallenge places a validation response file in the domain's
// webroot and returns its path. The file is registered with the
// temporary checkpoint first, so Recover and CleanupChallenges can
// remove it even after a crash.
func (c *Configurator) WriteChallenge(domain, token, content string) (string, error) {
	root := c.settings.WebrootFor(domain)
	if root == "" {
		return "", nxerrors.Precondition(fmt.Sprintf("no webroot configured for %s", domain))
	}
	placer := webroot.NewPlacer(root)
	if err := c.reverter.ProtectTemp(placer.ChallengePath(token)); err != nil {
		return "", err
	}
	return placer.Write(token, content)
}

// CleanupChallenges removes every challenge file for the domain,
// reverts temporary configuration state and reloads nginx.
func (c *Configurator) CleanupChallenges(domain string) error {
	if root := c.settings.WebrootFor(domain); root != "" {
		if err := webroot.NewPlacer(root).CleanAll(); err != nil {
			return err
		}
	}
	if err := c.reverter.RevertTemp(); err != nil {
		return err
	}
	return c.Restart()
}
