package cli

import (
	"bufio"
	"os"

	"github.com/ksyq12/nginxtls/internal/config"
	"github.com/ksyq12/nginxtls/internal/configurator"
	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/executor"
)

// Dependencies aggregates all CLI external dependencies for testability
type Dependencies struct {
	SettingsLoader SettingsLoader
	EngineFactory  EngineFactory
	RootChecker    RootChecker
	StdinReader    StdinReader
}

// SettingsLoader loads the layered settings
type SettingsLoader interface {
	Load(path string) (*config.Settings, error)
}

// EngineFactory builds the configuration engine for a settings set
type EngineFactory interface {
	Create(settings *config.Settings) *configurator.Configurator
}

// RootChecker checks root privileges
type RootChecker interface {
	RequireRoot() error
}

// StdinReader reads from stdin
type StdinReader interface {
	ReadString(delim byte) (string, error)
}

// Package-level dependencies (can be overridden for testing)
var deps = &Dependencies{
	SettingsLoader: &realSettingsLoader{},
	EngineFactory:  &realEngineFactory{},
	RootChecker:    &realRootChecker{},
	StdinReader:    &realStdinReader{},
}

// SetDeps replaces the package dependencies (for testing)
func SetDeps(d *Dependencies) {
	deps = d
}

// GetDeps returns the current dependencies (for testing)
func GetDeps() *Dependencies {
	return deps
}

// Real implementations that delegate to existing functions

type realSettingsLoader struct{}

func (r *realSettingsLoader) Load(path string) (*config.Settings, error) {
	return config.Load(path)
}

type realEngineFactory struct{}

func (r *realEngineFactory) Create(settings *config.Settings) *configurator.Configurator {
	return configurator.New(settings, executor.NewSystemExecutor())
}

type realRootChecker struct{}

func (r *realRootChecker) RequireRoot() error {
	if os.Geteuid() != 0 {
		return nxerrors.Wrap(nxerrors.ErrCodePermission,
			"this operation requires root privileges. Please run with sudo", nil)
	}
	return nil
}

type realStdinReader struct {
	reader *bufio.Reader
}

func (r *realStdinReader) ReadString(delim byte) (string, error) {
	if r.reader == nil {
		r.reader = bufio.NewReader(os.Stdin)
	}
	return r.reader.ReadString(delim)
}
