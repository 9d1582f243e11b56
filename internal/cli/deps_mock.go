package cli

import (
	"errors"
	"strings"

	"github.com/ksyq12/nginxtls/internal/config"
	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/executor"
)

// MockSettingsLoader is a test double for SettingsLoader
type MockSettingsLoader struct {
	Settings *config.Settings
	Err      error
	Calls    int
}

func (m *MockSettingsLoader) Load(path string) (*config.Settings, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Settings == nil {
		m.Settings = config.Default()
	}
	return m.Settings, nil
}

// MockEngineFactory is a test double for EngineFactory. Create builds a
// real engine over a recording executor, so command tests exercise the
// full stack against a temporary server root.
type MockEngineFactory struct {
	Executor *executor.MockExecutor
	Modify   func(*configurator.Configurator)
	Created  *configurator.Configurator
	Calls    int
}

func (m *MockEngineFactory) Create(settings *config.Settings) *configurator.Configurator {
	m.Calls++
	if m.Executor == nil {
		m.Executor = &executor.MockExecutor{}
	}
	eng := configurator.New(settings, m.Executor)
	if m.Modify != nil {
		m.Modify(eng)
	}
	m.Created = eng
	return eng
}

// MockRootChecker is a test double for RootChecker
type MockRootChecker struct {
	IsRoot bool
	Calls  int
}

func (m *MockRootChecker) RequireRoot() error {
	m.Calls++
	if !m.IsRoot {
		return errors.New("this operation requires root privileges. Please run with sudo")
	}
	return nil
}

// MockStdinReader is a test double for StdinReader
type MockStdinReader struct {
	Input string
	pos   int
}

func (m *MockStdinReader) ReadString(delim byte) (string, error) {
	if m.pos >= len(m.Input) {
		return "", errors.New("EOF")
	}
	idx := strings.IndexByte(m.Input[m.pos:], delim)
	if idx == -1 {
		result := m.Input[m.pos:]
		m.pos = len(m.Input)
		return result, nil
	}
	result := m.Input[m.pos : m.pos+idx+1]
	m.pos += idx + 1
	return result, nil
}

// MockDependenciesBuilder helps create mock dependencies for tests
type MockDependenciesBuilder struct {
	deps *Dependencies
}

// NewMockDeps creates a new MockDependenciesBuilder with sensible defaults
func NewMockDeps() *MockDependenciesBuilder {
	return &MockDependenciesBuilder{
		deps: &Dependencies{
			SettingsLoader: &MockSettingsLoader{},
			EngineFactory:  &MockEngineFactory{},
			RootChecker:    &MockRootChecker{IsRoot: true},
			StdinReader:    &MockStdinReader{Input: "\n"},
		},
	}
}

// WithSettings sets the settings for the mock
func (b *MockDependenciesBuilder) WithSettings(s *config.Settings) *MockDependenciesBuilder {
	b.deps.SettingsLoader = &MockSettingsLoader{Settings: s}
	return b
}

// WithSettingsError sets an error for settings loading
func (b *MockDependenciesBuilder) WithSettingsError(err error) *MockDependenciesBuilder {
	b.deps.SettingsLoader = &MockSettingsLoader{Err: err}
	return b
}

// WithEngineFactory sets a custom engine factory
func (b *MockDependenciesBuilder) WithEngineFactory(factory EngineFactory) *MockDependenciesBuilder {
	b.deps.EngineFactory = factory
	return b
}

// WithExecutor sets the executor behind the engine factory
func (b *MockDependenciesBuilder) WithExecutor(exec *executor.MockExecutor) *MockDependenciesBuilder {
	b.deps.EngineFactory = &MockEngineFactory{Executor: exec}
	return b
}

// WithRootAccess sets whether root access is available
func (b *MockDependenciesBuilder) WithRootAccess(isRoot bool) *MockDependenciesBuilder {
	b.deps.RootChecker = &MockRootChecker{IsRoot: isRoot}
	return b
}

// WithStdinInput sets the stdin input for the mock
func (b *MockDependenciesBuilder) WithStdinInput(input string) *MockDependenciesBuilder {
	b.deps.StdinReader = &MockStdinReader{Input: input}
	return b
}

// Build returns the configured Dependencies
func (b *MockDependenciesBuilder) Build() *Dependencies {
	return b.deps
}
