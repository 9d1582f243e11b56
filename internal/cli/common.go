package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ksyq12/nginxtls/internal/config"
	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/nginx"
	"github.com/ksyq12/nginxtls/internal/output"
)

// loadSettings loads the layered settings and applies flag overrides
func loadSettings() (*config.Settings, error) {
	settings, err := deps.SettingsLoader.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if serverRoot != "" {
		settings.ServerRoot = serverRoot
	}
	if nginxBin != "" {
		settings.NginxBin = nginxBin
	}
	return settings, nil
}

// newEngine builds the engine for the current settings. With prepare
// set, the nginx binary is probed and the shared TLS options installed;
// read-only commands just parse the configuration tree.
func newEngine(prepare bool) (*configurator.Configurator, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	eng := deps.EngineFactory.Create(settings)
	eng.Select = promptSelect
	if prepare {
		if err := eng.Prepare(); err != nil {
			return nil, err
		}
	} else {
		if err := eng.Load(); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// runTransaction performs mutate inside a checkpointed transaction:
// recover leftovers, prepare, begin, mutate, commit, optionally reload.
// A mutate error rolls the transaction back before returning.
func runTransaction(title string, reload bool, mutate func(*configurator.Configurator) error) error {
	if err := deps.RootChecker.RequireRoot(); err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	eng := deps.EngineFactory.Create(settings)
	eng.Select = promptSelect
	if err := eng.Recover(); err != nil {
		return fmt.Errorf("failed to recover interrupted state: %w", err)
	}
	if err := eng.Prepare(); err != nil {
		return err
	}
	if err := eng.Begin(title); err != nil {
		return err
	}
	if err := mutate(eng); err != nil {
		if rbErr := eng.Rollback(); rbErr != nil {
			output.Warn("Rollback failed: %v", rbErr)
		}
		return err
	}
	if err := eng.Commit(); err != nil {
		return err
	}
	if reload {
		output.Info("Reloading nginx...")
		if err := eng.Restart(); err != nil {
			return fmt.Errorf("failed to reload nginx: %w", err)
		}
	}
	return nil
}

// promptSelect asks the operator which server blocks a wildcard domain
// should cover. An empty answer keeps every candidate.
func promptSelect(prompt string, candidates []*nginx.VirtualHost) ([]*nginx.VirtualHost, error) {
	output.Print("%s", prompt)
	for i, vh := range candidates {
		output.Print("  %d: %s", i+1, vh.String())
	}
	output.Print("Select numbers (comma-separated, empty for all): ")
	line, err := deps.StdinReader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return candidates, nil
	}
	var picked []*nginx.VirtualHost
	for _, part := range strings.Split(line, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 1 || idx > len(candidates) {
			return nil, fmt.Errorf("invalid selection %q", strings.TrimSpace(part))
		}
		picked = append(picked, candidates[idx-1])
	}
	return picked, nil
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

// validateDomain checks if domain is valid
func validateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}
	if strings.Contains(domain, " ") {
		return fmt.Errorf("domain cannot contain spaces")
	}
	if strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return fmt.Errorf("domain cannot start or end with hyphen")
	}
	return nil
}

// CommandResult represents a common result structure for CLI commands
type CommandResult struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain"`
	Action  string `json:"action,omitempty"`
	Message string `json:"message,omitempty"`
}

// newSuccessResult creates a success result
func newSuccessResult(domain, action string) CommandResult {
	return CommandResult{
		Success: true,
		Domain:  domain,
		Action:  action,
	}
}
