package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ksyq12/nginxtls/internal/platform"
)

// configDir is the default config directory
const configDir = ".config/nginxtls"
const configFile = "config.yaml"

// Duration wraps time.Duration so settings files and environment
// variables can use forms like "1s" or "500ms".
type Duration time.Duration

// UnmarshalYAML parses a duration string from a YAML value.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

// UnmarshalText parses a duration string from an environment variable.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Settings represents the application settings. Values are layered:
// platform defaults, then the settings file, then NGINXTLS_* variables.
type Settings struct {
	ServerRoot     string            `yaml:"server_root" env:"NGINXTLS_SERVER_ROOT"`
	NginxBin       string            `yaml:"nginx_bin" env:"NGINXTLS_NGINX_BIN"`
	HTTPPort       string            `yaml:"http_port" env:"NGINXTLS_HTTP_PORT"`
	HTTPSPort      string            `yaml:"https_port" env:"NGINXTLS_HTTPS_PORT"`
	WorkDir        string            `yaml:"work_dir" env:"NGINXTLS_WORK_DIR"`
	TLSOptionsPath string            `yaml:"tls_options_path" env:"NGINXTLS_TLS_OPTIONS_PATH"`
	DHParamPath    string            `yaml:"dhparam_path" env:"NGINXTLS_DHPARAM_PATH"`
	RestartSleep   Duration          `yaml:"restart_sleep" env:"NGINXTLS_RESTART_SLEEP"`
	LockWait       Duration          `yaml:"lock_wait" env:"NGINXTLS_LOCK_WAIT"`
	Webroot        string            `yaml:"webroot" env:"NGINXTLS_WEBROOT"`
	WebrootMap     map[string]string `yaml:"webroot_map" env:"NGINXTLS_WEBROOT_MAP"`
}

// Default creates Settings with platform-detected values.
func Default() *Settings {
	p := platform.Detect()
	return &Settings{
		ServerRoot:   p.ServerRoot,
		NginxBin:     p.NginxBin,
		HTTPPort:     "80",
		HTTPSPort:    "443",
		WorkDir:      p.WorkDir,
		RestartSleep: Duration(time.Second),
		LockWait:     Duration(10 * time.Second),
		WebrootMap:   make(map[string]string),
	}
}

// Dir returns the settings directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

// Path returns the settings file path
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads settings from the given file, falling back to the default
// location when path is empty. A missing file at the default location
// yields defaults; a missing file at an explicit path is an error.
// Environment variables override file values either way.
func Load(path string) (*Settings, error) {
	s := Default()

	if path == "" {
		defaultPath, err := Path()
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(defaultPath); err == nil {
			path = defaultPath
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
	}

	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	s.applyDerived()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyDerived fills values computed from other settings.
func (s *Settings) applyDerived() {
	if s.TLSOptionsPath == "" {
		s.TLSOptionsPath = filepath.Join(s.WorkDir, "options-tls.conf")
	}
	if s.WebrootMap == nil {
		s.WebrootMap = make(map[string]string)
	}
}

// Validate checks the settings for values the engine cannot work with.
func (s *Settings) Validate() error {
	if s.ServerRoot == "" {
		return fmt.Errorf("server_root must not be empty")
	}
	if s.NginxBin == "" {
		return fmt.Errorf("nginx_bin must not be empty")
	}
	if !isPort(s.HTTPPort) {
		return fmt.Errorf("http_port %q is not a port number", s.HTTPPort)
	}
	if !isPort(s.HTTPSPort) {
		return fmt.Errorf("https_port %q is not a port number", s.HTTPSPort)
	}
	if s.WorkDir == "" {
		return fmt.Errorf("work_dir must not be empty")
	}
	if s.RestartSleep < 0 {
		return fmt.Errorf("restart_sleep must not be negative")
	}
	if s.LockWait < 0 {
		return fmt.Errorf("lock_wait must not be negative")
	}
	return nil
}

// WebrootFor returns the challenge webroot for a domain: the per-domain
// mapping when present, otherwise the default webroot. Empty means no
// webroot is configured for the domain.
func (s *Settings) WebrootFor(domain string) string {
	if w, ok := s.WebrootMap[domain]; ok {
		return w
	}
	return s.Webroot
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
