package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ksyq12/nginxtls/internal/config"
	"github.com/ksyq12/nginxtls/internal/configurator"
	"github.com/ksyq12/nginxtls/internal/executor"
	"github.com/ksyq12/nginxtls/internal/nginx"
)

// nginxVOutput is what a TLS-capable nginx build prints for -V.
const nginxVOutput = `nginx version: nginx/1.24.0
built by gcc 12.2.0 (Debian 12.2.0-14)
built with OpenSSL 3.0.11 19 Sep 2023
TLS SNI support enabled
configure arguments: --prefix=/usr/local/nginx --with-http_ssl_module --with-http_v2_module
`

const siteConf = `server {
    listen 80;
    server_name example.com www.example.com;
}
`

// writeServerRoot lays out a temporary server root. Keys are paths
// relative to the root; a minimal nginx.conf including sites-enabled/*
// is supplied unless the caller brings its own.
func writeServerRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if _, ok := files["nginx.conf"]; !ok {
		conf := filepath.Join(root, "nginx.conf")
		base := "user www-data;\nevents {\n}\nhttp {\n    include sites-enabled/*;\n}\n"
		if err := os.WriteFile(conf, []byte(base), 0o644); err != nil {
			t.Fatalf("writing nginx.conf: %v", err)
		}
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
	return root
}

func testSettings(root string) *config.Settings {
	return &config.Settings{
		ServerRoot:     root,
		NginxBin:       "nginx",
		HTTPPort:       "80",
		HTTPSPort:      "5001",
		WorkDir:        filepath.Join(root, ".nginxtls"),
		TLSOptionsPath: filepath.Join(root, "options-tls.conf"),
		DHParamPath:    filepath.Join(root, "dhparams.pem"),
		LockWait:       config.Duration(time.Second),
	}
}

// nginxExec returns an executor whose -V output satisfies version
// detection; every other command succeeds silently.
func nginxExec() *executor.MockExecutor {
	return &executor.MockExecutor{
		ExecuteFunc: func(name string, args ...string) ([]byte, error) {
			if len(args) > 0 && args[0] == "-V" {
				return []byte(nginxVOutput), nil
			}
			return []byte(""), nil
		},
	}
}

// setupCommand swaps in mock dependencies over a temporary server root
// and restores everything afterwards. The returned factory exposes the
// engine a command built.
func setupCommand(t *testing.T, root string, exec *executor.MockExecutor) *MockEngineFactory {
	t.Helper()
	return setupCommandWith(t, testSettings(root), exec)
}

func setupCommandWith(t *testing.T, settings *config.Settings, exec *executor.MockExecutor) *MockEngineFactory {
	t.Helper()
	factory := &MockEngineFactory{Executor: exec}
	oldDeps := deps
	deps = NewMockDeps().
		WithSettings(settings).
		WithEngineFactory(factory).
		Build()
	jsonOutput = false
	t.Cleanup(func() { deps = oldDeps })
	return factory
}

// readSite returns the current bytes of a sites-enabled file.
func readSite(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "sites-enabled", name))
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr bool
	}{
		{"valid domain", "example.com", false},
		{"valid subdomain", "www.example.com", false},
		{"wildcard domain", "*.example.com", false},
		{"empty domain", "", true},
		{"domain with spaces", "exa mple.com", true},
		{"leading hyphen", "-example.com", true},
		{"trailing hyphen", "example.com-", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDomain(tt.domain)
			if tt.wantErr && err == nil {
				t.Errorf("validateDomain(%q) = nil, want error", tt.domain)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateDomain(%q) = %v, want nil", tt.domain, err)
			}
		})
	}
}

func TestLoadSettingsFlagOverrides(t *testing.T) {
	oldDeps := deps
	deps = NewMockDeps().
		WithSettings(testSettings("/etc/nginx")).
		Build()
	serverRoot = "/srv/nginx"
	nginxBin = "/opt/nginx/sbin/nginx"
	t.Cleanup(func() {
		deps = oldDeps
		serverRoot = ""
		nginxBin = ""
	})

	settings, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if settings.ServerRoot != "/srv/nginx" {
		t.Errorf("ServerRoot = %q, want flag override", settings.ServerRoot)
	}
	if settings.NginxBin != "/opt/nginx/sbin/nginx" {
		t.Errorf("NginxBin = %q, want flag override", settings.NginxBin)
	}
}

func TestPromptSelect(t *testing.T) {
	candidates := []*nginx.VirtualHost{
		{Names: []string{"a.example.com"}, FilePath: "/etc/nginx/sites-enabled/a.conf"},
		{Names: []string{"b.example.com"}, FilePath: "/etc/nginx/sites-enabled/b.conf"},
		{Names: []string{"c.example.com"}, FilePath: "/etc/nginx/sites-enabled/c.conf"},
	}

	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"empty keeps all", "\n", []string{"a.example.com", "b.example.com", "c.example.com"}, false},
		{"single pick", "2\n", []string{"b.example.com"}, false},
		{"multiple picks", "1, 3\n", []string{"a.example.com", "c.example.com"}, false},
		{"zero is invalid", "0\n", nil, true},
		{"out of range", "4\n", nil, true},
		{"not a number", "x\n", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldDeps := deps
			deps = NewMockDeps().WithStdinInput(tt.input).Build()
			t.Cleanup(func() { deps = oldDeps })

			picked, err := promptSelect("Which server blocks should *.example.com cover?", candidates)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("promptSelect: %v", err)
			}
			var names []string
			for _, vh := range picked {
				names = append(names, vh.Names...)
			}
			if strings.Join(names, " ") != strings.Join(tt.want, " ") {
				t.Errorf("picked %v, want %v", names, tt.want)
			}
		})
	}
}

func TestRunTransactionRequiresRoot(t *testing.T) {
	oldDeps := deps
	deps = NewMockDeps().WithRootAccess(false).Build()
	t.Cleanup(func() { deps = oldDeps })

	called := false
	err := runTransaction("test", false, func(*configurator.Configurator) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "root") {
		t.Fatalf("expected root privilege error, got %v", err)
	}
	if called {
		t.Error("mutation ran without root")
	}
}
