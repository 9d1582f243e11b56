package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	s := Default()
	if s.ServerRoot == "" {
		t.Error("ServerRoot should have a platform default")
	}
	if s.HTTPPort != "80" || s.HTTPSPort != "443" {
		t.Errorf("ports = %s/%s, want 80/443", s.HTTPPort, s.HTTPSPort)
	}
	if s.RestartSleep.Std() != time.Second {
		t.Errorf("RestartSleep = %v, want 1s", s.RestartSleep)
	}
	if s.LockWait.Std() != 10*time.Second {
		t.Errorf("LockWait = %v, want 10s", s.LockWait)
	}
	if s.WebrootMap == nil {
		t.Error("WebrootMap should be initialized")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `server_root: /srv/nginx
nginx_bin: /usr/sbin/nginx
https_port: "8443"
restart_sleep: 250ms
webroot: /var/www/html
webroot_map:
  example.com: /srv/example/public
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ServerRoot != "/srv/nginx" {
		t.Errorf("ServerRoot = %s, want /srv/nginx", s.ServerRoot)
	}
	if s.HTTPSPort != "8443" {
		t.Errorf("HTTPSPort = %s, want 8443", s.HTTPSPort)
	}
	if s.HTTPPort != "80" {
		t.Errorf("HTTPPort = %s, want the default 80", s.HTTPPort)
	}
	if s.RestartSleep.Std() != 250*time.Millisecond {
		t.Errorf("RestartSleep = %v, want 250ms", s.RestartSleep)
	}
	if got := s.WebrootFor("example.com"); got != "/srv/example/public" {
		t.Errorf("WebrootFor(example.com) = %s, want the mapped webroot", got)
	}
	if got := s.WebrootFor("other.com"); got != "/var/www/html" {
		t.Errorf("WebrootFor(other.com) = %s, want the default webroot", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("https_port: \"8443\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("NGINXTLS_HTTPS_PORT", "9443")
	t.Setenv("NGINXTLS_LOCK_WAIT", "3s")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.HTTPSPort != "9443" {
		t.Errorf("HTTPSPort = %s, environment should beat the file", s.HTTPSPort)
	}
	if s.LockWait.Std() != 3*time.Second {
		t.Errorf("LockWait = %v, want 3s", s.LockWait)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for an explicit path that does not exist")
	}
}

func TestLoad_DerivedTLSOptionsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("work_dir: /srv/state\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.TLSOptionsPath != "/srv/state/options-tls.conf" {
		t.Errorf("TLSOptionsPath = %s, want it derived from work_dir", s.TLSOptionsPath)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"defaults are valid", func(s *Settings) {}, false},
		{"empty server root", func(s *Settings) { s.ServerRoot = "" }, true},
		{"empty nginx bin", func(s *Settings) { s.NginxBin = "" }, true},
		{"bad http port", func(s *Settings) { s.HTTPPort = "eighty" }, true},
		{"bad https port", func(s *Settings) { s.HTTPSPort = "" }, true},
		{"empty work dir", func(s *Settings) { s.WorkDir = "" }, true},
		{"negative sleep", func(s *Settings) { s.RestartSleep = Duration(-time.Second) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("restart_sleep: soon\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject an unparsable duration")
	}
}
