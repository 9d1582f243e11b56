package platform

import (
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	p := Detect()
	if p.ServerRoot == "" {
		t.Error("ServerRoot should never be empty")
	}
	if p.NginxBin == "" {
		t.Error("NginxBin should never be empty")
	}
	if p.WorkDir == "" {
		t.Error("WorkDir should never be empty")
	}
}

func TestServerRootCandidates(t *testing.T) {
	roots := serverRootCandidates()
	if len(roots) == 0 {
		t.Fatal("candidate list should never be empty")
	}
	for _, r := range roots {
		if !strings.HasPrefix(r, "/") {
			t.Errorf("candidate %q should be absolute", r)
		}
	}
}

func TestWorkDirFor(t *testing.T) {
	tests := []struct {
		root string
		want string
	}{
		{"/etc/nginx", "/var/lib/nginxtls"},
		{"/usr/local/nginx/conf", "/var/lib/nginxtls"},
		{"/opt/homebrew/etc/nginx", "/opt/homebrew/var/lib/nginxtls"},
		{"/usr/local/etc/nginx", "/usr/local/var/lib/nginxtls"},
	}
	for _, tt := range tests {
		if got := workDirFor(tt.root); got != tt.want {
			t.Errorf("workDirFor(%q) = %q, want %q", tt.root, got, tt.want)
		}
	}
}

func TestPlatform(t *testing.T) {
	p := Platform()
	if !strings.Contains(p, "/") {
		t.Errorf("Platform() = %q, want os/arch format", p)
	}
}
