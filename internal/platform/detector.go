// Package platform detects where nginx lives on the current system.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Paths contains the detected filesystem layout for nginx.
type Paths struct {
	// ServerRoot is the directory holding nginx.conf.
	ServerRoot string
	// NginxBin is the binary name or path used to run nginx.
	NginxBin string
	// WorkDir stores checkpoints and installed TLS policy files.
	WorkDir string
}

// Detect probes common installation locations for the current OS and
// returns the best matching layout. When nothing is found the primary
// location for the OS is returned, so the caller always has a default
// to report in errors.
func Detect() *Paths {
	roots := serverRootCandidates()
	root := roots[0]
	for _, r := range roots {
		if pathExists(filepath.Join(r, "nginx.conf")) {
			root = r
			break
		}
	}
	return &Paths{
		ServerRoot: root,
		NginxBin:   "nginx",
		WorkDir:    workDirFor(root),
	}
}

// serverRootCandidates lists configuration roots in probe order.
func serverRootCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		// Apple Silicon Homebrew first, then Intel Homebrew
		return []string{
			"/opt/homebrew/etc/nginx",
			"/usr/local/etc/nginx",
		}
	default:
		// Debian, RHEL and source builds all keep nginx.conf here or
		// under the classic source-install prefix
		return []string{
			"/etc/nginx",
			"/usr/local/nginx/conf",
		}
	}
}

// workDirFor keeps checkpoint state next to the install prefix on
// Homebrew systems and under /var/lib elsewhere.
func workDirFor(serverRoot string) string {
	switch {
	case strings.HasPrefix(serverRoot, "/opt/homebrew/"):
		return "/opt/homebrew/var/lib/nginxtls"
	case strings.HasPrefix(serverRoot, "/usr/local/etc/"):
		return "/usr/local/var/lib/nginxtls"
	default:
		return "/var/lib/nginxtls"
	}
}

// pathExists checks if a path exists on the filesystem.
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Platform returns a string describing the current platform.
func Platform() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
