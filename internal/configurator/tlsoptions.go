package configurator

import (
	"embed"
	"os"
	"path/filepath"
	"strings"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/fsutil"
	"github.com/ksyq12/nginxtls/internal/logger"
)

//go:embed tls/*.conf
var tlsTemplates embed.FS

// optionsRule maps a pair of minimum versions to a TLS options
// template. Rules are evaluated top-down and the first rule whose
// minimums are both satisfied wins. A nil minNginx or empty
// minOpenSSL means "no requirement"; an unknown OpenSSL version
// never satisfies a rule that has an OpenSSL minimum.
type optionsRule struct {
	minNginx   Version
	minOpenSSL string
	template   string
}

var optionsRules = []optionsRule{
	{Version{1, 13, 0}, "1.0.2l", "options-tls-modern.conf"},
	{Version{1, 13, 0}, "", "options-tls-modern-tickets.conf"},
	{Version{1, 5, 9}, "", "options-tls.conf"},
	{nil, "", "options-tls-legacy.conf"},
}

// ChooseOptionsTemplate returns the name of the shared TLS options
// template appropriate for the detected nginx and OpenSSL versions.
func ChooseOptionsTemplate(d *Detected) string {
	for _, r := range optionsRules {
		if r.minNginx != nil && !d.Version.AtLeast(r.minNginx) {
			continue
		}
		if r.minOpenSSL != "" && (d.OpenSSL == "" || compareLoose(d.OpenSSL, r.minOpenSSL) < 0) {
			continue
		}
		return r.template
	}
	return optionsRules[len(optionsRules)-1].template
}

// OptionsTemplate returns the raw contents of a named TLS options
// template.
func OptionsTemplate(name string) ([]byte, error) {
	data, err := tlsTemplates.ReadFile("tls/" + name)
	if err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodeInternal, "unknown TLS options template", err)
	}
	return data, nil
}

// knownOptionsHashes returns the digests of every TLS options
// template shipped with the tool. A destination file whose hash is in
// this set was installed by us and is safe to overwrite.
func knownOptionsHashes() map[string]bool {
	entries, err := tlsTemplates.ReadDir("tls")
	if err != nil {
		return nil
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		data, err := tlsTemplates.ReadFile("tls/" + e.Name())
		if err != nil {
			continue
		}
		out[fsutil.Sha256Bytes(data)] = true
	}
	return out
}

// digestPath is where the hash of the last-installed options file is
// recorded, next to the file itself.
func digestPath(dest string) string {
	return dest + ".digest"
}

// InstallOptionsFile writes the TLS options template selected for the
// detected versions to dest, unless the operator has modified the file
// by hand. A hand-modified file is left alone: the fresh template goes
// to a .new sibling instead and a warning is logged once per template
// version, tracked through the digest file.
func InstallOptionsFile(dest string, d *Detected) error {
	name := ChooseOptionsTemplate(d)
	content, err := OptionsTemplate(name)
	if err != nil {
		return err
	}
	currentHash := fsutil.Sha256Bytes(content)

	install := func(path string) error {
		return fsutil.WithUmask(0o022, func() error {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to create TLS options directory", err)
			}
			if err := fsutil.WriteFileAtomic(path, content, 0o644); err != nil {
				return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to write TLS options file", err)
			}
			return nil
		})
	}
	writeDigest := func() error {
		if err := fsutil.WriteFileAtomic(digestPath(dest), []byte(currentHash+"\n"), 0o644); err != nil {
			return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to write TLS options digest", err)
		}
		return nil
	}

	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := install(dest); err != nil {
			return err
		}
		return writeDigest()
	} else if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to stat TLS options file", err)
	}

	activeHash, err := fsutil.Sha256File(dest)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to hash TLS options file", err)
	}
	if activeHash == currentHash {
		return nil
	}
	if knownOptionsHashes()[activeHash] {
		if err := install(dest); err != nil {
			return err
		}
		return writeDigest()
	}

	// The active file matches none of our templates, so the operator
	// edited it. The digest file remembers which template version we
	// last warned about.
	if saved, err := os.ReadFile(digestPath(dest)); err == nil {
		if strings.TrimSpace(string(saved)) == currentHash {
			return nil
		}
	}
	if err := writeDigest(); err != nil {
		return err
	}
	logger.Warn("%s has been modified by hand; the updated template was written to %s.new", dest, dest)
	return install(dest + ".new")
}
