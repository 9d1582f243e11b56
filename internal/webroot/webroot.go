// Package webroot places challenge response files under a directory
// the web server already serves, so a validation client can fetch
// them over plain HTTP. It never touches server configuration.
package webroot

import (
	"os"
	"path/filepath"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/fsutil"
	"github.com/ksyq12/nginxtls/internal/logger"
)

// challengeDir is the well-known path validation clients request.
const challengeDir = ".well-known/acme-challenge"

// Placer writes and removes challenge files inside one webroot. It
// remembers which directory levels it created so cleanup can prune
// them again without touching operator-owned directories.
type Placer struct {
	root    string
	created []string
}

func NewPlacer(root string) *Placer {
	return &Placer{root: root}
}

// Dir returns the challenge directory inside the webroot.
func (p *Placer) Dir() string {
	return filepath.Join(p.root, challengeDir)
}

// ChallengePath returns where the response file for a token lives.
func (p *Placer) ChallengePath(token string) string {
	return filepath.Join(p.Dir(), token)
}

// Write puts a challenge response on disk, creating the challenge
// directory when missing. The file ends up world-readable so the
// server can hand it out.
func (p *Placer) Write(token, content string) (string, error) {
	err := fsutil.WithUmask(0o022, func() error {
		made, err := fsutil.MkdirAllScoped(p.Dir(), 0o755)
		if err != nil {
			return err
		}
		p.created = append(p.created, made...)
		return nil
	})
	if err != nil {
		return "", nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to create challenge directory", err)
	}
	path := p.ChallengePath(token)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to write challenge file", err)
	}
	logger.Debug("Wrote challenge file %s", path)
	return path, nil
}

// Remove deletes the response file for a token. A file already gone is
// not an error.
func (p *Placer) Remove(token string) error {
	err := os.Remove(p.ChallengePath(token))
	if err != nil && !os.IsNotExist(err) {
		return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to remove challenge file", err)
	}
	return nil
}

// Cleanup removes the given tokens' files and prunes the directory
// levels this Placer created, innermost first. Directories that picked
// up other content stay.
func (p *Placer) Cleanup(tokens ...string) error {
	for _, token := range tokens {
		if err := p.Remove(token); err != nil {
			return err
		}
	}
	p.prune(p.created)
	p.created = nil
	return nil
}

// CleanAll removes every response file in the challenge directory,
// then prunes the challenge path itself. It is the cross-process
// variant of Cleanup: a later invocation has no memory of which
// levels an earlier one created, so it only ever removes directories
// that ended up empty.
func (p *Placer) CleanAll() error {
	dir := p.Dir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to read challenge directory", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return nxerrors.Wrap(nxerrors.ErrCodePermission, "unable to remove challenge file", err)
		}
	}
	p.prune([]string{filepath.Dir(dir), dir})
	return nil
}

// prune removes directories deepest-first, skipping any that are not
// empty.
func (p *Placer) prune(dirs []string) {
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			logger.Debug("Leaving challenge directory %s: %v", dirs[i], err)
		}
	}
}
