package nginx

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/fsutil"
	"github.com/ksyq12/nginxtls/internal/logger"
)

// File is one parsed configuration file. Entries is nil when the file
// could not be parsed; such files are skipped everywhere and never
// written back.
type File struct {
	Path       string
	Entries    []*Directive
	Dirty      bool
	Unparsable bool
}

// Config is the loaded configuration tree of a server root: the root
// file plus everything reachable through include directives, glob
// expansion included.
type Config struct {
	Root     string
	RootFile string
	Files    map[string]*File
}

// Load parses serverRoot/nginx.conf and every file it transitively
// includes. A root file that does not parse is an error; an included
// file that does not parse is recorded as unparsable and skipped. An
// include pattern matching nothing is silently empty.
func Load(serverRoot string) (*Config, error) {
	root, err := filepath.Abs(serverRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving server root: %w", err)
	}
	c := &Config{
		Root:     root,
		RootFile: filepath.Join(root, "nginx.conf"),
		Files:    make(map[string]*File),
	}
	if err := c.loadPattern(c.RootFile); err != nil {
		return nil, err
	}
	if _, ok := c.Files[c.RootFile]; !ok {
		return nil, nxerrors.Parse(c.RootFile, 0, "root configuration file not found")
	}
	return c, nil
}

// Reload re-parses every file from disk, dropping in-memory mutations.
// Used after a rollback restored the on-disk state.
func (c *Config) Reload() error {
	c.Files = make(map[string]*File)
	if err := c.loadPattern(c.RootFile); err != nil {
		return err
	}
	if _, ok := c.Files[c.RootFile]; !ok {
		return nxerrors.Parse(c.RootFile, 0, "root configuration file not found")
	}
	return nil
}

func (c *Config) loadPattern(pattern string) error {
	matches, err := filepath.Glob(c.absPath(pattern))
	if err != nil {
		return nxerrors.Parse(pattern, 0, "invalid include pattern")
	}
	for _, path := range matches {
		if _, ok := c.Files[path]; ok {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if path == c.RootFile {
				return nxerrors.Wrap(nxerrors.ErrCodeParse, "cannot read root configuration file", err)
			}
			logger.Warn("Skipping unreadable configuration file %s: %v", path, err)
			c.Files[path] = &File{Path: path, Unparsable: true}
			continue
		}
		entries, err := Parse(data, path)
		if err != nil {
			if path == c.RootFile {
				return err
			}
			logger.Warn("Skipping unparsable configuration file %s: %v", path, err)
			c.Files[path] = &File{Path: path, Unparsable: true}
			continue
		}
		c.Files[path] = &File{Path: path, Entries: entries}
		for _, inc := range collectIncludes(entries) {
			if err := c.loadPattern(inc); err != nil {
				return err
			}
		}
	}
	return nil
}

func collectIncludes(entries []*Directive) []string {
	var out []string
	for _, d := range entries {
		if d.Name == "include" && d.Block == nil && len(d.Args) > 0 {
			out = append(out, d.Args[0])
		}
		if d.Block != nil {
			out = append(out, collectIncludes(d.Block)...)
		}
	}
	return out
}

func (c *Config) absPath(pattern string) string {
	if filepath.IsAbs(pattern) {
		return pattern
	}
	return filepath.Join(c.Root, pattern)
}

// FilePaths returns every loaded file path in deterministic order: the
// root file first, the rest lexicographic.
func (c *Config) FilePaths() []string {
	paths := make([]string, 0, len(c.Files))
	for p := range c.Files {
		if p != c.RootFile {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return append([]string{c.RootFile}, paths...)
}

// MarkDirty flags a file as mutated so the next commit rewrites it.
func (c *Config) MarkDirty(path string) {
	if f, ok := c.Files[path]; ok {
		f.Dirty = true
	}
}

// DirtyPaths returns the mutated files in deterministic order.
func (c *Config) DirtyPaths() []string {
	var out []string
	for _, p := range c.FilePaths() {
		if c.Files[p].Dirty {
			out = append(out, p)
		}
	}
	return out
}

// ClearDirty drops all dirty flags after a successful commit.
func (c *Config) ClearDirty() {
	for _, f := range c.Files {
		f.Dirty = false
	}
}

// DumpFile serializes one loaded file.
func (c *Config) DumpFile(path string) ([]byte, error) {
	f, ok := c.Files[path]
	if !ok || f.Unparsable {
		return nil, fmt.Errorf("no parsed file %s", path)
	}
	return Dump(f.Entries), nil
}

// WriteFile atomically rewrites one loaded file from its tree, keeping
// the file's current permission bits.
func (c *Config) WriteFile(path string) error {
	data, err := c.DumpFile(path)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	return fsutil.WriteFileAtomic(path, data, mode)
}
