// Package revert implements checkpointed rollback for configuration
// mutations. Every file a transaction touches is snapshotted before the
// first write; committing turns the snapshot set into a numbered
// checkpoint, rolling back restores the snapshots byte for byte. A
// separate temporary checkpoint tracks files that exist only for the
// duration of a challenge and are removed on recovery.
//
// On-disk layout under the work directory:
//
//	.lock          flock guarding all checkpoint state
//	in_progress/   snapshots of the open transaction
//	temp/          temporary checkpoint (challenge files)
//	checkpoints/   finalized checkpoints, one numbered directory each
//
// Each checkpoint directory holds a metadata.yaml describing the
// protected files plus the snapshot payloads, named 0, 1, 2 and so on.
package revert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/fsutil"
	"github.com/ksyq12/nginxtls/internal/logger"
)

const metadataFile = "metadata.yaml"

// lockRetry is how often a blocked lock acquisition re-tries.
const lockRetry = 200 * time.Millisecond

// FileRecord describes one snapshotted file inside a checkpoint.
type FileRecord struct {
	Path     string      `yaml:"path"`
	Snapshot string      `yaml:"snapshot"`
	Mode     os.FileMode `yaml:"mode"`
}

// Checkpoint is the parsed metadata of one finalized checkpoint.
type Checkpoint struct {
	Dir       string       `yaml:"-"`
	Title     string       `yaml:"title"`
	CreatedAt time.Time    `yaml:"created_at"`
	Files     []FileRecord `yaml:"files,omitempty"`
	NewFiles  []string     `yaml:"new_files,omitempty"`
}

func (c *Checkpoint) protected(path string) bool {
	for _, f := range c.Files {
		if f.Path == path {
			return true
		}
	}
	for _, p := range c.NewFiles {
		if p == path {
			return true
		}
	}
	return false
}

// Manager owns the checkpoint state of one work directory. It is not
// safe for concurrent use; the flock serializes separate processes.
type Manager struct {
	workDir  string
	lockWait time.Duration
	lock     *flock.Flock
	open     *Checkpoint
}

// NewManager returns a manager rooted at workDir. lockWait bounds how
// long lock acquisition blocks before giving up with a locked error.
func NewManager(workDir string, lockWait time.Duration) *Manager {
	return &Manager{
		workDir:  workDir,
		lockWait: lockWait,
		lock:     flock.New(filepath.Join(workDir, ".lock")),
	}
}

func (m *Manager) inProgressDir() string { return filepath.Join(m.workDir, "in_progress") }
func (m *Manager) tempDir() string       { return filepath.Join(m.workDir, "temp") }
func (m *Manager) checkpointsDir() string {
	return filepath.Join(m.workDir, "checkpoints")
}

// acquire takes the work directory lock, creating the directory on
// first use. Gives up after lockWait with a locked error.
func (m *Manager) acquire() error {
	if m.lock.Locked() {
		return nil
	}
	if err := os.MkdirAll(m.workDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.lockWait)
	defer cancel()
	ok, err := m.lock.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		logger.Debug("lock acquisition on %s gave up: ok=%v err=%v", m.lock.Path(), ok, err)
		return nxerrors.Locked(m.lock.Path())
	}
	return nil
}

func (m *Manager) release() {
	if m.lock.Locked() {
		if err := m.lock.Unlock(); err != nil {
			logger.Warn("Releasing lock %s: %v", m.lock.Path(), err)
		}
	}
}

// withLock runs fn under the work directory lock, releasing it after
// unless the caller already held it through an open transaction.
func (m *Manager) withLock(fn func() error) error {
	if m.lock.Locked() {
		return fn()
	}
	if err := m.acquire(); err != nil {
		return err
	}
	defer m.release()
	return fn()
}

// CheckLock probes whether the work directory lock can be taken,
// releasing it again immediately. Returns a locked error when another
// process holds it.
func (m *Manager) CheckLock() error {
	if m.lock.Locked() {
		return nil
	}
	if err := m.acquire(); err != nil {
		return err
	}
	m.release()
	return nil
}

// Begin opens a transaction and holds the lock until Commit or
// Rollback. A leftover in-progress checkpoint from an interrupted run
// must be recovered first.
func (m *Manager) Begin(title string) error {
	if m.open != nil {
		return nxerrors.Precondition("a transaction is already open")
	}
	if err := m.acquire(); err != nil {
		return err
	}
	if _, err := os.Stat(m.inProgressDir()); err == nil {
		m.release()
		return nxerrors.Precondition("an interrupted transaction was left behind; recover before making changes")
	}
	if err := os.MkdirAll(m.inProgressDir(), 0o755); err != nil {
		m.release()
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}
	m.open = &Checkpoint{
		Dir:       m.inProgressDir(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := writeMetadata(m.open); err != nil {
		m.open = nil
		m.release()
		return err
	}
	return nil
}

// Protect snapshots a file into the open transaction before its first
// mutation. A file that does not exist yet is recorded as new and will
// be deleted on rollback. Protecting the same path twice is a no-op.
func (m *Manager) Protect(path string) error {
	if m.open == nil {
		return nxerrors.Precondition("no open transaction")
	}
	return protectInto(m.open, path)
}

func protectInto(cp *Checkpoint, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if cp.protected(abs) {
		return nil
	}
	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		cp.NewFiles = append(cp.NewFiles, abs)
	case err != nil:
		return fmt.Errorf("inspecting %s: %w", abs, err)
	default:
		snap := strconv.Itoa(len(cp.Files))
		if err := fsutil.CopyFile(abs, filepath.Join(cp.Dir, snap), 0o600); err != nil {
			return fmt.Errorf("snapshotting %s: %w", abs, err)
		}
		cp.Files = append(cp.Files, FileRecord{Path: abs, Snapshot: snap, Mode: info.Mode().Perm()})
	}
	return writeMetadata(cp)
}

// Commit finalizes the open transaction into a numbered checkpoint and
// releases the lock. The snapshots stay available for RollbackN.
func (m *Manager) Commit() error {
	if m.open == nil {
		return nxerrors.Precondition("no open transaction")
	}
	if err := os.MkdirAll(m.checkpointsDir(), 0o755); err != nil {
		return fmt.Errorf("creating checkpoints directory: %w", err)
	}
	dest := filepath.Join(m.checkpointsDir(), strconv.FormatInt(time.Now().UnixNano(), 10))
	if err := os.Rename(m.inProgressDir(), dest); err != nil {
		return fmt.Errorf("finalizing checkpoint: %w", err)
	}
	logger.Debug("Finalized checkpoint %s (%s)", dest, m.open.Title)
	m.open = nil
	m.release()
	return nil
}

// Rollback restores every file the open transaction protected, removes
// files it created, discards the checkpoint and releases the lock.
func (m *Manager) Rollback() error {
	if m.open == nil {
		return nxerrors.Precondition("no open transaction")
	}
	err := revertDir(m.inProgressDir())
	m.open = nil
	m.release()
	return err
}

// RollbackN reverts the n most recent finalized checkpoints, newest
// first. Reverting more checkpoints than exist reverts them all.
func (m *Manager) RollbackN(n int) error {
	if m.open != nil {
		return nxerrors.Precondition("cannot roll back during an open transaction")
	}
	if n <= 0 {
		return nil
	}
	return m.withLock(func() error {
		cps, err := m.list()
		if err != nil {
			return err
		}
		if n > len(cps) {
			logger.Warn("Only %d checkpoints exist, rolling back all of them", len(cps))
			n = len(cps)
		}
		for i := 0; i < n; i++ {
			logger.Info("Rolling back checkpoint %s (%s)", filepath.Base(cps[i].Dir), cps[i].Title)
			if err := revertDir(cps[i].Dir); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recover reverts an in-progress checkpoint left behind by an
// interrupted run, then removes leftover temporary files. Safe to call
// when there is nothing to recover.
func (m *Manager) Recover() error {
	if m.open != nil {
		return nxerrors.Precondition("cannot recover during an open transaction")
	}
	return m.withLock(func() error {
		if _, err := os.Stat(m.inProgressDir()); err == nil {
			logger.Warn("Reverting interrupted transaction in %s", m.inProgressDir())
			if err := revertDir(m.inProgressDir()); err != nil {
				return err
			}
		}
		return m.revertTempLocked()
	})
}

// List returns the finalized checkpoints, newest first.
func (m *Manager) List() ([]Checkpoint, error) {
	return m.list()
}

func (m *Manager) list() ([]Checkpoint, error) {
	entries, err := os.ReadDir(m.checkpointsDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoints directory: %w", err)
	}
	var out []Checkpoint
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := strconv.ParseInt(e.Name(), 10, 64); err != nil {
			continue
		}
		dir := filepath.Join(m.checkpointsDir(), e.Name())
		cp, err := readMetadata(dir)
		if err != nil {
			logger.Warn("Skipping unreadable checkpoint %s: %v", dir, err)
			continue
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.ParseInt(filepath.Base(out[i].Dir), 10, 64)
		b, _ := strconv.ParseInt(filepath.Base(out[j].Dir), 10, 64)
		return a > b
	})
	return out, nil
}

// ProtectTemp records a file in the temporary checkpoint. Existing
// files are snapshotted, new files recorded for deletion; either way
// RevertTemp puts the filesystem back. The temporary checkpoint lives
// on disk so a later process can revert it.
func (m *Manager) ProtectTemp(path string) error {
	return m.withLock(func() error {
		cp, err := readMetadata(m.tempDir())
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(m.tempDir(), 0o755); mkErr != nil {
				return fmt.Errorf("creating temporary checkpoint: %w", mkErr)
			}
			cp = &Checkpoint{Dir: m.tempDir(), Title: "temporary", CreatedAt: time.Now()}
		} else if err != nil {
			return err
		}
		return protectInto(cp, path)
	})
}

// RevertTemp restores and removes everything in the temporary
// checkpoint. A missing temporary checkpoint is a no-op.
func (m *Manager) RevertTemp() error {
	return m.withLock(m.revertTempLocked)
}

func (m *Manager) revertTempLocked() error {
	if _, err := os.Stat(m.tempDir()); os.IsNotExist(err) {
		return nil
	}
	return revertDir(m.tempDir())
}

// revertDir restores the snapshots of one checkpoint directory, deletes
// the files it recorded as new, and removes the directory. A directory
// without metadata recorded no changes and is simply removed.
func revertDir(dir string) error {
	cp, err := readMetadata(dir)
	if os.IsNotExist(err) {
		return os.RemoveAll(dir)
	}
	if err != nil {
		return err
	}
	for _, f := range cp.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Snapshot))
		if err != nil {
			return fmt.Errorf("reading snapshot for %s: %w", f.Path, err)
		}
		if err := fsutil.WriteFileAtomic(f.Path, data, f.Mode); err != nil {
			return fmt.Errorf("restoring %s: %w", f.Path, err)
		}
		logger.Debug("Restored %s from checkpoint", f.Path)
	}
	for _, path := range cp.NewFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		logger.Debug("Removed created file %s", path)
	}
	return os.RemoveAll(dir)
}

func writeMetadata(cp *Checkpoint) error {
	data, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint metadata: %w", err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(cp.Dir, metadataFile), data, 0o600)
}

func readMetadata(dir string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint metadata in %s: %w", dir, err)
	}
	cp.Dir = dir
	return &cp, nil
}
