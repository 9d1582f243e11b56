// Package fsutil holds filesystem helpers shared by the configuration
// writer, the checkpoint store and the challenge file writer: atomic
// writes, SHA-256 digests, and umask-scoped directory creation so files
// under served roots end up world-readable regardless of the caller's
// umask.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// WriteFileAtomic writes via a temp file in the same directory followed
// by a rename, so a reader never observes a half-written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// CopyFile copies src to dst with the given mode, truncating dst.
func CopyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Sha256File returns the hex SHA-256 digest of a file's content.
func Sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sha256Bytes returns the hex SHA-256 digest of a byte slice.
func Sha256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WithUmask runs fn with the process umask set to mask, restoring the
// previous umask afterwards. Directory and file modes passed to the
// standard library are filtered through the umask, so creating 0755
// challenge directories needs the umask pinned to 022 for the duration.
func WithUmask(mask int, fn func() error) error {
	old := unix.Umask(mask)
	defer unix.Umask(old)
	return fn()
}

// MkdirAllScoped creates every missing directory level of path with the
// given mode under a 022 umask and reports which levels it created,
// deepest last, so a cleanup can remove only what was added.
func MkdirAllScoped(path string, mode os.FileMode) ([]string, error) {
	var created []string
	err := WithUmask(0o022, func() error {
		var missing []string
		p := filepath.Clean(path)
		for {
			if _, err := os.Stat(p); err == nil {
				break
			} else if !os.IsNotExist(err) {
				return err
			}
			missing = append(missing, p)
			parent := filepath.Dir(p)
			if parent == p {
				break
			}
			p = parent
		}
		for i := len(missing) - 1; i >= 0; i-- {
			if err := os.Mkdir(missing[i], mode); err != nil && !os.IsExist(err) {
				return err
			}
			created = append(created, missing[i])
		}
		return nil
	})
	if err != nil {
		return created, err
	}
	return created, nil
}
