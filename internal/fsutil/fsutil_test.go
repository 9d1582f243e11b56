package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.conf")

	if err := WriteFileAtomic(path, []byte("server {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "server {}\n" {
		t.Errorf("content = %q", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	// Overwrite keeps a single file and leaves no temp siblings behind.
	if err := WriteFileAtomic(path, []byte("server { listen 80; }\n"), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "site.conf" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [site.conf]", names)
	}

	if err := WriteFileAtomic(filepath.Join(dir, "missing", "x"), nil, 0o644); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst, 0o600); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q", data)
	}

	if err := CopyFile(filepath.Join(dir, "nope"), dst, 0o600); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestSha256(t *testing.T) {
	// Fixed vector so a digest change in either helper is caught.
	const helloSum = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	if got := Sha256Bytes([]byte("hello\n")); got != helloSum {
		t.Errorf("Sha256Bytes = %s", got)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Sha256File(path)
	if err != nil {
		t.Fatalf("Sha256File: %v", err)
	}
	if got != helloSum {
		t.Errorf("Sha256File = %s", got)
	}

	if _, err := Sha256File(filepath.Join(dir, "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWithUmask(t *testing.T) {
	ambient := unix.Umask(0o027)
	defer unix.Umask(ambient)

	err := WithUmask(0o022, func() error {
		if got := unix.Umask(0o022); got != 0o022 {
			t.Errorf("umask inside fn = %04o, want 0022", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithUmask: %v", err)
	}
	if got := unix.Umask(0o027); got != 0o027 {
		t.Errorf("umask after fn = %04o, want restored 0027", got)
	}
}

func TestMkdirAllScoped(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c")

	created, err := MkdirAllScoped(target, 0o755)
	if err != nil {
		t.Fatalf("MkdirAllScoped: %v", err)
	}
	want := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		target,
	}
	if len(created) != len(want) {
		t.Fatalf("created %v, want %v", created, want)
	}
	for i := range want {
		if created[i] != want[i] {
			t.Errorf("created[%d] = %s, want %s", i, created[i], want[i])
		}
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("dir mode = %v, want 0755", info.Mode().Perm())
	}

	// Existing levels are not reported again.
	created, err = MkdirAllScoped(target, 0o755)
	if err != nil {
		t.Fatalf("MkdirAllScoped second run: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second run created %v, want nothing", created)
	}
}
