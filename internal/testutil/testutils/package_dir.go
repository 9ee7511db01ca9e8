package helpers

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// PackageDir builds a watched directory for tests. Every mutation moves the
// directory modification time strictly forward, starting an hour ahead of
// the wall clock, so mtime-gated pollers notice changes regardless of
// filesystem timestamp granularity.
type PackageDir struct {
	t     *testing.T
	dir   string
	mtime time.Time
}

// NewPackageDir creates an empty watched directory under t.TempDir().
func NewPackageDir(t *testing.T) *PackageDir {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "packages")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("create package dir: %v", err)
	}
	return &PackageDir{t: t, dir: dir, mtime: time.Now().Add(time.Hour)}
}

// Path returns the directory path.
func (p *PackageDir) Path() string { return p.dir }

// File returns the absolute path of a named entry.
func (p *PackageDir) File(name string) string { return filepath.Join(p.dir, name) }

// WritePackage writes a zip archive carrying a package manifest.
func (p *PackageDir) WritePackage(file, name, version string) *PackageDir {
	p.t.Helper()
	p.WriteArchive(file, PackageEntries(name, version))
	return p
}

// Overwrite replaces the content of an existing entry in place and leaves
// the directory modification time to the filesystem. On most filesystems
// that means it does not move at all.
func (p *PackageDir) Overwrite(file string, data []byte) *PackageDir {
	p.t.Helper()
	f, err := os.OpenFile(p.File(file), os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		p.t.Fatalf("open %s: %v", file, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		p.t.Fatalf("write %s: %v", file, err)
	}
	if err := f.Close(); err != nil {
		p.t.Fatalf("close %s: %v", file, err)
	}
	return p
}

// WriteArchive writes a zip archive with the given entries.
func (p *PackageDir) WriteArchive(file string, entries map[string]string) *PackageDir {
	p.t.Helper()
	WriteZip(p.t, p.File(file), entries)
	return p.bump()
}

// WriteFile writes a plain file.
func (p *PackageDir) WriteFile(file, content string) *PackageDir {
	p.t.Helper()
	if err := os.WriteFile(p.File(file), []byte(content), 0o600); err != nil {
		p.t.Fatalf("write %s: %v", file, err)
	}
	return p.bump()
}

// Mkdir creates a subdirectory inside the watched directory.
func (p *PackageDir) Mkdir(name string) *PackageDir {
	p.t.Helper()
	if err := os.Mkdir(p.File(name), 0o750); err != nil {
		p.t.Fatalf("mkdir %s: %v", name, err)
	}
	return p.bump()
}

// Disable creates the ".disabled" marker for file.
func (p *PackageDir) Disable(file string) *PackageDir {
	p.t.Helper()
	return p.WriteFile(DisabledMarker(file), "")
}

// Enable removes the ".disabled" marker for file.
func (p *PackageDir) Enable(file string) *PackageDir {
	p.t.Helper()
	return p.Remove(DisabledMarker(file))
}

// Remove deletes an entry.
func (p *PackageDir) Remove(file string) *PackageDir {
	p.t.Helper()
	if err := os.Remove(p.File(file)); err != nil {
		p.t.Fatalf("remove %s: %v", file, err)
	}
	return p.bump()
}

// RemoveDir deletes the whole watched directory.
func (p *PackageDir) RemoveDir() *PackageDir {
	p.t.Helper()
	if err := os.RemoveAll(p.dir); err != nil {
		p.t.Fatalf("remove dir %s: %v", p.dir, err)
	}
	return p
}

// RestoreDir recreates the watched directory after RemoveDir.
func (p *PackageDir) RestoreDir() *PackageDir {
	p.t.Helper()
	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		p.t.Fatalf("restore dir %s: %v", p.dir, err)
	}
	return p.bump()
}

// Touch advances the directory modification time without changing content.
func (p *PackageDir) Touch() *PackageDir {
	p.t.Helper()
	return p.bump()
}

func (p *PackageDir) bump() *PackageDir {
	p.t.Helper()
	p.mtime = p.mtime.Add(2 * time.Second)
	if err := os.Chtimes(p.dir, p.mtime, p.mtime); err != nil {
		p.t.Fatalf("chtimes %s: %v", p.dir, err)
	}
	return p
}

// DisabledMarker returns the marker file name that disables file.
func DisabledMarker(file string) string {
	ext := filepath.Ext(file)
	return file[:len(file)-len(ext)] + ".disabled"
}

// PackageEntries returns zip entries holding a package manifest.
func PackageEntries(name, version string) map[string]string {
	return map[string]string{"META-INF/package.yaml": "name: " + name + "\nversion: " + version + "\n"}
}

// ZipBytes encodes entries as a zip archive.
func ZipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive at path.
func WriteZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	if err := os.WriteFile(path, ZipBytes(t, entries), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
