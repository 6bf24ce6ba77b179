package system

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// ConfigFile is the name of the project configuration file that marks the
// project root.
const ConfigFile = "Megaton.toml"

// Stat returns the modification time of path. A missing file is reported
// through notExist, not err.
func Stat(path string) (mtime time.Time, notExist bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, true, nil
		}
		return time.Time{}, false, PathError(KindFS, "cannot read metadata of", path, err)
	}
	return info.ModTime(), false, nil
}

// SetModTime sets both the access and modification time of path to t.
func SetModTime(path string, t time.Time) error {
	if err := os.Chtimes(path, t, t); err != nil {
		return PathError(KindFS, "cannot set modified time of", path, err)
	}
	return nil
}

// Touch creates path if needed and stamps it with t.
func Touch(path string, t time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o664)
	if err != nil {
		return PathError(KindFS, "cannot write", path, err)
	}
	if err := f.Close(); err != nil {
		return PathError(KindFS, "cannot write", path, err)
	}
	return SetModTime(path, t)
}

// MakeDirs creates path and all missing parents.
func MakeDirs(path string) error {
	if err := os.MkdirAll(path, 0o775); err != nil {
		return PathError(KindFS, "cannot create directory", path, err)
	}
	return nil
}

// WriteFile creates or truncates path with contents.
func WriteFile(path string, contents []byte) error {
	if err := os.WriteFile(path, contents, 0o664); err != nil {
		return PathError(KindFS, "cannot write", path, err)
	}
	return nil
}

// WriteFileIfChanged writes contents to path unless the file already holds
// the same bytes, so that unchanged artifacts keep their mtime.
func WriteFileIfChanged(path string, contents []byte) (bool, error) {
	f, err := os.Open(path)
	if err == nil {
		h := blake3.New()
		_, err = io.Copy(h, f)
		f.Close()
		if err == nil {
			want := blake3.Sum256(contents)
			if bytes.Equal(h.Sum(nil), want[:]) {
				return false, nil
			}
		}
	}
	return true, WriteFile(path, contents)
}

// RemoveFile deletes path. A missing file is not an error.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return PathError(KindFS, "cannot remove", path, err)
	}
	return nil
}

// RemoveDir deletes path recursively. A missing directory is not an error.
func RemoveDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return PathError(KindFS, "cannot remove", path, err)
	}
	return nil
}

// Canonicalize returns the absolute, symlink-free form of path. The path must
// exist.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err == nil {
		abs, err = filepath.EvalSymlinks(abs)
	}
	if err != nil {
		return "", PathError(KindFS, "invalid path", path, err)
	}
	return abs, nil
}

// FindRoot walks up from dir until a directory containing ConfigFile is
// found and returns that directory in canonical form.
func FindRoot(dir string) (string, error) {
	dir, err := Canonicalize(dir)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(dir, ConfigFile))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotProject
		}
		dir = parent
	}
}
