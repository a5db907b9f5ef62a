package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
)

// FileExists returns true if the given path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileNotExists returns true if the given path does not exist.
func FileNotExists(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// IsFile returns true if the path points to a regular file.
func IsFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// IsDir returns true if the path points to a directory.
func IsDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// EnsureDirectory creates a directory at this path if it does not exist, or
// errors if the path exists and is a file.
func EnsureDirectory(path string) error {
	if FileExists(path) && IsFile(path) {
		return errors.New(PathIsNotDirectory{path})
	} else if !FileExists(path) {
		return errors.New(os.MkdirAll(path, 0700))
	}

	return nil
}

// ExpandHomePath expands a leading ~ in the given path to the current user's
// home directory.
func ExpandHomePath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", errors.New(err)
	}

	return expanded, nil
}

// CopyFile copies the contents and permissions of the source file to the
// destination path, truncating the destination if it already exists.
func CopyFile(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return errors.New(err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.New(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return errors.New(err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.New(err)
	}

	return errors.New(out.Close())
}

// BackupPath returns a timestamped sibling path for the given file, used when
// preserving the original contents before a privileged edit.
func BackupPath(path string, now time.Time) string {
	return fmt.Sprintf("%s.deathstar.%s", path, now.Format("20060102150405"))
}

// WriteFileAtomic writes data to the given path via a temporary file and
// rename, so a crash mid-write never leaves a truncated file behind.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.New(err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return errors.New(err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.New(err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return errors.New(err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.New(err)
	}

	return nil
}

// PathIsNotDirectory is returned when a directory was expected at a path but a
// file was found.
type PathIsNotDirectory struct {
	path string
}

func (err PathIsNotDirectory) Error() string {
	return fmt.Sprintf("%s is a file, not a directory", err.path)
}
