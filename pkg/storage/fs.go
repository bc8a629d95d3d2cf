package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
)

// Filesystem is the set of primitives the relocation engine needs. The
// default implementation delegates to the OS; tests substitute a
// fault-injecting implementation to simulate cross-volume moves and disk
// errors.
type Filesystem interface {
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string) error
	Rename(oldPath, newPath string) error
	CopyFile(src, dst string) error
	Remove(path string) error
}

// OSFilesystem implements Filesystem using OS file operations.
type OSFilesystem struct{}

// NewOSFilesystem creates a new OS filesystem.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

func (*OSFilesystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (*OSFilesystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (*OSFilesystem) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// CopyFile duplicates src at dst. It is the fallback when renaming across
// filesystem volumes fails; the source is left in place for the caller to
// clean up.
func (*OSFilesystem) CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func (*OSFilesystem) Remove(path string) error {
	return os.Remove(path)
}

// Error classification used by the relocation engine to pick between the
// source-missing no-op, the copy fallback, and a hard failure.

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

func isInvalidArgument(err error) bool {
	return errors.Is(err, syscall.EINVAL)
}
