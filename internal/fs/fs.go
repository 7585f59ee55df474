package fs

import (
	"io"
	"os"
)

// File is a file opened for writing.
type File interface {
	io.WriteCloser
	Name() string
	Sync() error
}

// FileSystem is the set of operations an atomic write needs.
type FileSystem interface {
	CreateTemp(dir, pattern string) (File, error)
	Chmod(name string, mode os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// LocalFS implements FileSystem with package os.
type LocalFS struct{}

func (LocalFS) CreateTemp(dir, pattern string) (File, error) {
	return os.CreateTemp(dir, pattern)
}

func (LocalFS) Chmod(name string, mode os.FileMode) error { return os.Chmod(name, mode) }
func (LocalFS) Rename(oldpath, newpath string) error      { return os.Rename(oldpath, newpath) }
func (LocalFS) Remove(name string) error                  { return os.Remove(name) }

// Default is the local file system.
var Default FileSystem = LocalFS{}
