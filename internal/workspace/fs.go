package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is the disk surface Local touches. Every path it receives is
// already absolute and inside a task directory.
type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(name string) error
	RemoveAll(path string) error
	ReadDir(name string) ([]os.DirEntry, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// OSFileSystem backs a workspace with the real disk.
type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem { return &OSFileSystem{} }

func (*OSFileSystem) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (*OSFileSystem) ReadFile(name string) ([]byte, error)  { return os.ReadFile(name) }
func (*OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
func (*OSFileSystem) Remove(name string) error                   { return os.Remove(name) }
func (*OSFileSystem) RemoveAll(path string) error                { return os.RemoveAll(path) }
func (*OSFileSystem) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

// WriteFile writes through a temp file in the same directory and renames it
// into place, so a reader never sees a half-written artifact.
func (*OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), ".asimov-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (*OSFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}
