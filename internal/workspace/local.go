// Package workspace stores the files a task reads and writes. Every task gets
// its own directory under the workspace root.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that escape the task directory.
var ErrOutsideWorkspace = errors.New("path is outside the task workspace")

// Local is a workspace on the local disk: <root>/<task_id>/<path>.
type Local struct {
	root string
	fs   FileSystem
}

// NewLocal creates the root directory if needed and returns a workspace on it.
func NewLocal(root string) (*Local, error) {
	return NewLocalWithFS(root, NewOSFileSystem())
}

// NewLocalWithFS is NewLocal with an injectable filesystem.
func NewLocalWithFS(root string, fsys FileSystem) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := fsys.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Local{root: abs, fs: fsys}, nil
}

// Root returns the absolute workspace root.
func (l *Local) Root() string { return l.root }

// TaskDir returns the absolute directory of a task.
func (l *Local) TaskDir(taskID string) string {
	return filepath.Join(l.root, taskID)
}

// AbsPath resolves a task-relative path and rejects anything that would land
// outside the task directory.
func (l *Local) AbsPath(taskID, path string) (string, error) {
	if taskID == "" || strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return "", fmt.Errorf("invalid task id %q", taskID)
	}
	base := l.TaskDir(taskID)
	p := filepath.Clean(filepath.Join(base, strings.TrimPrefix(filepath.ToSlash(path), "/")))
	if p != base && !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideWorkspace)
	}
	return p, nil
}

// Read returns the contents of a file.
func (l *Local) Read(taskID, path string) ([]byte, error) {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return nil, err
	}
	return l.fs.ReadFile(p)
}

// Write creates or replaces a file, creating parent directories.
func (l *Local) Write(taskID, path string, data []byte) error {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return err
	}
	if p == l.TaskDir(taskID) {
		return fmt.Errorf("write %q: path is a directory", path)
	}
	if err := l.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return l.fs.WriteFile(p, data, 0o644)
}

// Exists reports whether a file or directory exists.
func (l *Local) Exists(taskID, path string) (bool, error) {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return false, err
	}
	if _, err := l.fs.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a file, or a directory tree when recursive is set.
func (l *Local) Delete(taskID, path string, recursive bool) error {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return err
	}
	if recursive {
		return l.fs.RemoveAll(p)
	}
	return l.fs.Remove(p)
}

// List returns the entries of a directory as task-relative slash paths,
// sorted. Directories carry a trailing slash. A missing task directory lists
// as empty.
func (l *Local) List(taskID, path string) ([]string, error) {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return nil, err
	}
	entries, err := l.fs.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && p == l.TaskDir(taskID) {
			return []string{}, nil
		}
		return nil, err
	}

	base := l.TaskDir(taskID)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		rel, err := filepath.Rel(base, filepath.Join(p, e.Name()))
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if e.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

// Walk visits every file under path, passing task-relative slash paths.
// Returning filepath.SkipDir from fn for a directory skips it.
func (l *Local) Walk(taskID, path string, fn func(rel string, isDir bool) error) error {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return err
	}
	base := l.TaskDir(taskID)
	return l.fs.WalkDir(p, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if walkPath == p {
			return nil
		}
		rel, err := filepath.Rel(base, walkPath)
		if err != nil {
			return nil
		}
		return fn(filepath.ToSlash(rel), d.IsDir())
	})
}

// Size returns a file's size in bytes.
func (l *Local) Size(taskID, path string) (int64, error) {
	p, err := l.AbsPath(taskID, path)
	if err != nil {
		return 0, err
	}
	info, err := l.fs.Stat(p)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}
