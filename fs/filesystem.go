package fs

import (
	"os"
	"path/filepath"
)

// Filesystem is rooted at a working directory. Dataset keys are used as paths
// verbatim, so the local tree mirrors the remote bucket layout.
type Filesystem interface {
	Create(name string) (File, error)
	Open(name string) (File, error)
	Exists(path string) (bool, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadDir(dirname string) ([]os.FileInfo, error)
	Walk(root string, walkFn filepath.WalkFunc) error
	MkdirAll(path string, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
}
