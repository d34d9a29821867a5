// Package billy backs fs.Filesystem with go-billy: osfs for the working
// directory the CLI operates in and memfs for tests.
package billy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/bonnerlab/datasets/fs"
)

// FS is a go-billy filesystem rooted at a working directory.
type FS struct {
	fs billy.Filesystem
}

var _ parentfs.Filesystem = (*FS)(nil)

// NewOSFS roots an FS at dir on disk.
func NewOSFS(dir string) *FS {
	return &FS{fs: osfs.New(dir)}
}

// NewInMemoryFS returns an empty FS held in memory.
func NewInMemoryFS() *FS {
	return &FS{fs: memfs.New()}
}

func fail(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("billy: %s %q: %w", op, name, err)
}

func (b *FS) wrapFile(f billy.File) *File {
	return &File{file: f, fs: b}
}

//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) Create(name string) (parentfs.File, error) {
	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fail("create", name, err)
	}
	return b.wrapFile(f), nil
}

//nolint:ireturn // Filesystem methods return fs.File.
func (b *FS) Open(name string) (parentfs.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fail("open", name, err)
	}
	return b.wrapFile(f), nil
}

// Exists reports false without error when nothing is at path.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, fail("stat", path, err)
}

func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	return info, fail("stat", name, err)
}

func (b *FS) ReadFile(path string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, path)
	return data, fail("readfile", path, err)
}

func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return fail("writefile", filename, util.WriteFile(b.fs, filename, data, perm))
}

func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	return list, fail("readdir", dirname, err)
}

func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	return fail("walk", root, util.Walk(b.fs, root, walkFn))
}

func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	return fail("mkdirall", path, b.fs.MkdirAll(path, perm))
}

func (b *FS) Rename(oldpath, newpath string) error {
	return fail("rename", oldpath+" -> "+newpath, b.fs.Rename(oldpath, newpath))
}

func (b *FS) Remove(name string) error {
	return fail("remove", name, b.fs.Remove(name))
}
