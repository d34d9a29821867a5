package billy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// File is an open go-billy file.
type File struct {
	file billy.File
	fs   *FS
}

// ioErr annotates err with the file name. io.EOF passes through untouched
// because readers compare against it directly.
func (f *File) ioErr(op string, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	return fail(op, f.file.Name(), err)
}

func (f *File) Name() string {
	return f.file.Name()
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.file.Read(p)
	return n, f.ioErr("read", err)
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.file.ReadAt(p, off)
	return n, f.ioErr(fmt.Sprintf("read at %d", off), err)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	return pos, f.ioErr("seek", err)
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.file.Write(p)
	return n, f.ioErr("write", err)
}

func (f *File) Close() error {
	return f.ioErr("close", f.file.Close())
}

func (f *File) Stat() (fs.FileInfo, error) {
	return f.fs.Stat(f.file.Name())
}
