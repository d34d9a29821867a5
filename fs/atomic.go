package fs

import (
	"fmt"
	"io"
	"path"
)

// PartSuffix marks a file that is still being written.
const PartSuffix = ".part"

// StoreError is a filesystem failure while staging or committing a file, as
// opposed to a failure of the data source feeding it.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WriteAtomic streams write into name+PartSuffix and renames the part file
// onto name once write and Close succeed. On failure the part file is
// removed and name keeps whatever it held before, so an existing name always
// means a complete file. Errors from write are returned unchanged.
func WriteAtomic(fsys Filesystem, name string, write func(io.Writer) error) error {
	if dir := path.Dir(name); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return &StoreError{Op: "mkdir", Path: dir, Err: err}
		}
	}

	tmp := name + PartSuffix
	f, err := fsys.Create(tmp)
	if err != nil {
		return &StoreError{Op: "create", Path: tmp, Err: err}
	}

	err = write(f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &StoreError{Op: "close", Path: tmp, Err: cerr}
	}
	if err != nil {
		_ = fsys.Remove(tmp)
		return err
	}

	if err := fsys.Rename(tmp, name); err != nil {
		_ = fsys.Remove(tmp)
		return &StoreError{Op: "rename", Path: name, Err: err}
	}
	return nil
}
