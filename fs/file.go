// Package fs is the local store the pipeline stages write dataset files,
// images and packages into. Stages take a Filesystem so tests can run them
// against memory while the CLI roots one at the working directory.
package fs

import (
	"io"
	"io/fs"
)

// File is an open file. ReadAt lets finished packages be handed straight to
// multipart uploads.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Name() string
	Stat() (fs.FileInfo, error)
}
