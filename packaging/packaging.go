// Package packaging stores stimulus sets and data assemblies at a location
// and records them in a catalog.
//
// A stimulus set is stored as two files: the stimulus table as CSV and a zip
// archive of the stimulus files the table names. A data assembly is stored as
// a zip archive of its files with an index.json describing them. Each stored
// file is registered with its SHA-1 digest.
package packaging

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/catalog"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/fs/billy"
	"github.com/bonnerlab/datasets/metadata"
)

// StagingDir is the directory of the working filesystem where package files
// are assembled before they are stored.
const StagingDir = "packages"

// IndexName is the name of the assembly description inside an assembly zip.
const IndexName = "index.json"

// Registrar records stored files.
type Registrar interface {
	Register(ctx context.Context, e catalog.Entry) (catalog.Entry, error)
}

// Packager packages inputs found on FS.
type Packager struct {
	// FS is the working filesystem holding stimulus files and assembly
	// files. Package files are staged below StagingDir on it.
	FS       fs.Filesystem
	Catalog  Registrar
	Uploader Uploader
	Logger   *slog.Logger

	// UploadOptions are added to every s3 upload, after the content type,
	// metadata and progress options.
	UploadOptions []s3types.UploadOption

	// LocalFS opens the directory of a local location. It defaults to an
	// OS filesystem rooted at the directory.
	LocalFS func(dir string) fs.Filesystem
}

// Assembly is a data assembly: a set of files on the working filesystem that
// belong to one identifier, recorded on a stimulus set.
type Assembly struct {
	Identifier  string
	StimulusSet string
	Files       []string
	Attributes  map[string]string
}

// assemblyIndex is the JSON document stored as IndexName.
type assemblyIndex struct {
	Identifier  string            `json:"identifier"`
	StimulusSet string            `json:"stimulus_set_identifier"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Files       []indexFile       `json:"files"`
}

type indexFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
	SHA1 string `json:"sha1"`
}

// PackageStimulusSet stores table and the files it names and registers both.
// The filename column holds paths relative to stimulusDir on the working
// filesystem; they are also the names of the files inside the zip archive.
func (p *Packager) PackageStimulusSet(
	ctx context.Context,
	identifier string,
	table *metadata.Table,
	stimulusDir string,
	loc Location,
) ([]catalog.Entry, error) {
	const op = "packaging.PackageStimulusSet"

	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	files, err := table.Column(metadata.ColumnFilename)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIntegrity, op, err)
	}

	base := "stimulus_" + strings.ReplaceAll(identifier, ".", "_")
	csvName, zipName := base+".csv", base+".zip"
	if err := p.FS.MkdirAll(StagingDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}

	csvSum, err := p.stage(path.Join(StagingDir, csvName), func(w io.Writer) error {
		return metadata.WriteCSV(w, table)
	})
	if err != nil {
		return nil, err
	}
	zipSum, err := p.stage(path.Join(StagingDir, zipName), func(w io.Writer) error {
		return p.writeZip(w, stimulusDir, files, nil)
	})
	if err != nil {
		return nil, err
	}

	var entries []catalog.Entry
	for _, f := range []struct{ name, typ, sum, contentType string }{
		{csvName, catalog.TypeStimulusSetCSV, csvSum, "text/csv"},
		{zipName, catalog.TypeStimulusSetZip, zipSum, "application/zip"},
	} {
		addr, err := p.put(ctx, loc, path.Join(StagingDir, f.name), f.name, f.contentType, f.sum)
		if err != nil {
			return nil, err
		}
		e, err := p.Catalog.Register(ctx, catalog.Entry{
			Identifier:   identifier,
			Type:         f.typ,
			LocationType: loc.Type,
			Location:     addr,
			SHA1:         f.sum,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	p.logger().InfoContext(ctx, "packaged stimulus set",
		"identifier", identifier, "stimuli", table.Len(), "location", loc.Path)
	return entries, nil
}

// PackageDataAssembly stores a zip of the assembly's files with an index and
// registers it.
func (p *Packager) PackageDataAssembly(ctx context.Context, a Assembly, loc Location) (catalog.Entry, error) {
	const op = "packaging.PackageDataAssembly"

	if err := loc.Validate(); err != nil {
		return catalog.Entry{}, err
	}
	if a.Identifier == "" {
		return catalog.Entry{}, errors.New(errors.CodeInvalidInput, op, "assembly has no identifier")
	}
	if len(a.Files) == 0 {
		return catalog.Entry{}, errors.Newf(errors.CodeInvalidInput, op, "assembly %s has no files", a.Identifier)
	}

	name := "assy_" + strings.ReplaceAll(a.Identifier, ".", "_") + ".zip"
	staged := path.Join(StagingDir, name)
	if err := p.FS.MkdirAll(StagingDir, 0o755); err != nil {
		return catalog.Entry{}, errors.Wrap(errors.CodeStorage, op, err)
	}

	index := &assemblyIndex{
		Identifier:  a.Identifier,
		StimulusSet: a.StimulusSet,
		Attributes:  a.Attributes,
	}
	sum, err := p.stage(staged, func(w io.Writer) error {
		return p.writeZip(w, ".", a.Files, index)
	})
	if err != nil {
		return catalog.Entry{}, err
	}

	addr, err := p.put(ctx, loc, staged, name, "application/zip", sum)
	if err != nil {
		return catalog.Entry{}, err
	}
	e, err := p.Catalog.Register(ctx, catalog.Entry{
		Identifier:   a.Identifier,
		Type:         catalog.TypeAssembly,
		LocationType: loc.Type,
		Location:     addr,
		SHA1:         sum,
		StimulusSet:  a.StimulusSet,
	})
	if err != nil {
		return catalog.Entry{}, err
	}

	p.logger().InfoContext(ctx, "packaged data assembly",
		"identifier", a.Identifier, "files", len(a.Files), "location", loc.Path)
	return e, nil
}

// stage writes a file on the working filesystem through fill and returns the
// hex SHA-1 of its content. A partial file is removed on failure.
func (p *Packager) stage(name string, fill func(io.Writer) error) (string, error) {
	f, err := p.FS.Create(name)
	if err != nil {
		return "", errors.Wrap(errors.CodeStorage, "packaging.stage", err)
	}

	h := sha1.New()
	err = fill(io.MultiWriter(f, h))
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(errors.CodeStorage, "packaging.stage", cerr)
	}
	if err != nil {
		_ = p.FS.Remove(name)
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeZip archives files, paths relative to dir on the working filesystem,
// under their relative names. Entries carry no timestamps so the archive
// depends only on the file contents. When index is non-nil the digests of
// the files are recorded in it and it is appended as IndexName.
func (p *Packager) writeZip(w io.Writer, dir string, files []string, index *assemblyIndex) error {
	const op = "packaging.writeZip"

	zw := zip.NewWriter(w)
	seen := make(map[string]bool, len(files))
	for _, name := range files {
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return errors.Newf(errors.CodeIntegrity, op, "%s: not a relative path", name)
		}
		name = path.Clean(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		size, sum, err := p.addFile(zw, path.Join(dir, name), name)
		if err != nil {
			return err
		}
		if index != nil {
			index.Files = append(index.Files, indexFile{Path: name, Size: size, SHA1: sum})
		}
	}

	if index != nil {
		data, err := json.MarshalIndent(index, "", "  ")
		if err != nil {
			return errors.Wrap(errors.CodeInternal, op, err)
		}
		iw, err := zw.CreateHeader(&zip.FileHeader{Name: IndexName, Method: zip.Deflate})
		if err != nil {
			return errors.Wrap(errors.CodeStorage, op, err)
		}
		if _, err := iw.Write(data); err != nil {
			return errors.Wrap(errors.CodeStorage, op, err)
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.CodeStorage, op, err)
	}
	return nil
}

func (p *Packager) addFile(zw *zip.Writer, src, name string) (int64, string, error) {
	const op = "packaging.writeZip"

	f, err := p.FS.Open(src)
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeIntegrity, op, fmt.Errorf("%s: %w", src, err))
	}
	defer f.Close()

	// Images are already compressed.
	method := zip.Deflate
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gz", ".zip":
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeStorage, op, err)
	}

	h := sha1.New()
	n, err := io.Copy(io.MultiWriter(w, h), f)
	if err != nil {
		return 0, "", errors.Wrap(errors.CodeStorage, op, fmt.Errorf("%s: %w", src, err))
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (p *Packager) localFS(dir string) fs.Filesystem {
	if p.LocalFS != nil {
		return p.LocalFS(dir)
	}
	return billy.NewOSFS(dir)
}

func (p *Packager) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}
