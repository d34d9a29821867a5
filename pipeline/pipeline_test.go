package pipeline

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/catalog"
	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs/billy"
	"github.com/bonnerlab/datasets/manifest"
	"github.com/bonnerlab/datasets/packaging"
)

type bucketGetter struct {
	objects map[string]string
	calls   int
}

func (g *bucketGetter) Download(
	_ context.Context,
	_, key string,
	w io.Writer,
	_ ...s3types.DownloadOption,
) (*s3types.DownloadResult, error) {
	g.calls++
	body, ok := g.objects[key]
	if !ok {
		body = "raw:" + key
	}
	n, err := io.WriteString(w, body)
	return &s3types.DownloadResult{Key: key, Size: int64(n)}, err
}

type grayImages struct {
	n int
}

func (g grayImages) Len() int { return g.n }

func (g grayImages) Image(i int) (image.Image, error) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: uint8(i)})
	return img, nil
}

func (grayImages) Close() error { return nil }

func smallNSD() dataset.Descriptor {
	d := dataset.NSD()
	d.Subjects = 1
	d.Sessions = []int{2}
	d.HeldOutSessions = 1
	d.Stimuli = 2
	d.Image = &dataset.ImageShape{Height: 2, Width: 2, Channels: 1}
	d.ROIs = dataset.ROIs{Surface: []string{"nsdgeneral"}}
	return d
}

func TestNSD_Package(t *testing.T) {
	ctx := context.Background()
	d := smallNSD()
	work := billy.NewInMemoryFS()
	getter := &bucketGetter{objects: map[string]string{
		d.Files[dataset.FileStimInfo]: ",cocoId,nsdId\n0,11,0\n1,22,1\n",
	}}

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	out := t.TempDir()
	n := &NSD{
		Descriptor: d,
		FS:         work,
		Getter:     getter,
		OpenImages: func(dataset.Descriptor) (ImageSource, error) { return grayImages{n: 2}, nil },
	}
	cfg := Config{
		Catalog:  cat,
		Location: packaging.Location{Type: packaging.LocationLocal, Path: out},
	}

	report, err := n.Package(ctx, cfg)
	require.NoError(t, err)

	keys := manifest.NSDKeys(d)
	assert.Len(t, report.Fetch.Fetched, len(keys))
	assert.Equal(t, 2, report.Images.Written)
	require.Len(t, report.Entries, 3)

	for _, p := range manifest.ImagePaths(DefaultImagesDir, 2) {
		exists, err := work.Exists(p)
		require.NoError(t, err)
		assert.True(t, exists, p)
	}

	csvData, err := os.ReadFile(filepath.Join(out, "stimulus_allen2021_natural_scenes.csv"))
	require.NoError(t, err)
	assert.Equal(t,
		"stimulus_id,filename,cocoId,nsdId\nimage00000,images/image00000.png,11,0\nimage00001,images/image00001.png,22,1\n",
		string(csvData))
	_, err = os.Stat(filepath.Join(out, "assy_allen2021_natural_scenes_subj01.zip"))
	require.NoError(t, err)

	entries, err := cat.Lookup(ctx, "allen2021.natural_scenes.subj01")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "allen2021.natural_scenes", entries[0].StimulusSet)

	t.Run("rerun fetches nothing", func(t *testing.T) {
		getter.calls = 0
		report, err := n.Package(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, 0, getter.calls)
		assert.Len(t, report.Fetch.Skipped, len(keys))
		assert.Equal(t, 0, report.Images.Written)
	})
}

func TestNSD_Package_InvalidLocation(t *testing.T) {
	n := &NSD{Descriptor: smallNSD(), FS: billy.NewInMemoryFS(), Getter: &bucketGetter{}}

	_, err := n.Package(context.Background(), Config{Location: packaging.Location{Type: "ftp"}})
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
}

func TestSubjectAssembly(t *testing.T) {
	d := smallNSD()
	a := SubjectAssembly(d, 0)

	assert.Equal(t, "allen2021.natural_scenes.subj01", a.Identifier)
	assert.Equal(t, "allen2021.natural_scenes", a.StimulusSet)
	assert.Equal(t, manifest.SubjectKeys(d, 0), a.Files)
	assert.Equal(t, "1", a.Attributes["sessions"])
}

type recordingRegistrar struct {
	entries []catalog.Entry
}

func (r *recordingRegistrar) Register(_ context.Context, e catalog.Entry) (catalog.Entry, error) {
	r.entries = append(r.entries, e)
	return e, nil
}

func TestObject2Vec_Package(t *testing.T) {
	work := billy.NewInMemoryFS()
	require.NoError(t, work.WriteFile("conditions.txt", []byte("apple\n"), 0o644))
	require.NoError(t, work.WriteFile("stimuli/white_bg/apple-01.jpg", []byte("jpg"), 0o644))

	d := dataset.Object2Vec()
	d.Subjects = 0

	reg := &recordingRegistrar{}
	o := &Object2Vec{Descriptor: d, FS: work}
	report, err := o.Package(context.Background(), Config{
		Catalog:  reg,
		Location: packaging.Location{Type: packaging.LocationLocal, Path: t.TempDir()},
	})
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "bonner2021.object2vec", reg.entries[0].Identifier)
	assert.True(t, strings.HasSuffix(reg.entries[1].Location, "stimulus_bonner2021_object2vec.zip"))
}

func TestObject2Vec_Package_IntegrityError(t *testing.T) {
	work := billy.NewInMemoryFS()
	require.NoError(t, work.WriteFile("conditions.txt", []byte("apple\n"), 0o644))
	require.NoError(t, work.WriteFile("stimuli/white_bg/pear-01.jpg", []byte("jpg"), 0o644))

	d := dataset.Object2Vec()
	d.Subjects = 0

	reg := &recordingRegistrar{}
	o := &Object2Vec{Descriptor: d, FS: work}
	_, err := o.Package(context.Background(), Config{
		Catalog:  reg,
		Location: packaging.Location{Type: packaging.LocationLocal, Path: t.TempDir()},
	})
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))
	assert.Empty(t, reg.entries)
}

func TestNSD_Stages(t *testing.T) {
	ctx := context.Background()
	d := smallNSD()
	work := billy.NewInMemoryFS()
	getter := &bucketGetter{}
	n := &NSD{
		Descriptor: d,
		FS:         work,
		Getter:     getter,
		OpenImages: func(dataset.Descriptor) (ImageSource, error) { return grayImages{n: 2}, nil },
	}

	fetched, err := n.Download(ctx, false)
	require.NoError(t, err)
	assert.Len(t, fetched.Fetched, len(manifest.NSDKeys(d)))

	split, err := n.SplitImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, split.Written)

	t.Run("no bucket", func(t *testing.T) {
		nb := *n
		nb.Descriptor = smallNSD()
		nb.Descriptor.Bucket = ""
		_, err := nb.Download(ctx, false)
		assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
	})

	t.Run("no image shape", func(t *testing.T) {
		ni := *n
		ni.Descriptor = smallNSD()
		ni.Descriptor.Image = nil
		_, err := ni.SplitImages(ctx)
		assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
	})
}
