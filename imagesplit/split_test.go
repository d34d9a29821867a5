package imagesplit

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs/billy"
	"github.com/bonnerlab/datasets/manifest"
)

// solidSource yields n 4x3 images; image i is filled with gray level 10*i.
type solidSource struct {
	n       int
	decodes atomic.Int64
	failAt  int
}

func newSolidSource(n int) *solidSource {
	return &solidSource{n: n, failAt: -1}
}

func (s *solidSource) Len() int { return s.n }

func (s *solidSource) Image(i int) (image.Image, error) {
	s.decodes.Add(1)
	if i == s.failAt {
		return nil, fmt.Errorf("corrupt slab")
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			v := uint8(10 * i)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img, nil
}

func TestSplitter_Run(t *testing.T) {
	memfs := billy.NewInMemoryFS()
	src := newSolidSource(3)
	s := &Splitter{FS: memfs, Dir: "images", Workers: 2}

	report, err := s.Run(context.Background(), src, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, int64(3), src.decodes.Load())

	entries, err := memfs.ReadDir("images")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"image00000.png", "image00001.png", "image00002.png"}, names)

	first := make(map[string][]byte)
	for i, p := range manifest.ImagePaths("images", 3) {
		data, err := memfs.ReadFile(p)
		require.NoError(t, err)
		first[p] = data

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
		r, _, _, _ := img.At(1, 1).RGBA()
		assert.Equal(t, uint32(10*i)*0x101, r)
	}

	t.Run("rerun decodes nothing", func(t *testing.T) {
		src.decodes.Store(0)
		report, err := s.Run(context.Background(), src, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(0), src.decodes.Load())
		assert.Equal(t, 0, report.Written)
		assert.Equal(t, 3, report.Skipped)

		for p, want := range first {
			got, err := memfs.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, want, got, p)
		}
	})
}

func TestSplitter_Run_Batches(t *testing.T) {
	memfs := billy.NewInMemoryFS()
	src := newSolidSource(5)
	s := &Splitter{FS: memfs, Dir: "out/images", Workers: 3, BatchSize: 2}

	report, err := s.Run(context.Background(), src, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Written)

	for _, p := range manifest.ImagePaths("out/images", 5) {
		exists, err := memfs.Exists(p)
		require.NoError(t, err)
		assert.True(t, exists, p)
	}
}

func TestSplitter_Run_Prefix(t *testing.T) {
	memfs := billy.NewInMemoryFS()
	src := newSolidSource(4)
	s := &Splitter{FS: memfs, Dir: "images", Workers: 1}

	report, err := s.Run(context.Background(), src, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)

	exists, err := memfs.Exists(manifest.ImagePath("images", 2))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSplitter_Run_TooManyImages(t *testing.T) {
	s := &Splitter{FS: billy.NewInMemoryFS(), Dir: "images"}
	src := newSolidSource(2)

	_, err := s.Run(context.Background(), src, 3)
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))
	assert.Equal(t, int64(0), src.decodes.Load())

	_, err = s.Run(context.Background(), src, -1)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
}

func TestSplitter_Run_DecodeFailure(t *testing.T) {
	memfs := billy.NewInMemoryFS()
	src := newSolidSource(4)
	src.failAt = 2
	s := &Splitter{FS: memfs, Dir: "images", Workers: 1, BatchSize: 2}

	report, err := s.Run(context.Background(), src, 4)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDecode, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "image 2")
	assert.Equal(t, 2, report.Written, "the first batch completed")

	for _, p := range []string{manifest.ImagePath("images", 2), manifest.ImagePath("images", 2) + ".part"} {
		exists, err := memfs.Exists(p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}
	exists, err := memfs.Exists(manifest.ImagePath("images", 3))
	require.NoError(t, err)
	assert.False(t, exists, "siblings of the failed image are cancelled")
}

func TestSplitter_Run_Cancelled(t *testing.T) {
	src := newSolidSource(3)
	s := &Splitter{FS: billy.NewInMemoryFS(), Dir: "images"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, src, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), src.decodes.Load())
}
