package imagesplit

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/scigolib/hdf5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
)

// writeBrick writes n images of shape into a contiguous dataset of dtype,
// which must be hdf5.Float64 or hdf5.Uint8, and returns the file path. Sample
// (i, y, x, c) holds i*50 + y*10 + x*3 + c.
func writeBrick(t *testing.T, name string, dtype hdf5.Datatype, n int, shape dataset.ImageShape) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stimuli.hdf5")
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	require.NoError(t, err)

	dims := []uint64{uint64(n), uint64(shape.Height), uint64(shape.Width), uint64(shape.Channels)}
	ds, err := fw.CreateDataset(name, dtype, dims)
	require.NoError(t, err)

	var floats []float64
	var raw []uint8
	for i := range n {
		for y := range shape.Height {
			for x := range shape.Width {
				for c := range shape.Channels {
					v := i*50 + y*10 + x*3 + c
					floats = append(floats, float64(v))
					raw = append(raw, uint8(v))
				}
			}
		}
	}
	switch dtype {
	case hdf5.Uint8:
		require.NoError(t, ds.Write(raw))
	default:
		require.NoError(t, ds.Write(floats))
	}
	require.NoError(t, fw.Close())
	return path
}

func TestOpenHDF5(t *testing.T) {
	shape := dataset.ImageShape{Height: 2, Width: 3, Channels: 3}
	path := writeBrick(t, "/imgBrick", hdf5.Float64, 3, shape)

	src, err := OpenHDF5(path, "imgBrick", 3, shape)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	assert.Equal(t, 3, src.Len())

	img, err := src.Image(1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 50 + 10 + 6, G: 50 + 10 + 6 + 1, B: 50 + 10 + 6 + 2, A: 255},
		img.(*image.NRGBA).NRGBAAt(2, 1))

	_, err = src.Image(3)
	assert.Error(t, err)
}

func TestOpenHDF5_Uint8(t *testing.T) {
	shape := dataset.ImageShape{Height: 2, Width: 2, Channels: 3}
	path := writeBrick(t, "/imgBrick", hdf5.Uint8, 3, shape)

	src, err := OpenHDF5(path, "imgBrick", 3, shape)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	require.NotNil(t, src.bytes)

	for i := range 3 {
		img, err := src.Image(i)
		require.NoError(t, err)
		assert.Equal(t, color.NRGBA{R: uint8(i*50 + 10 + 3), G: uint8(i*50 + 10 + 4), B: uint8(i*50 + 10 + 5), A: 255},
			img.(*image.NRGBA).NRGBAAt(1, 1), "image %d", i)
	}

	gray := dataset.ImageShape{Height: 2, Width: 2, Channels: 1}
	path = writeBrick(t, "/imgBrick", hdf5.Uint8, 2, gray)
	src, err = OpenHDF5(path, "imgBrick", 2, gray)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	img, err := src.Image(1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{50, 53, 60, 63}, img.(*image.Gray).Pix)
}

func TestOpenHDF5_ShortBrick(t *testing.T) {
	shape := dataset.ImageShape{Height: 2, Width: 2, Channels: 1}

	for _, dtype := range []hdf5.Datatype{hdf5.Float64, hdf5.Uint8} {
		path := writeBrick(t, "/imgBrick", dtype, 2, shape)
		_, err := OpenHDF5(path, "/imgBrick", 3, shape)
		require.Error(t, err)
		assert.True(t, errors.IsIntegrity(err))
	}
}

func TestOpenHDF5_ShapeMismatch(t *testing.T) {
	path := writeBrick(t, "/imgBrick", hdf5.Uint8, 2, dataset.ImageShape{Height: 2, Width: 2, Channels: 3})

	_, err := OpenHDF5(path, "/imgBrick", 2, dataset.ImageShape{Height: 2, Width: 3, Channels: 2})
	require.Error(t, err)
	assert.True(t, errors.IsIntegrity(err))
	assert.Contains(t, err.Error(), "want [N 2 3 2]")
}

func TestOpenHDF5_MissingDataset(t *testing.T) {
	shape := dataset.ImageShape{Height: 2, Width: 2, Channels: 1}
	path := writeBrick(t, "/other", hdf5.Float64, 1, shape)

	_, err := OpenHDF5(path, "imgBrick", 1, shape)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestParseBrickInfo(t *testing.T) {
	bi, err := parseBrickInfo("Dataset: integer (size=1 bytes), 4D array [73000 425 425 3], contiguous (address=0x800, size=39557625000)")
	require.NoError(t, err)
	assert.Equal(t, brickInfo{
		class:      "integer",
		elemSize:   1,
		dims:       []uint64{73000, 425, 425, 3},
		contiguous: true,
		addr:       0x800,
		size:       39557625000,
	}, bi)
	assert.NoError(t, bi.check(73000, dataset.ImageShape{Height: 425, Width: 425, Channels: 3}))
	assert.Error(t, bi.check(73001, dataset.ImageShape{Height: 425, Width: 425, Channels: 3}))

	bi, err = parseBrickInfo("Dataset: float (size=8 bytes), 4D array [2 2 2 3], chunked (chunks=[1 2 2 3 8])")
	require.NoError(t, err)
	assert.Equal(t, "float", bi.class)
	assert.False(t, bi.contiguous)

	_, err = parseBrickInfo("garbage")
	assert.Error(t, err)
}

func TestToImage(t *testing.T) {
	gray, err := toImage([]uint8{0, 128, 255, 7}, dataset.ImageShape{Height: 2, Width: 2, Channels: 1})
	require.NoError(t, err)
	g := gray.(*image.Gray)
	assert.Equal(t, []uint8{0, 128, 255, 7}, g.Pix)

	rgba, err := toImage([]uint8{1, 2, 3, 4}, dataset.ImageShape{Height: 1, Width: 1, Channels: 4})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, rgba.(*image.NRGBA).NRGBAAt(0, 0))

	_, err = toImage([]uint8{1, 2}, dataset.ImageShape{Height: 1, Width: 1, Channels: 3})
	assert.Error(t, err)

	_, err = toImage([]uint8{1, 2}, dataset.ImageShape{Height: 1, Width: 1, Channels: 2})
	assert.Error(t, err)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, []uint8{0, 128, 255, 0, 0}, quantize([]float64{0, 127.6, 300, -4, math.NaN()}))
}
