package imagesplit

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/scigolib/hdf5"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
)

// Source yields stimulus images by 0-based index.
type Source interface {
	Len() int
	Image(i int) (image.Image, error)
}

// HDF5Source reads stimuli from a 4-D (N, H, W, C) dataset in an HDF5 file.
// Reads are serialized; the underlying reader shares one file handle.
type HDF5Source struct {
	mu    sync.Mutex
	file  *hdf5.File
	ds    *hdf5.Dataset
	n     int
	shape dataset.ImageShape

	// bytes is set for contiguous 8-bit bricks, which are read straight from
	// the file because the HDF5 reader only converts wider numeric types.
	bytes *brickBytes
}

// brickBytes locates the samples of a contiguous one-byte-per-sample brick.
type brickBytes struct {
	r    io.ReaderAt
	addr int64
	size int64
}

var (
	infoDatatype = regexp.MustCompile(`Dataset: (\w+) \(size=(\d+) bytes\)`)
	infoDims     = regexp.MustCompile(`\dD array \[([\d ]+)\]`)
	infoLayout   = regexp.MustCompile(`contiguous \(address=0x([0-9A-Fa-f]+), size=(\d+)\)`)
)

// brickInfo is what Dataset.Info reports about a stimulus brick.
type brickInfo struct {
	class    string
	elemSize int
	dims     []uint64

	contiguous bool
	addr       uint64
	size       uint64
}

func parseBrickInfo(info string) (brickInfo, error) {
	var bi brickInfo

	m := infoDatatype.FindStringSubmatch(info)
	if m == nil {
		return bi, fmt.Errorf("unrecognised dataset info %q", info)
	}
	bi.class = m[1]
	bi.elemSize, _ = strconv.Atoi(m[2])

	if m := infoDims.FindStringSubmatch(info); m != nil {
		for _, f := range strings.Fields(m[1]) {
			d, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return bi, fmt.Errorf("dataset dimension %q: %w", f, err)
			}
			bi.dims = append(bi.dims, d)
		}
	}

	if m := infoLayout.FindStringSubmatch(info); m != nil {
		addr, err := strconv.ParseUint(m[1], 16, 64)
		if err != nil {
			return bi, fmt.Errorf("dataset address %q: %w", m[1], err)
		}
		size, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return bi, fmt.Errorf("dataset size %q: %w", m[2], err)
		}
		bi.contiguous, bi.addr, bi.size = true, addr, size
	}
	return bi, nil
}

// check reports a brick that cannot hold n images of shape.
func (bi brickInfo) check(n int, shape dataset.ImageShape) error {
	if bi.dims == nil {
		return nil
	}
	want := []uint64{uint64(shape.Height), uint64(shape.Width), uint64(shape.Channels)}
	if len(bi.dims) != 4 || !slices.Equal(bi.dims[1:], want) {
		return fmt.Errorf("dataset has dimensions %v, want [N %d %d %d]",
			bi.dims, shape.Height, shape.Width, shape.Channels)
	}
	if bi.dims[0] < uint64(n) {
		return fmt.Errorf("dataset holds %d images", bi.dims[0])
	}
	return nil
}

// OpenHDF5 opens the dataset named name inside the file at path. The file
// must hold at least n images of the given shape; the last one is read once
// here so a short or mis-shaped brick is reported before any work starts.
// Samples may be unsigned bytes, as in the NSD stimulus file, or any numeric
// type the HDF5 reader converts to float64.
func OpenHDF5(path, name string, n int, shape dataset.ImageShape) (*HDF5Source, error) {
	const op = "imagesplit.OpenHDF5"

	if shape.Len() <= 0 {
		return nil, errors.Newf(errors.CodeInvalidInput, op, "invalid image shape %dx%dx%d",
			shape.Height, shape.Width, shape.Channels)
	}

	f, err := hdf5.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecode, op, fmt.Errorf("%s: %w", path, err))
	}

	target := "/" + strings.TrimPrefix(name, "/")
	var ds *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if p != target {
			return
		}
		if d, ok := obj.(*hdf5.Dataset); ok {
			ds = d
		}
	})
	if ds == nil {
		_ = f.Close()
		return nil, errors.Newf(errors.CodeNotFound, op, "%s: dataset %q not found", path, target)
	}

	fail := func(code errors.ErrorCode, err error) (*HDF5Source, error) {
		_ = f.Close()
		return nil, errors.Wrap(code, op, fmt.Errorf("%s: expected %d images of %dx%dx%d: %w",
			path, n, shape.Height, shape.Width, shape.Channels, err))
	}

	info, err := ds.Info()
	if err != nil {
		return fail(errors.CodeDecode, err)
	}
	bi, err := parseBrickInfo(info)
	if err != nil {
		return fail(errors.CodeDecode, err)
	}
	if err := bi.check(n, shape); err != nil {
		return fail(errors.CodeIntegrity, err)
	}

	src := &HDF5Source{file: f, ds: ds, n: n, shape: shape}
	if bi.class == "integer" && bi.elemSize == 1 {
		if !bi.contiguous {
			return fail(errors.CodeDecode, fmt.Errorf("8-bit samples are only readable from contiguous storage"))
		}
		if bi.addr > math.MaxInt64 || bi.size > math.MaxInt64 {
			return fail(errors.CodeDecode, fmt.Errorf("dataset extent 0x%X+%d out of range", bi.addr, bi.size))
		}
		src.bytes = &brickBytes{r: f.Reader(), addr: int64(bi.addr), size: int64(bi.size)}
	}

	if n > 0 {
		if _, err := src.Image(n - 1); err != nil {
			return fail(errors.CodeIntegrity, err)
		}
	}
	return src, nil
}

// Len returns the number of images the source holds.
func (s *HDF5Source) Len() int {
	return s.n
}

// Image decodes stimulus i.
func (s *HDF5Source) Image(i int) (image.Image, error) {
	if i < 0 || i >= s.n {
		return nil, fmt.Errorf("image index %d out of range [0,%d)", i, s.n)
	}

	s.mu.Lock()
	px, err := s.read(i)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read image %d: %w", i, err)
	}
	return toImage(px, s.shape)
}

func (s *HDF5Source) read(i int) ([]uint8, error) {
	if s.bytes != nil {
		per := int64(s.shape.Len())
		off := int64(i) * per
		if off+per > s.bytes.size {
			return nil, fmt.Errorf("samples end at byte %d of a %d byte dataset", off+per, s.bytes.size)
		}
		px := make([]uint8, per)
		if _, err := s.bytes.r.ReadAt(px, s.bytes.addr+off); err != nil {
			return nil, err //nolint:wrapcheck // wrapped by Image
		}
		return px, nil
	}

	h, w, c := uint64(s.shape.Height), uint64(s.shape.Width), uint64(s.shape.Channels)
	raw, err := s.ds.ReadSlice([]uint64{uint64(i), 0, 0, 0}, []uint64{1, h, w, c})
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Image
	}
	f, ok := raw.([]float64)
	if !ok {
		return nil, fmt.Errorf("unsupported element type %T", raw)
	}
	return quantize(f), nil
}

// Close releases the underlying file.
func (s *HDF5Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	//nolint:wrapcheck // close error is self-describing
	return s.file.Close()
}

// toImage converts interleaved (H, W, C) samples to an image.
// One channel yields a grayscale image, three an opaque RGBA image and four
// an RGBA image with the fourth sample as alpha.
func toImage(px []uint8, shape dataset.ImageShape) (image.Image, error) {
	if len(px) != shape.Len() {
		return nil, fmt.Errorf("got %d samples, want %d", len(px), shape.Len())
	}

	rect := image.Rect(0, 0, shape.Width, shape.Height)
	switch shape.Channels {
	case 1:
		img := image.NewGray(rect)
		for y := range shape.Height {
			for x := range shape.Width {
				img.SetGray(x, y, color.Gray{Y: px[y*shape.Width+x]})
			}
		}
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(rect)
		c := shape.Channels
		for y := range shape.Height {
			for x := range shape.Width {
				o := (y*shape.Width + x) * c
				a := uint8(255)
				if c == 4 {
					a = px[o+3]
				}
				img.SetNRGBA(x, y, color.NRGBA{R: px[o], G: px[o+1], B: px[o+2], A: a})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", shape.Channels)
	}
}

// quantize rounds samples into 0..255.
func quantize(f []float64) []uint8 {
	px := make([]uint8, len(f))
	for j, v := range f {
		px[j] = sample(v)
	}
	return px
}

func sample(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
