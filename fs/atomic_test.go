package fs_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/fs/billy"
)

func TestWriteAtomic(t *testing.T) {
	memfs := billy.NewInMemoryFS()
	const name = "images/image00000.png"

	err := fs.WriteAtomic(memfs, name, func(w io.Writer) error {
		_, err := io.WriteString(w, "png")
		return err
	})
	require.NoError(t, err)

	data, err := memfs.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	ok, err := memfs.Exists(name + fs.PartSuffix)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("failed write keeps the old file", func(t *testing.T) {
		boom := errors.New("source closed")
		err := fs.WriteAtomic(memfs, name, func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return boom
		})
		assert.Same(t, boom, err)

		data, err := memfs.ReadFile(name)
		require.NoError(t, err)
		assert.Equal(t, "png", string(data))
		ok, err := memfs.Exists(name + fs.PartSuffix)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
