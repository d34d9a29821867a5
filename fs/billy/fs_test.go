package billy

import (
	"io"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parentfs "github.com/bonnerlab/datasets/fs"
)

// runSuite exercises the operations the pipeline stages rely on against one
// Filesystem implementation. root is where the suite may write.
func runSuite(t *testing.T, fsys parentfs.Filesystem, root string) {
	t.Helper()
	stimDir := path.Join(root, "nsddata_stimuli/stimuli/nsd")
	brick := path.Join(stimDir, "nsd_stimuli.hdf5")

	t.Run("mkdir and stat", func(t *testing.T) {
		require.NoError(t, fsys.MkdirAll(stimDir, 0o755))
		info, err := fsys.Stat(path.Join(root, "nsddata_stimuli/stimuli"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("write and read", func(t *testing.T) {
		require.NoError(t, fsys.WriteFile(brick, []byte("brick"), 0o644))
		data, err := fsys.ReadFile(brick)
		require.NoError(t, err)
		assert.Equal(t, "brick", string(data))
	})

	t.Run("open reads at offsets", func(t *testing.T) {
		f, err := fsys.Open(brick)
		require.NoError(t, err)
		defer f.Close()

		buf := make([]byte, 3)
		n, err := f.ReadAt(buf, 2)
		require.NoError(t, err)
		assert.Equal(t, "ick", string(buf[:n]))

		info, err := f.Stat()
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size())
	})

	t.Run("eof is not wrapped", func(t *testing.T) {
		f, err := fsys.Open(brick)
		require.NoError(t, err)
		defer f.Close()

		_, err = io.ReadAll(f)
		require.NoError(t, err)
		_, err = f.Read(make([]byte, 1))
		assert.Equal(t, io.EOF, err)
	})

	t.Run("walk", func(t *testing.T) {
		var files []string
		err := fsys.Walk(path.Join(root, "nsddata_stimuli"), func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				files = append(files, path.Base(p))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"nsd_stimuli.hdf5"}, files)
	})

	t.Run("rename and exists", func(t *testing.T) {
		part := brick + parentfs.PartSuffix
		require.NoError(t, fsys.WriteFile(part, []byte("new"), 0o644))
		require.NoError(t, fsys.Rename(part, brick))

		ok, err := fsys.Exists(part)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = fsys.Exists(brick)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, fsys.Remove(brick))
		entries, err := fsys.ReadDir(stimDir)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = fsys.Stat(brick)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestInMemoryFS(t *testing.T) {
	runSuite(t, NewInMemoryFS(), "/")
}

func TestOSFS(t *testing.T) {
	runSuite(t, NewOSFS(t.TempDir()), ".")
}
