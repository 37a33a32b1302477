package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasImageExt(t *testing.T) {
	assert.True(t, HasImageExt("/in/photo.png"))
	assert.True(t, HasImageExt("/in/photo.JPG"))
	assert.True(t, HasImageExt("photo.jpeg"))
	assert.True(t, HasImageExt("anim.webp"))
	assert.True(t, HasImageExt("anim.gif"))
	assert.True(t, HasImageExt("scan.BMP"))

	assert.False(t, HasImageExt("/in/notes.txt"))
	assert.False(t, HasImageExt("/in/archive.tar.gz"))
	assert.False(t, HasImageExt("photo"))
	assert.False(t, HasImageExt("photo.png.bak"))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/a/b/jpeg/photo.jpeg", OutputPath("/a/b/c/photo.png", ".jpeg"))
	assert.Equal(t, "/a/png/scan.png", OutputPath("/a/in/scan.tiff", ".png"))
	assert.Equal(t, filepath.Join("gif", "clip.gif"), OutputPath(filepath.Join("in", "clip.webp"), ".gif"))
}

func TestWaitFileStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.png")
	require.NoError(t, os.WriteFile(path, []byte("settled"), 0o644))

	require.NoError(t, WaitFileStable(path, time.Millisecond))
}

func TestWaitFileStableMissing(t *testing.T) {
	err := WaitFileStable(filepath.Join(t.TempDir(), "absent.png"), time.Millisecond)
	assert.Error(t, err)
}
