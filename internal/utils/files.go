package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// imageExts are the filename extensions the watch pipeline treats as
// conversion candidates. Content sniffing stays the source of truth for
// what a file actually is; this is only a cheap pre-filter for filesystem
// events, which is why ".jpg" appears here even though it is not a format
// identifier.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// HasImageExt reports whether path looks like a supported image by
// extension alone.
func HasImageExt(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// WaitFileStable waits until two consecutive size checks separated by
// delay agree, so half-written files are not picked up mid-copy.
func WaitFileStable(path string, delay time.Duration) error {
	var lastSize int64 = -1
	for i := 0; i < 5; i++ {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		sz := fi.Size()
		if lastSize == sz {
			return nil
		}
		lastSize = sz
		time.Sleep(delay)
	}
	return nil
}

// OutputPath derives where a converted file lands: a sibling directory
// named after the target format.
// Source /a/b/c/photo.png with target "jpeg" becomes /a/b/jpeg/photo.jpeg.
func OutputPath(src string, ext string) string {
	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ext
	dir := filepath.Dir(src)
	parent := filepath.Dir(dir)
	outDir := filepath.Join(parent, strings.TrimPrefix(ext, "."))
	return filepath.Join(outDir, name)
}
