// Command imgbridge converts a single image file from the command line,
// without the daemon. It shares the core pipeline and the resource guard
// with the service, so limits and error messages match.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/imgbridge/imgbridge/internal/bridge"
	"github.com/imgbridge/imgbridge/internal/guard"
	"github.com/imgbridge/imgbridge/internal/history"
	"github.com/imgbridge/imgbridge/internal/imaging"
)

func main() {
	var (
		target  = flag.String("target", "", "target format identifier (png, jpeg, gif, bmp)")
		out     = flag.String("out", "", "output path (default: input path with the target extension)")
		detect  = flag.Bool("detect", false, "print the detected format and exit")
		dims    = flag.Bool("dims", false, "print the image dimensions and exit")
		quality = flag.Int("quality", imaging.DefaultJPEGQuality, "JPEG quality (1-100)")
		colors  = flag.Int("colors", imaging.DefaultGIFColors, "GIF palette size (2-256)")
		dbPath  = flag.String("db", "", "record the conversion in this history database")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	limits := guard.DefaultLimits()
	data, err := readInput(path, limits)
	if err != nil {
		fail(err)
	}

	switch {
	case *detect:
		f, err := imaging.Detect(data)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s (%s)\n", f, f.MIME())

	case *dims:
		d, err := imaging.Probe(data)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%dx%d (%.1f MP)\n", d.Width, d.Height, d.Megapixels())

	case *target != "":
		convert(path, data, *target, *out, *quality, *colors, *dbPath, limits)

	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -detect, -dims or -target")
		os.Exit(2)
	}
}

func convert(path string, data []byte, target, out string, quality, colors int, dbPath string, limits guard.Limits) {
	// A bad target is reported before the input is looked at, matching the
	// daemon's behavior.
	if _, err := imaging.ResolveTarget(target); err != nil {
		fail(err)
	}
	srcFmt, err := imaging.Detect(data)
	if err != nil {
		fail(err)
	}
	d, err := imaging.Probe(data)
	if err != nil {
		fail(err)
	}
	if err := limits.CheckDimensions(d); err != nil {
		fail(err)
	}

	opts := imaging.EncodeOptions{JPEGQuality: quality, GIFColors: colors}
	inputBytes := int64(len(data))
	var capturedAt *time.Time
	if t, ok := history.CaptureTime(data); ok {
		capturedAt = &t
	}

	start := time.Now()
	converted, err := imaging.ConvertWithOptions(data, target, opts)
	elapsed := time.Since(start)
	record(dbPath, srcFmt, target, d, inputBytes, int64(len(converted)), elapsed, capturedAt, err)
	if err != nil {
		fail(err)
	}

	if out == "" {
		tf, _ := imaging.ParseFormat(target)
		out = strings.TrimSuffix(path, filepath.Ext(path)) + tf.Ext()
	}
	if err := os.WriteFile(out, converted, 0o644); err != nil {
		fail(err)
	}
	fmt.Printf("%s: %s %dx%d -> %s (%d bytes, %s)\n",
		path, srcFmt, d.Width, d.Height, out, len(converted), elapsed.Round(time.Millisecond))
}

// record appends the conversion to a history database when one was named.
func record(dbPath string, srcFmt imaging.Format, target string, d imaging.Dimensions, inputBytes, outputBytes int64, elapsed time.Duration, capturedAt *time.Time, cause error) {
	if dbPath == "" {
		return
	}
	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: opening history database: %v\n", err)
		return
	}
	defer store.Close()

	rec := &history.ConversionRecord{
		Origin:       history.OriginCLI,
		SourceFormat: srcFmt.String(),
		TargetFormat: target,
		Width:        d.Width,
		Height:       d.Height,
		InputBytes:   inputBytes,
		OutputBytes:  outputBytes,
		DurationMs:   elapsed.Milliseconds(),
		Status:       history.StatusSuccess,
		CapturedAt:   capturedAt,
	}
	if cause != nil {
		rec.Status = history.StatusFailed
		rec.Error = cause.Error()
	}
	if err := store.Record(rec); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording history: %v\n", err)
	}
}

func readInput(path string, limits guard.Limits) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := limits.CheckSize(fi.Size()); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, bridge.RenderError(err))
	os.Exit(1)
}
