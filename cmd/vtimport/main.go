// Command vtimport creates a virtual texture directory and imports a raw
// RGBA8 image into it, generating every mip level.
//
// The input must be SourceTexelWidth x SourceTexelWidth texels of raw,
// row-major RGBA8 data, where SourceTexelWidth = pages*120 + 8. Inputs
// ending in .zst are decompressed on the fly.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/vtex"
)

func main() {
	var (
		dir      = flag.String("dir", "texture", "texture directory")
		pages    = flag.Uint("pages", 16, "pages per side (rounded up to a power of two)")
		filter   = flag.String("filter", "bilinear", "mip filter: nearest, approx-bilinear, bilinear, catmull-rom")
		input    = flag.String("in", "-", "raw RGBA8 input file (.zst for zstd), - for stdin")
		metaName = flag.String("meta", vtex.DefaultMetadataFile, "metadata file name without extension")
		verbose  = flag.Bool("v", false, "log every written row")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	vtex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *dir, *pages, *filter, *input, *metaName); err != nil {
		log.Fatalf("vtimport: %v", err)
	}
}

func run(ctx context.Context, dir string, pages uint, filterName, input, metaName string) error {
	if pages == 0 || pages > vtex.MaxSideLen {
		return fmt.Errorf("pages must be in [1, %d], got %d", vtex.MaxSideLen, pages)
	}
	meta, err := vtex.MetadataFromDimensions(uint16(pages), vtex.SupportedBytesPerTexel)
	if err != nil {
		return err
	}
	filter, err := vtex.ParseFilter(filterName)
	if err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()

		if strings.HasSuffix(input, ".zst") {
			dec, err := zstd.NewReader(f)
			if err != nil {
				return err
			}
			defer dec.Close()
			r = dec
		} else {
			info, err := f.Stat()
			if err != nil {
				return err
			}
			if info.Size() != meta.SourceSize() {
				return fmt.Errorf("%s is %d bytes, a %d page texture needs %d (%dx%d texels)",
					input, info.Size(), meta.SideLen, meta.SourceSize(), meta.SourceTexelWidth(), meta.SourceTexelWidth())
			}
			r = f
		}
	}

	storage, err := vtex.Create(dir, meta, vtex.WithMetadataFile(metaName))
	if err != nil {
		return err
	}

	start := time.Now()
	if err := storage.ImportTexture(ctx, filter, bufio.NewReaderSize(r, 1<<20)); err != nil {
		return err
	}
	log.Printf("imported %d x %d pages, %d mip levels into %s in %v",
		meta.SideLen, meta.SideLen, meta.MipLevels+1, dir, time.Since(start).Round(time.Millisecond))
	return nil
}
