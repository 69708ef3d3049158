// Command vtfeedback reduces a raw feedback readback dump to the list of
// required pages and, given a texture directory, reads those pages back.
// Dumps ending in .zst are zstd-compressed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/vtex"
	"github.com/gogpu/vtex/feedback"
)

func main() {
	var (
		input   = flag.String("in", "", "feedback dump: packed 4-byte page ids")
		dir     = flag.String("dir", "", "texture directory to read required pages from (optional)")
		timeout = flag.Duration("timeout", 5*time.Second, "how long to wait for the reduction")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		vtex.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if *input == "" {
		log.Fatal("vtfeedback: -in is required")
	}
	if err := run(*input, *dir, *timeout); err != nil {
		log.Fatalf("vtfeedback: %v", err)
	}
}

func readDump(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil || !strings.HasSuffix(path, ".zst") {
		return data, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func run(input, dir string, timeout time.Duration) error {
	dump, err := readDump(input)
	if err != nil {
		return err
	}

	buf, err := feedback.NewReadbackBuffer(feedback.BufferDescriptor{
		Label: input,
		Size:  uint64(len(dump)),
		Usage: feedback.FeedbackBufferDescriptor(1, 1).Usage,
	})
	if err != nil {
		return err
	}
	defer buf.Destroy()

	var storage *vtex.TextureStorage
	if dir != "" {
		if storage, err = vtex.Open(dir); err != nil {
			return err
		}
	}

	var uploaded, bytes int
	result := make(chan error, 1)
	sink := feedback.SinkFunc(func(ctx context.Context, pages []feedback.PageID) error {
		for _, id := range pages {
			fmt.Println(id)
		}
		if storage == nil {
			result <- nil
			return nil
		}
		s := &feedback.StorageSink{
			Source: storage,
			Upload: func(_ context.Context, _ feedback.PageID, page []byte) error {
				uploaded++
				bytes += len(page)
				return nil
			},
		}
		err := s.RequirePages(ctx, pages)
		result <- err
		return err
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	streamer := feedback.NewStreamer(buf, sink)
	if err := streamer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = streamer.Stop() }()

	if err := buf.MapAsync(func(status feedback.MapStatus) {
		if status == feedback.MapStatusSuccess {
			streamer.Notify()
		}
	}); err != nil {
		return err
	}
	if err := buf.Resolve(dump); err != nil {
		return err
	}

	select {
	case err := <-result:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	if storage != nil {
		log.Printf("read %d pages (%d bytes) from %s", uploaded, bytes, dir)
	}
	return nil
}
