package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/gogpu/vtex"
)

func TestRunImportsFile(t *testing.T) {
	tmp := t.TempDir()
	meta, _ := vtex.MetadataFromDimensions(2, 4)
	input := filepath.Join(tmp, "source.raw")
	if err := os.WriteFile(input, make([]byte, meta.SourceSize()), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(tmp, "texture")
	if err := run(context.Background(), dir, 2, "nearest", input, "texture"); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	s, err := vtex.Open(dir, vtex.WithMetadataFile("texture"))
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range []struct {
		level uint8
		row   uint16
	}{{0, 0}, {0, 1}, {1, 0}} {
		if !s.HasRow(row.level, row.row) {
			t.Errorf("mip %d row %d missing", row.level, row.row)
		}
	}
}

func TestRunErrors(t *testing.T) {
	tmp := t.TempDir()
	short := filepath.Join(tmp, "short.raw")
	if err := os.WriteFile(short, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		pages  uint
		filter string
		input  string
		want   string
	}{
		{"zero pages", 0, "nearest", short, "pages must be"},
		{"too many pages", 5000, "nearest", short, "pages must be"},
		{"unknown filter", 2, "sinc", short, "unknown filter"},
		{"wrong size", 2, "nearest", short, "needs"},
		{"missing input", 2, "nearest", filepath.Join(tmp, "missing.raw"), "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(context.Background(), filepath.Join(tmp, tt.name), tt.pages, tt.filter, tt.input, "meta")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRunImportsZstd(t *testing.T) {
	tmp := t.TempDir()
	meta, _ := vtex.MetadataFromDimensions(2, 4)
	input := filepath.Join(tmp, "source.raw.zst")

	f, err := os.Create(input)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(make([]byte, meta.SourceSize())); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(tmp, "texture")
	if err := run(context.Background(), dir, 2, "bilinear", input, vtex.DefaultMetadataFile); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	s, err := vtex.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !s.HasRow(1, 0) {
		t.Error("coarsest row missing")
	}
}

func TestRunTruncatedZstd(t *testing.T) {
	tmp := t.TempDir()
	input := filepath.Join(tmp, "short.zst")

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	data := enc.EncodeAll(make([]byte, 1000), nil)
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, data, 0o644); err != nil {
		t.Fatal(err)
	}

	err = run(context.Background(), filepath.Join(tmp, "texture"), 2, "nearest", input, "meta")
	if !vtex.IsIO(err) {
		t.Errorf("run() error = %v, want I/O error", err)
	}
}
