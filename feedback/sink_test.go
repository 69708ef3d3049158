package feedback

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogpu/vtex"
)

func newSinkStorage(t *testing.T) *vtex.TextureStorage {
	t.Helper()
	meta, err := vtex.MetadataFromMip(1, 4)
	if err != nil {
		t.Fatal(err)
	}
	s, err := vtex.Create(t.TempDir(), meta)
	if err != nil {
		t.Fatal(err)
	}
	// Only the first row of mip 0 exists.
	if err := s.WriteRow(0, 0, bytes.Repeat([]byte{0xAB}, meta.RowBytes(0))); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStorageSinkUploads(t *testing.T) {
	store := newSinkStorage(t)

	var uploaded []PageID
	sink := &StorageSink{
		Source: store,
		Upload: func(_ context.Context, id PageID, page []byte) error {
			if len(page) != store.Metadata().PageBytes() {
				t.Errorf("page %v is %d bytes", id, len(page))
			}
			if page[0] != 0xAB {
				t.Errorf("page %v has wrong contents", id)
			}
			uploaded = append(uploaded, id)
			return nil
		},
	}

	pages := []PageID{
		{X: 0, Y: 0, Mip: 9}, // beyond the mip chain
		{X: 0, Y: 0, Mip: 1}, // never written
		{X: 1, Y: 1, Mip: 0}, // never written
		{X: 1, Y: 0, Mip: 0},
		{X: 7, Y: 0, Mip: 0}, // beyond the row
		{X: 0, Y: 0, Mip: 0},
	}
	if err := sink.RequirePages(context.Background(), pages); err != nil {
		t.Fatalf("RequirePages() error = %v", err)
	}

	want := []PageID{{X: 1}, {X: 0}}
	if len(uploaded) != len(want) || uploaded[0] != want[0] || uploaded[1] != want[1] {
		t.Errorf("uploaded = %v, want %v", uploaded, want)
	}
}

func TestStorageSinkUploadError(t *testing.T) {
	store := newSinkStorage(t)
	boom := errors.New("atlas full")
	sink := &StorageSink{
		Source: store,
		Upload: func(context.Context, PageID, []byte) error { return boom },
	}
	err := sink.RequirePages(context.Background(), []PageID{{}})
	if !errors.Is(err, boom) {
		t.Errorf("RequirePages() error = %v, want %v", err, boom)
	}
}

type failingSource struct{ err error }

func (f failingSource) ReadPage(uint8, uint16, uint16) ([]byte, error) { return nil, f.err }

func TestStorageSinkReadError(t *testing.T) {
	boom := errors.New("bad disk")
	sink := &StorageSink{
		Source: failingSource{boom},
		Upload: func(context.Context, PageID, []byte) error {
			t.Error("Upload called after a read failure")
			return nil
		},
	}
	if err := sink.RequirePages(context.Background(), []PageID{{}}); !errors.Is(err, boom) {
		t.Errorf("RequirePages() error = %v, want %v", err, boom)
	}
}

func TestStorageSinkCancelled(t *testing.T) {
	sink := &StorageSink{
		Source: failingSource{errors.New("unreachable")},
		Upload: func(context.Context, PageID, []byte) error { return nil },
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.RequirePages(ctx, []PageID{{}}); !errors.Is(err, context.Canceled) {
		t.Errorf("RequirePages() error = %v, want context.Canceled", err)
	}
}

func TestStorageSinkAsPageSink(t *testing.T) {
	store := newSinkStorage(t)
	var n int
	var sink PageSink = &StorageSink{
		Source: store,
		Upload: func(context.Context, PageID, []byte) error { n++; return nil },
	}

	buf := &fakeMappable{data: encodeAll(PageID{}, PageID{}, PageID{X: 1})}
	NewStreamer(buf, sink).cycle(context.Background())
	if n != 2 {
		t.Errorf("uploaded %d pages, want 2", n)
	}
}
