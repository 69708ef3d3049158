package feedback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/gogpu/vtex"
)

// PageSource reads page bytes from texture storage. *vtex.TextureStorage
// implements it; row is the page Y coordinate and col the page X coordinate.
type PageSource interface {
	ReadPage(mip uint8, row, col uint16) ([]byte, error)
}

// Uploader pushes one page into the physical texture atlas.
type Uploader func(ctx context.Context, id PageID, page []byte) error

// StorageSink is a PageSink that reads every required page from a
// PageSource and hands it to an Uploader, in the order received.
//
// Pages that do not exist in the storage (rows never imported, or ids
// outside the texture, as produced by cleared feedback texels) are skipped.
type StorageSink struct {
	Source PageSource
	Upload Uploader
	Logger *slog.Logger // nil means vtex.Logger()
}

// RequirePages implements PageSink.
func (s *StorageSink) RequirePages(ctx context.Context, pages []PageID) error {
	log := s.Logger
	if log == nil {
		log = vtex.Logger()
	}

	skipped := 0
	for _, id := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.Source.ReadPage(id.Mip, id.Y, id.X)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist),
			errors.Is(err, vtex.ErrRowOutOfRange),
			errors.Is(err, vtex.ErrPageOutOfRange):
			log.Debug("feedback: page skipped", "page", id.String(), "err", err)
			skipped++
			continue
		default:
			return fmt.Errorf("feedback: read page %v: %w", id, err)
		}

		if err := s.Upload(ctx, id, page); err != nil {
			return fmt.Errorf("feedback: upload page %v: %w", id, err)
		}
	}

	if skipped > 0 {
		log.Debug("feedback: pages unavailable", "skipped", skipped, "required", len(pages))
	}
	return nil
}
