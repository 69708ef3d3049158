package feedback

import (
	"errors"
	"fmt"
	"slices"
)

// ErrFeedbackLength is returned when a feedback buffer is not a whole number
// of packed page ids.
var ErrFeedbackLength = errors.New("feedback: buffer length is not a multiple of 4")

// Reduce decodes every packed page id in buf and returns the distinct ids,
// sorted in reverse canonical order: coarsest mip level first, then
// descending Y, then descending X.
func Reduce(buf []byte) ([]PageID, error) {
	return ReduceInto(nil, buf)
}

// ReduceInto is like Reduce but reuses the storage of dst, which is
// overwritten. Pass the previous frame's result to avoid allocating.
func ReduceInto(dst []PageID, buf []byte) ([]PageID, error) {
	if len(buf)%EncodedSize != 0 {
		return dst[:0], fmt.Errorf("%w: %d bytes", ErrFeedbackLength, len(buf))
	}

	ids := slices.Grow(dst[:0], len(buf)/EncodedSize)
	for off := 0; off < len(buf); off += EncodedSize {
		ids = append(ids, DecodePageID(buf[off:off+EncodedSize]))
	}

	slices.SortFunc(ids, func(a, b PageID) int { return Compare(b, a) })
	return slices.Compact(ids), nil
}
