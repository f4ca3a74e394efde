package pe

import (
	"github.com/pkg/errors"
)

// OverlayOffset returns the file offset where trailing data would
// start: the furthest end of any section's raw data.
func (f *File) OverlayOffset() int64 {
	var start int64
	for _, s := range f.Sections {
		if end := int64(s.Offset) + int64(s.Size); end > start {
			start = end
		}
	}
	return start
}

// Overlay reads the bytes after the last section with the default
// ceiling of LimitOverlaySize.
func (f *File) Overlay() ([]byte, error) {
	return f.OverlayWithLimit(LimitOverlaySize)
}

// OverlayWithLimit reads the trailing bytes verbatim. ErrNoOverlay
// when nothing follows the sections, ErrOverlayTooLarge when the
// trailing data exceeds limit.
func (f *File) OverlayWithLimit(limit int64) ([]byte, error) {
	start := f.OverlayOffset()
	length := f.size - start
	if length <= 0 {
		return nil, ErrNoOverlay
	}
	if length > limit {
		return nil, errors.WithMessagef(ErrOverlayTooLarge, "%d bytes over limit %d", length, limit)
	}
	buf, err := f.readAt(start, int(length))
	if err != nil {
		return nil, err
	}
	data, _ := buf.Bytes(0, buf.Len())
	return data, nil
}
