package pe

import "github.com/pkg/errors"

var (
	// ErrInvalidSignature reports a stub or NT header whose magic does
	// not match; the input is not a PE/COFF file.
	ErrInvalidSignature = errors.New("pe: invalid PE/COFF signature")

	// ErrTruncated reports a mandatory header cut short by end of file.
	ErrTruncated = errors.New("pe: truncated header")

	// ErrOutsideBoundary reports a field whose stated location lies
	// outside the file.
	ErrOutsideBoundary = errors.New("pe: reading data outside boundary")

	// ErrSectionTooLarge reports raw section data over SectionSizeLimit.
	ErrSectionTooLarge = errors.New("pe: section data size over limit")

	// ErrNoOverlay reports that no bytes follow the last section.
	ErrNoOverlay = errors.New("pe: no overlay data")

	// ErrOverlayTooLarge reports overlay data over the caller's ceiling.
	ErrOverlayTooLarge = errors.New("pe: overlay data size over limit")
)
