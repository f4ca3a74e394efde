package zipfile

import "github.com/pkg/errors"

var (
	// ErrNotZIP reports that no structurally consistent end-of-central-
	// directory record exists, or that a located record is malformed.
	ErrNotZIP = errors.New("zip: not a valid zip file")

	// ErrTruncated reports a directory record cut short by end of file.
	ErrTruncated = errors.New("zip: truncated record")
)
