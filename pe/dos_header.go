package pe

import (
	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

// DOSHeader is the legacy stub header at the front of a PE image. Only
// AddressOfNewEXEHeader matters to the parser; the rest is carried for
// callers that want it.
type DOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

// readDOSHeader reads the legacy stub if present and returns the file
// offset of the COFF file header. Files without the stub magic are
// plain COFF objects whose file header starts at offset 0.
func (f *File) readDOSHeader() (int64, error) {
	if f.size < FileHeaderSize {
		return 0, errors.WithMessage(ErrTruncated, "file smaller than a COFF file header")
	}

	head, err := f.readAt(0, 2)
	if err != nil {
		return 0, err
	}
	magic, _ := head.Uint16(0)
	if magic != ImageDOSSignature && magic != ImageDOSZMSignature {
		return 0, nil
	}

	buf, err := f.readAt(0, DOSHeaderSize)
	if err != nil {
		return 0, errors.WithMessage(err, "DOS stub")
	}
	dh, _ := binbuf.Decode[DOSHeader](buf, 0)
	f.DOSHeader = dh

	signoff := int64(dh.AddressOfNewEXEHeader)
	if signoff < 4 || signoff+4 > f.size {
		return 0, errors.WithMessagef(ErrOutsideBoundary, "e_lfanew %#x", dh.AddressOfNewEXEHeader)
	}
	sign, err := f.readAt(signoff, 4)
	if err != nil {
		return 0, errors.WithMessage(err, "NT header signature")
	}
	if tag, _ := sign.Uint32(0); tag != ImageNTHeaderSignature {
		return 0, errors.WithMessagef(ErrInvalidSignature, "NT header tag %#x", tag)
	}
	return signoff + 4, nil
}
