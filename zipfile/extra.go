package zipfile

import (
	"time"

	"github.com/binspect/binspect/binbuf"
)

// Extra header IDs.
//
// IDs 0..31 are reserved for official use by PKWARE; the rest were
// invented by third-party vendors and became de-facto standard.
// See http://mdfs.net/Docs/Comp/Archiving/Zip/ExtraField
const (
	zip64ExtraID       = 0x0001 // Zip64 extended information
	ntfsExtraID        = 0x000a // NTFS
	unixExtraID        = 0x000d // UNIX
	extTimeExtraID     = 0x5455 // Extended timestamp
	infoZipUnixExtraID = 0x5855 // Info-ZIP Unix extension
	winzipAesExtraID   = 0x9901 // WinZip AES extra field
)

// parseExtras walks the (tag, size) sub-records of the entry's extra
// field. The zip64 record overrides each size/offset only while its
// legacy field is at sentinel; a zip64 record too short to supply a
// needed field fails the parse. The returned time is non-zero when any
// timestamp sub-record produced one.
func (f *File) parseExtras(needUSize, needSize, needOffset *bool) (time.Time, error) {
	var modified time.Time
	extra := binbuf.NewReader(f.Extra)
	for extra.Remaining() >= 4 {
		fieldTag, _ := extra.ReadUint16()
		size, _ := extra.ReadUint16()
		fieldSize := int(size)
		if extra.Remaining() < fieldSize {
			break
		}
		fb, _ := extra.Sub(fieldSize)

		switch fieldTag {
		case zip64ExtraID:
			if *needUSize {
				*needUSize = false
				v, ok := fb.ReadUint64()
				if !ok {
					return modified, ErrNotZIP
				}
				f.UncompressedSize = v
			}
			if *needSize {
				*needSize = false
				v, ok := fb.ReadUint64()
				if !ok {
					return modified, ErrNotZIP
				}
				f.CompressedSize = v
			}
			if *needOffset {
				*needOffset = false
				v, ok := fb.ReadUint64()
				if !ok {
					return modified, ErrNotZIP
				}
				f.Position = v
			}

		case ntfsExtraID:
			if fb.Remaining() < 4 {
				continue
			}
			fb.Discard(4) // reserved
			for fb.Remaining() >= 4 {
				attrTag, _ := fb.ReadUint16()
				size, _ := fb.ReadUint16()
				attrSize := int(size)
				if fb.Remaining() < attrSize {
					break
				}
				ab, _ := fb.Sub(attrSize)
				if attrTag != 1 || attrSize != 24 {
					break
				}
				v, _ := ab.ReadUint64()
				modified = filetimeToTime(v)
			}

		case unixExtraID, infoZipUnixExtraID:
			if fb.Remaining() < 8 {
				continue
			}
			fb.Discard(4) // access time
			v, _ := fb.ReadUint32()
			modified = time.Unix(int64(v), 0).UTC()

		case extTimeExtraID:
			if fb.Remaining() < 5 {
				continue
			}
			flags, _ := fb.ReadByte()
			if flags&1 == 0 {
				continue
			}
			v, _ := fb.ReadUint32()
			modified = time.Unix(int64(v), 0).UTC()

		case winzipAesExtraID:
			// https://www.winzip.com/win/en/aes_info.html
			if fb.Remaining() < 7 {
				continue
			}
			f.AESVersion, _ = fb.ReadUint16()
			fb.Discard(2) // vendor ID "AE"
			f.AESStrength, _ = fb.ReadByte()
			// the stored method is the AES marker; the true one follows
			f.Method, _ = fb.ReadUint16()
		}
	}
	return modified, nil
}
