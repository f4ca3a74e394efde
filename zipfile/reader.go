// Package zipfile inspects the central directory of a ZIP archive
// without decompressing anything: end-of-directory location with zip64
// fallback, per-entry metadata, extra-field decoding.
//
// https://pkware.cachefly.net/webdocs/casestudies/APPNOTE.TXT
package zipfile

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/binspect/binspect/binbuf"
)

const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50

	fileHeaderLen      = 30 // + filename + extra
	directoryHeaderLen = 46 // + filename + extra + comment
	directoryEndLen    = 22 // + comment
	directory64LocLen  = 20
	directory64EndLen  = 56 // + extensible data sector
)

// File is one central-directory entry. Sizes and offset are the zip64
// values when the legacy fields were at sentinel.
type File struct {
	Name    string
	Comment string
	Extra   []byte

	CreatorVersion   uint16
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	Position         uint64 // local file header offset
	ExternalAttrs    uint32
	Modified         time.Time
	IsUTF8           bool

	AESVersion  uint16
	AESStrength byte
}

func (f *File) IsEncrypted() bool {
	return f.Flags&0x1 != 0
}

// AESText names the AES strength of a WinZip-AES entry, empty for
// entries without AES metadata.
func (f *File) AESText() string {
	switch f.AESStrength {
	case 1:
		return "AES-128"
	case 2:
		return "AES-192"
	case 3:
		return "AES-256"
	}
	return ""
}

// Reader is a parsed central directory. All fields are populated
// during OpenReader/NewReader and immutable afterwards.
type Reader struct {
	Comment string
	Files   []File

	// Byte totals summed over all entries.
	CompressedSize   uint64
	UncompressedSize uint64

	r     io.ReaderAt
	size  int64
	owned *os.File
}

// OpenReader opens name and parses its central directory. The returned
// Reader owns the handle; Close releases it.
func OpenReader(name string) (*Reader, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	r := &Reader{r: fd, size: stat.Size(), owned: fd}
	if err := r.init(); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return r, nil
}

// NewReader parses a borrowed handle of known size. The caller keeps
// ownership; Close is a no-op.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	r := &Reader{r: ra, size: size}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the file handle if this Reader owns it.
func (r *Reader) Close() error {
	if r.owned != nil {
		fd := r.owned
		r.owned = nil
		return fd.Close()
	}
	return nil
}

func (r *Reader) Size() int64 {
	return r.size
}

// directoryEnd merges the legacy end record with any zip64 overrides.
type directoryEnd struct {
	diskNbr            uint32
	dirDiskNbr         uint32
	dirRecordsThisDisk uint64
	directoryRecords   uint64
	directorySize      uint64
	directoryOffset    uint64
	comment            string
}

func (r *Reader) init() error {
	d, err := r.readDirectoryEnd()
	if err != nil {
		return err
	}
	// Even an empty entry needs a local file header, so the count is
	// bounded by the file size.
	if d.directoryRecords > uint64(r.size)/fileHeaderLen {
		return errors.WithMessagef(ErrNotZIP,
			"TOC declares impossible %d files in %d byte zip", d.directoryRecords, r.size)
	}
	r.Comment = d.comment

	sr := io.NewSectionReader(r.r, int64(d.directoryOffset), r.size-int64(d.directoryOffset))
	br := bufio.NewReaderSize(sr, 16*1024)
	r.Files = make([]File, 0, d.directoryRecords)
	for i := uint64(0); i < d.directoryRecords; i++ {
		var file File
		if err := readDirectoryHeader(br, &file); err != nil {
			return err
		}
		r.CompressedSize += file.CompressedSize
		r.UncompressedSize += file.UncompressedSize
		r.Files = append(r.Files, file)
	}
	return nil
}

// findSignatureInBlock scans backwards for an end-of-directory
// signature whose stated comment length makes the record end exactly
// at the end of the block. Signature-like bytes inside entry data or
// comments fail that cross-check.
func findSignatureInBlock(b []byte) int {
	for i := len(b) - directoryEndLen; i >= 0; i-- {
		if b[i] == 'P' && b[i+1] == 'K' && b[i+2] == 0x05 && b[i+3] == 0x06 {
			n := int(b[i+directoryEndLen-2]) | int(b[i+directoryEndLen-1])<<8
			if i+directoryEndLen+n == len(b) {
				return i
			}
		}
	}
	return -1
}

// readDirectoryEnd locates and decodes the end-of-directory record,
// scanning the trailing 1 KiB first and retrying with 64 KiB (the
// comment length bound) before giving up.
func (r *Reader) readDirectoryEnd() (*directoryEnd, error) {
	var b *binbuf.Reader
	var directoryEndOffset int64
	for i, blen := range []int64{1024, 65 * 1024} {
		if blen > r.size {
			blen = r.size
		}
		buf := make([]byte, blen)
		if _, err := r.r.ReadAt(buf, r.size-blen); err != nil && err != io.EOF {
			return nil, err
		}
		if p := findSignatureInBlock(buf); p >= 0 {
			b = binbuf.NewReader(buf[p:])
			directoryEndOffset = r.size - blen + int64(p)
			break
		}
		if i == 1 || blen == r.size {
			return nil, ErrNotZIP
		}
	}

	d := new(directoryEnd)
	b.Discard(4)
	v16, _ := b.ReadUint16()
	d.diskNbr = uint32(v16)
	v16, _ = b.ReadUint16()
	d.dirDiskNbr = uint32(v16)
	v16, _ = b.ReadUint16()
	d.dirRecordsThisDisk = uint64(v16)
	v16, _ = b.ReadUint16()
	d.directoryRecords = uint64(v16)
	v32, _ := b.ReadUint32()
	d.directorySize = uint64(v32)
	v32, _ = b.ReadUint32()
	d.directoryOffset = uint64(v32)
	commentLen, _ := b.ReadUint16()
	if int(commentLen) > b.Remaining() {
		return nil, errors.WithMessage(ErrNotZIP, "invalid comment length")
	}
	comment, _ := b.ReadBytes(int(commentLen))
	d.comment = string(comment)

	// Any field at its sentinel sends us to the zip64 shapes; the
	// sentinel width follows the field width.
	if d.dirRecordsThisDisk == 0xFFFF || d.directoryRecords == 0xFFFF ||
		d.directorySize == 0xFFFFFFFF || d.directoryOffset == 0xFFFFFFFF {
		p, err := r.findDirectory64End(directoryEndOffset)
		if err != nil {
			return nil, err
		}
		if p >= 0 {
			if err := r.readDirectory64End(p, d); err != nil {
				return nil, err
			}
		}
	}

	if d.directoryOffset >= uint64(r.size) {
		return nil, errors.WithMessage(ErrNotZIP, "directory offset outside file")
	}
	return d, nil
}

// findDirectory64End reads the zip64 locator that sits immediately
// before the end-of-directory record. A missing or multi-disk locator
// yields -1 rather than an error; the caller's final validation
// decides whether the legacy fields were usable after all.
func (r *Reader) findDirectory64End(directoryEndOffset int64) (int64, error) {
	locOffset := directoryEndOffset - directory64LocLen
	if locOffset < 0 {
		return -1, nil
	}
	buf := make([]byte, directory64LocLen)
	if _, err := r.r.ReadAt(buf, locOffset); err != nil {
		return -1, err
	}
	b := binbuf.NewReader(buf)
	if sig, _ := b.ReadUint32(); sig != directory64LocSignature {
		return -1, nil
	}
	if diskWithDir, _ := b.ReadUint32(); diskWithDir != 0 {
		return -1, nil
	}
	p, _ := b.ReadUint64()
	if totalDisks, _ := b.ReadUint32(); totalDisks != 1 {
		return -1, nil
	}
	return int64(p), nil
}

// readDirectory64End decodes the 56-byte zip64 end record and
// overwrites the legacy fields.
func (r *Reader) readDirectory64End(offset int64, d *directoryEnd) error {
	if offset+directory64EndLen > r.size {
		return errors.WithMessage(ErrNotZIP, "zip64 directory end outside file")
	}
	buf := make([]byte, directory64EndLen)
	if _, err := r.r.ReadAt(buf, offset); err != nil {
		return err
	}
	b := binbuf.NewReader(buf)
	if sig, _ := b.ReadUint32(); sig != directory64EndSignature {
		return errors.WithMessage(ErrNotZIP, "bad zip64 directory end signature")
	}
	b.Discard(12) // record size + version made by + version needed
	d.diskNbr, _ = b.ReadUint32()
	d.dirDiskNbr, _ = b.ReadUint32()
	d.dirRecordsThisDisk, _ = b.ReadUint64()
	d.directoryRecords, _ = b.ReadUint64()
	d.directorySize, _ = b.ReadUint64()
	d.directoryOffset, _ = b.ReadUint64()
	return nil
}

// readDirectoryHeader decodes one 46-byte central-directory record
// plus its name, extra field and comment, read in a single pass.
func readDirectoryHeader(br *bufio.Reader, file *File) error {
	buf := make([]byte, directoryHeaderLen)
	if _, err := io.ReadFull(br, buf); err != nil {
		return errors.WithMessage(ErrTruncated, "directory header")
	}
	b := binbuf.NewReader(buf)
	if sig, _ := b.ReadUint32(); sig != directoryHeaderSignature {
		return errors.WithMessage(ErrNotZIP, "bad directory header signature")
	}
	file.CreatorVersion, _ = b.ReadUint16()
	file.ReaderVersion, _ = b.ReadUint16()
	file.Flags, _ = b.ReadUint16()
	file.Method, _ = b.ReadUint16()
	dosTime, _ := b.ReadUint16()
	dosDate, _ := b.ReadUint16()
	file.CRC32, _ = b.ReadUint32()
	csize, _ := b.ReadUint32()
	usize, _ := b.ReadUint32()
	nameLen, _ := b.ReadUint16()
	extraLen, _ := b.ReadUint16()
	commentLen, _ := b.ReadUint16()
	b.Discard(4) // disk number start + internal attributes
	file.ExternalAttrs, _ = b.ReadUint32()
	position, _ := b.ReadUint32()

	file.CompressedSize = uint64(csize)
	file.UncompressedSize = uint64(usize)
	file.Position = uint64(position)
	file.IsUTF8 = file.Flags&0x800 != 0

	total := int(nameLen) + int(extraLen) + int(commentLen)
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if _, err := bb.ReadFrom(io.LimitReader(br, int64(total))); err != nil {
		return err
	}
	if len(bb.B) != total {
		return errors.WithMessage(ErrTruncated, "directory header tail")
	}
	file.Name = string(bb.B[:nameLen])
	file.Extra = append([]byte(nil), bb.B[nameLen:int(nameLen)+int(extraLen)]...)
	file.Comment = string(bb.B[int(nameLen)+int(extraLen):])

	needUSize := usize == 0xFFFFFFFF
	needSize := csize == 0xFFFFFFFF
	needOffset := position == 0xFFFFFFFF

	modified, err := file.parseExtras(&needUSize, &needSize, &needOffset)
	if err != nil {
		return err
	}

	// DOS date/time is the default; extra-field timestamps win.
	file.Modified = msDosTimeToTime(dosDate, dosTime)
	if !modified.IsZero() && modified.Unix() != 0 {
		file.Modified = modified
	}

	// A size or offset still at sentinel means the entry framing is
	// unverifiable; the whole parse fails.
	if needSize || needOffset {
		return errors.WithMessagef(ErrNotZIP, "entry %q missing zip64 sizes", file.Name)
	}
	return nil
}
