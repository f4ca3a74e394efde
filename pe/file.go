package pe

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

// File is a parsed PE/COFF image. All fields are populated during
// NewFile/New and immutable afterwards; a File may be read from
// multiple goroutines.
type File struct {
	DOSHeader      *DOSHeader // nil for plain COFF objects
	FileHeader     FileHeader
	OptionalHeader any // *OptionalHeader32 or *OptionalHeader64, nil for objects
	Sections       []*Section
	COFFSymbols    []COFFSymbol
	Symbols        []*Symbol
	StringTable    StringTable

	Is64 bool

	size  int64
	r     io.ReaderAt
	owned *os.File // non-nil when the parser opened the handle itself
}

// NewFile opens name and parses it. The returned File owns the handle;
// Close releases it.
func NewFile(name string) (*File, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, err
	}
	f := &File{r: fd, size: stat.Size(), owned: fd}
	if err := f.parse(); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return f, nil
}

// New parses a borrowed handle of known size. The caller keeps
// ownership; Close is a no-op.
func New(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}
	if err := f.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the file handle if this File owns it.
func (f *File) Close() error {
	if f.owned != nil {
		fd := f.owned
		f.owned = nil
		return fd.Close()
	}
	return nil
}

func (f *File) Size() int64 {
	return f.size
}

func (f *File) parse() error {
	base, err := f.readDOSHeader()
	if err != nil {
		return err
	}
	if err := f.readNTHeader(base); err != nil {
		return err
	}
	if err := f.readStringTable(); err != nil {
		return err
	}
	if err := f.readCOFFSymbols(); err != nil {
		return err
	}
	if err := f.foldAuxSymbols(); err != nil {
		return err
	}
	return f.readSections(base)
}

// readAt reads exactly n bytes at off and wraps them in a bounded
// buffer. A short read is reported as truncation, never as a shorter
// buffer.
func (f *File) readAt(off int64, n int) (binbuf.Buffer, error) {
	if off < 0 || n < 0 || off+int64(n) > f.size {
		return binbuf.Buffer{}, errors.WithMessagef(ErrOutsideBoundary, "%d bytes at offset %#x", n, off)
	}
	data := make([]byte, n)
	if _, err := f.r.ReadAt(data, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return binbuf.Buffer{}, errors.WithMessagef(ErrTruncated, "%d bytes at offset %#x", n, off)
		}
		return binbuf.Buffer{}, err
	}
	return binbuf.New(data), nil
}

// Section returns the section with the given name, or nil.
func (f *File) Section(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// sectionByRVA linear-scans for the first section whose virtual range
// contains rva. Directory tables need not start at a section boundary.
func (f *File) sectionByRVA(rva uint32) *Section {
	for _, s := range f.Sections {
		if s.VirtualAddress <= rva && rva < s.VirtualAddress+s.VirtualSize {
			return s
		}
	}
	return nil
}

// sectionOf resolves a data directory to the section owning its
// virtual address.
func (f *File) sectionOf(dd *DataDirectory) *Section {
	if dd == nil {
		return nil
	}
	return f.sectionByRVA(dd.VirtualAddress)
}
