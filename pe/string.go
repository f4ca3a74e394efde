package pe

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// cString converts ASCII byte sequence b to string.
// It stops once it finds 0 or reaches end of b.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i == -1 {
		i = len(b)
	}
	return string(b[:i])
}

// StringTable is a COFF string table.
type StringTable []byte

func (f *File) readStringTable() error {
	// COFF string table is located right after COFF symbol table.
	if f.FileHeader.PointerToSymbolTable == 0 {
		return nil
	}
	offset := int64(f.FileHeader.PointerToSymbolTable) + int64(COFFSymbolSize)*int64(f.FileHeader.NumberOfSymbols)
	lbuf, err := f.readAt(offset, 4)
	if err != nil {
		return errors.WithMessage(err, "string table length")
	}
	l, _ := lbuf.Uint32(0)
	// string table length includes itself
	if l <= 4 {
		return nil
	}
	buf, err := f.readAt(offset+4, int(l-4))
	if err != nil {
		return errors.WithMessage(err, "string table")
	}
	data, _ := buf.Bytes(0, buf.Len())
	f.StringTable = data
	return nil
}

// String extracts string from COFF string table st at offset start.
func (st StringTable) String(start uint32) (string, error) {
	// start includes 4 bytes of string table length
	if start < 4 {
		return "", errors.Errorf("offset %d is before the start of string table", start)
	}
	start -= 4
	if int64(start) > int64(len(st)) {
		return "", errors.Errorf("offset %d is beyond the end of string table", start)
	}
	return cString(st[start:]), nil
}

// Split cuts the string table into its NUL-separated entries.
func (st StringTable) Split() []string {
	if len(st) == 0 {
		return nil
	}
	parts := strings.Split(strings.TrimRight(string(st), "\x00"), "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
