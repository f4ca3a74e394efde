// Package binbuf provides bounds-checked access to byte regions read
// from untrusted files. Every accessor validates that the requested
// field lies fully inside the region before producing a value; reads
// that would cross the end report ok == false instead of truncating.
package binbuf

import (
	"bytes"
	"encoding/binary"
)

// Buffer wraps an owned byte region of known length. The zero value is
// an empty buffer.
type Buffer struct {
	data []byte
}

func New(data []byte) Buffer {
	return Buffer{data: data}
}

func (b Buffer) Len() int {
	return len(b.data)
}

// Bytes returns n bytes starting at offset, or ok == false if the
// range does not fit. The returned slice aliases the buffer.
func (b Buffer) Bytes(offset, n int) ([]byte, bool) {
	if offset < 0 || n < 0 || offset+n > len(b.data) || offset+n < offset {
		return nil, false
	}
	return b.data[offset : offset+n], true
}

func (b Buffer) Byte(offset int) (byte, bool) {
	if offset < 0 || offset >= len(b.data) {
		return 0, false
	}
	return b.data[offset], true
}

func (b Buffer) Uint16(offset int) (uint16, bool) {
	p, ok := b.Bytes(offset, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(p), true
}

func (b Buffer) Uint32(offset int) (uint32, bool) {
	p, ok := b.Bytes(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(p), true
}

func (b Buffer) Uint64(offset int) (uint64, bool) {
	p, ok := b.Bytes(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(p), true
}

func (b Buffer) Uint16BE(offset int) (uint16, bool) {
	p, ok := b.Bytes(offset, 2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(p), true
}

func (b Buffer) Uint32BE(offset int) (uint32, bool) {
	p, ok := b.Bytes(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(p), true
}

func (b Buffer) Uint64BE(offset int) (uint64, bool) {
	p, ok := b.Bytes(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint64(p), true
}

// CString returns the bytes at offset up to the first NUL, the end of
// the buffer, or maxLen bytes, whichever comes first. Offsets past the
// end yield the empty string.
func (b Buffer) CString(offset, maxLen int) string {
	if offset < 0 || offset >= len(b.data) || maxLen <= 0 {
		return ""
	}
	s := b.data[offset:]
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// Reader returns a sequential cursor positioned at the start of the
// buffer.
func (b Buffer) Reader() *Reader {
	return &Reader{b: b}
}

// Decode interprets the bytes at offset as a little-endian fixed-size
// record of type T. It never reinterprets memory in place, so T needs
// no particular alignment. The second return is false if the record
// does not fit.
func Decode[T any](b Buffer, offset int) (*T, bool) {
	var v T
	n := binary.Size(&v)
	p, ok := b.Bytes(offset, n)
	if !ok {
		return nil, false
	}
	if err := binary.Read(bytes.NewReader(p), binary.LittleEndian, &v); err != nil {
		return nil, false
	}
	return &v, true
}
