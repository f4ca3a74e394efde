package binbuf

// Reader is a sequential little-endian cursor over a Buffer. A failed
// read leaves the cursor where it was and reports ok == false.
type Reader struct {
	b   Buffer
	off int
}

func NewReader(data []byte) *Reader {
	return &Reader{b: New(data)}
}

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.b.Len() - r.off
}

// Discard skips n bytes.
func (r *Reader) Discard(n int) bool {
	if n < 0 || n > r.Remaining() {
		return false
	}
	r.off += n
	return true
}

// Sub consumes the next n bytes and returns a reader over just them.
func (r *Reader) Sub(n int) (*Reader, bool) {
	p, ok := r.b.Bytes(r.off, n)
	if !ok {
		return nil, false
	}
	r.off += n
	return NewReader(p), true
}

// ReadBytes consumes and returns the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, bool) {
	p, ok := r.b.Bytes(r.off, n)
	if ok {
		r.off += n
	}
	return p, ok
}

func (r *Reader) ReadByte() (byte, bool) {
	v, ok := r.b.Byte(r.off)
	if ok {
		r.off++
	}
	return v, ok
}

func (r *Reader) ReadUint16() (uint16, bool) {
	v, ok := r.b.Uint16(r.off)
	if ok {
		r.off += 2
	}
	return v, ok
}

func (r *Reader) ReadUint32() (uint32, bool) {
	v, ok := r.b.Uint32(r.off)
	if ok {
		r.off += 4
	}
	return v, ok
}

func (r *Reader) ReadUint64() (uint64, bool) {
	v, ok := r.b.Uint64(r.off)
	if ok {
		r.off += 8
	}
	return v, ok
}
