package zipfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rec builds little-endian records for synthetic archives.
type rec struct{ b []byte }

func (r *rec) u16(v uint16) *rec {
	r.b = append(r.b, byte(v), byte(v>>8))
	return r
}

func (r *rec) u32(v uint32) *rec {
	r.b = append(r.b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	return r
}

func (r *rec) u64(v uint64) *rec {
	r.u32(uint32(v))
	return r.u32(uint32(v >> 32))
}

func (r *rec) raw(p []byte) *rec {
	r.b = append(r.b, p...)
	return r
}

func (r *rec) str(s string) *rec {
	return r.raw([]byte(s))
}

type entrySpec struct {
	name     string
	extra    []byte
	comment  string
	flags    uint16
	method   uint16
	dosTime  uint16
	dosDate  uint16
	crc      uint32
	csize    uint32
	usize    uint32
	position uint32
}

func directoryHeader(e entrySpec) []byte {
	r := new(rec)
	r.u32(directoryHeaderSignature).
		u16(20).u16(20).
		u16(e.flags).u16(e.method).
		u16(e.dosTime).u16(e.dosDate).
		u32(e.crc).u32(e.csize).u32(e.usize).
		u16(uint16(len(e.name))).u16(uint16(len(e.extra))).u16(uint16(len(e.comment))).
		u16(0).u16(0).u32(0).
		u32(e.position).
		str(e.name).raw(e.extra).str(e.comment)
	return r.b
}

// buildArchive lays out padding, the central directory and the end
// record. The padding stands in for local headers and payload.
func buildArchive(padding int, entries []entrySpec, comment string) []byte {
	r := new(rec)
	r.raw(make([]byte, padding))
	dirOffset := len(r.b)
	for _, e := range entries {
		r.raw(directoryHeader(e))
	}
	dirSize := len(r.b) - dirOffset

	r.u32(directoryEndSignature).
		u16(0).u16(0).
		u16(uint16(len(entries))).u16(uint16(len(entries))).
		u32(uint32(dirSize)).u32(uint32(dirOffset)).
		u16(uint16(len(comment))).str(comment)
	return r.b
}

func newReader(t *testing.T, data []byte) *Reader {
	t.Helper()
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r
}

func TestNewReader_Empty(t *testing.T) {
	r := newReader(t, buildArchive(0, nil, "release build"))
	assert.Equal(t, "release build", r.Comment)
	assert.Empty(t, r.Files)
	assert.Zero(t, r.CompressedSize)
}

func TestNewReader_Entries(t *testing.T) {
	// 2020-06-15 12:34:56 UTC
	const dosDate = 40<<9 | 6<<5 | 15
	const dosTime = 12<<11 | 34<<5 | 28

	data := buildArchive(64, []entrySpec{
		{
			name: "readme.txt", method: MethodStore,
			dosDate: dosDate, dosTime: dosTime,
			crc: 0xdeadbeef, csize: 100, usize: 100, position: 0,
		},
		{
			name: "data/blob.bin", method: MethodDeflate, flags: 0x0800,
			csize: 40, usize: 90, position: 30,
		},
	}, "")

	r := newReader(t, data)
	require.Len(t, r.Files, 2)
	assert.Equal(t, uint64(140), r.CompressedSize)
	assert.Equal(t, uint64(190), r.UncompressedSize)

	f := &r.Files[0]
	assert.Equal(t, "readme.txt", f.Name)
	assert.Equal(t, "store", MethodName(f.Method))
	assert.Equal(t, uint32(0xdeadbeef), f.CRC32)
	assert.False(t, f.IsUTF8)
	assert.False(t, f.IsEncrypted())
	assert.Equal(t, time.Date(2020, 6, 15, 12, 34, 56, 0, time.UTC), f.Modified)

	f = &r.Files[1]
	assert.Equal(t, "data/blob.bin", f.Name)
	assert.Equal(t, "deflate", MethodName(f.Method))
	assert.True(t, f.IsUTF8)
	assert.Equal(t, uint64(30), f.Position)
}

// A signature-like byte run inside the archive comment must not be
// mistaken for the end record: its stated comment length would not end
// at the buffer boundary.
func TestNewReader_FakeSignatureInComment(t *testing.T) {
	comment := "PK\x05\x06 is how every end record starts"
	r := newReader(t, buildArchive(16, []entrySpec{{name: "a", method: MethodStore}}, comment))
	assert.Equal(t, comment, r.Comment)
	require.Len(t, r.Files, 1)
}

func TestNewReader_NotZip(t *testing.T) {
	_, err := NewReader(bytes.NewReader(bytes.Repeat([]byte{0xaa}, 256)), 256)
	assert.ErrorIs(t, err, ErrNotZIP)

	_, err = NewReader(bytes.NewReader([]byte("PK")), 2)
	assert.ErrorIs(t, err, ErrNotZIP)
}

func TestNewReader_ImpossibleRecordCount(t *testing.T) {
	data := buildArchive(0, nil, "")
	// totalRecords sits 10 bytes into the end record.
	data[len(data)-directoryEndLen+10] = 0xf0
	data[len(data)-directoryEndLen+11] = 0x0f

	_, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotZIP)
	assert.Contains(t, err.Error(), "impossible")
}

func TestNewReader_DirectoryOffsetOutsideFile(t *testing.T) {
	data := buildArchive(0, nil, "")
	// directoryOffset sits 16 bytes into the end record.
	copy(data[len(data)-directoryEndLen+16:], []byte{0xff, 0xff, 0x00, 0x00})

	_, err := NewReader(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotZIP)
}

func TestNewReader_Zip64(t *testing.T) {
	r := new(rec)
	r.raw(make([]byte, 32)) // stands in for the local header
	dirOffset := len(r.b)
	r.raw(directoryHeader(entrySpec{name: "huge.bin", method: MethodZstd, csize: 10, usize: 20}))
	dirSize := len(r.b) - dirOffset

	zip64EndOffset := len(r.b)
	r.u32(directory64EndSignature).
		u64(44).       // size of remaining record
		u16(45).u16(45). // version made by / needed
		u32(0).u32(0). // disk numbers
		u64(1).u64(1). // records
		u64(uint64(dirSize)).u64(uint64(dirOffset))

	r.u32(directory64LocSignature).
		u32(0).u64(uint64(zip64EndOffset)).u32(1)

	// Legacy record with every field at its sentinel.
	r.u32(directoryEndSignature).
		u16(0).u16(0).
		u16(0xFFFF).u16(0xFFFF).
		u32(0xFFFFFFFF).u32(0xFFFFFFFF).
		u16(0)

	reader := newReader(t, r.b)
	require.Len(t, reader.Files, 1)
	assert.Equal(t, "huge.bin", reader.Files[0].Name)
	assert.Equal(t, "zstd", MethodName(reader.Files[0].Method))
}

// One short of the sentinel must not send the parser to zip64.
func TestNewReader_NearSentinelStaysLegacy(t *testing.T) {
	data := buildArchive(8, []entrySpec{{name: "a", method: MethodStore}}, "")
	// directorySize sits 12 bytes into the end record; 0xFFFFFFFE is an
	// implausible size but not a zip64 trigger.
	copy(data[len(data)-directoryEndLen+12:], []byte{0xfe, 0xff, 0xff, 0xff})

	r := newReader(t, data)
	require.Len(t, r.Files, 1)
}

// A sentinel without a zip64 locator in front of the end record falls
// back to the legacy fields.
func TestNewReader_SentinelWithoutLocator(t *testing.T) {
	data := buildArchive(8, []entrySpec{{name: "a", method: MethodStore}}, "")
	copy(data[len(data)-directoryEndLen+12:], []byte{0xff, 0xff, 0xff, 0xff})

	r := newReader(t, data)
	require.Len(t, r.Files, 1)
}

// buildZip64Archive lays out one entry, a zip64 end record and its
// locator, then a legacy end record whose directoryOffset field holds
// legacyOffset. Only the zip64 record points at the real directory.
func buildZip64Archive(legacyOffset uint32) []byte {
	r := new(rec)
	r.raw(make([]byte, 32))
	dirOffset := len(r.b)
	r.raw(directoryHeader(entrySpec{name: "a.txt", method: MethodStore}))
	dirSize := len(r.b) - dirOffset

	zip64EndOffset := len(r.b)
	r.u32(directory64EndSignature).
		u64(44).
		u16(45).u16(45).
		u32(0).u32(0).
		u64(1).u64(1).
		u64(uint64(dirSize)).u64(uint64(dirOffset))

	r.u32(directory64LocSignature).
		u32(0).u64(uint64(zip64EndOffset)).u32(1)

	r.u32(directoryEndSignature).
		u16(0).u16(0).
		u16(1).u16(1).
		u32(uint32(dirSize)).u32(legacyOffset).
		u16(0)
	return r.b
}

// The offset sentinel must send the parser to the zip64 record; one
// short of the sentinel must not, leaving a legacy offset that points
// outside the file.
func TestNewReader_OffsetSentinel(t *testing.T) {
	r := newReader(t, buildZip64Archive(0xFFFFFFFF))
	require.Len(t, r.Files, 1)
	assert.Equal(t, "a.txt", r.Files[0].Name)

	data := buildZip64Archive(0xFFFFFFFE)
	_, err := NewReader(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotZIP)
}

func TestEntry_Zip64Sizes(t *testing.T) {
	extra := new(rec)
	extra.u16(zip64ExtraID).u16(16).u64(5_000_000_000).u64(4_000_000_000)

	data := buildArchive(0, []entrySpec{{
		name: "big.iso", method: MethodDeflate, extra: extra.b,
		csize: 0xFFFFFFFF, usize: 0xFFFFFFFF,
	}}, "")

	r := newReader(t, data)
	require.Len(t, r.Files, 1)
	assert.Equal(t, uint64(5_000_000_000), r.Files[0].UncompressedSize)
	assert.Equal(t, uint64(4_000_000_000), r.Files[0].CompressedSize)
	assert.Equal(t, uint64(5_000_000_000), r.UncompressedSize)
}

// A sentinel size whose zip64 record cannot supply the value fails the
// whole parse.
func TestEntry_MissingZip64Field(t *testing.T) {
	short := new(rec)
	short.u16(zip64ExtraID).u16(4).u32(0)

	for _, extra := range [][]byte{nil, short.b} {
		data := buildArchive(0, []entrySpec{{
			name: "big.iso", method: MethodDeflate, extra: extra,
			csize: 0xFFFFFFFF, usize: 100,
		}}, "")

		_, err := NewReader(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, ErrNotZIP)
	}
}

func TestEntry_TimestampPrecedence(t *testing.T) {
	// 2020-06-15 12:34:56 UTC in DOS terms
	const dosDate = 40<<9 | 6<<5 | 15
	const dosTime = 12<<11 | 34<<5 | 28

	extTime := new(rec)
	extTime.u16(extTimeExtraID).u16(5).raw([]byte{1}).u32(1_600_000_000)

	ntfs := new(rec)
	ntfs.u16(ntfsExtraID).u16(32).
		u32(0). // reserved
		u16(1).u16(24).
		u64((1_577_836_800 + 11_644_473_600) * 10_000_000). // mtime
		u64(0).u64(0)

	data := buildArchive(0, []entrySpec{
		{name: "dos-only", method: MethodStore, dosDate: dosDate, dosTime: dosTime},
		{name: "ext-time", method: MethodStore, dosDate: dosDate, dosTime: dosTime, extra: extTime.b},
		{name: "ntfs", method: MethodStore, dosDate: dosDate, dosTime: dosTime, extra: ntfs.b},
	}, "")

	r := newReader(t, data)
	require.Len(t, r.Files, 3)
	assert.Equal(t, time.Date(2020, 6, 15, 12, 34, 56, 0, time.UTC), r.Files[0].Modified)
	assert.Equal(t, time.Unix(1_600_000_000, 0).UTC(), r.Files[1].Modified)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), r.Files[2].Modified)
}

func TestEntry_WinZipAES(t *testing.T) {
	aes := new(rec)
	aes.u16(winzipAesExtraID).u16(7).
		u16(2).str("AE").raw([]byte{3}).u16(MethodDeflate)

	data := buildArchive(0, []entrySpec{{
		name: "secret.txt", method: MethodAES, flags: 0x1, extra: aes.b,
	}}, "")

	r := newReader(t, data)
	require.Len(t, r.Files, 1)
	f := &r.Files[0]
	assert.True(t, f.IsEncrypted())
	assert.Equal(t, uint16(2), f.AESVersion)
	assert.Equal(t, "AES-256", f.AESText())
	assert.Equal(t, uint16(MethodDeflate), f.Method)
}

func TestOpenReader(t *testing.T) {
	name := filepath.Join(t.TempDir(), "sample.zip")
	data := buildArchive(0, []entrySpec{{name: "a.txt", method: MethodStore}}, "on disk")
	require.NoError(t, os.WriteFile(name, data, 0o644))

	r, err := OpenReader(name)
	require.NoError(t, err)
	assert.Equal(t, "on disk", r.Comment)
	assert.Equal(t, int64(len(data)), r.Size())
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestOpenReader_Missing(t *testing.T) {
	_, err := OpenReader(filepath.Join(t.TempDir(), "nope.zip"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFiletimeToTime(t *testing.T) {
	// 100ns ticks between 1601-01-01 and 1970-01-01
	assert.Equal(t, time.Unix(0, 0).UTC(), filetimeToTime(11_644_473_600*10_000_000))
}
