package zipfile

// Compression method numbers from APPNOTE.TXT section 4.4.5, plus the
// WinZip AES marker.
const (
	MethodStore         = 0
	MethodShrink        = 1
	MethodReduce1       = 2
	MethodReduce2       = 3
	MethodReduce3       = 4
	MethodReduce4       = 5
	MethodImplode       = 6
	MethodDeflate       = 8
	MethodDeflate64     = 9
	MethodPKWareImplode = 10
	MethodBZip2         = 12
	MethodLZMA          = 14
	MethodTerse         = 18
	MethodLZ77          = 19
	MethodLZMA2         = 33
	MethodZstd          = 93
	MethodXZ            = 95
	MethodJPEG          = 96
	MethodWavPack       = 97
	MethodPPMd          = 98
	MethodAES           = 99
)

var methodNames = map[uint16]string{
	MethodStore:         "store",
	MethodShrink:        "shrunk",
	MethodReduce1:       "reduce/1",
	MethodReduce2:       "reduce/2",
	MethodReduce3:       "reduce/3",
	MethodReduce4:       "reduce/4",
	MethodImplode:       "implode",
	MethodDeflate:       "deflate",
	MethodDeflate64:     "deflate64",
	MethodPKWareImplode: "pkware-implode",
	MethodBZip2:         "bzip2",
	MethodLZMA:          "lzma",
	MethodTerse:         "IBM TERSE",
	MethodLZ77:          "LZ77",
	MethodLZMA2:         "lzma2",
	MethodZstd:          "zstd",
	MethodXZ:            "xz",
	MethodJPEG:          "Jpeg",
	MethodWavPack:       "WavPack",
	MethodPPMd:          "PPMd",
	MethodAES:           "AES",
}

// MethodName returns the display name of a compression method number,
// "NONE" for unknown methods.
func MethodName(m uint16) string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "NONE"
}
