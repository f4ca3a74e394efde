package pe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildImportImage lays an import descriptor for one module into the
// test section: a by-name thunk followed by a by-ordinal thunk.
func buildImportImage(is64 bool) []byte {
	img := buildImage(is64, ".idata", map[int]DataDirectory{
		DataDirImportTable: {VirtualAddress: testSectionVA, Size: 40},
	})
	sec := img[testSectionOffset:]

	put(sec, 0, &importDirectory{
		OriginalFirstThunk: testSectionVA + 0x40,
		Name:               testSectionVA + 0x60,
		FirstThunk:         testSectionVA + 0x50,
	})
	// The descriptor list ends at the all-zero record already present.

	if is64 {
		put(sec, 0x40, [3]uint64{
			testSectionVA + 0x70,
			imageOrdinalFlag64 | 7,
			0,
		})
	} else {
		put(sec, 0x40, [3]uint32{
			testSectionVA + 0x70,
			imageOrdinalFlag32 | 7,
			0,
		})
	}
	copy(sec[0x60:], "kernel32.dll\x00")
	// Hint/name entry: two hint bytes, then the symbol name.
	put(sec, 0x70, uint16(0x0012))
	copy(sec[0x72:], "CreateFileW\x00")
	return img
}

func TestLookupFunctionTable_Imports(t *testing.T) {
	for _, is64 := range []bool{false, true} {
		f := parseImage(t, buildImportImage(is64))

		ft, err := f.LookupFunctionTable()
		require.NoError(t, err)
		require.Contains(t, ft.Imports, "kernel32.dll")

		fns := ft.Imports["kernel32.dll"]
		require.Len(t, fns, 2)
		assert.Equal(t, Function{Name: "CreateFileW", Index: 0}, fns[0])
		assert.Equal(t, Function{Name: "#7", Index: 1, Ordinal: 7}, fns[1])
	}
}

func buildDelayImportImage() []byte {
	img := buildImage(false, ".didat", map[int]DataDirectory{
		DataDirDelayImportDescriptor: {VirtualAddress: testSectionVA, Size: 64},
	})
	sec := img[testSectionOffset:]

	put(sec, 0, &delayImportDirectory{
		Attributes:            1,
		Name:                  testSectionVA + 0x60,
		ImportNameTableRVA:    testSectionVA + 0x40,
		ImportAddressTableRVA: testSectionVA + 0x50,
	})
	put(sec, 0x40, [2]uint32{testSectionVA + 0x70, 0})
	copy(sec[0x60:], "shell32.dll\x00")
	put(sec, 0x70, uint16(0))
	copy(sec[0x72:], "ShellExecuteW\x00")
	return img
}

func TestLookupFunctionTable_DelayImports(t *testing.T) {
	f := parseImage(t, buildDelayImportImage())

	ft, err := f.LookupFunctionTable()
	require.NoError(t, err)
	require.Contains(t, ft.DelayImports, "shell32.dll")

	fns := ft.DelayImports["shell32.dll"]
	require.Len(t, fns, 1)
	assert.Equal(t, "ShellExecuteW", fns[0].Name)
}

// Old-style delay descriptors store virtual addresses; the image base
// must be subtracted before resolving them.
func TestLookupFunctionTable_OldStyleDelayImports(t *testing.T) {
	img := buildImage(false, ".didat", map[int]DataDirectory{
		DataDirDelayImportDescriptor: {VirtualAddress: testSectionVA, Size: 64},
	})
	sec := img[testSectionOffset:]

	const imageBase = 0x400000
	put(sec, 0, &delayImportDirectory{
		Attributes:         0,
		Name:               imageBase + testSectionVA + 0x60,
		ImportNameTableRVA: imageBase + testSectionVA + 0x40,
	})
	put(sec, 0x40, [2]uint32{imageBase + testSectionVA + 0x70, 0})
	copy(sec[0x60:], "comctl32.dll\x00")
	put(sec, 0x70, uint16(0))
	copy(sec[0x72:], "InitCommonControls\x00")

	f := parseImage(t, img)
	ft, err := f.LookupFunctionTable()
	require.NoError(t, err)
	require.Contains(t, ft.DelayImports, "comctl32.dll")
	assert.Equal(t, "InitCommonControls", ft.DelayImports["comctl32.dll"][0].Name)
}

func TestFunction_EffectiveIndex(t *testing.T) {
	tests := []struct {
		fn   Function
		want int
	}{
		{Function{Name: "CreateFileW", Index: 7}, 7},
		{Function{Name: "#5", Index: 7, Ordinal: 5}, 5},
		{Function{Name: "first", Index: 0}, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.fn.EffectiveIndex(), tt.fn.Name)
	}
}
