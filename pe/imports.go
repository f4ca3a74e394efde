package pe

import (
	"strconv"

	"github.com/binspect/binspect/binbuf"
)

// importDirectory is the on-disk IMAGE_IMPORT_DESCRIPTOR record.
type importDirectory struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

// delayImportDirectory is the on-disk delay-load descriptor record.
type delayImportDirectory struct {
	Attributes                 uint32
	Name                       uint32
	ModuleHandleRVA            uint32
	ImportAddressTableRVA      uint32
	ImportNameTableRVA         uint32
	BoundImportAddressTableRVA uint32
	UnloadInformationTableRVA  uint32
	TimeDateStamp              uint32
}

// Function is one imported entry of a module. Ordinal is nonzero for
// by-ordinal imports; Index is the position within the module's list.
type Function struct {
	Name    string
	Index   int
	Ordinal int
}

// EffectiveIndex is the ordinal when the import is by ordinal,
// otherwise the positional index.
func (fn Function) EffectiveIndex() int {
	if fn.Ordinal != 0 {
		return fn.Ordinal
	}
	return fn.Index
}

// FunctionTable collects the import, delay-import and export tables of
// an image, keyed by module name.
type FunctionTable struct {
	Imports      map[string][]Function
	DelayImports map[string][]Function
	Exports      []ExportedSymbol
}

// A thunk array longer than this aborts the walk; real import tables
// are nowhere near it.
const maxThunkEntries = 0x10000

// rvaResolver resolves RVAs against the section table, caching raw
// section data for the duration of one lookup.
type rvaResolver struct {
	f     *File
	cache map[*Section]binbuf.Buffer
}

func (f *File) newRVAResolver() *rvaResolver {
	return &rvaResolver{f: f, cache: make(map[*Section]binbuf.Buffer)}
}

func (r *rvaResolver) at(rva uint32) (binbuf.Buffer, int, error) {
	s := r.f.sectionByRVA(rva)
	if s == nil {
		return binbuf.Buffer{}, 0, nil
	}
	b, ok := r.cache[s]
	if !ok {
		var err error
		b, err = r.f.readSectionData(s)
		if err != nil {
			return binbuf.Buffer{}, 0, err
		}
		r.cache[s] = b
	}
	return b, int(rva - s.VirtualAddress), nil
}

func (r *rvaResolver) uint16(rva uint32) (uint16, bool) {
	b, off, err := r.at(rva)
	if err != nil || b.Len() == 0 {
		return 0, false
	}
	return b.Uint16(off)
}

func (r *rvaResolver) uint32(rva uint32) (uint32, bool) {
	b, off, err := r.at(rva)
	if err != nil || b.Len() == 0 {
		return 0, false
	}
	return b.Uint32(off)
}

func (r *rvaResolver) uint64(rva uint32) (uint64, bool) {
	b, off, err := r.at(rva)
	if err != nil || b.Len() == 0 {
		return 0, false
	}
	return b.Uint64(off)
}

func (r *rvaResolver) cstring(rva uint32, maxLen int) string {
	b, off, err := r.at(rva)
	if err != nil || b.Len() == 0 {
		return ""
	}
	return b.CString(off, maxLen)
}

// LookupFunctionTable extracts direct imports, delay imports and
// exports in one pass. Missing directories yield empty tables.
func (f *File) LookupFunctionTable() (*FunctionTable, error) {
	ft := &FunctionTable{
		Imports:      make(map[string][]Function),
		DelayImports: make(map[string][]Function),
	}
	res := f.newRVAResolver()
	if err := f.lookupImports(res, ft.Imports); err != nil {
		return nil, err
	}
	if err := f.lookupDelayImports(res, ft.DelayImports); err != nil {
		return nil, err
	}
	exports, err := f.LookupExports()
	if err != nil {
		return nil, err
	}
	ft.Exports = exports
	return ft, nil
}

func (f *File) lookupImports(res *rvaResolver, out map[string][]Function) error {
	dd := f.DataDirectory(DataDirImportTable)
	if dd == nil || dd.VirtualAddress == 0 {
		return nil
	}
	ds := f.sectionOf(dd)
	if ds == nil {
		return nil
	}
	sdata, _, err := res.at(dd.VirtualAddress)
	if err != nil {
		return err
	}

	off := int(dd.VirtualAddress - ds.VirtualAddress)
	for {
		d, ok := binbuf.Decode[importDirectory](sdata, off)
		if !ok || *d == (importDirectory{}) {
			break
		}
		off += 20

		dllName := res.cstring(d.Name, maxImportNameLength)
		if dllName == "" {
			continue
		}
		thunks := d.OriginalFirstThunk
		if thunks == 0 {
			thunks = d.FirstThunk
		}
		fns, err := f.readThunks(res, thunks, 0)
		if err != nil {
			return err
		}
		out[dllName] = fns
	}
	return nil
}

func (f *File) lookupDelayImports(res *rvaResolver, out map[string][]Function) error {
	dd := f.DataDirectory(DataDirDelayImportDescriptor)
	if dd == nil || dd.VirtualAddress == 0 {
		return nil
	}
	ds := f.sectionOf(dd)
	if ds == nil {
		return nil
	}
	sdata, _, err := res.at(dd.VirtualAddress)
	if err != nil {
		return err
	}

	off := int(dd.VirtualAddress - ds.VirtualAddress)
	for {
		d, ok := binbuf.Decode[delayImportDirectory](sdata, off)
		if !ok || *d == (delayImportDirectory{}) {
			break
		}
		off += 32

		// Attributes == 0 marks the old Visual C++ 6 layout whose
		// fields hold virtual addresses instead of RVAs.
		var bias uint64
		if d.Attributes == 0 {
			bias = f.imageBase()
		}
		dllName := res.cstring(uint32(uint64(d.Name)-bias), maxImportNameLength)
		if dllName == "" {
			continue
		}
		thunks := d.ImportNameTableRVA
		if thunks == 0 {
			thunks = d.ImportAddressTableRVA
		}
		fns, err := f.readThunks(res, uint32(uint64(thunks)-bias), bias)
		if err != nil {
			return err
		}
		out[dllName] = fns
	}
	return nil
}

// readThunks walks a thunk array until its zero terminator. Each entry
// is either an ordinal (high bit set) or an RVA to a hint/name pair;
// bias is subtracted from stored values for old-style delay imports.
func (f *File) readThunks(res *rvaResolver, rva uint32, bias uint64) ([]Function, error) {
	if rva == 0 {
		return nil, nil
	}
	var fns []Function
	for idx := 0; idx < maxThunkEntries; idx++ {
		var value uint64
		var byOrdinal bool
		if f.Is64 {
			v, ok := res.uint64(rva)
			if !ok || v == 0 {
				break
			}
			rva += 8
			value = v & addressMask64
			byOrdinal = v&imageOrdinalFlag64 != 0
		} else {
			v, ok := res.uint32(rva)
			if !ok || v == 0 {
				break
			}
			rva += 4
			value = uint64(v & addressMask32)
			byOrdinal = v&imageOrdinalFlag32 != 0
		}

		if byOrdinal {
			ordinal := int(value & 0xffff)
			fns = append(fns, Function{
				Name:    "#" + strconv.Itoa(ordinal),
				Index:   idx,
				Ordinal: ordinal,
			})
			continue
		}

		hintNameRVA := uint32(value - bias)
		name := res.cstring(hintNameRVA+2, maxImportNameLength)
		fns = append(fns, Function{Name: name, Index: idx})
	}
	return fns, nil
}
