package pe

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

// exportDirectory is the on-disk IMAGE_EXPORT_DIRECTORY record.
type exportDirectory struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// ExportedSymbol is one entry of a module's export table. Ordinal is
// OrdinalUnset until the ordinal array assigned one; Hint is the
// entry's position in the name table and is meaningful only when
// Ordinal != OrdinalUnset. ForwardName is set when the address
// re-enters the export directory, which marks the entry as a forwarder
// to another module.
type ExportedSymbol struct {
	Name            string
	UndecoratedName string
	ForwardName     string
	Address         uint32
	Ordinal         uint16
	Hint            int
}

// undecorateCName strips C-level calling-convention decoration such as
// "_func@12" (stdcall) or "@func@8" (fastcall). C++ mangled names
// start with '?' and pass through untouched.
func undecorateCName(name string) string {
	if name == "" || name[0] == '?' {
		return name
	}
	s := name
	if s[0] == '_' || s[0] == '@' {
		s = s[1:]
	}
	if i := strings.LastIndexByte(s, '@'); i > 0 {
		if _, err := strconv.Atoi(s[i+1:]); err == nil {
			s = s[:i]
		}
	}
	return s
}

func rvaInSection(s *Section, rva uint32) bool {
	return s.VirtualAddress <= rva && rva < s.VirtualAddress+s.VirtualSize
}

// LookupExports decodes the export directory. A missing or empty
// directory is a legitimate absence and yields a nil slice, not an
// error. The result is sorted ascending by ordinal.
func (f *File) LookupExports() ([]ExportedSymbol, error) {
	dd := f.DataDirectory(DataDirExportTable)
	if dd == nil || dd.VirtualAddress == 0 {
		return nil, nil
	}
	ds := f.sectionOf(dd)
	if ds == nil {
		return nil, nil
	}
	sdata, err := f.readSectionData(ds)
	if err != nil {
		return nil, err
	}

	ied, ok := binbuf.Decode[exportDirectory](sdata, int(dd.VirtualAddress-ds.VirtualAddress))
	if !ok {
		return nil, nil
	}
	if ied.NumberOfNames == 0 {
		return nil, nil
	}
	// Each name costs 4 bytes in the name array plus 2 in the ordinal
	// array, all inside this section's raw data.
	if int64(ied.NumberOfNames) > int64(sdata.Len())/6 {
		return nil, errors.WithMessagef(ErrOutsideBoundary,
			"export directory declares %d names in %d byte section", ied.NumberOfNames, sdata.Len())
	}

	ordinalBase := uint16(ied.Base)
	exports := make([]ExportedSymbol, ied.NumberOfNames)
	for i := range exports {
		exports[i].Ordinal = OrdinalUnset
	}

	// The three arrays are parallel over the name index; the address
	// array alone is indexed by ordinal - Base rather than position.
	if rvaInSection(ds, ied.AddressOfNameOrdinals) {
		l := int(ied.AddressOfNameOrdinals - ds.VirtualAddress)
		for i := range exports {
			raw, ok := sdata.Uint16(l + i*2)
			if !ok {
				break
			}
			exports[i].Ordinal = raw + ordinalBase
			exports[i].Hint = i
		}
	}
	if rvaInSection(ds, ied.AddressOfNames) {
		l := int(ied.AddressOfNames - ds.VirtualAddress)
		for i := range exports {
			nameRVA, ok := sdata.Uint32(l + i*4)
			if !ok {
				break
			}
			if off := int64(nameRVA) - int64(ds.VirtualAddress); off >= 0 {
				exports[i].Name = sdata.CString(int(off), maxExportNameLength)
				exports[i].UndecoratedName = undecorateCName(exports[i].Name)
			}
		}
	}
	if rvaInSection(ds, ied.AddressOfFunctions) {
		l := int(ied.AddressOfFunctions - ds.VirtualAddress)
		for i := range exports {
			if exports[i].Ordinal == OrdinalUnset {
				continue
			}
			addr, ok := sdata.Uint32(l + int(exports[i].Ordinal-ordinalBase)*4)
			if !ok {
				continue
			}
			exports[i].Address = addr
			// An address inside the export directory is a forwarder
			// string, not code.
			if dd.VirtualAddress <= addr && addr < dd.VirtualAddress+dd.Size {
				exports[i].ForwardName = sdata.CString(int(addr-ds.VirtualAddress), maxExportNameLength)
			}
		}
	}

	sort.Slice(exports, func(i, j int) bool { return exports[i].Ordinal < exports[j].Ordinal })
	return exports, nil
}
