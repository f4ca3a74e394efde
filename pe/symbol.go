package pe

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

const COFFSymbolSize = 18

// COFFSymbol represents single COFF symbol table record.
type COFFSymbol struct {
	Name               [8]uint8
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

func (f *File) readCOFFSymbols() error {
	if f.FileHeader.PointerToSymbolTable == 0 || f.FileHeader.NumberOfSymbols == 0 {
		return nil
	}
	n := int64(f.FileHeader.NumberOfSymbols)
	offset := int64(f.FileHeader.PointerToSymbolTable)
	if offset+n*COFFSymbolSize > f.size {
		return errors.WithMessagef(ErrOutsideBoundary,
			"symbol table declares %d symbols in %d byte file", n, f.size)
	}
	buf, err := f.readAt(offset, int(n)*COFFSymbolSize)
	if err != nil {
		return errors.WithMessage(err, "symbol table")
	}
	symbols := make([]COFFSymbol, 0, n)
	for i := 0; i < int(n); i++ {
		sym, _ := binbuf.Decode[COFFSymbol](buf, i*COFFSymbolSize)
		symbols = append(symbols, *sym)
	}
	f.COFFSymbols = symbols
	return nil
}

// isSymNameOffset checks symbol name if it is encoded as offset into string table.
func isSymNameOffset(name [8]byte) (bool, uint32) {
	if name[0] == 0 && name[1] == 0 && name[2] == 0 && name[3] == 0 {
		return true, binary.LittleEndian.Uint32(name[4:])
	}
	return false, 0
}

// FullName finds real name of symbol sym. Normally name is stored
// in sym.Name, but if it is longer then 8 characters, it is stored
// in COFF string table st instead.
func (sym *COFFSymbol) FullName(st StringTable) (string, error) {
	if ok, offset := isSymNameOffset(sym.Name); ok {
		return st.String(offset)
	}
	return cString(sym.Name[:]), nil
}

// foldAuxSymbols drops auxiliary records and resolves names, leaving
// one Symbol per primary COFF record.
func (f *File) foldAuxSymbols() error {
	if len(f.COFFSymbols) == 0 {
		return nil
	}
	symbols := make([]*Symbol, 0, len(f.COFFSymbols))
	aux := uint8(0)
	for i := range f.COFFSymbols {
		sym := &f.COFFSymbols[i]
		if aux > 0 {
			aux--
			continue
		}
		name, err := sym.FullName(f.StringTable)
		if err != nil {
			return err
		}
		aux = sym.NumberOfAuxSymbols
		symbols = append(symbols, &Symbol{
			Name:          name,
			Value:         sym.Value,
			SectionNumber: sym.SectionNumber,
			Type:          sym.Type,
			StorageClass:  sym.StorageClass,
		})
	}
	f.Symbols = symbols
	return nil
}

// Symbol is similar to COFFSymbol with Name field replaced
// by Go string. Symbol also does not have NumberOfAuxSymbols.
type Symbol struct {
	Name          string
	Value         uint32
	SectionNumber int16
	Type          uint16
	StorageClass  uint8
}
