package pe

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

// SectionHeader32 is the 40-byte on-disk section record.
type SectionHeader32 struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// fullName resolves the section name, following "/n" references into
// the COFF string table.
func (sh *SectionHeader32) fullName(st StringTable) (string, error) {
	if sh.Name[0] != '/' {
		return cString(sh.Name[:]), nil
	}
	i, err := strconv.Atoi(cString(sh.Name[1:]))
	if err != nil {
		return "", err
	}
	return st.String(uint32(i))
}

type SectionHeader struct {
	Name                 string
	VirtualSize          uint32
	VirtualAddress       uint32
	Size                 uint32
	Offset               uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type Reloc struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}

type Section struct {
	SectionHeader
	Relocs []Reloc
}

func (s *Section) Flags() (flags string) {
	if s.Characteristics&ImageScnMemRead != 0 {
		flags += "r"
	}
	if s.Characteristics&ImageScnMemExecute != 0 {
		flags += "x"
	}
	if s.Characteristics&ImageScnMemWrite != 0 {
		flags += "w"
	}
	return flags
}

const relocSize = 10

func (f *File) readSections(base int64) error {
	n := int(f.FileHeader.NumberOfSections)
	if n == 0 {
		return nil
	}
	offset := base + FileHeaderSize + int64(f.FileHeader.SizeOfOptionalHeader)
	shSize := 40
	buf, err := f.readAt(offset, n*shSize)
	if err != nil {
		return errors.WithMessage(err, "section table")
	}

	f.Sections = make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		sh, _ := binbuf.Decode[SectionHeader32](buf, i*shSize)
		name, err := sh.fullName(f.StringTable)
		if err != nil {
			return errors.WithMessagef(err, "section %d name", i)
		}
		s := &Section{SectionHeader: SectionHeader{
			Name:                 name,
			VirtualSize:          sh.VirtualSize,
			VirtualAddress:       sh.VirtualAddress,
			Size:                 sh.SizeOfRawData,
			Offset:               sh.PointerToRawData,
			PointerToRelocations: sh.PointerToRelocations,
			PointerToLineNumbers: sh.PointerToLineNumbers,
			NumberOfRelocations:  sh.NumberOfRelocations,
			NumberOfLineNumbers:  sh.NumberOfLineNumbers,
			Characteristics:      sh.Characteristics,
		}}
		if err := f.readRelocs(s); err != nil {
			return err
		}
		f.Sections = append(f.Sections, s)
	}
	return nil
}

func (f *File) readRelocs(s *Section) error {
	n := int(s.NumberOfRelocations)
	if n == 0 {
		return nil
	}
	buf, err := f.readAt(int64(s.PointerToRelocations), n*relocSize)
	if err != nil {
		return errors.WithMessagef(err, "section %q relocations", s.Name)
	}
	s.Relocs = make([]Reloc, 0, n)
	for i := 0; i < n; i++ {
		r, _ := binbuf.Decode[Reloc](buf, i*relocSize)
		s.Relocs = append(s.Relocs, *r)
	}
	return nil
}

// readSectionData loads the raw bytes of s. Sections whose stated raw
// size exceeds the hard ceiling stay listed in the section table but
// refuse the read.
func (f *File) readSectionData(s *Section) (binbuf.Buffer, error) {
	if int64(s.Size) > SectionSizeLimit {
		return binbuf.Buffer{}, errors.WithMessagef(ErrSectionTooLarge, "section %q (%d bytes)", s.Name, s.Size)
	}
	buf, err := f.readAt(int64(s.Offset), int(s.Size))
	if err != nil {
		return binbuf.Buffer{}, errors.WithMessagef(err, "section %q data", s.Name)
	}
	return buf, nil
}
