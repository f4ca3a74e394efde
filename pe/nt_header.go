package pe

import (
	"github.com/pkg/errors"

	"github.com/binspect/binspect/binbuf"
)

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type OptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [NumberOfDirectoryEntries]DataDirectory
}

type OptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [NumberOfDirectoryEntries]DataDirectory
}

func (f *File) readNTHeader(base int64) error {
	buf, err := f.readAt(base, FileHeaderSize)
	if err != nil {
		return errors.WithMessage(err, "file header")
	}
	fh, _ := binbuf.Decode[FileHeader](buf, 0)
	f.FileHeader = *fh
	return f.readOptionalHeader(base + FileHeaderSize)
}

// readOptionalHeader classifies the 32- vs 64-bit shape by
// SizeOfOptionalHeader. COFF objects carry no optional header at all;
// any other size is structurally impossible.
func (f *File) readOptionalHeader(offset int64) error {
	switch f.FileHeader.SizeOfOptionalHeader {
	case 0:
		return nil
	case OptionalHeader64Size:
		buf, err := f.readAt(offset, OptionalHeader64Size)
		if err != nil {
			return errors.WithMessage(err, "PE32+ optional header")
		}
		oh, _ := binbuf.Decode[OptionalHeader64](buf, 0)
		if oh.Magic != OptionalHeaderMagic64 {
			return errors.WithMessagef(ErrInvalidSignature, "optional header magic %#x", oh.Magic)
		}
		f.OptionalHeader = oh
		f.Is64 = true
		return nil
	case OptionalHeader32Size:
		buf, err := f.readAt(offset, OptionalHeader32Size)
		if err != nil {
			return errors.WithMessage(err, "PE32 optional header")
		}
		oh, _ := binbuf.Decode[OptionalHeader32](buf, 0)
		if oh.Magic != OptionalHeaderMagic32 {
			return errors.WithMessagef(ErrInvalidSignature, "optional header magic %#x", oh.Magic)
		}
		f.OptionalHeader = oh
		return nil
	default:
		return errors.Errorf("pe: optional header size %d matches neither PE32(%d) nor PE32+(%d)",
			f.FileHeader.SizeOfOptionalHeader, OptionalHeader32Size, OptionalHeader64Size)
	}
}

// DataDirectory returns the fixed-slot directory at index, or nil when
// the index is out of range, the optional header is absent, or
// NumberOfRvaAndSizes does not cover the slot.
func (f *File) DataDirectory(index int) *DataDirectory {
	if index < 0 || index >= NumberOfDirectoryEntries {
		return nil
	}

	var ddlen uint32
	var dd *DataDirectory
	switch oh := f.OptionalHeader.(type) {
	case *OptionalHeader64:
		ddlen = oh.NumberOfRvaAndSizes
		dd = &oh.DataDirectory[index]
	case *OptionalHeader32:
		ddlen = oh.NumberOfRvaAndSizes
		dd = &oh.DataDirectory[index]
	default:
		return nil
	}

	if ddlen < uint32(index)+1 {
		return nil
	}
	return dd
}

func (f *File) imageBase() uint64 {
	switch oh := f.OptionalHeader.(type) {
	case *OptionalHeader64:
		return oh.ImageBase
	case *OptionalHeader32:
		return uint64(oh.ImageBase)
	}
	return 0
}

// Subsystem returns the optional header subsystem field, 0 when no
// optional header is present.
func (f *File) Subsystem() uint16 {
	switch oh := f.OptionalHeader.(type) {
	case *OptionalHeader64:
		return oh.Subsystem
	case *OptionalHeader32:
		return oh.Subsystem
	}
	return 0
}
