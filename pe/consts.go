package pe

const (
	ImageDOSSignature   = 0x5A4D // MZ
	ImageDOSZMSignature = 0x4D5A // ZM
)

// The 4-byte ASCII tag "PE\0\0" the stub header points at.
const ImageNTHeaderSignature = 0x00004550

const (
	OptionalHeaderMagic32 = 0x10b
	OptionalHeaderMagic64 = 0x20b
)

// IMAGE_DIRECTORY_ENTRY constants
const (
	DataDirExportTable           = 0
	DataDirImportTable           = 1
	DataDirResourceTable         = 2
	DataDirExceptionTable        = 3
	DataDirCertificateTable      = 4
	DataDirBaseRelocationTable   = 5
	DataDirDebug                 = 6
	DataDirArchitecture          = 7
	DataDirGlobalPtr             = 8
	DataDirTLSTable              = 9
	DataDirLoadConfigTable       = 10
	DataDirBoundImport           = 11
	DataDirIAT                   = 12
	DataDirDelayImportDescriptor = 13
	DataDirCLRHeader             = 14
	DataDirReserved              = 15

	NumberOfDirectoryEntries = 16
)

const (
	ImageScnMemExecute = 0x20000000
	ImageScnMemRead    = 0x40000000
	ImageScnMemWrite   = 0x80000000
)

const (
	DOSHeaderSize  = 64
	FileHeaderSize = 20

	// Sizes of the two optional header shapes including the 16-slot
	// directory table; SizeOfOptionalHeader is classified against these.
	OptionalHeader32Size = 224
	OptionalHeader64Size = 240
)

// Raw section data above this ceiling is recorded in the section table
// but refused by readSectionData.
const SectionSizeLimit = 256 * 1024 * 1024

// Default ceiling for Overlay.
const LimitOverlaySize = 64 * 1024 * 1024

const (
	imageOrdinalFlag32  = uint32(0x80000000)
	imageOrdinalFlag64  = uint64(0x8000000000000000)
	addressMask32       = uint32(0x7fffffff)
	addressMask64       = uint64(0x7fffffffffffffff)
	maxImportNameLength = 0x200
	maxExportNameLength = 0x200
)

// Ordinal value of an ExportedSymbol before the ordinal table has
// assigned it one.
const OrdinalUnset = 0xFFFF

// Machine types.
// https://docs.microsoft.com/en-us/windows/win32/debug/pe-format#machine-types
const (
	MachineUnknown   = 0x0
	MachineI386      = 0x014c
	MachineR3000     = 0x0162
	MachineR4000     = 0x0166
	MachineR10000    = 0x0168
	MachineWCEMIPSV2 = 0x0169
	MachineAlpha     = 0x0184
	MachineSH3       = 0x01a2
	MachineSH3DSP    = 0x01a3
	MachineSH4       = 0x01a6
	MachineSH5       = 0x01a8
	MachineARM       = 0x01c0
	MachineThumb     = 0x01c2
	MachineARMNT     = 0x01c4
	MachineAM33      = 0x01d3
	MachinePowerPC   = 0x01f0
	MachinePowerPCFP = 0x01f1
	MachineIA64      = 0x0200
	MachineMIPS16    = 0x0266
	MachineAlpha64   = 0x0284
	MachineMIPSFPU   = 0x0366
	MachineMIPSFPU16 = 0x0466
	MachineEBC       = 0x0ebc
	MachineRISCV32   = 0x5032
	MachineRISCV64   = 0x5064
	MachineRISCV128  = 0x5128
	MachineAMD64     = 0x8664
	MachineM32R      = 0x9041
	MachineARM64     = 0xaa64
	MachineARM64EC   = 0xa641
	MachineARM64X    = 0xa64e
)

var machineNames = map[uint16]string{
	MachineUnknown:   "UNKNOWN",
	MachineI386:      "Intel 386",
	MachineR3000:     "MIPS R3000",
	MachineR4000:     "MIPS R4000",
	MachineR10000:    "MIPS R10000",
	MachineWCEMIPSV2: "MIPS WCE v2",
	MachineAlpha:     "Alpha AXP",
	MachineSH3:       "SH3",
	MachineSH3DSP:    "SH3 DSP",
	MachineSH4:       "SH4",
	MachineSH5:       "SH5",
	MachineARM:       "ARM",
	MachineThumb:     "ARM Thumb",
	MachineARMNT:     "ARM Thumb-2",
	MachineAM33:      "AM33",
	MachinePowerPC:   "PowerPC",
	MachinePowerPCFP: "PowerPC FP",
	MachineIA64:      "IA-64",
	MachineMIPS16:    "MIPS16",
	MachineAlpha64:   "Alpha 64",
	MachineMIPSFPU:   "MIPS FPU",
	MachineMIPSFPU16: "MIPS16 FPU",
	MachineEBC:       "EFI Byte Code",
	MachineRISCV32:   "RISC-V 32",
	MachineRISCV64:   "RISC-V 64",
	MachineRISCV128:  "RISC-V 128",
	MachineAMD64:     "AMD64",
	MachineM32R:      "M32R",
	MachineARM64:     "ARM64",
	MachineARM64EC:   "ARM64EC",
	MachineARM64X:    "ARM64X",
}

// MachineName returns a human readable name for a file header machine
// field, or "UNKNOWN" if the value is not a known machine type.
func MachineName(m uint16) string {
	if name, ok := machineNames[m]; ok {
		return name
	}
	return "UNKNOWN"
}

var subsystemNames = map[uint16]string{
	0:  "UNKNOWN",
	1:  "NATIVE",
	2:  "WINDOWS_GUI",
	3:  "WINDOWS_CUI",
	5:  "OS2_CUI",
	7:  "POSIX_CUI",
	8:  "NATIVE_WINDOWS",
	9:  "WINDOWS_CE_GUI",
	10: "EFI_APPLICATION",
	11: "EFI_BOOT_SERVICE_DRIVER",
	12: "EFI_RUNTIME_DRIVER",
	13: "EFI_ROM",
	14: "XBOX",
	16: "WINDOWS_BOOT_APPLICATION",
}

func SubsystemName(s uint16) string {
	if name, ok := subsystemNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}
