// binspect prints a structural report for a PE image, COFF object or
// ZIP archive without executing or extracting anything.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/h2non/filetype"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/binspect/binspect/pe"
	"github.com/binspect/binspect/zipfile"
)

type options struct {
	JSON    bool `short:"j" long:"json" description:"emit the report as JSON"`
	Verbose bool `short:"v" long:"verbose" description:"list every imported and exported symbol"`

	Args struct {
		File string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

type peSection struct {
	Name           string
	Flags          string
	RawSize        uint32
	VirtualAddress uint32
	VirtualSize    uint32
}

type peReport struct {
	Machine         string
	Subsystem       string `json:",omitempty"`
	Is64            bool
	EntryPoint      uint32
	CompilationTime uint32
	Sections        []peSection
	Imports         map[string]int
	DelayImports    map[string]int `json:",omitempty"`
	Exports         int
	OverlayOffset   int64  `json:",omitempty"`
	OverlaySize     int64  `json:",omitempty"`
	OverlayType     string `json:",omitempty"`
}

type zipEntry struct {
	Name             string
	Method           string
	CompressedSize   uint64
	UncompressedSize uint64
	Modified         string
	Encrypted        bool   `json:",omitempty"`
	AES              string `json:",omitempty"`
}

type zipReport struct {
	Comment          string `json:",omitempty"`
	Files            int
	CompressedSize   uint64
	UncompressedSize uint64
	Entries          []zipEntry
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	kind, err := sniff(opts.Args.File)
	if err != nil {
		log.WithError(err).Fatal("cannot read input")
	}

	switch kind {
	case "zip":
		err = reportZIP(opts)
	default:
		// PE images, COFF objects and anything else the PE parser can
		// classify from its leading bytes.
		err = reportPE(opts)
	}
	if err != nil {
		log.WithError(err).Fatal("inspection failed")
	}
}

// sniff classifies the file from its leading bytes only.
func sniff(name string) (string, error) {
	fd, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer fd.Close()
	head := make([]byte, 1024)
	n, err := fd.Read(head)
	if n == 0 && err != nil {
		return "", errors.WithMessage(err, name)
	}
	kind, _ := filetype.Match(head[:n])
	return kind.Extension, nil
}

func reportPE(opts options) error {
	f, err := pe.NewFile(opts.Args.File)
	if err != nil {
		return err
	}
	defer f.Close()

	report := peReport{
		Machine:         pe.MachineName(f.FileHeader.Machine),
		Is64:            f.Is64,
		CompilationTime: f.FileHeader.TimeDateStamp,
		Imports:         map[string]int{},
	}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		report.EntryPoint = oh.AddressOfEntryPoint
		report.Subsystem = pe.SubsystemName(f.Subsystem())
	case *pe.OptionalHeader64:
		report.EntryPoint = oh.AddressOfEntryPoint
		report.Subsystem = pe.SubsystemName(f.Subsystem())
	}

	for _, s := range f.Sections {
		report.Sections = append(report.Sections, peSection{
			Name:           s.Name,
			Flags:          s.Flags(),
			RawSize:        s.Size,
			VirtualAddress: s.VirtualAddress,
			VirtualSize:    s.VirtualSize,
		})
	}

	ft, err := f.LookupFunctionTable()
	if err != nil {
		return err
	}
	for dll, fns := range ft.Imports {
		report.Imports[dll] = len(fns)
	}
	if len(ft.DelayImports) > 0 {
		report.DelayImports = map[string]int{}
		for dll, fns := range ft.DelayImports {
			report.DelayImports[dll] = len(fns)
		}
	}
	report.Exports = len(ft.Exports)

	if data, err := f.Overlay(); err == nil {
		report.OverlayOffset = f.OverlayOffset()
		report.OverlaySize = int64(len(data))
		if k, _ := filetype.Match(data); k != filetype.Unknown {
			report.OverlayType = k.MIME.Value
		}
	} else if !errors.Is(err, pe.ErrNoOverlay) {
		return err
	}

	if opts.JSON {
		return emitJSON(&report)
	}

	fmt.Printf("%s: %s", opts.Args.File, report.Machine)
	if report.Subsystem != "" {
		fmt.Printf(", %s", report.Subsystem)
	}
	fmt.Println()
	fmt.Printf("entry point 0x%x\n", report.EntryPoint)
	for _, s := range report.Sections {
		fmt.Printf("  %-8s %-3s raw %-10s va 0x%08x vsize %s\n",
			s.Name, s.Flags, humanize.IBytes(uint64(s.RawSize)),
			s.VirtualAddress, humanize.IBytes(uint64(s.VirtualSize)))
	}
	printFunctions("imports", ft.Imports, opts.Verbose)
	printFunctions("delay imports", ft.DelayImports, opts.Verbose)
	if len(ft.Exports) > 0 {
		fmt.Printf("exports: %d symbols\n", len(ft.Exports))
		if opts.Verbose {
			for _, e := range ft.Exports {
				name := e.Name
				if e.ForwardName != "" {
					name += " -> " + e.ForwardName
				}
				fmt.Printf("  #%-5d %s\n", e.Ordinal, name)
			}
		}
	}
	if report.OverlaySize > 0 {
		fmt.Printf("overlay: %s at offset 0x%x", humanize.IBytes(uint64(report.OverlaySize)), report.OverlayOffset)
		if report.OverlayType != "" {
			fmt.Printf(" (%s)", report.OverlayType)
		}
		fmt.Println()
	}
	return nil
}

func printFunctions(label string, table map[string][]pe.Function, verbose bool) {
	if len(table) == 0 {
		return
	}
	dlls := make([]string, 0, len(table))
	for dll := range table {
		dlls = append(dlls, dll)
	}
	sort.Strings(dlls)
	fmt.Printf("%s: %d modules\n", label, len(dlls))
	for _, dll := range dlls {
		fmt.Printf("  %s (%d)\n", dll, len(table[dll]))
		if verbose {
			for _, fn := range table[dll] {
				fmt.Printf("    %s\n", fn.Name)
			}
		}
	}
}

func reportZIP(opts options) error {
	r, err := zipfile.OpenReader(opts.Args.File)
	if err != nil {
		return err
	}
	defer r.Close()

	report := zipReport{
		Comment:          r.Comment,
		Files:            len(r.Files),
		CompressedSize:   r.CompressedSize,
		UncompressedSize: r.UncompressedSize,
	}
	for i := range r.Files {
		f := &r.Files[i]
		report.Entries = append(report.Entries, zipEntry{
			Name:             f.Name,
			Method:           zipfile.MethodName(f.Method),
			CompressedSize:   f.CompressedSize,
			UncompressedSize: f.UncompressedSize,
			Modified:         f.Modified.Format("2006-01-02 15:04:05"),
			Encrypted:        f.IsEncrypted(),
			AES:              f.AESText(),
		})
	}

	if opts.JSON {
		return emitJSON(&report)
	}

	fmt.Printf("%s: %d files, %s compressed, %s uncompressed\n",
		opts.Args.File, report.Files,
		humanize.IBytes(report.CompressedSize), humanize.IBytes(report.UncompressedSize))
	if report.Comment != "" {
		fmt.Printf("comment: %s\n", report.Comment)
	}
	for _, e := range report.Entries {
		extra := ""
		if e.Encrypted {
			extra = " encrypted"
			if e.AES != "" {
				extra = " " + e.AES
			}
		}
		fmt.Printf("  %-10s %10s -> %10s  %s  %s%s\n",
			e.Method, humanize.IBytes(e.CompressedSize), humanize.IBytes(e.UncompressedSize),
			e.Modified, e.Name, extra)
	}
	return nil
}

func emitJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", data)
	return nil
}
