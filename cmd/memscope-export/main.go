// Command memscope-export loads a binary snapshot written by
// Engine.ExportBinary (§4.K) and re-emits it as the five JSON analysis
// bundles of §4.L, or prints summary statistics.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orizon-lang/memscope/internal/binfmt"
	"github.com/orizon-lang/memscope/internal/binio"
	"github.com/orizon-lang/memscope/internal/export"
)

func main() {
	var (
		inputPath  string
		outputBase string
		summary    bool
		showVer    bool
	)

	flag.StringVar(&inputPath, "in", "", "path to a binary snapshot (.bin) written by export_binary")
	flag.StringVar(&outputBase, "out", "", "base name for the five JSON bundle files (defaults to -in without its extension)")
	flag.BoolVar(&summary, "summary", false, "print record counts and exit without writing bundles")
	flag.BoolVar(&showVer, "version", false, "print the binary container format version this tool reads")
	flag.Parse()

	if showVer {
		fmt.Println(versionString())
		return
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "memscope-export: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	records, err := binio.ReadBinary(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memscope-export: reading %s: %v\n", inputPath, err)
		os.Exit(1)
	}

	if summary {
		fmt.Printf("%d records\n", len(records))
		return
	}

	if outputBase == "" {
		outputBase = trimExt(inputPath)
	}

	src := &staticSource{records: records}

	exporter := export.New(src, nil)

	result, err := exporter.ExportAnalysisBundles(outputBase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memscope-export: export finished in state %s: %v\n", result.State, err)

		for _, b := range result.Bundles {
			if b.Err != nil {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", b.Name, b.Err)
			}
		}

		os.Exit(1)
	}

	for _, b := range result.Bundles {
		fmt.Printf("wrote %s\n", b.Path)
	}
}

func trimExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}

	return path
}

func versionString() string {
	return fmt.Sprintf("memscope binary container format %d.%d.%d (reads any %d.x file)",
		binfmt.FormatMajor, binfmt.FormatMinor, binfmt.FormatPatch, binfmt.FormatMajor)
}
