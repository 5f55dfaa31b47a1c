// Command cnmsc is a thin host harness around the cnms compiler library:
// it reads a source file, applies resource-pool overrides from the
// environment (optionally loaded from a .env file), runs Compile, and
// prints diagnostics and the resulting symbol table to the console. It
// is ambient plumbing around the library, not part of the compiler
// itself; no back end or VM lives here.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ebbsen/cnms"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "cnmsc: warning: failed to load .env: %v\n", err)
	}

	fs := pflag.NewFlagSet("cnmsc", pflag.ContinueOnError)
	fs.Usage = func() { printUsage(fs) }

	codeSize := fs.IntP("code-size", "c", envInt("CNMS_CODE_SIZE", 1<<16), "size in bytes of the output code buffer")
	maxTypes := fs.Int("max-types", envInt("CNMS_MAX_TYPES", cnms.DefaultMaxTypeLevels), "bound on the cumulative type-level pool")
	maxUserTypes := fs.Int("max-usertypes", envInt("CNMS_MAX_USERTYPES", cnms.DefaultMaxUserTypes), "bound on struct/enum/typedef/fn registrations")
	maxRecursion := fs.Int("max-recursion", envInt("CNMS_MAX_RECURSION", cnms.DefaultMaxRecursionDepth), "bound on type/expression parsing recursion depth")
	debug := fs.BoolP("debug", "d", false, "dump compiler state (user types, code bytes written) after compiling")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	path := fs.Arg(0)

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cnmsc: %v\n", err)
		os.Exit(1)
	}

	code := make([]byte, *codeSize)
	c := cnms.NewCompiler(src, code,
		cnms.WithMaxTypeLevels(*maxTypes),
		cnms.WithMaxUserTypes(*maxUserTypes),
		cnms.WithMaxRecursionDepth(*maxRecursion),
		cnms.WithDiagnosticSink(func(d cnms.Diagnostic) {
			fmt.Fprint(os.Stderr, d.Format())
		}),
	)

	result := c.Compile(path)

	if *debug {
		fmt.Fprintln(os.Stderr, c.DumpState())
	}

	fmt.Printf("%d symbol(s), %d byte(s) of code, %d warning(s)\n",
		len(result.Symbols), result.BytesWritten, result.Warnings)
	for _, sym := range result.Symbols {
		fmt.Printf("  %-8s %s\n", sym.Kind, sym.Name)
	}

	if result.Errors > 0 {
		fmt.Fprintf(os.Stderr, "cnmsc: %d error(s)\n", result.Errors)
		os.Exit(1)
	}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: cnmsc [flags] <source-file>\n\nflags:\n")
	fs.PrintDefaults()
}
