// Command takc is the front end's CLI entry point: parse flags, build one
// immutable config.Options, run the source-load -> lexer -> parser ->
// postparser -> checker pipeline, and print diagnostics. Grounded on the
// teacher's cmd/esbuild/main.go wiring shape (parse args, build Options,
// run pipeline, flush the log, map to an exit code), with the argument
// parser itself replaced by a spf13/cobra + spf13/pflag command tree
// (grounded in termfx-morfx's demo/cmd/main.go cobra usage and the
// leapstack-labs/leapsql manifest's cobra/pflag pairing) since this tool
// has no byte-for-byte CLI-compatibility requirement pinning it to a
// hand-rolled matcher the way esbuild's does.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tak-lang/tak/internal/ast"
	"github.com/tak-lang/tak/internal/checker"
	"github.com/tak-lang/tak/internal/config"
	"github.com/tak-lang/tak/internal/entity"
	"github.com/tak-lang/tak/internal/exitcode"
	"github.com/tak-lang/tak/internal/logger"
	"github.com/tak-lang/tak/internal/parser"
	"github.com/tak-lang/tak/internal/postparser"
	"github.com/tak-lang/tak/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitcode.Exit(err)
	}
}

type cliFlags struct {
	output      string
	arch        string
	optLevel    int
	logLevel    string
	warnIsError bool
	maxErrors   int
	maxJobs     int
	timeActions bool
	color       string
	dumpIR      bool
	dumpSymbols bool
	dumpAST     bool
	dumpTypes   bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:           "takc [flags] <input-file>",
		Short:         "Compile a tak source file's front end to a checked, typed AST",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "output path (unused: code generation is out of scope)")
	f.StringVar(&flags.arch, "arch", "x86_64", "target architecture tag threaded into config.Options")
	f.IntVar(&flags.optLevel, "opt", 0, "optimization level (0, 1, or 2)")
	f.StringVar(&flags.logLevel, "log-level", "enabled", "tool diagnostic verbosity: disabled | enabled | trace")
	f.BoolVar(&flags.warnIsError, "warn-as-error", false, "treat warnings as errors")
	f.IntVar(&flags.maxErrors, "max-errors", config.DefaultMaxErrors, "stop after this many errors")
	f.IntVar(&flags.maxJobs, "max-jobs", 4, "max concurrent include-file reads")
	f.BoolVar(&flags.timeActions, "time-actions", false, "log per-stage timing (requires --log-level=trace)")
	f.StringVar(&flags.color, "color", "auto", "diagnostic color: auto | always | never")
	f.BoolVar(&flags.dumpIR, "dump-ir", false, "print a placeholder note (code generation is out of scope)")
	f.BoolVar(&flags.dumpSymbols, "dump-symbols", false, "print every resolved symbol and its type after checking")
	f.BoolVar(&flags.dumpAST, "dump-ast", false, "print the parsed top-level declaration kinds in source order")
	f.BoolVar(&flags.dumpTypes, "dump-types", false, "print every named struct type and its member list")

	return cmd
}

func run(inputPath string, flags *cliFlags) error {
	cfg := buildOptions(inputPath, flags)

	outputOpts := logger.OutputOptions{
		IncludeSource: true,
		MessageLimit:  cfg.MaxErrors,
		Color:         parseColor(flags.color),
		LogLevel:      parseLogLevel(flags.logLevel),
	}
	log := logger.NewStderrLog(outputOpts)

	sugar := newTraceLogger(flags)
	defer func() { _ = sugar.Sync() }()

	timeStage := func(stage string, fn func() error) error {
		start := time.Now()
		err := fn()
		if flags.timeActions {
			sugar.Infow("stage complete", "stage", stage, "elapsed", time.Since(start).String())
		}
		return err
	}

	rootSrc, err := source.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	tbl := entity.New()
	p := parser.New(tbl, log, cfg)

	if err := timeStage("parse", func() error {
		return p.ParseAll(inputPath, rootSrc, source.ReadFile, source.ResolveIncludePath, cfg.MaxJobs)
	}); err != nil {
		return err
	}

	if log.HasErrors() {
		log.AlmostDone()
		return exitcode.Set(fmt.Errorf("compilation failed during parsing"), 1)
	}

	postparseOK := true
	if err := timeStage("postparse", func() error {
		postparseOK = postparser.Run(p, tbl, log, source.ReadFile)
		return nil
	}); err != nil {
		return err
	}
	if !postparseOK || log.HasErrors() {
		log.AlmostDone()
		return exitcode.Set(fmt.Errorf("compilation failed during post-parsing"), 1)
	}

	checkOK := true
	if err := timeStage("check", func() error {
		checkOK = checker.Run(tbl, p.TopLevelDecls, log, cfg)
		return nil
	}); err != nil {
		return err
	}

	log.AlmostDone()

	if flags.dumpSymbols {
		dumpSymbols(tbl)
	}
	if flags.dumpAST {
		dumpAST(p.TopLevelDecls)
	}
	if flags.dumpTypes {
		dumpTypes(tbl)
	}
	if flags.dumpIR {
		fmt.Fprintln(os.Stdout, "note: --dump-ir is a no-op; intermediate-representation generation is out of this front end's scope")
	}

	if !checkOK || log.HasErrors() {
		return exitcode.Set(fmt.Errorf("compilation failed during type checking"), 1)
	}
	return nil
}

func buildOptions(inputPath string, flags *cliFlags) config.Options {
	cfg := config.Options{
		InputPath:  inputPath,
		OutputPath: flags.output,
		Arch:       flags.arch,
		OptLevel:   flags.optLevel,
		MaxErrors:  flags.maxErrors,
		MaxJobs:    flags.maxJobs,
	}
	switch flags.logLevel {
	case "trace":
		cfg.LogLevel = config.LogTrace
	case "disabled":
		cfg.LogLevel = config.LogDisabled
	default:
		cfg.LogLevel = config.LogEnabled
	}
	if flags.warnIsError {
		cfg.Flags |= config.WarnIsError
	}
	if flags.timeActions {
		cfg.Flags |= config.TimeActions
	}
	if flags.dumpIR {
		cfg.Flags |= config.DumpIR
	}
	if flags.dumpSymbols {
		cfg.Flags |= config.DumpSymbols
	}
	if flags.dumpAST {
		cfg.Flags |= config.DumpAST
	}
	if flags.dumpTypes {
		cfg.Flags |= config.DumpTypes
	}
	return cfg.WithDefaults()
}

func parseColor(v string) logger.UseColor {
	switch v {
	case "always":
		return logger.ColorAlways
	case "never":
		return logger.ColorNever
	default:
		return logger.ColorIfTerminal
	}
}

func parseLogLevel(v string) logger.LogLevel {
	if v == "disabled" {
		return logger.LevelSilent
	}
	return logger.LevelInfo
}

// newTraceLogger builds the tool-internal (not compiled-program) trace
// channel gated by --time-actions/--log-level=trace, grounded in the
// go.uber.org/zap SugaredLogger usage of the wippyai-wasm-runtime manifest
// in the retrieval pack.
func newTraceLogger(flags *cliFlags) *zap.SugaredLogger {
	if !flags.timeActions || flags.logLevel != "trace" {
		return zap.NewNop().Sugar()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

func dumpSymbols(tbl *entity.Table) {
	for _, sym := range tbl.AllSymbols() {
		fmt.Fprintf(os.Stdout, "%s :: %s\n", sym.Namespace+sym.Name, sym.Type.String())
	}
}

func dumpAST(decls []ast.Node) {
	for i := range decls {
		fmt.Fprintf(os.Stdout, "%d: %T\n", i, decls[i].Data)
	}
}

func dumpTypes(tbl *entity.Table) {
	for _, name := range tbl.AllTypeNames() {
		fmt.Fprintf(os.Stdout, "struct %s {\n", name)
		for _, m := range tbl.LookupTypeMembers(name) {
			fmt.Fprintf(os.Stdout, "  %s: %s\n", m.Name, m.Type.String())
		}
		fmt.Fprintln(os.Stdout, "}")
	}
}
