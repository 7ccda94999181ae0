package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-tblgen/pkg/ast"
	"github.com/raymyers/ralph-tblgen/pkg/diag"
	"github.com/raymyers/ralph-tblgen/pkg/dump"
	"github.com/raymyers/ralph-tblgen/pkg/eval"
	"github.com/raymyers/ralph-tblgen/pkg/lexer"
	"github.com/raymyers/ralph-tblgen/pkg/parser"
	"github.com/raymyers/ralph-tblgen/pkg/preproc"
	"github.com/raymyers/ralph-tblgen/pkg/record"
)

var version = "0.1.0"

// Debug flags for dumping intermediate stages
var (
	dParse      bool
	lineMarkers bool
	verbose     bool
)

// Preprocessor options
var (
	includePaths   []string
	defineFlags    []string
	undefineFlags  []string
	preprocessOnly bool // -E flag
)

// Output options
var (
	emitFormat string
	outputFile string
	configFile string
)

// emitFormats lists the accepted --emit values
var emitFormats = []string{"records", "json", "yaml"}

// projectConfig is the YAML project file read by --config. Flags given on
// the command line take precedence over its entries.
type projectConfig struct {
	IncludeDirs []string `yaml:"include_dirs"`
	Defines     []string `yaml:"defines"`
	Emit        string   `yaml:"emit"`
	Output      string   `yaml:"output"`
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	// Accept single-dash spellings such as -dparse
	rootCmd.SetArgs(normalizeFlags(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

// singleDashFlags lists long flags that may also be written with one dash
var singleDashFlags = []string{"dparse", "emit", "line-markers", "verbose"}

// normalizeFlags converts single-dash long flags like -dparse to --dparse
func normalizeFlags(args []string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		for _, flagName := range singleDashFlags {
			if arg == "-"+flagName || strings.HasPrefix(arg, "-"+flagName+"=") {
				result[i] = "-" + arg
				break
			}
		}
		if result[i] == "" {
			result[i] = arg
		}
	}
	return result
}

// wordSepNormalizeFunc lets --line_markers and --line-markers name the
// same flag.
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ralph-tblgen [file]",
		Short: "ralph-tblgen evaluates TableGen record descriptions",
		Long: `ralph-tblgen preprocesses, parses and evaluates a TableGen source
file and prints the resulting classes and defs, or a JSON or YAML
dump of the defs.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			filename := args[0]

			if err := applyConfig(cmd.Flags()); err != nil {
				return report(errOut, err)
			}
			if !validEmit(emitFormat) {
				return report(errOut, errors.Errorf("unknown --emit format %q (want one of %s)",
					emitFormat, strings.Join(emitFormats, ", ")))
			}

			// Everything is rendered to a buffer first so a failing run
			// leaves no partial output behind.
			var buf bytes.Buffer
			var err error
			switch {
			case preprocessOnly:
				err = doPreprocessOnly(filename, &buf, errOut)
			case dParse:
				err = doParse(filename, &buf, errOut)
			default:
				err = doEmit(filename, &buf, errOut)
			}
			if err != nil {
				return report(errOut, err)
			}
			return report(errOut, writeOutput(buf.Bytes(), out))
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.Flags().SetNormalizeFunc(wordSepNormalizeFunc)

	// Add debug flags
	rootCmd.Flags().BoolVarP(&dParse, "dparse", "", false, "Dump the AST after parsing")
	rootCmd.Flags().BoolVar(&lineMarkers, "line-markers", false, "Emit # line markers with -E")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Trace each stage on stderr")

	// Add preprocessor flags
	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro NAME")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro NAME")
	rootCmd.Flags().BoolVarP(&preprocessOnly, "preprocess", "E", false, "Preprocess only, output to stdout")

	// Add output flags
	rootCmd.Flags().StringVar(&emitFormat, "emit", "records", "Output format: records, json or yaml")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to FILE instead of stdout")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Read defaults from a YAML project file")

	return rootCmd
}

func validEmit(format string) bool {
	for _, f := range emitFormats {
		if f == format {
			return true
		}
	}
	return false
}

// applyConfig loads --config and fills every option not set on the
// command line.
func applyConfig(flags *pflag.FlagSet) error {
	if configFile == "" {
		return nil
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return errors.Wrap(err, "reading config")
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "parsing config %s", configFile)
	}
	if !flags.Changed("include") {
		includePaths = cfg.IncludeDirs
	}
	if !flags.Changed("define") {
		defineFlags = cfg.Defines
	}
	if !flags.Changed("emit") && cfg.Emit != "" {
		emitFormat = cfg.Emit
	}
	if !flags.Changed("output") && cfg.Output != "" {
		outputFile = cfg.Output
	}
	return nil
}

// report prints err on errOut and passes it through. Diagnostics already
// carry their location; anything else gets the program prefix.
func report(errOut io.Writer, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := diag.KindOf(err); ok {
		fmt.Fprintf(errOut, "%v\n", err)
	} else {
		fmt.Fprintf(errOut, "ralph-tblgen: error: %v\n", err)
	}
	return err
}

func tracef(errOut io.Writer, format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(errOut, "ralph-tblgen: "+format+"\n", args...)
	}
}

// buildPreprocessorOptions creates preproc.Options from CLI flags
func buildPreprocessorOptions() preproc.Options {
	return preproc.Options{
		IncludePaths: includePaths,
		Defines:      defineFlags,
		Undefines:    undefineFlags,
	}
}

func preprocessFile(filename string, errOut io.Writer) (*preproc.Result, error) {
	tracef(errOut, "preprocessing %s", filename)
	res, err := preproc.NewPreprocessor(buildPreprocessorOptions()).PreprocessFile(filename)
	if err != nil {
		return nil, err
	}
	for _, dep := range res.Deps {
		tracef(errOut, "included %s", dep)
	}
	return res, nil
}

// parseFile preprocesses and parses a TableGen file, returning the AST
func parseFile(filename string, errOut io.Writer) (*ast.File, error) {
	res, err := preprocessFile(filename, errOut)
	if err != nil {
		return nil, err
	}
	p := parser.New(lexer.New(res.Text))
	p.SetLocator(res.Loc)
	file, err := p.ParseFile()
	if err != nil {
		return nil, err
	}
	tracef(errOut, "parsed %d statements", len(file.Stmts))
	return file, nil
}

// doPreprocessOnly writes the preprocessed text (-E flag)
func doPreprocessOnly(filename string, out, errOut io.Writer) error {
	res, err := preprocessFile(filename, errOut)
	if err != nil {
		return err
	}
	fmt.Fprint(out, res.Format(lineMarkers))
	return nil
}

// doParse prints the parsed AST (-dparse flag)
func doParse(filename string, out, errOut io.Writer) error {
	file, err := parseFile(filename, errOut)
	if err != nil {
		return err
	}
	ast.NewPrinter(out).PrintFile(file)
	return nil
}

// doEmit evaluates the file and prints its records in the --emit format
func doEmit(filename string, out, errOut io.Writer) error {
	file, err := parseFile(filename, errOut)
	if err != nil {
		return err
	}

	rk := record.NewRecordKeeper()
	rk.DumpOut = errOut
	ev := eval.New(rk)
	if verbose {
		ev.SetTrace(errOut)
	}
	if err := ev.EvalFile(file); err != nil {
		return err
	}
	tracef(errOut, "%d classes, %d defs", len(rk.Classes()), len(rk.Defs()))

	switch emitFormat {
	case "json":
		return dump.WriteJSON(out, rk)
	case "yaml":
		return dump.WriteYAML(out, rk)
	}
	record.NewPrinter(out).PrintRecords(rk)
	return nil
}

// writeOutput sends the rendered output to -o or to out
func writeOutput(data []byte, out io.Writer) error {
	if outputFile == "" {
		_, err := out.Write(data)
		return err
	}
	return errors.Wrapf(os.WriteFile(outputFile, data, 0644), "writing %s", outputFile)
}
