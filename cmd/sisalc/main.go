// cmd/sisalc/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/viant/afs"

	"sisalc/internal/codegen"
	"sisalc/internal/compiler"
	"sisalc/internal/config"
	cerrors "sisalc/internal/errors"
	"sisalc/internal/ir"
	"sisalc/internal/lexer"
	"sisalc/internal/optimizer"
	"sisalc/internal/parser"
)

const version = "0.3.0"

type options struct {
	inputFile  string
	configFile string
	emitJSON   bool
	emitGraphML bool
	optimize   bool
	cppJSON    bool
	debug      bool
	noError    bool
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-i":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-i requires a file name")
			}
			i++
			opts.inputFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--config requires a file name")
			}
			i++
			opts.configFile = args[i]
		case "--json":
			opts.emitJSON = true
		case "--graphml":
			opts.emitGraphML = true
		case "--opt":
			opts.optimize = true
		case "--cppjson":
			opts.cppJSON = true
		case "--debug":
			opts.debug = true
		case "--noerror":
			opts.noError = true
		case "--version", "-v":
			fmt.Printf("sisalc %s\n", version)
			os.Exit(0)
		case "--help", "-h":
			showUsage()
			os.Exit(0)
		default:
			return nil, fmt.Errorf("unknown option %q (try --help)", args[i])
		}
	}
	return opts, nil
}

func showUsage() {
	fmt.Println("sisalc - Cloud Sisal compiler")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sisalc [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -i <file>        read source (or a serialized IR, *.json) from <file>;")
	fmt.Println("                   without -i the source is read from standard input")
	fmt.Println("  --json           emit the IR as JSON instead of target code")
	fmt.Println("  --graphml        emit the IR as GraphML instead of target code")
	fmt.Println("  --opt            run the optimizer on the IR before emitting")
	fmt.Println("  --cppjson        wrap the emitted C++ in a JSON envelope")
	fmt.Println("  --debug          propagate internal errors verbatim")
	fmt.Println("  --noerror        suppress runtime error wrapping in the emitted code")
	fmt.Println("  --config <file>  load compiler settings (YAML)")
	fmt.Println("  --version        show version")
}

func run(opts *options) int {
	fs := afs.New()
	ctx := context.Background()

	cfg := config.Default()
	if opts.configFile != "" {
		data, err := fs.DownloadWithURL(ctx, opts.configFile)
		if err != nil {
			return fail(opts, fmt.Errorf("cannot read config: %w", err))
		}
		if cfg, err = config.Load(data); err != nil {
			return fail(opts, fmt.Errorf("bad config: %w", err))
		}
	}
	cfg.Codegen.NoError = cfg.Codegen.NoError || opts.noError

	var input []byte
	var err error
	if opts.inputFile != "" {
		if input, err = fs.DownloadWithURL(ctx, opts.inputFile); err != nil {
			return fail(opts, fmt.Errorf("cannot read %s: %w", opts.inputFile, err))
		}
	} else {
		if input, err = io.ReadAll(os.Stdin); err != nil {
			return fail(opts, fmt.Errorf("cannot read standard input: %w", err))
		}
	}

	var module *ir.Module
	var warnings []cerrors.Warning
	if strings.HasSuffix(strings.ToLower(opts.inputFile), ".json") {
		// a pre-serialized IR skips the front end entirely
		if module, err = ir.LoadModule(input); err != nil {
			return fail(opts, err)
		}
	} else {
		if module, warnings, err = compile(string(input)); err != nil {
			return fail(opts, err)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s\n", colorize("warning: "+w.String()))
	}

	if opts.optimize {
		if err := optimizer.New(module, cfg).Optimize(); err != nil {
			return fail(opts, err)
		}
	}

	switch {
	case opts.emitJSON:
		data, err := module.MarshalJSON()
		if err != nil {
			return fail(opts, err)
		}
		fmt.Println(string(data))
	case opts.emitGraphML:
		fmt.Print(module.GraphML())
	default:
		source, err := codegen.Emit(module, cfg)
		if err != nil {
			return fail(opts, err)
		}
		if opts.cppJSON {
			envelope := map[string]interface{}{
				"errors":  []interface{}{},
				"cpp_src": strings.Split(source, "\n"),
			}
			if len(warnings) > 0 {
				var list []string
				for _, w := range warnings {
					list = append(list, w.String())
				}
				envelope["warnings"] = list
			}
			data, err := json.MarshalIndent(envelope, "", "  ")
			if err != nil {
				return fail(opts, err)
			}
			fmt.Println(string(data))
		} else {
			fmt.Print(source)
		}
	}
	return 0
}

func compile(source string) (*ir.Module, []cerrors.Warning, error) {
	scanner := lexer.NewScanner(source)
	tokens := scanner.ScanTokens()
	if scanner.HadError() {
		return nil, nil, scanner.Errors()[0]
	}
	astModule, err := parser.NewParser(tokens).Parse()
	if err != nil {
		return nil, nil, err
	}
	return compiler.Build(astModule)
}

// fail reports a fatal error: under --debug it propagates verbatim to
// stderr, otherwise a structured error document goes to stdout.
func fail(opts *options, err error) int {
	if opts.debug {
		fmt.Fprintf(os.Stderr, "%s\n", colorize("error: "+err.Error()))
		return 1
	}
	entry := map[string]interface{}{"message": err.Error()}
	if compileErr, ok := err.(*cerrors.CompileError); ok {
		entry["message"] = compileErr.Message
		entry["location"] = compileErr.Location
		entry["kind"] = string(compileErr.Type)
	}
	document := map[string]interface{}{"errors": []interface{}{entry}}
	data, marshalErr := json.MarshalIndent(document, "", "  ")
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Println(string(data))
	fmt.Fprintf(os.Stderr, "%s\n", colorize("error: "+err.Error()))
	return 1
}

// colorize highlights diagnostics when stderr is a terminal
func colorize(message string) string {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return "\x1b[31m" + message + "\x1b[0m"
	}
	return message
}
