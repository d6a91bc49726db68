package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aplc.dev/aplc/pkg/cfg"
	"aplc.dev/aplc/pkg/codegen"
	"aplc.dev/aplc/pkg/lexer"
	"aplc.dev/aplc/pkg/parser"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The APL Compiler compiles a single-function-rich, C-like source file into
MIPS-like assembly text in one pass: tokenize, build the AST and symbol
table, lower to a per-function control-flow graph, then generate code.
`, "\n", " ")

var Aplc = cli.New(Description).
	WithArg(cli.NewArg("input", "The source (.apl) file to be compiled")).
	WithOption(cli.NewOption("dump-ast", "Writes the parsed AST to <input>.ast").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("dump-sym", "Writes the symbol table to <input>.sym").
		WithType(cli.TypeBool)).
	WithOption(cli.NewOption("dump-cfg", "Writes the per-function CFG to <input>.cfg").
		WithType(cli.TypeBool)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	source := args[0]
	extension := filepath.Ext(source)
	base := strings.TrimSuffix(source, extension)

	content, err := os.ReadFile(source)
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}

	tokens, err := lexer.Tokenize(content)
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'tokenize' pass: %s\n", err)
		return -1
	}

	program, global, err := parser.New(tokens).Parse()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'parsing' pass: %s\n", err)
		return -1
	}

	if _, enabled := options["dump-ast"]; enabled {
		if err := writeFile(base+".ast", program.AsTree()); err != nil {
			fmt.Printf("ERROR: Unable to write AST dump: %s\n", err)
			return -1
		}
	}

	if _, enabled := options["dump-sym"]; enabled {
		if err := writeFile(base+".sym", global.AsText()); err != nil {
			fmt.Printf("ERROR: Unable to write symbol table dump: %s\n", err)
			return -1
		}
	}

	cfgProgram := cfg.Build(program)

	if _, enabled := options["dump-cfg"]; enabled {
		if err := writeFile(base+".cfg", cfgProgram.AsText()); err != nil {
			fmt.Printf("ERROR: Unable to write CFG dump: %s\n", err)
			return -1
		}
	}

	generator := codegen.NewCodeGenerator(cfgProgram, global)
	assembly, err := generator.Generate()
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return -1
	}

	if err := writeFile(base+".s", assembly); err != nil {
		fmt.Printf("ERROR: Unable to write output file: %s\n", err)
		return -1
	}

	return 0
}

func writeFile(path, content string) error {
	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer output.Close()

	_, err = output.WriteString(content)
	return err
}

func main() { os.Exit(Aplc.Run(os.Args, os.Stdout)) }
