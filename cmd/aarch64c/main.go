// Command aarch64c compiles a single source file to AArch64 Darwin
// assembly and, unless told otherwise, hands the result to the system C
// compiler to assemble and link into a Mach-O binary.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/smasonuk/aarch64c/internal/compiler"
	"github.com/spf13/cobra"
)

var (
	outputPath   string
	printAST     bool
	printAsm     bool
	emitPeephole bool
)

func main() {
	root := &cobra.Command{
		Use:           "aarch64c <input.c>",
		Short:         "Compile a small C-like source file to an AArch64 Darwin binary",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&outputPath, "output", "o", "", "output binary path (default: input name without extension)")
	root.Flags().BoolVar(&printAST, "ast", false, "print the parsed AST instead of compiling")
	root.Flags().BoolVar(&printAsm, "asm", false, "print generated assembly to stdout in addition to writing it")
	root.Flags().BoolVar(&emitPeephole, "emit-peephole", false, "pipe generated assembly through the peephole optimizer before assembling")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}
	src := string(data)

	tokens, err := compiler.Lex(src)
	if err != nil {
		return reportPhaseError(err)
	}

	stmts, err := compiler.Parse(tokens, src)
	if err != nil {
		return reportPhaseError(err)
	}

	if printAST {
		for _, s := range stmts {
			fmt.Println(s)
		}
		return nil
	}

	assembly, err := compiler.Generate(stmts)
	if err != nil {
		return reportPhaseError(err)
	}

	if emitPeephole {
		assembly, err = runPeephole(assembly)
		if err != nil {
			return fmt.Errorf("peephole error: %w", err)
		}
	}

	if printAsm {
		fmt.Print(assembly)
	}

	asmPath := outputPath
	if asmPath == "" {
		asmPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	}
	asmPath += ".s"
	if err := os.WriteFile(asmPath, []byte(assembly), 0o644); err != nil {
		return fmt.Errorf("write error: %w", err)
	}

	binPath := outputPath
	if binPath == "" {
		binPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	}
	return assembleAndLink(asmPath, binPath)
}

// reportPhaseError formats a LexError or ParseError the way the rest of the
// toolchain expects on stderr: one line, `<phase> error [at line L col C]:
// <message>`. A CodegenError carries no column and is returned unchanged,
// printing through its own Error method (`codegen error: <message>`).
func reportPhaseError(err error) error {
	switch e := err.(type) {
	case *compiler.LexError:
		return fmt.Errorf("lex error [at line %d col %d]: %s", e.Line, e.Col, e.Msg)
	case *compiler.ParseError:
		return fmt.Errorf("parse error [at line %d col %d]: %s", e.Line, e.Col, e.Msg)
	case *compiler.CodegenError:
		return err
	default:
		return err
	}
}

// runPeephole shells out to the external peephole optimizer, an out-of-core
// collaborator that strips adjacent no-op store/load pairs from the
// generated text. It is resolved from PATH, never vendored into this repo.
func runPeephole(assembly string) (string, error) {
	path, err := exec.LookPath("aarch64-peephole")
	if err != nil {
		return "", fmt.Errorf("aarch64-peephole not found on PATH: %w", err)
	}
	cmd := exec.Command(path)
	cmd.Stdin = strings.NewReader(assembly)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// assembleAndLink hands the generated assembly to the system C compiler,
// which both assembles and links it into a Mach-O executable. Using cc as
// the assembler/linker front end is the same out-of-core boundary sicpu's
// own driver draws around "whatever turns assembly into bytes."
func assembleAndLink(asmPath, binPath string) error {
	cc := exec.Command("cc", "-o", binPath, asmPath)
	cc.Stdout = os.Stdout
	cc.Stderr = os.Stderr
	if err := cc.Run(); err != nil {
		return fmt.Errorf("assembler error: %w", err)
	}
	return nil
}
