package compiler

// Compile lexes, parses, and generates AArch64 Darwin assembly text for a
// single translation unit. It never calls os.Exit or writes to stderr: the
// caller decides how to report a LexError, ParseError, or CodegenError.
//
// Turning the returned assembly into a Mach-O binary is the job of an
// external assembler and linker, invoked by the CLI driver; this package's
// contract ends at assembly text.
func Compile(src string) (string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return "", err
	}

	stmts, err := Parse(tokens, src)
	if err != nil {
		return "", err
	}

	assembly, err := Generate(stmts)
	if err != nil {
		return "", err
	}

	return assembly, nil
}
