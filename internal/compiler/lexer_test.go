package compiler

import (
	"testing"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
		wantErr  bool
	}{
		{
			name:  "Empty",
			input: "",
			expected: []Token{
				{Type: EOF, Lexeme: "", Line: 1, Col: 1},
			},
		},
		{
			name:  "Basic Tokens",
			input: "+ - * / % & && || ! = == != < > <= >=",
			expected: []Token{
				{Type: PLUS, Lexeme: "+", Line: 1, Col: 1},
				{Type: MINUS, Lexeme: "-", Line: 1, Col: 3},
				{Type: STAR, Lexeme: "*", Line: 1, Col: 5},
				{Type: SLASH, Lexeme: "/", Line: 1, Col: 7},
				{Type: PERCENT, Lexeme: "%", Line: 1, Col: 9},
				{Type: AMP, Lexeme: "&", Line: 1, Col: 11},
				{Type: AND_LOGICAL, Lexeme: "&&", Line: 1, Col: 13},
				{Type: OR_LOGICAL, Lexeme: "||", Line: 1, Col: 16},
				{Type: NOT, Lexeme: "!", Line: 1, Col: 19},
				{Type: ASSIGN, Lexeme: "=", Line: 1, Col: 21},
				{Type: EQUALS, Lexeme: "==", Line: 1, Col: 23},
				{Type: NOT_EQ, Lexeme: "!=", Line: 1, Col: 26},
				{Type: LESS, Lexeme: "<", Line: 1, Col: 29},
				{Type: GREATER, Lexeme: ">", Line: 1, Col: 31},
				{Type: LESS_EQ, Lexeme: "<=", Line: 1, Col: 33},
				{Type: GREATER_EQ, Lexeme: ">=", Line: 1, Col: 36},
				{Type: EOF, Lexeme: "", Line: 1, Col: 38},
			},
		},
		{
			name:    "Bare pipe is not a valid token",
			input:   "a | b",
			wantErr: true,
		},
		{
			name:  "Keywords and Identifiers",
			input: "int char void if else while for return struct enum break variableName _under_score",
			expected: []Token{
				{Type: INT, Lexeme: "int", Line: 1, Col: 1},
				{Type: CHAR, Lexeme: "char", Line: 1, Col: 5},
				{Type: VOID, Lexeme: "void", Line: 1, Col: 10},
				{Type: IF, Lexeme: "if", Line: 1, Col: 15},
				{Type: ELSE, Lexeme: "else", Line: 1, Col: 18},
				{Type: WHILE, Lexeme: "while", Line: 1, Col: 23},
				{Type: FOR, Lexeme: "for", Line: 1, Col: 29},
				{Type: RETURN, Lexeme: "return", Line: 1, Col: 33},
				{Type: STRUCT, Lexeme: "struct", Line: 1, Col: 40},
				{Type: ENUM, Lexeme: "enum", Line: 1, Col: 47},
				{Type: BREAK, Lexeme: "break", Line: 1, Col: 52},
				{Type: IDENTIFIER, Lexeme: "variableName", Line: 1, Col: 58},
				{Type: IDENTIFIER, Lexeme: "_under_score", Line: 1, Col: 71},
				{Type: EOF, Lexeme: "", Line: 1, Col: 83},
			},
		},
		{
			name:  "Integers decimal and hex",
			input: "42 0x2A 0",
			expected: []Token{
				{Type: INTEGER, Lexeme: "42", Line: 1, Col: 1},
				{Type: INTEGER, Lexeme: "0x2A", Line: 1, Col: 4},
				{Type: INTEGER, Lexeme: "0", Line: 1, Col: 9},
				{Type: EOF, Lexeme: "", Line: 1, Col: 10},
			},
		},
		{
			name:  "Char literal is a distinct token",
			input: "'a' '\\n' '\\0'",
			expected: []Token{
				{Type: CHAR_LIT, Lexeme: "97", Line: 1, Col: 1},
				{Type: CHAR_LIT, Lexeme: "10", Line: 1, Col: 5},
				{Type: CHAR_LIT, Lexeme: "0", Line: 1, Col: 10},
				{Type: EOF, Lexeme: "", Line: 1, Col: 14},
			},
		},
		{
			name:  "String literal with escapes",
			input: `"hi\n"`,
			expected: []Token{
				{Type: STRING, Lexeme: "hi\n", Line: 1, Col: 1},
				{Type: EOF, Lexeme: "", Line: 1, Col: 7},
			},
		},
		{
			name:  "Comments are skipped",
			input: "int x; // trailing\n/* block */ int y;",
			expected: []Token{
				{Type: INT, Lexeme: "int", Line: 1, Col: 1},
				{Type: IDENTIFIER, Lexeme: "x", Line: 1, Col: 5},
				{Type: SEMICOLON, Lexeme: ";", Line: 1, Col: 6},
				{Type: INT, Lexeme: "int", Line: 2, Col: 13},
				{Type: IDENTIFIER, Lexeme: "y", Line: 2, Col: 17},
				{Type: SEMICOLON, Lexeme: ";", Line: 2, Col: 18},
				{Type: EOF, Lexeme: "", Line: 2, Col: 19},
			},
		},
		{
			name:    "Unterminated string errors",
			input:   `"never closed`,
			wantErr: true,
		},
		{
			name:    "Unterminated char errors",
			input:   `'a`,
			wantErr: true,
		},
		{
			name:    "Illegal bitwise operator is rejected",
			input:   "a & b ^ c",
			wantErr: true,
		},
		{
			name:  "Unrecognized escape yields the literal character",
			input: `"\q" '\q'`,
			expected: []Token{
				{Type: STRING, Lexeme: "q", Line: 1, Col: 1},
				{Type: CHAR_LIT, Lexeme: "113", Line: 1, Col: 6},
				{Type: EOF, Lexeme: "", Line: 1, Col: 10},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Lex(%q): expected error, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lex(%q): unexpected error: %v", tt.input, err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Lex(%q): got %d tokens, want %d\ngot:  %v\nwant: %v", tt.input, len(got), len(tt.expected), got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("token %d: got %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLexErrorHasLocation(t *testing.T) {
	_, err := Lex("int x = 1;\n  @")
	if err == nil {
		t.Fatal("expected a lex error")
	}
	lexErr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("expected *LexError, got %T", err)
	}
	if lexErr.Line != 2 || lexErr.Col != 3 {
		t.Errorf("got line %d col %d, want line 2 col 3", lexErr.Line, lexErr.Col)
	}
}
