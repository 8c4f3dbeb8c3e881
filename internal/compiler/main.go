// Package compiler provides a lexer, parser, and code generator for a
// small C-like source language, targeting AArch64 assembly text under the
// Darwin (macOS) object-file conventions.
//
// Pipeline: source → Lex → Parse → Generate → AArch64 assembly text
package compiler
