package compiler

import (
	"fmt"
	"sort"
	"strings"
)

type ScopeType int

const (
	ScopeGlobal ScopeType = iota
	ScopeLocal
)

// TypeInfo classifies a declaration or expression result.
// Every scalar (int, char, pointer, enum constant) occupies 8 bytes;
// only arrays and struct values have a larger Size.
type TypeInfo struct {
	IsArray      bool
	ArraySize    int // -1 when not an array
	IsStruct     bool
	StructName   string
	IsChar       bool
	PointerLevel int
}

type FieldInfo struct {
	Offset int
	Type   TypeInfo
}

// StructDef is the registered layout of a struct type: fields in
// declaration order with byte offsets computed as a prefix sum of field
// sizes (a nested struct field's size is that struct's own Size).
type StructDef struct {
	Name       string
	FieldOrder []string
	Fields     map[string]FieldInfo
	Size       int
}

// Symbol is a resolved variable: Address is an FP-relative offset for
// locals/params, Label is the assembler symbol for globals.
type Symbol struct {
	Address int
	Label   string
	Size    int
	Scope   ScopeType
	Type    TypeInfo
}

// SymbolTable tracks globals, the active stack of local scopes, registered
// struct layouts, and registered enum constants for one compilation unit.
//
// Locals are assigned strictly decreasing offsets from the frame pointer.
// A block's locals are never reclaimed when the block exits (see ExitScope):
// the frame size computed up front already accounts for every local ever
// declared in the function, so re-using offsets across sibling blocks would
// corrupt values kept alive across a loop iteration.
type SymbolTable struct {
	globals map[string]Symbol

	locals []map[string]Symbol

	nextLocal int // next free FP-relative offset; monotonically decreasing

	structs map[string]StructDef

	// enumValues maps an enum constant name to its integer value. Lookup is
	// global across every registered enum: the first enum to register a
	// given constant name wins, matching the distilled behavior.
	enumValues map[string]int64
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		globals:    make(map[string]Symbol),
		structs:    make(map[string]StructDef),
		enumValues: make(map[string]int64),
	}
}

func (s *SymbolTable) EnterFunction() {
	s.locals = []map[string]Symbol{make(map[string]Symbol)}
	s.nextLocal = 0
}

func (s *SymbolTable) EnterScope() {
	if len(s.locals) == 0 {
		panic("EnterScope called outside function")
	}
	s.locals = append(s.locals, make(map[string]Symbol))
}

func (s *SymbolTable) ExitScope() {
	if len(s.locals) > 0 {
		s.locals = s.locals[:len(s.locals)-1]
	}
	// nextLocal is never restored here: see SymbolTable doc comment.
}

func (s *SymbolTable) ExitFunction() {
	s.locals = nil
}

// DefineParam allocates a parameter in the function-level scope (index 0).
// Every parameter occupies Size bytes of spilled stack space regardless of
// its register; struct-by-value parameters get their full struct size since
// the prologue copies the pointee fieldwise into this slot.
func (s *SymbolTable) DefineParam(decl VariableDecl, size int) Symbol {
	if len(s.locals) == 0 {
		panic("DefineParam called outside function scope")
	}
	typeInfo := TypeInfo{
		IsArray:      decl.ArraySize >= 0,
		ArraySize:    decl.ArraySize,
		IsStruct:     decl.IsStruct,
		StructName:   decl.StructName,
		IsChar:       decl.IsChar,
		PointerLevel: decl.PointerLevel,
	}

	s.nextLocal -= size
	sym := Symbol{
		Address: s.nextLocal,
		Size:    size,
		Scope:   ScopeLocal,
		Type:    typeInfo,
	}
	s.locals[0][decl.Name] = sym
	return sym
}

// DefineStruct registers a struct layout. Re-registering the same name
// overwrites the previous definition (the language has one translation unit
// and no forward-then-redefine ambiguity in practice).
func (s *SymbolTable) DefineStruct(def StructDef) {
	s.structs[def.Name] = def
}

func (s *SymbolTable) GetStruct(name string) (StructDef, bool) {
	d, ok := s.structs[name]
	return d, ok
}

// DefineEnum registers every value of an enum. A name already registered by
// an earlier enum is left untouched: the first declaration wins.
func (s *SymbolTable) DefineEnum(name string, values []string) {
	for i, v := range values {
		if _, exists := s.enumValues[v]; exists {
			continue
		}
		s.enumValues[v] = int64(i)
	}
	_ = name
}

// LookupEnumValue returns the integer value of an enum constant, searched
// across every enum registered so far (no per-enum scoping).
func (s *SymbolTable) LookupEnumValue(name string) (int64, bool) {
	v, ok := s.enumValues[name]
	return v, ok
}

// Allocate assigns storage to name in the current scope (or globally, if
// outside a function). If name already exists in that scope its existing
// Symbol is returned instead of re-allocating.
func (s *SymbolTable) Allocate(name string, typeInfo TypeInfo, size int) (Symbol, bool) {
	if len(s.locals) > 0 {
		currentScope := s.locals[len(s.locals)-1]
		if sym, ok := currentScope[name]; ok {
			return sym, true
		}

		s.nextLocal -= size
		sym := Symbol{
			Address: s.nextLocal,
			Size:    size,
			Scope:   ScopeLocal,
			Type:    typeInfo,
		}
		currentScope[name] = sym
		return sym, false
	}

	if sym, ok := s.globals[name]; ok {
		return sym, true
	}

	sym := Symbol{
		Label: "_" + name,
		Size:  size,
		Scope: ScopeGlobal,
		Type:  typeInfo,
	}
	s.globals[name] = sym
	return sym, false
}

// Lookup returns the symbol and whether it was found, searching local
// scopes from innermost to outermost before falling back to globals.
func (s *SymbolTable) Lookup(name string) (Symbol, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if sym, ok := s.locals[i][name]; ok {
			return sym, true
		}
	}
	sym, ok := s.globals[name]
	return sym, ok
}

// String returns a deterministically ordered debug dump of the table:
// globals, structs and enum values, each sorted by name.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.globals) > 0 {
		sb.WriteString("Globals:\n")
		names := make([]string, 0, len(s.globals))
		for name := range s.globals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			sym := s.globals[name]
			fmt.Fprintf(&sb, "  %-20s  Label: %s (Size: %d, Type: %+v)\n", name, sym.Label, sym.Size, sym.Type)
		}
	} else {
		sb.WriteString("Globals: (empty)\n")
	}

	if len(s.structs) > 0 {
		sb.WriteString("Structs:\n")
		names := make([]string, 0, len(s.structs))
		for name := range s.structs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			def := s.structs[name]
			fmt.Fprintf(&sb, "  struct %s (Size: %d): %v\n", name, def.Size, def.FieldOrder)
		}
	}

	if len(s.enumValues) > 0 {
		sb.WriteString("Enum values:\n")
		names := make([]string, 0, len(s.enumValues))
		for name := range s.enumValues {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %-20s = %d\n", name, s.enumValues[name])
		}
	}
	return sb.String()
}
