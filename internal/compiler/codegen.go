package compiler

import (
	"fmt"
	"strings"
)

// CodeGen lowers an already-parsed AST into AArch64 Darwin assembly text.
// Every scalar value (int, char, pointer, enum constant) is 8 bytes; only
// arrays and struct values occupy more than one slot.
type CodeGen struct {
	syms            *SymbolTable
	out             strings.Builder
	nextLabel       int
	currentFunction string
	stringPool      map[string]int // literal value -> label index, first-seen order
	stringOrder     []string
	loopEndLabels   []string // active loop "end" labels, innermost last, for break
}

func newCodeGen() *CodeGen {
	return &CodeGen{
		syms:       NewSymbolTable(),
		stringPool: make(map[string]int),
	}
}

func align16(n int) int {
	return (n + 15) & ^15
}

func (cg *CodeGen) line(format string, args ...any) {
	cg.out.WriteString("    ")
	fmt.Fprintf(&cg.out, format, args...)
	cg.out.WriteByte('\n')
}

func (cg *CodeGen) label(name string) {
	cg.out.WriteString(name)
	cg.out.WriteString(":\n")
}

func (cg *CodeGen) newLabel() string {
	lbl := fmt.Sprintf(".L%d", cg.nextLabel)
	cg.nextLabel++
	return lbl
}

// argRegs is the simplified AAPCS64 subset this compiler targets: up to 8
// integer/pointer arguments in x0..x7, everything scalar and 8 bytes wide.
var argRegs = [8]string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7"}

const maxArgs = len(argRegs)

// structSize returns the registered byte size of a struct type. Nested struct
// fields are already counted in that size when the struct is registered (see
// registerStruct).
func (cg *CodeGen) structSize(name string) (int, error) {
	def, ok := cg.syms.GetStruct(name)
	if !ok {
		return 0, &CodegenError{Msg: fmt.Sprintf("unknown struct %q", name)}
	}
	return def.Size, nil
}

// fieldOffset returns the byte offset and TypeInfo of a field within a
// registered struct.
func (cg *CodeGen) fieldOffset(structName, field string) (FieldInfo, error) {
	def, ok := cg.syms.GetStruct(structName)
	if !ok {
		return FieldInfo{}, &CodegenError{Msg: fmt.Sprintf("unknown struct %q", structName)}
	}
	fi, ok := def.Fields[field]
	if !ok {
		return FieldInfo{}, &CodegenError{Msg: fmt.Sprintf("struct %q has no field %q", structName, field)}
	}
	return fi, nil
}

// sizeOfDecl computes the storage size in bytes a VariableDecl requires:
// array_size*8 for arrays, the full nested struct Size for struct values,
// 8 bytes for every scalar (including pointers to anything).
func (cg *CodeGen) sizeOfDecl(decl VariableDecl) (int, error) {
	if decl.ArraySize >= 0 {
		sz := decl.ArraySize * 8
		if sz == 0 {
			sz = 8
		}
		return sz, nil
	}
	if decl.IsStruct && decl.PointerLevel == 0 {
		return cg.structSize(decl.StructName)
	}
	return 8, nil
}

// registerString interns a string literal and returns its data-section label.
func (cg *CodeGen) registerString(value string) int {
	if lbl, ok := cg.stringPool[value]; ok {
		return lbl
	}
	lbl := len(cg.stringOrder)
	cg.stringPool[value] = lbl
	cg.stringOrder = append(cg.stringOrder, value)
	return lbl
}

// exprType best-effort infers the static type of an expression, defaulting
// to a plain int when it cannot determine anything more specific. This is
// accurate enough to resolve struct member access, array element types, and
// pointer dereferences, but is not a full type checker.
func (cg *CodeGen) exprType(e Expr) TypeInfo {
	switch n := e.(type) {
	case *VarRef:
		if sym, ok := cg.syms.Lookup(n.Name); ok {
			return sym.Type
		}
		return TypeInfo{}
	case *IndexExpr:
		base := cg.exprType(n.Left)
		base.IsArray = false
		base.ArraySize = -1
		return base
	case *MemberExpr:
		objType := cg.exprType(n.Left)
		if objType.IsStruct {
			if fi, err := cg.fieldOffset(objType.StructName, n.Member); err == nil {
				return fi.Type
			}
		}
		return TypeInfo{}
	case *UnaryExpr:
		if n.Op == STAR {
			inner := cg.exprType(n.Right)
			if inner.PointerLevel > 0 {
				inner.PointerLevel--
			}
			return inner
		}
		if n.Op == AMP {
			inner := cg.exprType(n.Right)
			inner.PointerLevel++
			return inner
		}
		return TypeInfo{}
	default:
		return TypeInfo{}
	}
}

// constEval evaluates an expression that must be known at assembly time,
// for use as a data-section initializer. Only literals, character
// literals, unary minus, and previously-registered enum constants qualify;
// anything that would require emitted instructions to compute is rejected.
func (cg *CodeGen) constEval(e Expr) (int64, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil
	case *CharLiteral:
		return n.Value, nil
	case *UnaryExpr:
		if n.Op == MINUS {
			v, err := cg.constEval(n.Right)
			if err != nil {
				return 0, err
			}
			return -v, nil
		}
	case *VarRef:
		if v, ok := cg.syms.LookupEnumValue(n.Name); ok {
			return v, nil
		}
	}
	return 0, &CodegenError{Msg: fmt.Sprintf("global initializer is not a compile-time constant: %s", e)}
}

// genAddress computes the address of an lvalue expression into x0.
func (cg *CodeGen) genAddress(e Expr) error {
	switch n := e.(type) {
	case *VarRef:
		sym, ok := cg.syms.Lookup(n.Name)
		if !ok {
			return &CodegenError{Msg: fmt.Sprintf("undefined variable %q", n.Name)}
		}
		if sym.Scope == ScopeGlobal {
			cg.line("adrp x0, %s@PAGE", sym.Label)
			cg.line("add x0, x0, %s@PAGEOFF", sym.Label)
		} else {
			cg.line("add x0, x29, #%d", sym.Address)
		}
		return nil

	case *IndexExpr:
		if err := cg.genIndexBase(n.Left); err != nil {
			return err
		}
		cg.line("str x0, [sp, #-16]!")
		if err := cg.genExpr(n.Index); err != nil {
			return err
		}
		cg.line("lsl x0, x0, #3")
		cg.line("ldr x9, [sp], #16")
		cg.line("add x0, x0, x9")
		return nil

	case *MemberExpr:
		objType := cg.exprType(n.Left)
		if !objType.IsStruct {
			return &CodegenError{Msg: fmt.Sprintf("member access %q on non-struct expression", n.Member)}
		}
		fi, err := cg.fieldOffset(objType.StructName, n.Member)
		if err != nil {
			return err
		}
		if err := cg.genAddress(n.Left); err != nil {
			return err
		}
		if fi.Offset != 0 {
			cg.line("add x0, x0, #%d", fi.Offset)
		}
		return nil

	case *UnaryExpr:
		if n.Op == STAR {
			return cg.genExpr(n.Right)
		}
		return &CodegenError{Msg: "invalid lvalue: unary operator is not a dereference"}

	default:
		return &CodegenError{Msg: "expression is not a valid assignment target"}
	}
}

// genIndexBase evaluates the array/pointer expression on the left of an
// index: a plain array local already holds the address of element 0 (so we
// want its address), while a pointer-typed expression must be evaluated for
// its value.
func (cg *CodeGen) genIndexBase(left Expr) error {
	if ref, ok := left.(*VarRef); ok {
		if sym, ok := cg.syms.Lookup(ref.Name); ok && sym.Type.IsArray {
			return cg.genAddress(left)
		}
	}
	return cg.genExpr(left)
}

// genExpr evaluates an expression, leaving its value (or, for arrays and
// struct values, its address) in x0.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {
	case *Literal:
		cg.line("mov x0, #%d", n.Value)
		return nil

	case *CharLiteral:
		cg.line("mov x0, #%d", n.Value)
		return nil

	case *StringLiteral:
		lbl := cg.registerString(n.Value)
		cg.line("adrp x0, .str%d@PAGE", lbl)
		cg.line("add x0, x0, .str%d@PAGEOFF", lbl)
		return nil

	case *VarRef:
		sym, ok := cg.syms.Lookup(n.Name)
		if !ok {
			if val, isEnum := cg.syms.LookupEnumValue(n.Name); isEnum {
				cg.line("mov x0, #%d", val)
				return nil
			}
			return &CodegenError{Msg: fmt.Sprintf("undefined variable %q", n.Name)}
		}
		if sym.Type.IsArray || (sym.Type.IsStruct && sym.Type.PointerLevel == 0) {
			return cg.genAddress(n)
		}
		if sym.Scope == ScopeGlobal {
			cg.line("adrp x0, %s@PAGE", sym.Label)
			cg.line("add x0, x0, %s@PAGEOFF", sym.Label)
			cg.line("ldr x0, [x0]")
		} else {
			cg.line("ldr x0, [x29, #%d]", sym.Address)
		}
		return nil

	case *LogicalExpr:
		return cg.genLogical(n)

	case *BinaryExpr:
		return cg.genBinary(n)

	case *UnaryExpr:
		return cg.genUnary(n)

	case *FunctionCall:
		return cg.genCall(n)

	case *IndexExpr:
		if err := cg.genAddress(n); err != nil {
			return err
		}
		cg.line("ldr x0, [x0]")
		return nil

	case *MemberExpr:
		objType := cg.exprType(n.Left)
		var fieldIsStruct bool
		if objType.IsStruct {
			if fi, err := cg.fieldOffset(objType.StructName, n.Member); err == nil {
				fieldIsStruct = fi.Type.IsStruct && fi.Type.PointerLevel == 0
			}
		}
		if err := cg.genAddress(n); err != nil {
			return err
		}
		if !fieldIsStruct {
			cg.line("ldr x0, [x0]")
		}
		return nil

	default:
		return &CodegenError{Msg: fmt.Sprintf("unhandled expression %T", e)}
	}
}

func (cg *CodeGen) genLogical(n *LogicalExpr) error {
	switch n.Op {
	case AND_LOGICAL:
		lblFalse := cg.newLabel()
		lblEnd := cg.newLabel()
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("b.eq %s", lblFalse)
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("b.eq %s", lblFalse)
		cg.line("mov x0, #1")
		cg.line("b %s", lblEnd)
		cg.label(lblFalse)
		cg.line("mov x0, #0")
		cg.label(lblEnd)
		return nil

	case OR_LOGICAL:
		lblTrue := cg.newLabel()
		lblEnd := cg.newLabel()
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("b.ne %s", lblTrue)
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("b.ne %s", lblTrue)
		cg.line("mov x0, #0")
		cg.line("b %s", lblEnd)
		cg.label(lblTrue)
		cg.line("mov x0, #1")
		cg.label(lblEnd)
		return nil

	default:
		return &CodegenError{Msg: fmt.Sprintf("unknown logical operator %s", n.Op)}
	}
}

func (cg *CodeGen) genBinary(n *BinaryExpr) error {
	if err := cg.genExpr(n.Left); err != nil {
		return err
	}
	cg.line("str x0, [sp, #-16]!")
	if err := cg.genExpr(n.Right); err != nil {
		return err
	}
	cg.line("ldr x9, [sp], #16")
	// x9 = left, x0 = right

	switch n.Op {
	case PLUS:
		cg.line("add x0, x9, x0")
	case MINUS:
		cg.line("sub x0, x9, x0")
	case STAR:
		cg.line("mul x0, x9, x0")
	case SLASH:
		cg.line("sdiv x0, x9, x0")
	case PERCENT:
		cg.line("sdiv x10, x9, x0")
		cg.line("msub x0, x10, x0, x9")
	case EQUALS:
		cg.line("cmp x9, x0")
		cg.line("cset x0, eq")
	case NOT_EQ:
		cg.line("cmp x9, x0")
		cg.line("cset x0, ne")
	case LESS:
		cg.line("cmp x9, x0")
		cg.line("cset x0, lt")
	case GREATER:
		cg.line("cmp x9, x0")
		cg.line("cset x0, gt")
	case LESS_EQ:
		cg.line("cmp x9, x0")
		cg.line("cset x0, le")
	case GREATER_EQ:
		cg.line("cmp x9, x0")
		cg.line("cset x0, ge")
	default:
		return &CodegenError{Msg: fmt.Sprintf("unknown binary operator %s", n.Op)}
	}
	return nil
}

func (cg *CodeGen) genUnary(n *UnaryExpr) error {
	switch n.Op {
	case MINUS:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("neg x0, x0")
		return nil
	case NOT:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("cset x0, eq")
		return nil
	case AMP:
		return cg.genAddress(n.Right)
	case STAR:
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("ldr x0, [x0]")
		return nil
	default:
		return &CodegenError{Msg: fmt.Sprintf("unknown unary operator %s", n.Op)}
	}
}

func (cg *CodeGen) genCall(n *FunctionCall) error {
	if len(n.Args) > maxArgs {
		return &CodegenError{Msg: fmt.Sprintf("call to %q passes %d arguments, at most %d are supported", n.Name, len(n.Args), maxArgs)}
	}

	for _, arg := range n.Args {
		if err := cg.genExpr(arg); err != nil {
			return err
		}
		cg.line("str x0, [sp, #-16]!")
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		cg.line("ldr %s, [sp], #16", argRegs[i])
	}

	cg.line("bl _%s", n.Name)
	return nil
}

// countVarsSize walks a statement tree and sums the storage every
// VariableDecl it contains will need, recursing into nested blocks and
// control-flow bodies. This must run before the function prologue is
// emitted so the frame size is known up front: locals are never reclaimed
// when a block exits (see SymbolTable), so the full sum is the frame's
// permanent local-variable footprint.
func (cg *CodeGen) countVarsSize(s Stmt) (int, error) {
	switch n := s.(type) {
	case nil:
		return 0, nil
	case *BlockStmt:
		total := 0
		for _, stmt := range n.Stmts {
			sz, err := cg.countVarsSize(stmt)
			if err != nil {
				return 0, err
			}
			total += sz
		}
		return total, nil
	case *VariableDecl:
		return cg.sizeOfDecl(*n)
	case *IfStmt:
		thenSz, err := cg.countVarsSize(n.Body)
		if err != nil {
			return 0, err
		}
		elseSz, err := cg.countVarsSize(n.ElseBody)
		if err != nil {
			return 0, err
		}
		return thenSz + elseSz, nil
	case *WhileStmt:
		return cg.countVarsSize(n.Body)
	case *ForStmt:
		initSz, err := cg.countVarsSize(n.Init)
		if err != nil {
			return 0, err
		}
		bodySz, err := cg.countVarsSize(n.Body)
		if err != nil {
			return 0, err
		}
		return initSz + bodySz, nil
	default:
		return 0, nil
	}
}

// genStmt generates code for a single statement.
func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {
	case nil:
		return nil

	case *ReturnStmt:
		if n.Expr != nil {
			if err := cg.genExpr(n.Expr); err != nil {
				return err
			}
		} else {
			cg.line("mov x0, #0")
		}
		cg.emitEpilogue()
		return nil

	case *IfStmt:
		lblElse := cg.newLabel()
		lblEnd := cg.newLabel()
		if err := cg.genExpr(n.Condition); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		if n.ElseBody != nil {
			cg.line("b.eq %s", lblElse)
		} else {
			cg.line("b.eq %s", lblEnd)
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		if n.ElseBody != nil {
			cg.line("b %s", lblEnd)
			cg.label(lblElse)
			if err := cg.genStmt(n.ElseBody); err != nil {
				return err
			}
		}
		cg.label(lblEnd)
		return nil

	case *WhileStmt:
		lblStart := cg.newLabel()
		lblEnd := cg.newLabel()
		cg.loopEndLabels = append(cg.loopEndLabels, lblEnd)

		cg.label(lblStart)
		if err := cg.genExpr(n.Condition); err != nil {
			return err
		}
		cg.line("cmp x0, #0")
		cg.line("b.eq %s", lblEnd)
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("b %s", lblStart)
		cg.label(lblEnd)

		cg.loopEndLabels = cg.loopEndLabels[:len(cg.loopEndLabels)-1]
		return nil

	case *ForStmt:
		lblStart := cg.newLabel()
		lblEnd := cg.newLabel()
		cg.loopEndLabels = append(cg.loopEndLabels, lblEnd)

		if n.Init != nil {
			if err := cg.genStmt(n.Init); err != nil {
				return err
			}
		}
		cg.label(lblStart)
		if n.Cond != nil {
			if err := cg.genExpr(n.Cond); err != nil {
				return err
			}
			cg.line("cmp x0, #0")
			cg.line("b.eq %s", lblEnd)
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		if n.Post != nil {
			if err := cg.genStmt(n.Post); err != nil {
				return err
			}
		}
		cg.line("b %s", lblStart)
		cg.label(lblEnd)

		cg.loopEndLabels = cg.loopEndLabels[:len(cg.loopEndLabels)-1]
		return nil

	case *BreakStmt:
		if len(cg.loopEndLabels) == 0 {
			return &CodegenError{Msg: "break outside of a loop"}
		}
		cg.line("b %s", cg.loopEndLabels[len(cg.loopEndLabels)-1])
		return nil

	case *VariableDecl:
		return cg.genVarDecl(n)

	case *Assignment:
		if err := cg.genAddress(n.Left); err != nil {
			return err
		}
		cg.line("str x0, [sp, #-16]!")
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.line("ldr x9, [sp], #16")
		cg.line("str x0, [x9]")
		return nil

	case *BlockStmt:
		cg.syms.EnterScope()
		for _, stmt := range n.Stmts {
			if err := cg.genStmt(stmt); err != nil {
				cg.syms.ExitScope()
				return err
			}
		}
		// Locals declared inside this block are popped from name
		// resolution here, but their frame slots remain reserved; see
		// SymbolTable.ExitScope.
		cg.syms.ExitScope()
		return nil

	case *ExprStmt:
		return cg.genExpr(n.Expr)

	case *StructDecl:
		return cg.registerStruct(n)

	case *EnumDecl:
		cg.syms.DefineEnum(n.Name, n.Values)
		return nil

	default:
		return &CodegenError{Msg: fmt.Sprintf("unhandled statement %T", s)}
	}
}

func (cg *CodeGen) genVarDecl(n *VariableDecl) error {
	typeInfo := TypeInfo{
		IsArray:      n.ArraySize >= 0,
		ArraySize:    n.ArraySize,
		IsStruct:     n.IsStruct,
		StructName:   n.StructName,
		IsChar:       n.IsChar,
		PointerLevel: n.PointerLevel,
	}
	size, err := cg.sizeOfDecl(*n)
	if err != nil {
		return err
	}
	sym, _ := cg.syms.Allocate(n.Name, typeInfo, size)

	if n.Init == nil {
		return nil
	}

	if initList, ok := n.Init.(*InitializerList); ok {
		for i, elem := range initList.Elements {
			if err := cg.genExpr(elem); err != nil {
				return err
			}
			cg.line("str x0, [x29, #%d]", sym.Address+i*8)
		}
		return nil
	}

	if err := cg.genExpr(n.Init); err != nil {
		return err
	}
	cg.line("str x0, [x29, #%d]", sym.Address)
	return nil
}

// registerStruct computes field offsets as a real prefix sum of field sizes
// (a nested struct field's size is that struct's own registered Size, not a
// flat per-field 8 bytes) and registers the layout for later lookups.
func (cg *CodeGen) registerStruct(n *StructDecl) error {
	def := StructDef{
		Name:   n.Name,
		Fields: make(map[string]FieldInfo, len(n.Fields)),
	}
	offset := 0
	for _, field := range n.Fields {
		typeInfo := TypeInfo{
			IsArray:      field.ArraySize >= 0,
			ArraySize:    field.ArraySize,
			IsStruct:     field.IsStruct,
			StructName:   field.StructName,
			IsChar:       field.IsChar,
			PointerLevel: field.PointerLevel,
		}
		fieldSize, err := cg.sizeOfDecl(field)
		if err != nil {
			return &CodegenError{Msg: fmt.Sprintf("struct %q field %q: %s", n.Name, field.Name, err)}
		}
		def.FieldOrder = append(def.FieldOrder, field.Name)
		def.Fields[field.Name] = FieldInfo{Offset: offset, Type: typeInfo}
		offset += fieldSize
	}
	def.Size = offset
	cg.syms.DefineStruct(def)
	return nil
}

func (cg *CodeGen) emitEpilogue() {
	cg.line("mov sp, x29")
	cg.line("ldp x29, x30, [sp], #16")
	cg.line("ret")
}

// genFunction emits the prologue, body, and implicit-fallthrough epilogue
// for one function. Parameters are always spilled to the stack; struct-by-
// value parameters arrive as the address of the caller's struct and are
// copied fieldwise into a local slot sized to the struct's full registered
// size.
func (cg *CodeGen) genFunction(fn *FunctionDecl) error {
	if len(fn.Params) > maxArgs {
		return &CodegenError{Msg: fmt.Sprintf("function %q declares %d parameters, at most %d are supported", fn.Name, len(fn.Params), maxArgs)}
	}

	cg.syms.EnterFunction()
	cg.currentFunction = fn.Name
	cg.loopEndLabels = nil

	paramSpace := 0
	for _, p := range fn.Params {
		sz, err := cg.sizeOfDecl(p)
		if err != nil {
			return err
		}
		paramSpace += sz
	}

	bodySpace, err := cg.countVarsSize(fn.Body)
	if err != nil {
		return err
	}

	frameSize := align16(paramSpace + bodySpace)
	if frameSize == 0 {
		frameSize = 16
	}

	cg.out.WriteString(fmt.Sprintf(".globl _%s\n", fn.Name))
	cg.label("_" + fn.Name)
	cg.line("stp x29, x30, [sp, #-16]!")
	cg.line("mov x29, sp")
	cg.line("sub sp, sp, #%d", frameSize)

	for i, p := range fn.Params {
		if p.IsStruct && p.PointerLevel == 0 {
			ssz, err := cg.structSize(p.StructName)
			if err != nil {
				return err
			}
			sym := cg.syms.DefineParam(p, ssz)

			srcReg := argRegs[i]
			if i == 0 {
				// x0 is clobbered by the field-copy loop below; stash it first.
				cg.line("mov x9, x0")
				srcReg = "x9"
			}
			for f := 0; f*8 < ssz; f++ {
				cg.line("ldr x0, [%s, #%d]", srcReg, f*8)
				cg.line("str x0, [x29, #%d]", sym.Address+f*8)
			}
		} else {
			sym := cg.syms.DefineParam(p, 8)
			cg.line("str %s, [x29, #%d]", argRegs[i], sym.Address)
		}
	}

	if err := cg.genStmt(fn.Body); err != nil {
		return err
	}

	// Implicit fallthrough return for functions that may reach the end
	// without an explicit return statement.
	cg.line("mov x0, #0")
	cg.emitEpilogue()
	cg.out.WriteByte('\n')

	cg.syms.ExitFunction()
	return nil
}

// Generate lowers a parsed program into complete AArch64 Darwin assembly
// text. Top-level struct and enum definitions are registered in a pre-pass
// so that forward references (a function using a struct defined later in
// the file) resolve correctly; a struct field naming a struct that is not
// yet registered is rejected with a CodegenError rather than silently
// defaulting to an 8-byte field.
func Generate(program []Stmt) (string, error) {
	cg := newCodeGen()

	for _, stmt := range program {
		switch n := stmt.(type) {
		case *StructDecl:
			if err := cg.registerStruct(n); err != nil {
				return "", err
			}
		case *EnumDecl:
			cg.syms.DefineEnum(n.Name, n.Values)
		}
	}

	var globals []*VariableDecl
	var functions []*FunctionDecl
	for _, stmt := range program {
		switch n := stmt.(type) {
		case *VariableDecl:
			globals = append(globals, n)
		case *FunctionDecl:
			functions = append(functions, n)
		}
	}

	// Globals are registered up front, alongside structs/enums, so a
	// function defined earlier in the file can still reference a global
	// declared later.
	for _, g := range globals {
		size, err := cg.sizeOfDecl(*g)
		if err != nil {
			return "", err
		}
		typeInfo := TypeInfo{
			IsArray:      g.ArraySize >= 0,
			ArraySize:    g.ArraySize,
			IsStruct:     g.IsStruct,
			StructName:   g.StructName,
			IsChar:       g.IsChar,
			PointerLevel: g.PointerLevel,
		}
		cg.syms.Allocate(g.Name, typeInfo, size)
	}

	cg.out.WriteString(".section __TEXT,__text\n\n")
	for _, fn := range functions {
		if err := cg.genFunction(fn); err != nil {
			return "", err
		}
	}

	if len(globals) > 0 || len(cg.stringOrder) > 0 {
		cg.out.WriteString(".section __DATA,__data\n")
		for _, g := range globals {
			sym, ok := cg.syms.Lookup(g.Name)
			if !ok {
				continue
			}
			cg.label(sym.Label)
			words := sym.Size / 8
			if words == 0 {
				words = 1
			}

			values := make([]int64, words)
			switch init := g.Init.(type) {
			case nil:
				// zero-initialized, values already all 0
			case *InitializerList:
				for i, elem := range init.Elements {
					if i >= words {
						break
					}
					v, err := cg.constEval(elem)
					if err != nil {
						return "", err
					}
					values[i] = v
				}
			default:
				v, err := cg.constEval(init)
				if err != nil {
					return "", err
				}
				values[0] = v
			}

			for _, v := range values {
				cg.line(".quad %d", v)
			}
		}

		for i, value := range cg.stringOrder {
			cg.label(fmt.Sprintf(".str%d", i))
			cg.line(".asciz %q", value)
		}
	}

	return cg.out.String(), nil
}
