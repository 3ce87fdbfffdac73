package ir

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every error ReadProgram returns for malformed input.
var ErrSyntax = errors.New("ir syntax error")

const (
	startMarker = "#start_function"
	endMarker   = "#end_function"
)

func syntaxErrorf(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %w: %s", line, ErrSyntax, fmt.Sprintf(format, args...))
}

type readState int

const (
	stateOutside readState = iota
	stateHeader
	stateIntList
	stateFloatList
	stateBody
)

// reader holds per-program state while scanning an IR file.
type reader struct {
	prog     *Program
	fn       *Function
	state    readState
	nextLine int
	labels   map[string]int // label → file line of its definition
}

// ReadProgram reads a textual IR program. Instructions are numbered with a
// program-wide counter starting at 0, so each function's instructions are
// contiguous in global numbering.
//
// Beyond syntax, ReadProgram checks that variables are declared, function
// names are unique, labels are unique within a function and every jump
// target names a label of the same function.
func ReadProgram(r io.Reader) (*Program, error) {
	rd := &reader{prog: &Program{}}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := rd.line(lineNo, strings.TrimSpace(sc.Text())); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ir: %w", err)
	}
	if rd.state != stateOutside {
		return nil, syntaxErrorf(lineNo, "missing %s for function %q", endMarker, rd.fn.Name)
	}
	return rd.prog, nil
}

func (rd *reader) line(n int, text string) error {
	if text == "" {
		return nil
	}
	switch {
	case text == startMarker:
		if rd.state != stateOutside {
			return syntaxErrorf(n, "nested %s", startMarker)
		}
		rd.fn = &Function{}
		rd.labels = make(map[string]int)
		rd.state = stateHeader
		return nil
	case text == endMarker:
		if rd.state == stateOutside {
			return syntaxErrorf(n, "%s without %s", endMarker, startMarker)
		}
		if rd.state == stateHeader {
			return syntaxErrorf(n, "function without header")
		}
		if err := rd.checkTargets(); err != nil {
			return err
		}
		rd.prog.Functions = append(rd.prog.Functions, rd.fn)
		rd.fn, rd.labels = nil, nil
		rd.state = stateOutside
		return nil
	case strings.HasPrefix(text, "#"):
		return nil
	}

	switch rd.state {
	case stateOutside:
		return syntaxErrorf(n, "instruction outside of function: %q", text)
	case stateHeader:
		if err := rd.header(n, text); err != nil {
			return err
		}
		rd.state = stateIntList
		return nil
	case stateIntList, stateFloatList:
		if list, ok := strings.CutPrefix(text, "int-list:"); ok && rd.state == stateIntList {
			rd.state = stateFloatList
			return rd.declare(n, list, Int)
		}
		if list, ok := strings.CutPrefix(text, "float-list:"); ok {
			rd.state = stateBody
			return rd.declare(n, list, Float)
		}
		rd.state = stateBody
	}
	return rd.instruction(n, text)
}

// header parses "<type> <name>(<type> <param>, ...):".
func (rd *reader) header(n int, text string) error {
	text, ok := strings.CutSuffix(text, ":")
	if !ok {
		return syntaxErrorf(n, "function header must end with ':': %q", text)
	}
	open := strings.IndexByte(text, '(')
	if open < 0 || !strings.HasSuffix(text, ")") {
		return syntaxErrorf(n, "malformed function header %q", text)
	}
	retName := strings.Fields(text[:open])
	if len(retName) != 2 {
		return syntaxErrorf(n, "malformed function header %q", text)
	}
	ret, err := parseType(retName[0])
	if err != nil {
		return syntaxErrorf(n, "%v", err)
	}
	if _, dup := rd.prog.Function(retName[1]); dup {
		return syntaxErrorf(n, "function %q already defined", retName[1])
	}
	rd.fn.Name = retName[1]
	rd.fn.ReturnType = ret

	params := strings.TrimSpace(text[open+1 : len(text)-1])
	if params == "" {
		return nil
	}
	for _, p := range strings.Split(params, ",") {
		f := strings.Fields(p)
		if len(f) != 2 {
			return syntaxErrorf(n, "malformed parameter %q", strings.TrimSpace(p))
		}
		t, err := parseType(f[0])
		if err != nil {
			return syntaxErrorf(n, "%v", err)
		}
		if _, dup := rd.fn.Variable(f[1]); dup {
			return syntaxErrorf(n, "duplicate parameter %q", f[1])
		}
		rd.fn.Params = append(rd.fn.Params, &Variable{Name: f[1], Type: t})
	}
	return nil
}

func parseType(s string) (Type, error) {
	base, length, isArray := strings.Cut(s, "[")
	var t Type
	switch base {
	case "void":
		t.Base = Void
	case "int":
		t.Base = Int
	case "float":
		t.Base = Float
	default:
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
	if isArray {
		l, err := strconv.Atoi(strings.TrimSuffix(length, "]"))
		if err != nil || l <= 0 || !strings.HasSuffix(length, "]") {
			return Type{}, fmt.Errorf("bad array type %q", s)
		}
		t.Len = l
	}
	return t, nil
}

// declare adds the variables of an int-list or float-list line. Parameters
// repeated in the lists keep their parameter declaration.
func (rd *reader) declare(n int, list string, base BaseType) error {
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, length, isArray := strings.Cut(item, "[")
		t := Type{Base: base}
		if isArray {
			l, err := strconv.Atoi(strings.TrimSuffix(length, "]"))
			if err != nil || l <= 0 {
				return syntaxErrorf(n, "bad array declaration %q", item)
			}
			t.Len = l
		}
		if !isIdent(name) {
			return syntaxErrorf(n, "bad variable name %q", name)
		}
		if _, exists := rd.fn.Variable(name); exists {
			continue
		}
		rd.fn.Locals = append(rd.fn.Locals, &Variable{Name: name, Type: t})
	}
	return nil
}

func (rd *reader) instruction(n int, text string) error {
	if name, ok := strings.CutSuffix(text, ":"); ok && !strings.Contains(name, ",") {
		name = strings.TrimSpace(name)
		if !isIdent(name) {
			return syntaxErrorf(n, "bad label name %q", name)
		}
		if prev, dup := rd.labels[name]; dup {
			return syntaxErrorf(n, "label %q already defined at line %d", name, prev)
		}
		rd.labels[name] = n
		rd.emit(n, OpLabel, []Operand{&Label{Name: name}})
		return nil
	}

	fields := strings.Split(text, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	op, ok := ParseOpcode(fields[0])
	if !ok || op == OpLabel {
		return syntaxErrorf(n, "unknown opcode %q", fields[0])
	}
	args := fields[1:]
	if err := checkArity(op, len(args)); err != nil {
		return syntaxErrorf(n, "%s: %v", op, err)
	}

	operands := make([]Operand, len(args))
	for i, a := range args {
		var (
			o   Operand
			err error
		)
		switch {
		case op.IsJump() && i == 0:
			if !isIdent(a) {
				err = fmt.Errorf("bad label %q", a)
			}
			o = &Label{Name: a}
		case op == OpCall && i == 0, op == OpCallr && i == 1:
			if !isIdent(a) {
				err = fmt.Errorf("bad function name %q", a)
			}
			o = &FuncRef{Name: a}
		default:
			o, err = rd.value(a)
		}
		if err != nil {
			return syntaxErrorf(n, "%s operand %d: %v", op, i, err)
		}
		operands[i] = o
	}
	rd.emit(n, op, operands)
	return nil
}

func (rd *reader) emit(n int, op Opcode, operands []Operand) {
	rd.fn.Body = append(rd.fn.Body, &Instruction{
		Op:       op,
		Operands: operands,
		Line:     rd.nextLine,
		SrcLine:  n,
	})
	rd.nextLine++
}

// value resolves a constant literal or a declared variable.
// Identifiers are never literals, so variables named inf or nan stay variables.
func (rd *reader) value(s string) (Operand, error) {
	if isIdent(s) {
		if v, ok := rd.fn.Variable(s); ok {
			return v, nil
		}
		return nil, fmt.Errorf("undeclared variable %q", s)
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &Constant{Value: s, Type: Int}, nil
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return &Constant{Value: s, Type: Float}, nil
	}
	return nil, fmt.Errorf("bad operand %q", s)
}

func (rd *reader) checkTargets() error {
	for _, in := range rd.fn.Body {
		if !in.Op.IsJump() {
			continue
		}
		name, _ := LabelName(in.Operands[0])
		if _, ok := rd.labels[name]; !ok {
			return syntaxErrorf(in.SrcLine, "%s to undefined label %q in function %q", in.Op, name, rd.fn.Name)
		}
	}
	return nil
}

func checkArity(op Opcode, n int) error {
	var ok bool
	switch {
	case op.IsBinary(), op.IsBranch(), op == OpArrayStore, op == OpArrayLoad:
		ok = n == 3
	case op == OpAssign:
		ok = n == 2 || n == 3
	case op == OpGoto:
		ok = n == 1
	case op == OpReturn:
		ok = n <= 1
	case op == OpCall:
		ok = n >= 1
	case op == OpCallr:
		ok = n >= 2
	}
	if !ok {
		return fmt.Errorf("unexpected operand count %d", n)
	}
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
