package ir

import "fmt"

// BaseType is the scalar element type of an IR value.
type BaseType int

const (
	Void BaseType = iota
	Int
	Float
)

func (t BaseType) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "void"
	}
}

// Type is a scalar type or a fixed-size array of scalars.
type Type struct {
	Base BaseType
	Len  int // array length, 0 for scalars
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool { return t.Len > 0 }

func (t Type) String() string {
	if t.Len > 0 {
		return fmt.Sprintf("%s[%d]", t.Base, t.Len)
	}
	return t.Base.String()
}

// Operand is a value referenced by an instruction. The set of
// implementations is closed: *Variable, *Constant, *Label and *FuncRef.
type Operand interface {
	operand()
	String() string
}

// Variable is a named program variable.
type Variable struct {
	Name string
	Type Type
}

// Constant is a literal value.
type Constant struct {
	Value string
	Type  BaseType
}

// Label names a label instruction inside the same function.
type Label struct {
	Name string
}

// FuncRef names the callee of a call instruction.
type FuncRef struct {
	Name string
}

func (*Variable) operand() {}
func (*Constant) operand() {}
func (*Label) operand()    {}
func (*FuncRef) operand()  {}

func (v *Variable) String() string { return v.Name }
func (c *Constant) String() string { return c.Value }
func (l *Label) String() string    { return l.Name }
func (f *FuncRef) String() string  { return f.Name }

// VariableName returns the variable name if op is a variable reference.
func VariableName(op Operand) (string, bool) {
	v, ok := op.(*Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

// LabelName returns the label name if op is a label reference.
func LabelName(op Operand) (string, bool) {
	l, ok := op.(*Label)
	if !ok {
		return "", false
	}
	return l.Name, true
}
