// Package ir models the linear three-address intermediate representation
// consumed by the cfg package, and reads it from its textual form.
package ir

import "strings"

// Instruction is a single IR instruction. Instructions are treated as
// immutable once read.
type Instruction struct {
	Op       Opcode
	Operands []Operand
	// Line is the program-wide instruction number. It increases by one per
	// instruction across all functions and is never reset.
	Line int
	// SrcLine is the line in the IR file the instruction was read from.
	SrcLine int
}

func (in *Instruction) String() string {
	if in.Op == OpLabel && len(in.Operands) == 1 {
		return in.Operands[0].String() + ":"
	}
	var b strings.Builder
	b.WriteString(in.Op.String())
	for _, op := range in.Operands {
		b.WriteString(", ")
		b.WriteString(op.String())
	}
	return b.String()
}

// Function is a named, contiguous slice of instructions.
type Function struct {
	Name       string
	ReturnType Type
	Params     []*Variable
	Locals     []*Variable
	Body       []*Instruction
}

// Variable looks up a parameter or local by name.
func (f *Function) Variable(name string) (*Variable, bool) {
	for _, v := range f.Params {
		if v.Name == name {
			return v, true
		}
	}
	for _, v := range f.Locals {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// Program is an ordered set of functions read from one IR source.
type Program struct {
	Functions []*Function
}

// Function returns the function with the given name.
func (p *Program) Function(name string) (*Function, bool) {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}
