package ir

import "fmt"

// Opcode is the operation tag of an instruction.
type Opcode int

const (
	OpAssign Opcode = iota
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpAnd
	OpOr
	OpGoto
	OpBreq
	OpBrneq
	OpBrlt
	OpBrgt
	OpBrgeq
	OpBrleq
	OpReturn
	OpCall
	OpCallr
	OpArrayStore
	OpArrayLoad
	OpLabel

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpAssign:     "assign",
	OpAdd:        "add",
	OpSub:        "sub",
	OpMult:       "mult",
	OpDiv:        "div",
	OpAnd:        "and",
	OpOr:         "or",
	OpGoto:       "goto",
	OpBreq:       "breq",
	OpBrneq:      "brneq",
	OpBrlt:       "brlt",
	OpBrgt:       "brgt",
	OpBrgeq:      "brgeq",
	OpBrleq:      "brleq",
	OpReturn:     "return",
	OpCall:       "call",
	OpCallr:      "callr",
	OpArrayStore: "array_store",
	OpArrayLoad:  "array_load",
	OpLabel:      "label",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

func (op Opcode) String() string {
	if op < 0 || op >= numOpcodes {
		return fmt.Sprintf("opcode(%d)", int(op))
	}
	return opcodeNames[op]
}

// ParseOpcode returns the opcode for a lowercase mnemonic.
func ParseOpcode(s string) (Opcode, bool) {
	op, ok := opcodeByName[s]
	return op, ok
}

// IsBinary reports whether op is a three-operand arithmetic or logical operation.
func (op Opcode) IsBinary() bool {
	switch op {
	case OpAdd, OpSub, OpMult, OpDiv, OpAnd, OpOr:
		return true
	}
	return false
}

// IsBranch reports whether op is a conditional branch.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpBreq, OpBrneq, OpBrlt, OpBrgt, OpBrgeq, OpBrleq:
		return true
	}
	return false
}

// IsJump reports whether op transfers control to a label operand,
// conditionally or not.
func (op Opcode) IsJump() bool {
	return op == OpGoto || op.IsBranch()
}
