package ir

import (
	"errors"
	"strings"
	"testing"
)

const sample = `
#start_function
int sum(int n, float[3] w):
int-list: i, s, buf[16]
float-list: f
    assign, i, 0
    assign, buf, 16, 0
loop:
    brgeq, end, i, n
    array_load, s, buf, i
    callr, f, scale, w, 2.5
    call, puti, s
    add, i, i, 1
    goto, loop
end:
    return, s
#end_function

#start_function
void main():
    call, sum, 3
#end_function
`

func TestReadProgram(t *testing.T) {
	prog, err := ReadProgram(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("got %d functions, want 2", len(prog.Functions))
	}

	sum := prog.Functions[0]
	if sum.Name != "sum" || sum.ReturnType != (Type{Base: Int}) {
		t.Errorf("header = %s %s, want int sum", sum.ReturnType, sum.Name)
	}
	if len(sum.Params) != 2 || sum.Params[1].Type != (Type{Base: Float, Len: 3}) {
		t.Errorf("params = %v", sum.Params)
	}
	if buf, ok := sum.Variable("buf"); !ok || buf.Type.Len != 16 {
		t.Errorf("buf declaration = %v, %v", buf, ok)
	}
	if len(sum.Body) != 11 {
		t.Fatalf("sum has %d instructions, want 11", len(sum.Body))
	}

	wantText := []string{
		"assign, i, 0",
		"assign, buf, 16, 0",
		"loop:",
		"brgeq, end, i, n",
		"array_load, s, buf, i",
		"callr, f, scale, w, 2.5",
		"call, puti, s",
		"add, i, i, 1",
		"goto, loop",
		"end:",
		"return, s",
	}
	for i, want := range wantText {
		if got := sum.Body[i].String(); got != want {
			t.Errorf("instruction %d = %q, want %q", i, got, want)
		}
		if sum.Body[i].Line != i {
			t.Errorf("instruction %d has line %d", i, sum.Body[i].Line)
		}
	}

	main := prog.Functions[1]
	if main.Body[0].Line != 11 {
		t.Errorf("main starts at line %d, want 11 (numbering is program-wide)", main.Body[0].Line)
	}
	if main.Body[0].SrcLine != 21 {
		t.Errorf("main first instruction read from file line %d, want 21", main.Body[0].SrcLine)
	}
}

func TestReadProgram_OperandKinds(t *testing.T) {
	prog, err := ReadProgram(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	body := prog.Functions[0].Body

	if _, ok := body[3].Operands[0].(*Label); !ok {
		t.Errorf("brgeq operand 0 is %T, want *Label", body[3].Operands[0])
	}
	if _, ok := body[3].Operands[2].(*Variable); !ok {
		t.Errorf("brgeq operand 2 is %T, want *Variable", body[3].Operands[2])
	}
	callr := body[5]
	if _, ok := callr.Operands[1].(*FuncRef); !ok {
		t.Errorf("callr operand 1 is %T, want *FuncRef", callr.Operands[1])
	}
	if c, ok := callr.Operands[3].(*Constant); !ok || c.Type != Float {
		t.Errorf("callr operand 3 = %#v, want float constant", callr.Operands[3])
	}
	if c, ok := body[0].Operands[1].(*Constant); !ok || c.Type != Int {
		t.Errorf("assign operand 1 = %#v, want int constant", body[0].Operands[1])
	}
	if _, ok := body[6].Operands[0].(*FuncRef); !ok {
		t.Errorf("call operand 0 is %T, want *FuncRef", body[6].Operands[0])
	}
}

func TestReadProgram_FloatKeywordsAsVariables(t *testing.T) {
	prog, err := ReadProgram(strings.NewReader(`
#start_function
void f():
int-list: inf, nan, x
    assign, inf, 1
    add, x, inf, nan
    assign, x, -2.5
#end_function
`))
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	body := prog.Functions[0].Body
	for _, k := range []struct{ instr, op int }{{0, 0}, {1, 1}, {1, 2}} {
		if _, ok := body[k.instr].Operands[k.op].(*Variable); !ok {
			t.Errorf("instruction %d operand %d is %T, want *Variable", k.instr, k.op, body[k.instr].Operands[k.op])
		}
	}
	if c, ok := body[2].Operands[1].(*Constant); !ok || c.Type != Float {
		t.Errorf("assign operand 1 = %#v, want float constant", body[2].Operands[1])
	}
}

func TestReadProgram_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown opcode",
			src:  "#start_function\nvoid f():\n    mod, a, b, c\n#end_function\n",
			want: `unknown opcode "mod"`,
		},
		{
			name: "undeclared variable",
			src:  "#start_function\nvoid f():\nint-list: a\n    add, a, a, b\n#end_function\n",
			want: `undeclared variable "b"`,
		},
		{
			name: "duplicate label",
			src:  "#start_function\nvoid f():\nL:\nL:\n#end_function\n",
			want: `label "L" already defined`,
		},
		{
			name: "undefined jump target",
			src:  "#start_function\nvoid f():\n    goto, nowhere\n#end_function\n",
			want: `undefined label "nowhere"`,
		},
		{
			name: "wrong arity",
			src:  "#start_function\nvoid f():\nint-list: a\n    add, a, a\n#end_function\n",
			want: "unexpected operand count 2",
		},
		{
			name: "unterminated function",
			src:  "#start_function\nvoid f():\n    return\n",
			want: "missing #end_function",
		},
		{
			name: "instruction outside function",
			src:  "goto, L\n",
			want: "outside of function",
		},
		{
			name: "bad header",
			src:  "#start_function\nvoid f()\n#end_function\n",
			want: "must end with ':'",
		},
		{
			name: "duplicate function",
			src:  "#start_function\nvoid f():\n    return\n#end_function\n#start_function\nvoid f():\n    return\n    return\n#end_function\n",
			want: `function "f" already defined`,
		},
		{
			name: "undeclared float keyword",
			src:  "#start_function\nvoid f():\nfloat-list: x\n    assign, x, inf\n#end_function\n",
			want: `undeclared variable "inf"`,
		},
		{
			name: "bad type",
			src:  "#start_function\nstring f():\n#end_function\n",
			want: `unknown type "string"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadProgram(strings.NewReader(tt.src))
			if !errors.Is(err, ErrSyntax) {
				t.Fatalf("error = %v, want ErrSyntax", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestOpcode(t *testing.T) {
	for op := OpAssign; op < numOpcodes; op++ {
		parsed, ok := ParseOpcode(op.String())
		if !ok || parsed != op {
			t.Errorf("ParseOpcode(%q) = %v, %v", op.String(), parsed, ok)
		}
	}
	if OpGoto.IsBranch() || !OpGoto.IsJump() {
		t.Error("goto must be a jump but not a conditional branch")
	}
	if !OpBrleq.IsBranch() || OpAdd.IsJump() || !OpOr.IsBinary() || OpAssign.IsBinary() {
		t.Error("opcode predicates misclassify")
	}
	if got := Opcode(99).String(); got != "opcode(99)" {
		t.Errorf("out of range opcode renders as %q", got)
	}
}
