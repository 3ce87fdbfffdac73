package main

import "fmt"

// FuncID generates a deterministic ID for a function of an IR file.
func FuncID(file, name string) string {
	return fmt.Sprintf("fn::%s::%s", file, name)
}

// InstrID generates the ID of the instruction at local index idx.
func InstrID(funcID string, idx int) string {
	return fmt.Sprintf("%s::i%d", funcID, idx)
}

// VarID generates the ID of a parameter or local of a function.
func VarID(funcID, name string) string {
	return funcID + "::var::" + name
}

// ExternalID generates the ID of a callee that no loaded file defines.
func ExternalID(name string) string {
	return "ext::" + name
}

// FileID generates a node ID for a source file.
func FileID(file string) string {
	return "file::" + file
}
