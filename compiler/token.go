package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instruction set
// ---------------------------------------------------------------------------

// Op is the instruction a source character dispatches to.
type Op int

const (
	// OpInert is every character that is not an active instruction under
	// the current syntax, including comments and disabled extensions.
	OpInert Op = iota

	OpRight      // >
	OpLeft       // <
	OpIncrement  // +
	OpDecrement  // -
	OpOutput     // .
	OpInput      // ,
	OpLoopOpen   // [
	OpLoopClose  // ]
	OpPrintValue // : (extended)
	OpAccumulate // ; (extended)
)

var opNames = map[Op]string{
	OpInert:      "INERT",
	OpRight:      ">",
	OpLeft:       "<",
	OpIncrement:  "+",
	OpDecrement:  "-",
	OpOutput:     ".",
	OpInput:      ",",
	OpLoopOpen:   "[",
	OpLoopClose:  "]",
	OpPrintValue: ":",
	OpAccumulate: ";",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

var opDescriptions = map[Op]string{
	OpRight:      "Increment the data pointer.",
	OpLeft:       "Decrement the data pointer.",
	OpIncrement:  "Increment the value at the data pointer.",
	OpDecrement:  "Decrement the value at the data pointer.",
	OpOutput:     "Output the value at the data pointer as one byte.",
	OpInput:      "Read one character of input and store it at the data pointer.",
	OpLoopOpen:   "If the value at the data pointer is zero, jump past the matching ].",
	OpLoopClose:  "If the value at the data pointer is nonzero, jump back past the matching [.",
	OpPrintValue: "Output the value at the data pointer as a decimal number.",
	OpAccumulate: "Read one character of input and add it to the value at the data pointer.",
}

// Describe returns a one-line explanation of the instruction, or "" for
// OpInert.
func (op Op) Describe() string {
	return opDescriptions[op]
}

var baseOps = map[rune]Op{
	'>': OpRight,
	'<': OpLeft,
	'+': OpIncrement,
	'-': OpDecrement,
	'.': OpOutput,
	',': OpInput,
	'[': OpLoopOpen,
	']': OpLoopClose,
}

var extendedOps = map[rune]Op{
	':': OpPrintValue,
	';': OpAccumulate,
}

// ---------------------------------------------------------------------------
// Syntax: which characters are active instructions
// ---------------------------------------------------------------------------

// Syntax selects the active instruction set for a run.
type Syntax int

const (
	SyntaxBase Syntax = iota
	SyntaxExtended
)

func (s Syntax) String() string {
	switch s {
	case SyntaxBase:
		return "base"
	case SyntaxExtended:
		return "extended"
	}
	return fmt.Sprintf("Syntax(%d)", int(s))
}

// ParseSyntax parses "base" or "extended". The empty string is base.
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "base":
		return SyntaxBase, nil
	case "extended", "ext":
		return SyntaxExtended, nil
	}
	return SyntaxBase, fmt.Errorf("unknown syntax %q (use base or extended)", s)
}

// Classify maps a character to its instruction under s.
func (s Syntax) Classify(r rune) Op {
	if op, ok := baseOps[r]; ok {
		return op
	}
	if s == SyntaxExtended {
		if op, ok := extendedOps[r]; ok {
			return op
		}
	}
	return OpInert
}
