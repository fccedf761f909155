// Package diag resolves source locations and defines the error taxonomy
// shared by the validator, the interpreter, and their callers.
package diag

import (
	"fmt"
	"strings"
)

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based byte column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsZero reports whether p was never resolved.
func (p Position) IsZero() bool {
	return p.Line == 0
}

// Resolve maps a byte offset in program to its line and column.
// Offsets outside the program are clamped to its bounds.
func Resolve(offset int, program string) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(program) {
		offset = len(program)
	}

	prefix := program[:offset]
	lastNL := strings.LastIndexByte(prefix, '\n')
	return Position{
		Offset: offset,
		Line:   1 + strings.Count(prefix, "\n"),
		Column: offset - lastNL,
	}
}
