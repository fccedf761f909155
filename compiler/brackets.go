package compiler

import "github.com/chazu/tape/diag"

// Validate checks that every '[' in program has a matching ']' and vice
// versa. On failure it returns a *diag.Error of kind syntax.
//
// The reported location is approximate: an unmatched '[' is reported at the
// last '[' in the program, and an unmatched ']' at the first ']' that closes
// more brackets than have been opened.
func Validate(program string) error {
	depth := 0
	lastOpen, lastClose := -1, -1

	for i := 0; i < len(program); i++ {
		switch program[i] {
		case '[':
			depth++
			lastOpen = i
		case ']':
			depth--
			lastClose = i
			if depth < 0 {
				return diag.Syntax(program, lastClose, ']')
			}
		}
	}

	if depth > 0 {
		return diag.Syntax(program, lastOpen, '[')
	}
	return nil
}

// MatchBracket returns the offset of the bracket paired with the one at
// start. A ']' is matched by scanning backward; anything else by scanning
// forward. It returns -1 when no partner exists, which only happens for
// programs that fail Validate.
func MatchBracket(start int, program string) int {
	if start < 0 || start >= len(program) {
		return -1
	}

	depth := 0
	if program[start] == ']' {
		for i := start; i >= 0; i-- {
			switch program[i] {
			case ']':
				depth++
			case '[':
				depth--
			}
			if depth == 0 {
				return i
			}
		}
		return -1
	}

	for i := start; i < len(program); i++ {
		switch program[i] {
		case '[':
			depth++
		case ']':
			depth--
		}
		if depth == 0 {
			return i
		}
	}
	return -1
}
