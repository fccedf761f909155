package compiler

import (
	"unicode/utf8"

	"github.com/chazu/tape/diag"
)

// Program is validated source ready to run. Bracket partners are found
// with MatchBracket the first time a jump is taken and cached after that.
type Program struct {
	Source string
	Syntax Syntax

	jumps map[int]int
}

// Compile validates source and returns a Program for it.
func Compile(source string, syntax Syntax) (*Program, error) {
	if err := Validate(source); err != nil {
		return nil, err
	}
	return &Program{
		Source: source,
		Syntax: syntax,
		jumps:  make(map[int]int),
	}, nil
}

// Len returns the length of the source in bytes.
func (p *Program) Len() int {
	return len(p.Source)
}

// Next decodes the character at offset and classifies it. It returns the
// op, the character, and its width in bytes. A byte sequence that is not
// valid UTF-8 yields a parsing error.
func (p *Program) Next(offset int) (Op, rune, int, error) {
	if offset < 0 || offset >= len(p.Source) {
		return OpInert, 0, 0, diag.Parsing(p.Source, offset)
	}
	r, size := utf8.DecodeRuneInString(p.Source[offset:])
	if r == utf8.RuneError && size <= 1 {
		return OpInert, r, size, diag.Parsing(p.Source, offset)
	}
	return p.Syntax.Classify(r), r, size, nil
}

// Jump returns the offset of the bracket paired with the one at offset.
func (p *Program) Jump(offset int) (int, error) {
	if target, ok := p.jumps[offset]; ok {
		return target, nil
	}
	target := MatchBracket(offset, p.Source)
	if target < 0 {
		ch := '['
		if offset >= 0 && offset < len(p.Source) {
			ch = rune(p.Source[offset])
		}
		return -1, diag.Syntax(p.Source, offset, ch)
	}
	p.jumps[offset] = target
	return target, nil
}

// Ops returns the active instructions of the program in order, with their
// offsets. Inert characters are skipped. Decoding stops at the first
// invalid byte.
func (p *Program) Ops() ([]Instruction, error) {
	var out []Instruction
	for i := 0; i < len(p.Source); {
		op, r, size, err := p.Next(i)
		if err != nil {
			return out, err
		}
		if op != OpInert {
			out = append(out, Instruction{Op: op, Char: r, Offset: i})
		}
		i += size
	}
	return out, nil
}

// Instruction is one active character of a program.
type Instruction struct {
	Op     Op
	Char   rune
	Offset int
}
