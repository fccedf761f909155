package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a diagnostic.
type Kind int

const (
	KindSyntax Kind = iota
	KindOverflow
	KindUnderflow
	KindParsing
	KindIteration
	KindFile
)

var kindNames = map[Kind]string{
	KindSyntax:    "syntax",
	KindOverflow:  "overflow",
	KindUnderflow: "underflow",
	KindParsing:   "parsing",
	KindIteration: "iteration",
	KindFile:      "file",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. Every *Error unwraps to the sentinel of its kind.
var (
	ErrSyntax    = errors.New("syntax error")
	ErrOverflow  = errors.New("overflow error")
	ErrUnderflow = errors.New("underflow error")
	ErrParsing   = errors.New("parsing error")
	ErrIteration = errors.New("iteration error")
	ErrFile      = errors.New("file error")
)

var sentinels = map[Kind]error{
	KindSyntax:    ErrSyntax,
	KindOverflow:  ErrOverflow,
	KindUnderflow: ErrUnderflow,
	KindParsing:   ErrParsing,
	KindIteration: ErrIteration,
	KindFile:      ErrFile,
}

// Target says what left its valid range in an overflow or underflow.
type Target int

const (
	TargetNone Target = iota
	TargetPointer
	TargetCell
)

// Error is a diagnostic raised while validating or running a program, or
// while loading its source.
type Error struct {
	Kind    Kind
	Message string   // detail, without the kind or location prefix
	Offset  int      // byte offset of the offending instruction, -1 if none
	Pos     Position // resolved from Offset, zero if none

	Char   rune   // unmatched bracket (syntax)
	Target Target // overflow/underflow subject
	Cell   int    // tape index when Target is TargetCell
	Limit  int    // configured maximum (iteration)
	Path   string // source path (file)
	Err    error  // underlying cause (file)
}

func (e *Error) Error() string {
	prefix := sentinels[e.Kind].Error()
	if e.Kind == KindFile || e.Pos.IsZero() {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return fmt.Sprintf("%s at line %d, column %d: %s", prefix, e.Pos.Line, e.Pos.Column, e.Message)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Syntax reports an unmatched bracket at offset.
func Syntax(program string, offset int, ch rune) *Error {
	return &Error{
		Kind:    KindSyntax,
		Message: fmt.Sprintf("unmatched '%c'", ch),
		Offset:  offset,
		Pos:     Resolve(offset, program),
		Char:    ch,
	}
}

// Overflow reports the pointer moving past the end of the tape, or a cell
// exceeding 255.
func Overflow(program string, offset int, target Target, cell int) *Error {
	msg := "data pointer moved past the end of the tape"
	if target == TargetCell {
		msg = fmt.Sprintf("value of cell %d exceeded 255", cell)
	}
	return rangeError(KindOverflow, program, offset, target, cell, msg)
}

// Underflow reports the pointer moving before the start of the tape, or a
// cell going below zero.
func Underflow(program string, offset int, target Target, cell int) *Error {
	msg := "data pointer moved before the start of the tape"
	if target == TargetCell {
		msg = fmt.Sprintf("value of cell %d went below 0", cell)
	}
	return rangeError(KindUnderflow, program, offset, target, cell, msg)
}

func rangeError(kind Kind, program string, offset int, target Target, cell int, msg string) *Error {
	e := &Error{
		Kind:    kind,
		Message: msg,
		Offset:  offset,
		Pos:     Resolve(offset, program),
		Target:  target,
	}
	if target == TargetCell {
		e.Cell = cell
	}
	return e
}

// Parsing reports a byte at offset that does not decode as a character.
func Parsing(program string, offset int) *Error {
	msg := "cannot decode character"
	if offset >= 0 && offset < len(program) {
		msg = fmt.Sprintf("cannot decode byte 0x%02x as a character", program[offset])
	}
	return &Error{
		Kind:    KindParsing,
		Message: msg,
		Offset:  offset,
		Pos:     Resolve(offset, program),
	}
}

// Iteration reports a loop judged runaway at the loop-close at offset.
func Iteration(program string, offset int, limit int) *Error {
	return &Error{
		Kind:    KindIteration,
		Message: fmt.Sprintf("loop exceeded %d iterations", limit),
		Offset:  offset,
		Pos:     Resolve(offset, program),
		Limit:   limit,
	}
}

// File reports a source that could not be read.
func File(path string, err error) *Error {
	return &Error{
		Kind:    KindFile,
		Message: fmt.Sprintf("cannot read %s: %v", path, err),
		Offset:  -1,
		Path:    path,
		Err:     err,
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
