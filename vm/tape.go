package vm

import (
	"fmt"
	"strings"
)

// TapeSize is the number of cells on the tape.
const TapeSize = 65536

// MaxPointer is the highest valid data pointer.
const MaxPointer = TapeSize - 1

// Tape is the fixed array of byte cells a program manipulates.
type Tape [TapeSize]byte

// State is the data pointer and tape carried between runs. It is a plain
// value: Run takes a copy and returns the updated copy.
type State struct {
	Pointer uint16
	Tape    Tape
}

// NewState returns a zeroed tape with the pointer at cell 0.
func NewState() State {
	return State{}
}

// Cell returns the value under the data pointer.
func (s *State) Cell() byte {
	return s.Tape[s.Pointer]
}

// Used returns one past the index of the highest non-zero cell, or 0 for a
// blank tape.
func (s *State) Used() int {
	for i := MaxPointer; i >= 0; i-- {
		if s.Tape[i] != 0 {
			return i + 1
		}
	}
	return 0
}

// Dump renders count cells starting at start, marking the data pointer.
func (s *State) Dump(start, count int) string {
	if start < 0 {
		start = 0
	}
	end := start + count
	if end > TapeSize {
		end = TapeSize
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			b.WriteByte(' ')
		}
		if i == int(s.Pointer) {
			fmt.Fprintf(&b, "[%d]", s.Tape[i])
		} else {
			fmt.Fprintf(&b, "%d", s.Tape[i])
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Arithmetic policy
// ---------------------------------------------------------------------------

// Mode selects what happens when the pointer or a cell leaves its range.
type Mode int

const (
	// ModeSafe aborts the run with an overflow or underflow error.
	ModeSafe Mode = iota
	// ModeUnsafe wraps around silently.
	ModeUnsafe
)

func (m Mode) String() string {
	switch m {
	case ModeSafe:
		return "safe"
	case ModeUnsafe:
		return "unsafe"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses "safe" or "unsafe". The empty string is safe.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "safe":
		return ModeSafe, nil
	case "unsafe", "wrap":
		return ModeUnsafe, nil
	}
	return ModeSafe, fmt.Errorf("unknown mode %q (use safe or unsafe)", s)
}
