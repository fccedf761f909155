package vm

import "testing"

func TestNewStateIsZeroed(t *testing.T) {
	st := NewState()
	if st.Pointer != 0 {
		t.Errorf("pointer = %d, want 0", st.Pointer)
	}
	if st.Used() != 0 {
		t.Errorf("Used() = %d, want 0", st.Used())
	}
	if len(st.Tape) != 65536 {
		t.Errorf("tape size = %d, want 65536", len(st.Tape))
	}
}

func TestStateUsed(t *testing.T) {
	st := NewState()
	st.Tape[3] = 1
	if st.Used() != 4 {
		t.Errorf("Used() = %d, want 4", st.Used())
	}
	st.Tape[MaxPointer] = 7
	if st.Used() != TapeSize {
		t.Errorf("Used() = %d, want %d", st.Used(), TapeSize)
	}
}

func TestStateDump(t *testing.T) {
	st := NewState()
	st.Tape[0] = 3
	st.Tape[1] = 10
	st.Pointer = 1

	if got := st.Dump(0, 4); got != "3 [10] 0 0" {
		t.Errorf("Dump(0, 4) = %q, want %q", got, "3 [10] 0 0")
	}
	if got := st.Dump(MaxPointer, 10); got != "0" {
		t.Errorf("Dump at end of tape = %q, want %q", got, "0")
	}
	if got := st.Dump(-2, 1); got != "3" {
		t.Errorf("Dump(-2, 1) = %q, want %q", got, "3")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"", ModeSafe},
		{"safe", ModeSafe},
		{"UNSAFE", ModeUnsafe},
		{"wrap", ModeUnsafe},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.input)
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
	if _, err := ParseMode("strict"); err == nil {
		t.Error("ParseMode(\"strict\") should fail")
	}
}
