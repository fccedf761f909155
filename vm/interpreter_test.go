package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/diag"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func safeConfig() Config {
	return Config{Syntax: compiler.SyntaxBase, Mode: ModeSafe}
}

func unsafeConfig() Config {
	return Config{Syntax: compiler.SyntaxBase, Mode: ModeUnsafe}
}

// run executes source on a fresh tape and returns the output.
func run(t *testing.T, cfg Config, source, input string) (State, string, error) {
	t.Helper()
	var out bytes.Buffer
	it := New(cfg, WithInput(strings.NewReader(input)), WithOutput(&out))
	st, err := it.Run(source, NewState())
	return st, out.String(), err
}

func asDiag(t *testing.T, err error) *diag.Error {
	t.Helper()
	var de *diag.Error
	if !errors.As(err, &de) {
		t.Fatalf("error %v (%T) is not a *diag.Error", err, err)
	}
	return de
}

// ---------------------------------------------------------------------------
// Basic dispatch
// ---------------------------------------------------------------------------

func TestRunHelloWorld(t *testing.T) {
	source := `++++++++[>++++[>++>+++>+++>+<<<<-]>+>+>->>+[<]<-]>>.>---.+++++++..+++.>>.<-.<.+++.------.--------.>>+.>++.`
	_, out, err := run(t, safeConfig(), source, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "Hello World!\n" {
		t.Errorf("output = %q, want %q", out, "Hello World!\n")
	}
}

func TestRunMovesPointerAndCells(t *testing.T) {
	st, _, err := run(t, safeConfig(), "+++>++>+<-", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Pointer != 1 {
		t.Errorf("pointer = %d, want 1", st.Pointer)
	}
	want := []byte{3, 1, 1}
	for i, w := range want {
		if st.Tape[i] != w {
			t.Errorf("cell %d = %d, want %d", i, st.Tape[i], w)
		}
	}
}

func TestRunIgnoresInertCharacters(t *testing.T) {
	st, _, err := run(t, safeConfig(), "hello + world é +\n# :; +", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 3 {
		t.Errorf("cell 0 = %d, want 3", st.Tape[0])
	}
}

func TestRunIsDeterministic(t *testing.T) {
	source := "++[>+++[>++<-]<-]>>."
	_, first, err := run(t, safeConfig(), source, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, out, err := run(t, safeConfig(), source, "")
		if err != nil || out != first {
			t.Errorf("run %d: output %q, err %v; want %q", i, out, err, first)
		}
	}
}

func TestRunDoesNotModifyCallerState(t *testing.T) {
	it := New(safeConfig())
	start := NewState()
	start.Tape[0] = 9

	st, err := it.Run("+>+", start)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if start.Tape[0] != 9 || start.Pointer != 0 {
		t.Error("Run modified the caller's state")
	}
	if st.Tape[0] != 10 || st.Tape[1] != 1 || st.Pointer != 1 {
		t.Errorf("result = ptr %d cells %v", st.Pointer, st.Tape[:2])
	}
}

func TestRunThreadsStateBetweenCalls(t *testing.T) {
	it := New(safeConfig())
	st := NewState()
	var err error
	for _, line := range []string{"+++", ">", "++", "<[->+<]"} {
		st, err = it.Run(line, st)
		if err != nil {
			t.Fatalf("Run(%q) failed: %v", line, err)
		}
	}
	if st.Tape[0] != 0 || st.Tape[1] != 5 || st.Pointer != 0 {
		t.Errorf("state = ptr %d cells %v, want ptr 0 cells [0 5]", st.Pointer, st.Tape[:2])
	}
}

// ---------------------------------------------------------------------------
// Cell range policy
// ---------------------------------------------------------------------------

func TestCellOverflowSafe(t *testing.T) {
	source := strings.Repeat("+", 255) + "."
	st, out, err := run(t, safeConfig(), source, "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "\xff" {
		t.Errorf("output = %q, want byte 255", out)
	}
	if st.Tape[0] != 255 {
		t.Errorf("cell 0 = %d, want 255", st.Tape[0])
	}

	_, _, err = run(t, safeConfig(), strings.Repeat("+", 256), "")
	if !errors.Is(err, diag.ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
	de := asDiag(t, err)
	if de.Offset != 255 || de.Target != diag.TargetCell || de.Cell != 0 {
		t.Errorf("offset/target/cell = %d/%v/%d, want 255/cell/0", de.Offset, de.Target, de.Cell)
	}
}

func TestCellOverflowUnsafeWraps(t *testing.T) {
	st, _, err := run(t, unsafeConfig(), strings.Repeat("+", 256), "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 0 {
		t.Errorf("cell 0 = %d, want 0", st.Tape[0])
	}
}

func TestCellUnderflow(t *testing.T) {
	_, _, err := run(t, safeConfig(), ">>-", "")
	if !errors.Is(err, diag.ErrUnderflow) {
		t.Fatalf("error = %v, want ErrUnderflow", err)
	}
	de := asDiag(t, err)
	if de.Target != diag.TargetCell || de.Cell != 2 || de.Offset != 2 {
		t.Errorf("target/cell/offset = %v/%d/%d, want cell/2/2", de.Target, de.Cell, de.Offset)
	}

	st, _, err := run(t, unsafeConfig(), "-", "")
	if err != nil {
		t.Fatalf("unsafe Run failed: %v", err)
	}
	if st.Tape[0] != 255 {
		t.Errorf("cell 0 = %d, want 255", st.Tape[0])
	}
}

// ---------------------------------------------------------------------------
// Pointer range policy
// ---------------------------------------------------------------------------

func TestPointerUnderflow(t *testing.T) {
	_, _, err := run(t, safeConfig(), "<", "")
	if !errors.Is(err, diag.ErrUnderflow) {
		t.Fatalf("error = %v, want ErrUnderflow", err)
	}
	de := asDiag(t, err)
	if de.Offset != 0 || de.Target != diag.TargetPointer {
		t.Errorf("offset/target = %d/%v, want 0/pointer", de.Offset, de.Target)
	}
	if de.Pos.Line != 1 || de.Pos.Column != 1 {
		t.Errorf("position = %s, want 1:1", de.Pos)
	}

	st, _, err := run(t, unsafeConfig(), "<", "")
	if err != nil {
		t.Fatalf("unsafe Run failed: %v", err)
	}
	if st.Pointer != MaxPointer {
		t.Errorf("pointer = %d, want %d", st.Pointer, MaxPointer)
	}
}

func TestPointerOverflow(t *testing.T) {
	start := NewState()
	start.Pointer = MaxPointer

	_, err := New(safeConfig()).Run("\n>", start)
	if !errors.Is(err, diag.ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
	de := asDiag(t, err)
	if de.Target != diag.TargetPointer || de.Pos.Line != 2 || de.Pos.Column != 1 {
		t.Errorf("target/pos = %v/%s, want pointer at 2:1", de.Target, de.Pos)
	}

	st, err := New(unsafeConfig()).Run(">", start)
	if err != nil {
		t.Fatalf("unsafe Run failed: %v", err)
	}
	if st.Pointer != 0 {
		t.Errorf("pointer = %d, want 0", st.Pointer)
	}
}

// ---------------------------------------------------------------------------
// Input
// ---------------------------------------------------------------------------

func TestInputEcho(t *testing.T) {
	_, out, err := run(t, safeConfig(), ",.", "A")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "A" {
		t.Errorf("output = %q, want %q", out, "A")
	}
}

func TestInputAtEOFLeavesCell(t *testing.T) {
	st, _, err := run(t, safeConfig(), "+++,", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 3 {
		t.Errorf("cell 0 = %d, want 3", st.Tape[0])
	}
}

func TestInputWithoutReader(t *testing.T) {
	st, err := New(safeConfig()).Run("++,", NewState())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 2 {
		t.Errorf("cell 0 = %d, want 2", st.Tape[0])
	}
}

func TestInputMultibyteSafeStoresFirstByte(t *testing.T) {
	st, _, err := run(t, safeConfig(), ",", "é") // 0xC3 0xA9
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 0xC3 || st.Tape[1] != 0 {
		t.Errorf("cells = %x, want [c3 00]", st.Tape[:2])
	}
}

func TestInputMultibyteUnsafeSpreads(t *testing.T) {
	st, _, err := run(t, unsafeConfig(), ">,", "é")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[1] != 0xC3 || st.Tape[2] != 0xA9 {
		t.Errorf("cells = %x, want [00 c3 a9]", st.Tape[:3])
	}
	if st.Pointer != 1 {
		t.Errorf("pointer = %d, want 1", st.Pointer)
	}
}

func TestInputUnsafeSpreadWrapsTape(t *testing.T) {
	start := NewState()
	start.Pointer = MaxPointer
	st, err := New(unsafeConfig(), WithInput(strings.NewReader("é"))).Run(",", start)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[MaxPointer] != 0xC3 || st.Tape[0] != 0xA9 {
		t.Errorf("cells = %x %x, want c3 a9", st.Tape[MaxPointer], st.Tape[0])
	}
}

func TestInputReadsOneCharacterPerInstruction(t *testing.T) {
	_, out, err := run(t, safeConfig(), ",.,.,.", "xyz")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "xyz" {
		t.Errorf("output = %q, want %q", out, "xyz")
	}
}

// ---------------------------------------------------------------------------
// Extended syntax
// ---------------------------------------------------------------------------

func TestPrintValueExtended(t *testing.T) {
	cfg := safeConfig()
	cfg.Syntax = compiler.SyntaxExtended
	_, out, err := run(t, cfg, "+++++++++++++:>:", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "130" {
		t.Errorf("output = %q, want %q", out, "130")
	}
}

func TestExtendedCharactersInertInBaseSyntax(t *testing.T) {
	_, out, err := run(t, safeConfig(), "+:;", "A")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q, want none", out)
	}
}

func TestAccumulateAddsInput(t *testing.T) {
	cfg := safeConfig()
	cfg.Syntax = compiler.SyntaxExtended
	st, _, err := run(t, cfg, "++;", "A")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[0] != 'A'+2 {
		t.Errorf("cell 0 = %d, want %d", st.Tape[0], 'A'+2)
	}
}

func TestAccumulateOverflow(t *testing.T) {
	cfg := safeConfig()
	cfg.Syntax = compiler.SyntaxExtended
	source := strings.Repeat("+", 200) + ";"
	_, _, err := run(t, cfg, source, "A")
	if !errors.Is(err, diag.ErrOverflow) {
		t.Fatalf("error = %v, want ErrOverflow", err)
	}
	if de := asDiag(t, err); de.Offset != 200 {
		t.Errorf("offset = %d, want 200", de.Offset)
	}

	cfg.Mode = ModeUnsafe
	st, _, err := run(t, cfg, source, "A")
	if err != nil {
		t.Fatalf("unsafe Run failed: %v", err)
	}
	if want := byte((200 + 'A') % 256); st.Tape[0] != want {
		t.Errorf("cell 0 = %d, want %d", st.Tape[0], want)
	}
}

// ---------------------------------------------------------------------------
// Loops and the iteration watchdog
// ---------------------------------------------------------------------------

func TestLoopSkippedWhenCellZero(t *testing.T) {
	_, out, err := run(t, safeConfig(), "[.+]+.", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "\x01" {
		t.Errorf("output = %q, want %q", out, "\x01")
	}
}

func TestIterationGuardStopsRunawayLoop(t *testing.T) {
	_, _, err := run(t, safeConfig(), "+[]", "")
	if !errors.Is(err, diag.ErrIteration) {
		t.Fatalf("error = %v, want ErrIteration", err)
	}
	de := asDiag(t, err)
	if de.Limit != DefaultMaxIterations {
		t.Errorf("limit = %d, want %d", de.Limit, DefaultMaxIterations)
	}
	if de.Offset != 2 {
		t.Errorf("offset = %d, want 2", de.Offset)
	}
}

func TestIterationGuardConfiguredLimit(t *testing.T) {
	cfg := unsafeConfig()
	cfg.MaxIterations = 10
	_, _, err := run(t, cfg, "+[+]", "")
	if !errors.Is(err, diag.ErrIteration) {
		t.Fatalf("error = %v, want ErrIteration", err)
	}
	if de := asDiag(t, err); de.Limit != 10 {
		t.Errorf("limit = %d, want 10", de.Limit)
	}
}

func TestIterationLimitIsPerLoop(t *testing.T) {
	// The inner loop runs 8 times on each of 8 outer iterations: 64 back
	// jumps in total, but never more than 8 for one loop entry.
	cfg := safeConfig()
	cfg.MaxIterations = 8
	st, _, err := run(t, cfg, "++++++++[>++++++++[>+<-]<-]", "")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if st.Tape[2] != 64 {
		t.Errorf("cell 2 = %d, want 64", st.Tape[2])
	}
}

func TestIterationLimitExactBoundary(t *testing.T) {
	// Cell 0 = 4: the loop body runs four times, jumping back three times.
	cfg := safeConfig()
	cfg.MaxIterations = 3
	if _, _, err := run(t, cfg, "++++[-]", ""); err != nil {
		t.Errorf("3 back jumps with limit 3 failed: %v", err)
	}
	if _, _, err := run(t, cfg, "+++++[-]", ""); !errors.Is(err, diag.ErrIteration) {
		t.Errorf("4 back jumps with limit 3: error = %v, want ErrIteration", err)
	}
}

func TestIterationWatchdogDisabled(t *testing.T) {
	// The pointer laps the whole tape twice before cell 0 reaches zero:
	// 131071 back jumps on a single loop entry.
	source := "++[>-]"

	if _, _, err := run(t, unsafeConfig(), source, ""); !errors.Is(err, diag.ErrIteration) {
		t.Fatalf("default limit: error = %v, want ErrIteration", err)
	}

	cfg := unsafeConfig()
	cfg.MaxIterations = -1
	st, _, err := run(t, cfg, source, "")
	if err != nil {
		t.Fatalf("Run with watchdog disabled failed: %v", err)
	}
	if st.Pointer != 0 || st.Tape[0] != 0 || st.Tape[1] != 254 {
		t.Errorf("state = ptr %d cells %v, want ptr 0 cells [0 254]", st.Pointer, st.Tape[:2])
	}
}

func TestConfigIterationLimit(t *testing.T) {
	tests := []struct {
		max  int
		want int
	}{
		{0, DefaultMaxIterations},
		{-5, -1},
		{100, 100},
	}
	for _, tc := range tests {
		if got := (Config{MaxIterations: tc.max}).IterationLimit(); got != tc.want {
			t.Errorf("IterationLimit(%d) = %d, want %d", tc.max, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Failures before and during execution
// ---------------------------------------------------------------------------

func TestSyntaxErrorBeforeExecution(t *testing.T) {
	_, out, err := run(t, safeConfig(), "+.[", "")
	if !errors.Is(err, diag.ErrSyntax) {
		t.Fatalf("error = %v, want ErrSyntax", err)
	}
	if out != "" {
		t.Errorf("output = %q, want nothing: execution must not start", out)
	}
}

func TestParsingErrorOnInvalidUTF8(t *testing.T) {
	_, out, err := run(t, safeConfig(), "+.\xff.", "")
	if !errors.Is(err, diag.ErrParsing) {
		t.Fatalf("error = %v, want ErrParsing", err)
	}
	if de := asDiag(t, err); de.Offset != 2 {
		t.Errorf("offset = %d, want 2", de.Offset)
	}
	if out != "\x01" {
		t.Errorf("output before the failure = %q, want %q", out, "\x01")
	}
}

func TestFailedRunReturnsZeroState(t *testing.T) {
	st, _, err := run(t, safeConfig(), "+++<", "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if st.Tape[0] != 0 || st.Pointer != 0 {
		t.Error("failed run should return the zero State")
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(safeConfig()).RunContext(ctx, "+", NewState())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestExecUsesProgramSyntax(t *testing.T) {
	prog, err := compiler.Compile("+:", compiler.SyntaxExtended)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	var out bytes.Buffer
	if _, err := New(safeConfig(), WithOutput(&out)).Exec(context.Background(), prog, NewState()); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if out.String() != "1" {
		t.Errorf("output = %q, want %q", out.String(), "1")
	}
}
