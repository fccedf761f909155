package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/tape/compiler"
)

// ---------------------------------------------------------------------------
// utf16Column
// ---------------------------------------------------------------------------

func TestUTF16Column(t *testing.T) {
	tests := []struct {
		text   string
		offset int
		want   protocol.UInteger
	}{
		{"+[", 1, 1},
		{"ab\ncd[", 5, 2},
		{"é[", 2, 1},
		{"😀[", 4, 2},
		{"x\n😀😀]", 10, 4},
		{"abc", 99, 3},
		{"abc", -1, 0},
	}

	for _, tc := range tests {
		if got := utf16Column(tc.text, tc.offset); got != tc.want {
			t.Errorf("utf16Column(%q, %d) = %d, want %d", tc.text, tc.offset, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// diagnosticsFor
// ---------------------------------------------------------------------------

func TestDiagnosticsFor_Valid(t *testing.T) {
	diags := diagnosticsFor("+[>+<-]")
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnosticsFor valid = %v, want empty non-nil slice", diags)
	}
}

func TestDiagnosticsFor_UnmatchedOpen(t *testing.T) {
	diags := diagnosticsFor("++\n+[>+")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 1 {
		t.Errorf("start = %d:%d, want 1:1", d.Range.Start.Line, d.Range.Start.Character)
	}
	if d.Range.End.Character != 2 {
		t.Errorf("end character = %d, want 2", d.Range.End.Character)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("diagnostic should be an error")
	}
	if !strings.Contains(d.Message, "'['") {
		t.Errorf("message = %q, want it to mention '['", d.Message)
	}
}

func TestDiagnosticsFor_UnmatchedCloseAfterMultibyte(t *testing.T) {
	diags := diagnosticsFor("😀]")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if c := diags[0].Range.Start.Character; c != 2 {
		t.Errorf("start character = %d, want 2", c)
	}
}

// ---------------------------------------------------------------------------
// hover
// ---------------------------------------------------------------------------

func TestHover_Instruction(t *testing.T) {
	s := NewLSP(compiler.SyntaxBase)
	h := s.hover("+\n>.", protocol.Position{Line: 1, Character: 1})
	if h == nil {
		t.Fatal("hover over '.' returned nil")
	}
	content, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("contents type = %T, want MarkupContent", h.Contents)
	}
	if want := compiler.OpOutput.Describe(); !strings.Contains(content.Value, want) {
		t.Errorf("hover = %q, want it to contain %q", content.Value, want)
	}
	if h.Range == nil || h.Range.Start.Character != 1 || h.Range.End.Character != 2 {
		t.Errorf("hover range = %+v, want 1..2", h.Range)
	}
}

func TestHover_IgnoredCharacters(t *testing.T) {
	s := NewLSP(compiler.SyntaxBase)
	tests := []struct {
		text string
		pos  protocol.Position
	}{
		{"a+", protocol.Position{Line: 0, Character: 0}},
		{"+:", protocol.Position{Line: 0, Character: 1}}, // extended only
		{"+", protocol.Position{Line: 0, Character: 5}},
		{"+", protocol.Position{Line: 3, Character: 0}},
		{"", protocol.Position{Line: 0, Character: 0}},
	}
	for _, tc := range tests {
		if h := s.hover(tc.text, tc.pos); h != nil {
			t.Errorf("hover(%q, %v) = %+v, want nil", tc.text, tc.pos, h)
		}
	}
}

func TestHover_ExtendedSyntax(t *testing.T) {
	s := NewLSP(compiler.SyntaxExtended)
	if h := s.hover("😀:", protocol.Position{Line: 0, Character: 2}); h == nil {
		t.Error("hover over ':' in extended syntax returned nil")
	}
}
