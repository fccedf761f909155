package server

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tape/compiler"
	"github.com/chazu/tape/diag"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tape-lsp"

// LspServer publishes bracket diagnostics and instruction docs to editors.
type LspServer struct {
	syntax compiler.Syntax

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
	log     commonlog.Logger
}

// NewLSP creates a new LSP server. Hover documentation follows syntax.
func NewLSP(syntax compiler.Syntax) *LspServer {
	s := &LspServer{
		syntax:  syntax,
		docs:    make(map[string]string),
		version: "0.1.0",
		log:     commonlog.GetLogger("tape.lsp"),
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover: s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.log.Infof("initializing (%s syntax)", s.syntax)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.mu.Lock()
	text, ok := s.docs[string(params.TextDocument.URI)]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return s.hover(text, params.Position), nil
}

// hover describes the instruction under pos, or returns nil for anything
// the interpreter ignores.
func (s *LspServer) hover(text string, pos protocol.Position) *protocol.Hover {
	if int(pos.Line) > strings.Count(text, "\n") {
		return nil
	}
	offset := pos.IndexIn(text)
	if offset >= len(text) {
		return nil
	}
	// IndexIn falls back to 0 or the line end for positions it cannot map.
	if strings.Count(text[:offset], "\n") != int(pos.Line) || utf16Column(text, offset) != pos.Character {
		return nil
	}
	r, size := utf8.DecodeRuneInString(text[offset:])
	if r == utf8.RuneError && size <= 1 {
		return nil
	}

	op := s.syntax.Classify(r)
	desc := op.Describe()
	if desc == "" {
		return nil
	}

	start := protocol.Position{Line: pos.Line, Character: utf16Column(text, offset)}
	end := protocol.Position{Line: pos.Line, Character: start.Character + protocol.UInteger(len(utf16.Encode([]rune{r})))}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: "**`" + string(r) + "`**\n\n" + desc,
		},
		Range: &protocol.Range{Start: start, End: end},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics := diagnosticsFor(text)
	if len(diagnostics) > 0 {
		s.log.Debugf("%s: %s", uri, diagnostics[0].Message)
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticsFor validates text and returns at most one diagnostic, placed
// on the offending bracket.
func diagnosticsFor(text string) []protocol.Diagnostic {
	err := compiler.Validate(text)
	if err == nil {
		return []protocol.Diagnostic{}
	}

	var de *diag.Error
	if !errors.As(err, &de) {
		return []protocol.Diagnostic{}
	}

	line := protocol.UInteger(0)
	if de.Pos.Line > 0 {
		line = protocol.UInteger(de.Pos.Line - 1)
	}
	col := utf16Column(text, de.Offset)

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + 1},
		},
		Severity: &severity,
		Source:   &source,
		Message:  de.Message,
	}}
}

// --- Position helpers ---

// utf16Column returns the LSP character offset of the byte at offset, that
// is the number of UTF-16 code units between the start of its line and it.
func utf16Column(text string, offset int) protocol.UInteger {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1

	var units protocol.UInteger
	for _, r := range text[lineStart:offset] {
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return units
}

func boolPtr(b bool) *bool {
	return &b
}
