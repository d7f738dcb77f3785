package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/pl0c/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "pl0c-lsp"

var lspLog = commonlog.GetLogger("pl0c.lsp")

// LspServer provides diagnostics, hover, definition, references and
// completion for PL/0 documents.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]*document // URI → analyzed document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// document is one open text and the result of checking it. table is nil or
// partial when the text does not compile.
type document struct {
	text  string
	table *compiler.SymbolTable
	diags []compiler.Diagnostic
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewWorker(1),
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
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
	lspLog.Infof("%s initializing", lspName)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

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
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
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

func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(context.Background(), func() (any, error) {
		return analyzeDocument(text), nil
	})
	if err != nil {
		lspLog.Warningf("analyze %s: %s", uri, err)
		return
	}
	doc := result.(*document)

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: lspDiagnostics(doc),
	})
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// analyzeDocument runs every stage up to semantic analysis. Lexical errors
// are collected in tolerant mode so all of them are reported at once.
func analyzeDocument(text string) *document {
	doc := &document{text: compiler.NormalizeNewlines(text)}

	tokens, err := compiler.Tokenize(doc.text, compiler.LexOptions{Tolerant: true})
	if err != nil {
		doc.diags = compiler.Diagnostics(err)
		return doc
	}
	prog, err := compiler.Parse(tokens)
	if err != nil {
		doc.diags = compiler.Diagnostics(err)
		return doc
	}

	analyzer := compiler.NewSemanticAnalyzer()
	_, err = analyzer.Analyze(prog)
	doc.table = analyzer.Table()
	doc.diags = compiler.Diagnostics(err)
	return doc
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(positionToOffset(doc.text, params.Position), prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.hover(positionToOffset(doc.text, params.Position)), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	sym, _ := doc.symbolAt(positionToOffset(doc.text, params.Position))
	if sym == nil {
		return nil, nil
	}
	return protocol.Location{
		URI:   params.TextDocument.URI,
		Range: spanRange(doc.text, sym.Pos),
	}, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	sym, _ := doc.symbolAt(positionToOffset(doc.text, params.Position))
	if sym == nil {
		return nil, nil
	}
	var locations []protocol.Location
	for _, span := range doc.references(sym, params.Context.IncludeDeclaration) {
		locations = append(locations, protocol.Location{
			URI:   params.TextDocument.URI,
			Range: spanRange(doc.text, span),
		})
	}
	return locations, nil
}

// --- Symbol-table-backed logic ---

// symbolAt finds the symbol declared or used at offset. A cursor just past
// the end of a name still selects it.
func (d *document) symbolAt(offset int) (*compiler.Symbol, compiler.Span) {
	if d.table == nil {
		return nil, compiler.Span{}
	}
	for _, off := range []int{offset, offset - 1} {
		for _, sym := range d.table.Decls {
			if sym.Pos.Contains(off) {
				return sym, sym.Pos
			}
		}
		for id, sym := range d.table.Uses {
			if id.Span().Contains(off) {
				return sym, id.Span()
			}
		}
	}
	return nil, compiler.Span{}
}

// references returns every use of sym in source order, optionally preceded
// by its declaration.
func (d *document) references(sym *compiler.Symbol, includeDecl bool) []compiler.Span {
	var spans []compiler.Span
	for id, s := range d.table.Uses {
		if s == sym {
			spans = append(spans, id.Span())
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Start.Offset < spans[j].Start.Offset
	})
	if includeDecl {
		spans = append([]compiler.Span{sym.Pos}, spans...)
	}
	return spans
}

func (d *document) hover(offset int) *protocol.Hover {
	sym, span := d.symbolAt(offset)
	if sym == nil {
		return nil
	}
	r := spanRange(d.text, span)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: describeSymbol(sym),
		},
		Range: &r,
	}
}

func describeSymbol(sym *compiler.Symbol) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** %s", sym.Name, sym.Kind)
	if sym.Kind == compiler.Constant {
		fmt.Fprintf(&b, " = %d", sym.Value)
	}
	b.WriteString("\n\n")
	if path := sym.Scope.Path(); path != "" {
		fmt.Fprintf(&b, "declared in `%s`, depth %d", path, sym.Depth)
	} else {
		fmt.Fprintf(&b, "declared at program level, depth %d", sym.Depth)
	}
	if sym.Storage != "" {
		fmt.Fprintf(&b, "\n\nstorage `%s`", sym.Storage)
	}
	return b.String()
}

func (d *document) complete(offset int, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	if d.table != nil {
		for _, sym := range d.table.ScopeAt(offset).Visible() {
			if !strings.HasPrefix(sym.Name, prefix) {
				continue
			}
			kind := completionKind(sym.Kind)
			detail := sym.Kind.String()
			if sym.Kind == compiler.Constant {
				detail = fmt.Sprintf("constant = %d", sym.Value)
			}
			name := sym.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	for _, kw := range compiler.Keywords() {
		if !strings.HasPrefix(kw, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		word := kw
		items = append(items, protocol.CompletionItem{
			Label:      word,
			Kind:       &kind,
			InsertText: &word,
		})
	}

	return items
}

func completionKind(k compiler.SymbolKind) protocol.CompletionItemKind {
	switch k {
	case compiler.Constant:
		return protocol.CompletionItemKindConstant
	case compiler.Procedure:
		return protocol.CompletionItemKindFunction
	}
	return protocol.CompletionItemKindVariable
}

// --- Diagnostics ---

func lspDiagnostics(doc *document) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for _, d := range doc.diags {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diag := protocol.Diagnostic{
			Range:    diagnosticRange(doc.text, d),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		}
		if d.Code != "" {
			diag.Code = &protocol.IntegerOrString{Value: d.Code}
		}
		diagnostics = append(diagnostics, diag)
	}
	return diagnostics
}

func diagnosticRange(text string, d compiler.Diagnostic) protocol.Range {
	if d.Span.End.Offset > d.Span.Start.Offset || d.Span.Start.Line > 0 {
		return spanRange(text, d.Span)
	}
	// Positionless errors are pinned to the start of their line.
	line := d.Line - 1
	if line < 0 {
		line = 0
	}
	pos := protocol.Position{Line: protocol.UInteger(line)}
	return protocol.Range{Start: pos, End: pos}
}

// --- Position conversion ---

// LSP positions count UTF-16 code units from the start of a 0-based line;
// compiler positions are byte offsets into the normalized text.

func spanRange(text string, span compiler.Span) protocol.Range {
	return protocol.Range{
		Start: offsetToPosition(text, span.Start.Offset),
		End:   offsetToPosition(text, span.End.Offset),
	}
}

func offsetToPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	line := strings.Count(text[:offset], "\n")
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(utf16Len(text[lineStart:offset])),
	}
}

func positionToOffset(text string, pos protocol.Position) int {
	lineStart := 0
	for i := 0; i < int(pos.Line); i++ {
		next := strings.IndexByte(text[lineStart:], '\n')
		if next < 0 {
			return len(text)
		}
		lineStart += next + 1
	}
	offset := lineStart
	units := 0
	for offset < len(text) && text[offset] != '\n' && units < int(pos.Character) {
		r, size := utf8.DecodeRuneInString(text[offset:])
		units += utf16.RuneLen(r)
		offset += size
	}
	return offset
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// --- Text extraction helpers ---

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	col := positionToOffset(text, pos)
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	return text[start:col]
}

func boolPtr(b bool) *bool {
	return &b
}
