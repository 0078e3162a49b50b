// Package compiler ships a minimal bundled implementation of the protocol
// compiler contract so the CLI and integration tests have a working
// target. It handles plain CSS passthrough and @import resolution through
// the registered importer chain; it is not a Sass implementation and
// performs no SassScript evaluation, so registered function callbacks are
// never invoked.
package compiler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"sassc/fileurl"
	"sassc/protocol"
)

// Compiler is the bundled protocol compiler. It is stateless; per-call
// state lives in a session, so a single Compiler may serve concurrent
// Compile calls.
type Compiler struct {
	log *zap.Logger
}

// New creates a bundled compiler.
func New(log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{log: log.Named("compiler")}
}

// Compile implements protocol.Compiler.
func (c *Compiler) Compile(req *protocol.CompileRequest) (*protocol.CompileResult, error) {
	s := &session{
		req:    req,
		log:    c.log,
		seen:   make(map[string]bool),
		active: make(map[string]bool),
	}
	if req.URL != "" {
		s.record(req.URL, req.Source)
		s.active[req.URL] = true
	}
	out, err := s.process(req.Source, req.Syntax, req.URL, nil)
	if err != nil {
		return nil, err
	}
	if req.Style == protocol.StyleCompressed {
		out = compress(out)
	}
	out = strings.TrimRight(out, " \t\n")

	result := &protocol.CompileResult{CSS: out, LoadedURLs: s.loaded}
	if req.SourceMap {
		sm, err := s.sourceMap()
		if err != nil {
			return nil, err
		}
		result.SourceMap = sm
	}
	return result, nil
}

// session is the per-compilation state.
type session struct {
	req *protocol.CompileRequest
	log *zap.Logger

	loaded   []string
	contents []string
	seen     map[string]bool
	active   map[string]bool
}

func (s *session) record(canonical, contents string) {
	if s.seen[canonical] {
		return
	}
	s.seen[canonical] = true
	s.loaded = append(s.loaded, canonical)
	s.contents = append(s.contents, contents)
}

func (s *session) sourceMap() (string, error) {
	sm := struct {
		Version        int      `json:"version"`
		Sources        []string `json:"sources"`
		SourcesContent []string `json:"sourcesContent,omitempty"`
		Names          []string `json:"names"`
		Mappings       string   `json:"mappings"`
	}{
		Version: 3,
		Sources: s.loaded,
		Names:   []string{},
	}
	if s.req.SourceMapIncludeSources {
		sm.SourcesContent = s.contents
	}
	data, err := json.Marshal(&sm)
	if err != nil {
		return "", fmt.Errorf("unable to serialize source map: %w", err)
	}
	return string(data), nil
}

func (s *session) errorf(line int, url, format string, args ...any) error {
	return &protocol.CompileError{
		Message: fmt.Sprintf(format, args...),
		Span:    &protocol.SourceSpan{Start: protocol.Location{Line: line}, URL: url},
	}
}

// process walks the token stream of one stylesheet, resolving and inlining
// @import statements and passing everything else through byte-faithfully.
// Indented-syntax sources pass through without import processing.
func (s *session) process(source string, syntax protocol.Syntax, url string, containing protocol.Importer) (string, error) {
	if syntax == protocol.SyntaxIndented {
		return source, nil
	}

	l := css.NewLexer(parse.NewInput(strings.NewReader(source)))
	var out strings.Builder
	line := 0 // 0-based, tracked across consumed tokens

	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if l.Err() == io.EOF {
				return out.String(), nil
			}
			return "", s.errorf(line, url, "%s", l.Err())

		case css.AtKeywordToken:
			if string(data) != "@import" {
				out.Write(data)
				break
			}
			importLine := line
			target, raw, consumedLines, ok := scanImportTarget(l)
			line += consumedLines
			if !ok {
				// not a simple string import, pass through untouched
				out.Write(data)
				out.WriteString(raw)
				break
			}
			inlined, err := s.resolveImport(target, url, containing, importLine)
			if err != nil {
				return "", err
			}
			out.WriteString(inlined)

		default:
			out.Write(data)
		}
		line += strings.Count(string(data), "\n")
	}
}

// scanImportTarget reads the tokens following an @import keyword up to and
// including the terminating semicolon. It reports the quoted import target
// when the statement has the simple `@import "<url>";` shape; otherwise it
// returns the raw consumed text so the caller can pass it through.
func scanImportTarget(l *css.Lexer) (target, raw string, lines int, ok bool) {
	var b strings.Builder
	simple := true
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			return "", b.String(), lines, false
		}
		b.Write(data)
		lines += strings.Count(string(data), "\n")
		switch tt {
		case css.WhitespaceToken, css.CommentToken:
		case css.StringToken:
			if target != "" {
				simple = false
			} else {
				target = unquote(string(data))
			}
		case css.SemicolonToken:
			return target, b.String(), lines, simple && target != ""
		default:
			simple = false
		}
	}
}

// unquote strips the surrounding CSS quotes and unescapes \" \' and \\.
func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	s = s[1 : len(s)-1]
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// resolveImport finds the stylesheet for one @import target and returns
// its fully processed contents. The importer that loaded the containing
// stylesheet is consulted first, then the configured importer list, then
// the filesystem.
func (s *session) resolveImport(target, containingURL string, containing protocol.Importer, line int) (string, error) {
	chain := make([]protocol.Importer, 0, len(s.req.Importers)+1)
	if containing != nil {
		chain = append(chain, containing)
	}
	chain = append(chain, s.req.Importers...)

	for _, imp := range chain {
		canonical, err := imp.Canonicalize(target)
		if err != nil {
			return "", err
		}
		if canonical == "" {
			continue
		}
		if s.active[canonical] {
			return "", s.errorf(line, containingURL, "import loop detected at %q", target)
		}
		loaded, err := imp.Load(canonical)
		if err != nil {
			return "", err
		}
		if loaded == nil {
			return "", s.errorf(line, containingURL, "importer canonicalized %q but produced no content", canonical)
		}
		s.log.Debug("Import resolved", zap.String("target", target), zap.String("canonical", canonical))
		s.record(canonical, loaded.Contents)
		return s.processNested(canonical, loaded.Contents, loaded.Syntax, imp)
	}

	if path, ok := s.findOnDisk(target, containingURL); ok {
		canonical, err := fileurl.FromPath(path)
		if err != nil {
			return "", err
		}
		if s.active[canonical] {
			return "", s.errorf(line, containingURL, "import loop detected at %q", target)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		s.log.Debug("Import resolved on disk", zap.String("target", target), zap.String("path", path))
		s.record(canonical, string(data))
		return s.processNested(canonical, string(data), syntaxByExtension(path), nil)
	}

	return "", s.errorf(line, containingURL, "can't find stylesheet to import: %q", target)
}

func (s *session) processNested(canonical, contents string, syntax protocol.Syntax, containing protocol.Importer) (string, error) {
	s.active[canonical] = true
	defer delete(s.active, canonical)
	return s.process(contents, syntax, canonical, containing)
}

// findOnDisk resolves a plain import path against the directory of the
// containing file and the configured load paths, trying the usual name
// variants (exact, .scss, .css, _partial).
func (s *session) findOnDisk(target, containingURL string) (string, bool) {
	if strings.HasPrefix(target, "file:") {
		if path, err := fileurl.ToPath(target); err == nil {
			if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
				return path, true
			}
		}
		return "", false
	}

	var bases []string
	if strings.HasPrefix(containingURL, "file:") {
		if path, err := fileurl.ToPath(containingURL); err == nil {
			bases = append(bases, filepath.Dir(path))
		}
	}
	bases = append(bases, s.req.LoadPaths...)

	for _, base := range bases {
		for _, candidate := range candidateNames(filepath.Join(base, filepath.FromSlash(target))) {
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				abs, err := filepath.Abs(candidate)
				if err != nil {
					continue
				}
				return abs, true
			}
		}
	}
	return "", false
}

func candidateNames(path string) []string {
	dir, base := filepath.Dir(path), filepath.Base(path)
	switch filepath.Ext(path) {
	case ".scss", ".sass", ".css":
		return []string{path, filepath.Join(dir, "_"+base)}
	default:
		return []string{
			path + ".scss",
			filepath.Join(dir, "_"+base+".scss"),
			path + ".css",
			path,
		}
	}
}

func syntaxByExtension(path string) protocol.Syntax {
	switch filepath.Ext(path) {
	case ".sass":
		return protocol.SyntaxIndented
	case ".css":
		return protocol.SyntaxCSS
	default:
		return protocol.SyntaxSCSS
	}
}

// compress re-tokenizes css dropping comments and collapsing whitespace,
// keeping a single space only where removing it would join two tokens that
// must stay separate.
func compress(source string) string {
	type token struct {
		tt   css.TokenType
		data string
	}
	l := css.NewLexer(parse.NewInput(strings.NewReader(source)))
	var tokens []token
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.CommentToken {
			continue
		}
		// dropping comments can leave two whitespace runs side by side
		if tt == css.WhitespaceToken && len(tokens) > 0 && tokens[len(tokens)-1].tt == css.WhitespaceToken {
			continue
		}
		tokens = append(tokens, token{tt, string(data)})
	}

	var out strings.Builder
	for i, tok := range tokens {
		if tok.tt != css.WhitespaceToken {
			out.WriteString(tok.data)
			continue
		}
		if i == 0 || i == len(tokens)-1 {
			continue
		}
		prev := tokens[i-1].data
		next := tokens[i+1].data
		if prev == "" || next == "" {
			continue
		}
		if strings.ContainsAny(prev[len(prev)-1:], "{};:,>+~(") || strings.ContainsAny(next[:1], "{};:,>+~)!") {
			continue
		}
		out.WriteByte(' ')
	}
	return out.String()
}
