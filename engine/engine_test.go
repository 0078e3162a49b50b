package engine_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sassc/engine"
	"sassc/fileurl"
	"sassc/protocol"
	"sassc/sass"
)

// stubCompiler records the request it received and plays back a scripted
// result or error.
type stubCompiler struct {
	req    *protocol.CompileRequest
	result *protocol.CompileResult
	err    error
}

func (s *stubCompiler) Compile(req *protocol.CompileRequest) (*protocol.CompileResult, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestEmptyTemplate(t *testing.T) {
	stub := &stubCompiler{}
	e := engine.New("", engine.Options{Compiler: stub})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if css != "" {
		t.Errorf("expected empty output, got %q", css)
	}
	if stub.req != nil {
		t.Error("compiler must not be invoked for an empty template")
	}

	deps, err := e.Dependencies()
	if err != nil || len(deps) != 0 {
		t.Errorf("expected no dependencies, got %v, %v", deps, err)
	}
	sm, err := e.SourceMap()
	if err != nil || sm != "" {
		t.Errorf("expected no source map, got %q, %v", sm, err)
	}
}

func TestStyleMapping(t *testing.T) {
	cases := []struct {
		style sass.Style
		want  protocol.OutputStyle
	}{
		{"", protocol.StyleExpanded},
		{sass.StyleNested, protocol.StyleExpanded},
		{sass.StyleExpanded, protocol.StyleExpanded},
		{sass.StyleCompact, protocol.StyleCompressed},
		{sass.StyleCompressed, protocol.StyleCompressed},
		{"sass_style_compressed", protocol.StyleCompressed},
	}

	for _, tc := range cases {
		stub := &stubCompiler{result: &protocol.CompileResult{CSS: "a{b:c}"}}
		e := engine.New("a{b:c}", engine.Options{
			Options:  sass.Options{Style: tc.style},
			Compiler: stub,
		})
		if _, err := e.Render(); err != nil {
			t.Fatalf("style %q: %v", tc.style, err)
		}
		if stub.req.Style != tc.want {
			t.Errorf("style %q mapped to %q, expected %q", tc.style, stub.req.Style, tc.want)
		}
	}
}

func TestInvalidStyle(t *testing.T) {
	stub := &stubCompiler{}
	e := engine.New("a{b:c}", engine.Options{
		Options:  sass.Options{Style: "pretty"},
		Compiler: stub,
	})

	_, err := e.Render()
	var ise *sass.InvalidStyleError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStyleError, got %v", err)
	}
	if stub.req != nil {
		t.Error("compiler must not be invoked for an invalid style")
	}
}

func TestSyntaxAliasing(t *testing.T) {
	cases := []struct {
		syntax sass.Syntax
		want   protocol.Syntax
	}{
		{"", protocol.SyntaxSCSS},
		{sass.SyntaxSCSS, protocol.SyntaxSCSS},
		{sass.SyntaxSass, protocol.SyntaxIndented},
		{sass.SyntaxIndented, protocol.SyntaxIndented},
		{sass.SyntaxCSS, protocol.SyntaxCSS},
	}
	for _, tc := range cases {
		stub := &stubCompiler{result: &protocol.CompileResult{CSS: ""}}
		e := engine.New("x", engine.Options{
			Options:  sass.Options{Syntax: tc.syntax},
			Compiler: stub,
		})
		if _, err := e.Render(); err != nil {
			t.Fatalf("syntax %q: %v", tc.syntax, err)
		}
		if stub.req.Syntax != tc.want {
			t.Errorf("syntax %q mapped to %q, expected %q", tc.syntax, stub.req.Syntax, tc.want)
		}
	}
}

func TestErrorTranslation(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	errURL, err := fileurl.FromPath(filepath.Join(wd, "a", "b.scss"))
	if err != nil {
		t.Fatal(err)
	}

	stub := &stubCompiler{err: &protocol.CompileError{
		Message: "expected \"{\"",
		Span:    &protocol.SourceSpan{Start: protocol.Location{Line: 4}, URL: errURL},
	}}
	e := engine.New("broken", engine.Options{Compiler: stub})

	_, rerr := e.Render()
	var serr *sass.SyntaxError
	if !errors.As(rerr, &serr) {
		t.Fatalf("expected SyntaxError, got %v", rerr)
	}
	if serr.Line != 5 {
		t.Errorf("expected 1-based line 5, got %d", serr.Line)
	}
	if serr.Filename != filepath.Join("a", "b.scss") {
		t.Errorf("expected relative filename, got %q", serr.Filename)
	}
	if serr.Message != "expected \"{\"" {
		t.Errorf("message changed: %q", serr.Message)
	}
}

func TestErrorWithoutSpan(t *testing.T) {
	stub := &stubCompiler{err: &protocol.CompileError{Message: "boom"}}
	e := engine.New("broken", engine.Options{Compiler: stub})

	_, err := e.Render()
	var serr *sass.SyntaxError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
	if serr.Line != 0 || serr.Filename != "" {
		t.Errorf("expected absent location, got %q:%d", serr.Filename, serr.Line)
	}
}

func TestDependencies(t *testing.T) {
	rootURL, _ := fileurl.FromPath("stdin")
	depURL, _ := fileurl.FromPath("/lib/dep.scss")
	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:        "a{b:c}",
		LoadedURLs: []string{rootURL, depURL, "virt://generated"},
	}}
	e := engine.New("a{b:c}", engine.Options{Compiler: stub})

	if _, err := e.Render(); err != nil {
		t.Fatal(err)
	}
	deps, err := e.Dependencies()
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || deps[0] != "/lib/dep.scss" {
		t.Errorf("dependencies: %v", deps)
	}
}

func TestQuietMode(t *testing.T) {
	depURL, _ := fileurl.FromPath("/lib/dep.scss")
	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:        "a{b:c}",
		LoadedURLs: []string{depURL},
	}}
	e := engine.New("a{b:c}", engine.Options{
		Options:  sass.Options{Quiet: true},
		Compiler: stub,
	})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if css != "" {
		t.Errorf("quiet mode returned CSS: %q", css)
	}
	if deps, _ := e.Dependencies(); len(deps) != 1 {
		t.Error("quiet mode must still record dependencies")
	}
}

func TestNotRendered(t *testing.T) {
	e := engine.New("a{b:c}", engine.Options{})
	if _, err := e.Dependencies(); !errors.Is(err, sass.ErrNotRendered) {
		t.Errorf("expected ErrNotRendered, got %v", err)
	}
	if _, err := e.SourceMap(); !errors.Is(err, sass.ErrNotRendered) {
		t.Errorf("expected ErrNotRendered, got %v", err)
	}
}

func TestCSSPostProcessing(t *testing.T) {
	stub := &stubCompiler{result: &protocol.CompileResult{CSS: "a{b:c}"}}
	e := engine.New("a{b:c}", engine.Options{Compiler: stub})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if css != "a{b:c}\n" {
		t.Errorf("expected exactly one trailing newline, got %q", css)
	}
}

func sourceMapJSON(t *testing.T, sources ...string) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"version":  3,
		"sources":  sources,
		"names":    []string{},
		"mappings": "",
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSourceMapComment(t *testing.T) {
	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:       "a{b:c}",
		SourceMap: sourceMapJSON(t),
	}}
	e := engine.New("a{b:c}", engine.Options{
		Options:  sass.Options{SourceMapFile: "out/my map.css.map"},
		Compiler: stub,
	})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !stub.req.SourceMap {
		t.Error("source map generation was not requested from the compiler")
	}
	want := "/*# sourceMappingURL=out/my%20map.css.map */"
	if !strings.HasSuffix(css, want) {
		t.Errorf("missing or wrong map comment:\n%s", css)
	}
	if !strings.Contains(css, "a{b:c}\n") {
		t.Errorf("brace newline lost:\n%s", css)
	}
}

func TestSourceMapEmbed(t *testing.T) {
	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:       "a{b:c}",
		SourceMap: sourceMapJSON(t),
	}}
	e := engine.New("a{b:c}", engine.Options{
		Options: sass.Options{
			SourceMapFile:  "out.css.map",
			SourceMapEmbed: true,
		},
		Compiler: stub,
	})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(css, "sourceMappingURL=data:application/json;base64,") {
		t.Errorf("expected embedded data URI:\n%s", css)
	}
}

func TestOmitSourceMapURL(t *testing.T) {
	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:       "a{b:c}",
		SourceMap: sourceMapJSON(t),
	}}
	e := engine.New("a{b:c}", engine.Options{
		Options: sass.Options{
			SourceMapFile:    "out.css.map",
			OmitSourceMapURL: true,
		},
		Compiler: stub,
	})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(css, "sourceMappingURL") {
		t.Errorf("map comment present despite omit flag:\n%s", css)
	}
}

func TestSourceMapRewriting(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	srcURL, err := fileurl.FromPath(filepath.Join(wd, "styles", "in.scss"))
	if err != nil {
		t.Fatal(err)
	}

	stub := &stubCompiler{result: &protocol.CompileResult{
		CSS:       "a{b:c}",
		SourceMap: sourceMapJSON(t, srcURL, "virt://other"),
	}}
	e := engine.New("a{b:c}", engine.Options{
		Options:  sass.Options{SourceMapFile: "out.css.map"},
		Compiler: stub,
	})

	if _, err := e.Render(); err != nil {
		t.Fatal(err)
	}
	sm, err := e.SourceMap()
	if err != nil {
		t.Fatal(err)
	}

	var parsed struct {
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(sm), &parsed); err != nil {
		t.Fatalf("post-processed map is not valid JSON: %v", err)
	}
	if len(parsed.Sources) != 2 {
		t.Fatalf("sources: %v", parsed.Sources)
	}
	if parsed.Sources[0] != "styles/in.scss" {
		t.Errorf("file source not relativized: %q", parsed.Sources[0])
	}
	if parsed.Sources[1] != "virt://other" {
		t.Errorf("non-file source modified: %q", parsed.Sources[1])
	}
}

// virtualImporter serves one named virtual stylesheet, legacy style.
type virtualImporter struct {
	name   string
	path   string
	source string
}

func (v *virtualImporter) Imports(path, parentPath string) ([]sass.Import, error) {
	if path == v.name {
		return []sass.Import{{Path: v.path, Source: v.source}}, nil
	}
	return []sass.Import{{Path: path}}, nil
}

func TestRenderWithLegacyImporter(t *testing.T) {
	e := engine.New("@import \"theme\";", engine.Options{
		Importer: &virtualImporter{
			name:   "theme",
			path:   filepath.Join(t.TempDir(), "theme.scss"),
			source: "p {\n  color: red;\n}",
		},
	})

	css, err := e.Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(css, "color: red") {
		t.Errorf("virtual import content missing:\n%s", css)
	}

	deps, err := e.Dependencies()
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 1 || filepath.Base(deps[0]) != "theme.scss" {
		t.Errorf("dependencies: %v", deps)
	}
}
