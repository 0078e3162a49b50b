// Package engine exposes the legacy synchronous render API on top of the
// protocol compiler: it translates options, registers the function and
// importer bridges for the duration of one compilation, post-processes the
// produced CSS and source map and converts compiler errors back into the
// legacy error shape.
package engine

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"sassc/bridge"
	"sassc/compiler"
	"sassc/fileurl"
	"sassc/protocol"
	"sassc/sass"
)

// Options configures one Engine. The embedded sass.Options is the legacy
// option bag exposed to custom functions; the remaining fields wire in the
// collaborators.
type Options struct {
	sass.Options

	Functions sass.FunctionSet
	Importer  sass.Importer
	Logger    protocol.Logger

	// Compiler overrides the compiler service; nil selects the bundled
	// minimal compiler.
	Compiler protocol.Compiler

	Log *zap.Logger
}

// Engine renders one template. Dependencies and the source map become
// readable after Render returns; an Engine must not be shared between
// concurrent renders.
type Engine struct {
	template string
	opts     Options
	log      *zap.Logger

	rendered     bool
	dependencies []string
	sourceMap    string
}

// New creates an engine for template with the given options.
func New(template string, opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{template: template, opts: opts, log: log.Named("engine")}
}

// Render compiles the template and returns the produced CSS, or "" in
// quiet mode. Compile failures surface as *sass.SyntaxError; an output
// style outside the legacy enumeration surfaces as
// *sass.InvalidStyleError before any compilation work happens.
func (e *Engine) Render() (string, error) {
	if e.template == "" {
		e.rendered = true
		return e.template, nil
	}

	style, err := resolveStyle(e.opts.Style)
	if err != nil {
		return "", err
	}
	syntax, err := resolveSyntax(e.opts.Syntax)
	if err != nil {
		return "", err
	}

	filename := e.opts.Filename
	if filename == "" {
		filename = "stdin"
	}
	sourceURL, err := fileurl.FromPath(filename)
	if err != nil {
		return "", err
	}

	// handler instances are scoped to this render only; their mutable
	// state must never outlive or be shared across Render calls
	functions := bridge.NewFunctionsHandler(e.opts.Functions, &e.opts.Options, e.opts.Logger, e.log)
	imports := bridge.NewImportHandler(e.opts.Importer, &e.opts.Options, e.log)

	req := &protocol.CompileRequest{
		Source:                  e.template,
		Syntax:                  syntax,
		URL:                     sourceURL,
		LoadPaths:               append(slices.Clone(e.opts.LoadPaths), sass.DefaultLoadPaths()...),
		Style:                   style,
		SourceMap:               e.opts.SourceMapFile != "",
		SourceMapIncludeSources: e.opts.SourceMapContents,
		Functions:               functions.Callbacks(),
		Importers:               imports.Resolvers(),
		AlertASCII:              e.opts.AlertASCII,
		AlertColor:              e.opts.AlertColor,
		QuietDeps:               e.opts.QuietDeps,
		Verbose:                 e.opts.Verbose,
		Logger:                  e.opts.Logger,
	}

	service := e.opts.Compiler
	if service == nil {
		service = compiler.New(e.log)
	}

	e.log.Debug("Compiling", zap.String("url", sourceURL), zap.String("style", string(style)), zap.String("syntax", string(syntax)))
	result, err := service.Compile(req)
	if err != nil {
		return "", translateError(err)
	}

	if e.dependencies, err = dependencies(result.LoadedURLs, sourceURL); err != nil {
		return "", err
	}
	if e.sourceMap, err = postProcessSourceMap(result.SourceMap); err != nil {
		return "", err
	}
	e.rendered = true

	if e.opts.Quiet {
		return "", nil
	}
	return e.postProcessCSS(result.CSS), nil
}

// Dependencies returns the filesystem paths of every stylesheet the last
// render loaded besides the root source.
func (e *Engine) Dependencies() ([]string, error) {
	if !e.rendered {
		return nil, sass.ErrNotRendered
	}
	return e.dependencies, nil
}

// SourceMap returns the post-processed source map of the last render, or
// "" when none was requested.
func (e *Engine) SourceMap() (string, error) {
	if !e.rendered {
		return "", sass.ErrNotRendered
	}
	return e.sourceMap, nil
}

// legacy canonical style names carry the sass_style_ prefix; bare names
// are shorthand for the prefixed form
var canonicalStyles = map[string]sass.Style{
	"sass_style_nested":     sass.StyleNested,
	"sass_style_expanded":   sass.StyleExpanded,
	"sass_style_compact":    sass.StyleCompact,
	"sass_style_compressed": sass.StyleCompressed,
}

func resolveStyle(style sass.Style) (protocol.OutputStyle, error) {
	name := string(style)
	if name == "" {
		name = string(sass.StyleNested)
	}
	if !strings.Contains(name, "sass_style_") {
		name = "sass_style_" + name
	}
	canonical, ok := canonicalStyles[name]
	if !ok {
		return "", &sass.InvalidStyleError{Style: style}
	}
	switch canonical {
	case sass.StyleNested, sass.StyleExpanded:
		return protocol.StyleExpanded, nil
	default:
		return protocol.StyleCompressed, nil
	}
}

func resolveSyntax(syntax sass.Syntax) (protocol.Syntax, error) {
	switch syntax {
	case "", sass.SyntaxSCSS:
		return protocol.SyntaxSCSS, nil
	case sass.SyntaxSass, sass.SyntaxIndented:
		return protocol.SyntaxIndented, nil
	case sass.SyntaxCSS:
		return protocol.SyntaxCSS, nil
	default:
		return "", fmt.Errorf("unknown syntax %q", string(syntax))
	}
}

// dependencies converts the file-scheme loaded URLs, minus the root
// source itself, into filesystem paths.
func dependencies(loadedURLs []string, sourceURL string) ([]string, error) {
	var deps []string
	for _, u := range loadedURLs {
		if u == sourceURL || !strings.HasPrefix(u, "file:") {
			continue
		}
		path, err := fileurl.ToPath(u)
		if err != nil {
			return nil, err
		}
		deps = append(deps, path)
	}
	return deps, nil
}

// translateError converts a protocol CompileError into the legacy
// SyntaxError shape: 1-based line, filename relative to the working
// directory. Anything else passes through unchanged.
func translateError(err error) error {
	var ce *protocol.CompileError
	if !errors.As(err, &ce) {
		return err
	}
	serr := &sass.SyntaxError{Message: ce.Message}
	if ce.Span != nil {
		serr.Line = ce.Span.Start.Line + 1
		if ce.Span.URL != "" {
			if path, perr := fileurl.ToPath(ce.Span.URL); perr == nil && path != "" {
				serr.Filename = relativeToCwd(path)
			}
		}
	}
	return serr
}

func relativeToCwd(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return rel
}

// postProcessSourceMap rewrites every file-scheme entry of the map's
// sources list into a path relative to the working directory, leaving
// non-file entries untouched.
func postProcessSourceMap(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return "", fmt.Errorf("malformed source map: %w", err)
	}
	if sources, ok := m["sources"].([]any); ok {
		for i, entry := range sources {
			s, ok := entry.(string)
			if !ok || !strings.HasPrefix(s, "file:") {
				continue
			}
			path, err := fileurl.ToPath(s)
			if err != nil {
				continue
			}
			sources[i] = filepath.ToSlash(relativeToCwd(path))
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("unable to serialize source map: %w", err)
	}
	return string(data), nil
}

// postProcessCSS appends the trailing newline after a closing brace and
// the sourceMappingURL comment when a source map exists and its URL is
// not omitted.
func (e *Engine) postProcessCSS(css string) string {
	var b strings.Builder
	b.WriteString(css)
	if strings.HasSuffix(css, "}") {
		b.WriteByte('\n')
	}
	if e.sourceMap != "" && !e.opts.OmitSourceMapURL {
		var ref string
		if e.opts.SourceMapEmbed {
			ref = "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(e.sourceMap))
		} else {
			ref = (&url.URL{Path: filepath.ToSlash(e.opts.SourceMapFile)}).EscapedPath()
		}
		b.WriteString("\n/*# sourceMappingURL=" + ref + " */")
	}
	return b.String()
}
