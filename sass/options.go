package sass

import (
	"os"
	"path/filepath"
)

// Syntax names the legacy input syntaxes. SyntaxSass is an alias for
// SyntaxIndented kept for compatibility with old option bags.
type Syntax string

const (
	SyntaxSCSS     Syntax = "scss"
	SyntaxSass     Syntax = "sass"
	SyntaxIndented Syntax = "indented"
	SyntaxCSS      Syntax = "css"
)

// Style names the legacy output styles.
type Style string

const (
	StyleNested     Style = "nested"
	StyleExpanded   Style = "expanded"
	StyleCompact    Style = "compact"
	StyleCompressed Style = "compressed"
)

// Options is the legacy render option bag. Custom functions receive it as
// their option context during a render.
type Options struct {
	Syntax    Syntax
	Style     Style
	LoadPaths []string
	Filename  string

	SourceMapFile     string
	SourceMapContents bool
	SourceMapEmbed    bool
	OmitSourceMapURL  bool

	AlertASCII bool
	AlertColor bool
	QuietDeps  bool
	Verbose    bool

	// Quiet suppresses the returned CSS; dependencies and the source map
	// are still recorded.
	Quiet bool
}

// Function is a legacy custom function. The option bag of the running
// render is passed as the first argument, matching the old API where
// functions were bound to an object exposing options.
type Function func(opts *Options, args []Value) (Value, error)

// FunctionSet maps legacy function signatures like "add($a, $b)" to their
// implementations.
type FunctionSet map[string]Function

// Import is a single result produced by a legacy importer. A non-empty
// Source carries virtual file contents; SourceMapPath, when set, is
// resolved relative to the requested path.
type Import struct {
	Path          string
	Source        string
	SourceMapPath string
}

// Importer is the legacy importer capability: it resolves an import path
// into one or more Imports. Returning a single Import whose Path equals
// the requested path and which carries no Source declines the request.
type Importer interface {
	Imports(path, parentPath string) ([]Import, error)
}

// DefaultLoadPaths returns the process-wide load paths taken from the
// SASS_PATH environment variable, split on the platform list separator.
func DefaultLoadPaths() []string {
	env := os.Getenv("SASS_PATH")
	if env == "" {
		return nil
	}
	return filepath.SplitList(env)
}
