// Package protocol defines the object model of the newer, callback-based
// compiler service: its value variants, compile request/result shapes, the
// two-phase import protocol and the compiler contract itself.
package protocol

import "fmt"

// Value is the protocol tagged value union.
type Value interface {
	protocolValue()
}

// Null is the protocol null singleton.
type Null struct{}

// Bool is a protocol boolean value.
type Bool bool

// RGBColor is a protocol color carrying 0-255 channels and 0-1 alpha.
// RGBColor and HSLColor are mutually exclusive representations; a color
// value is exactly one of the two.
type RGBColor struct {
	Red   float64
	Green float64
	Blue  float64
	Alpha float64
}

// HSLColor is a protocol color carrying hue/saturation/lightness channels
// and 0-1 alpha.
type HSLColor struct {
	Hue        float64
	Saturation float64
	Lightness  float64
	Alpha      float64
}

// ListSeparator is a protocol list separator.
type ListSeparator int

const (
	SeparatorComma ListSeparator = iota
	SeparatorSpace
)

// List is an ordered protocol list.
type List struct {
	Contents    []Value
	Separator   ListSeparator
	HasBrackets bool
}

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered protocol map.
type Map struct {
	Entries []MapEntry
}

// Number is a protocol number with optional units.
type Number struct {
	Value        float64
	Numerators   []string
	Denominators []string
}

// String is a protocol string; quoted-ness is a boolean flag rather than a
// type tag.
type String struct {
	Text   string
	Quoted bool
}

func (Null) protocolValue()     {}
func (Bool) protocolValue()     {}
func (RGBColor) protocolValue() {}
func (HSLColor) protocolValue() {}
func (List) protocolValue()     {}
func (Map) protocolValue()      {}
func (Number) protocolValue()   {}
func (String) protocolValue()   {}

// Syntax names the protocol input syntaxes.
type Syntax string

const (
	SyntaxSCSS     Syntax = "scss"
	SyntaxIndented Syntax = "indented"
	SyntaxCSS      Syntax = "css"
)

// OutputStyle is the protocol's two-value output style enumeration.
type OutputStyle string

const (
	StyleExpanded   OutputStyle = "expanded"
	StyleCompressed OutputStyle = "compressed"
)

// Function is a custom-function callback invoked by the compiler during
// compilation, zero or more times, possibly reentrantly.
type Function func(args []Value) (Value, error)

// Import is the content loaded for a canonical URL.
type Import struct {
	Contents     string
	Syntax       Syntax
	SourceMapURL string
}

// Importer is the two-phase import protocol. Canonicalize returns the
// canonical URL for a request, or "" to decline and let the next importer
// try. Load returns the import for a URL this importer canonicalized, or
// nil to decline.
type Importer interface {
	Canonicalize(url string) (string, error)
	Load(canonicalURL string) (*Import, error)
}

// Logger receives compiler diagnostics.
type Logger interface {
	Debug(message string)
	Warn(message string)
}

// CompileRequest carries everything the compiler needs for one compilation.
type CompileRequest struct {
	Source    string
	Syntax    Syntax
	URL       string
	LoadPaths []string
	Style     OutputStyle

	SourceMap               bool
	SourceMapIncludeSources bool

	Functions map[string]Function
	Importers []Importer

	AlertASCII bool
	AlertColor bool
	QuietDeps  bool
	Verbose    bool
	Logger     Logger
}

// CompileResult is a successful compilation.
type CompileResult struct {
	CSS        string
	SourceMap  string
	LoadedURLs []string
}

// Location is a 0-based position in a source file.
type Location struct {
	Line   int
	Column int
}

// SourceSpan locates a compile error in its source.
type SourceSpan struct {
	Start Location
	URL   string
}

// CompileError is a user-facing stylesheet error reported by the compiler.
type CompileError struct {
	Message string
	Span    *SourceSpan
}

func (e *CompileError) Error() string {
	if e.Span != nil && e.Span.URL != "" {
		return fmt.Sprintf("%s:%d: %s", e.Span.URL, e.Span.Start.Line, e.Message)
	}
	return e.Message
}

// Compiler is the external compiler service contract. A Compile call
// blocks until compilation finishes; registered importer and function
// callbacks may be invoked synchronously any number of times while it runs.
type Compiler interface {
	Compile(req *CompileRequest) (*CompileResult, error)
}
