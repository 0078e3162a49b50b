// Package sass defines the legacy object model: the value variants, option
// bag, importer and custom-function shapes, and error types that client
// code written against the old synchronous compiler API expects.
package sass

// Value is the legacy tagged value union. Exactly the types in this file
// implement it; anything else handed to the conversion layer is a
// programmer error.
type Value interface {
	sassValue()
}

// Null is the legacy null singleton.
type Null struct{}

// Bool is a legacy boolean value.
type Bool bool

// ColorSpace selects which channel set of a Color is populated.
type ColorSpace int

const (
	ColorRGB ColorSpace = iota
	ColorHSL
)

// Color is a legacy color in either RGB (0-255 channels) or HSL (0-360
// hue, 0-100 saturation/lightness) representation, with alpha 0-1. The two
// representations are mutually exclusive; Space records which one holds.
type Color struct {
	Space ColorSpace

	Red   float64
	Green float64
	Blue  float64

	Hue        float64
	Saturation float64
	Lightness  float64

	Alpha float64
}

// RGBA constructs an RGB-space color.
func RGBA(red, green, blue, alpha float64) Color {
	return Color{Space: ColorRGB, Red: red, Green: green, Blue: blue, Alpha: alpha}
}

// HSLA constructs an HSL-space color.
func HSLA(hue, saturation, lightness, alpha float64) Color {
	return Color{Space: ColorHSL, Hue: hue, Saturation: saturation, Lightness: lightness, Alpha: alpha}
}

// Separator is a legacy list separator.
type Separator int

const (
	SeparatorComma Separator = iota
	SeparatorSpace
)

// List is an ordered legacy list.
type List struct {
	Elements  []Value
	Separator Separator
	Bracketed bool
}

// MapEntry is a single key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an ordered legacy map. Keys must themselves be legacy values.
type Map struct {
	Entries []MapEntry
}

// Number is a legacy number with optional units.
type Number struct {
	Value            float64
	NumeratorUnits   []string
	DenominatorUnits []string
}

// StringKind is the legacy type tag distinguishing quoted strings from
// unquoted identifiers.
type StringKind int

const (
	StringQuoted StringKind = iota
	StringIdentifier
)

// String is a legacy string value; quoted-ness is encoded in Kind.
type String struct {
	Text string
	Kind StringKind
}

func (Null) sassValue()   {}
func (Bool) sassValue()   {}
func (Color) sassValue()  {}
func (List) sassValue()   {}
func (Map) sassValue()    {}
func (Number) sassValue() {}
func (String) sassValue() {}
