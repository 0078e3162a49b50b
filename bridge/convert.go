// Package bridge adapts the legacy object model to the protocol compiler:
// it converts values in both directions, wraps legacy custom functions
// into protocol callbacks and bridges the legacy importer capability into
// the two-phase canonicalize/load import protocol.
package bridge

import (
	"fmt"
	"slices"

	"sassc/protocol"
	"sassc/sass"
)

// ToProtocol converts a legacy value into its protocol shape. The mapping
// is total over the legacy variant set; any other dynamic type is a
// programmer error.
func ToProtocol(v sass.Value) (protocol.Value, error) {
	switch v := v.(type) {
	case sass.Null:
		return protocol.Null{}, nil
	case sass.Bool:
		return protocol.Bool(v), nil
	case sass.Color:
		switch v.Space {
		case sass.ColorRGB:
			return protocol.RGBColor{Red: v.Red, Green: v.Green, Blue: v.Blue, Alpha: v.Alpha}, nil
		case sass.ColorHSL:
			return protocol.HSLColor{Hue: v.Hue, Saturation: v.Saturation, Lightness: v.Lightness, Alpha: v.Alpha}, nil
		default:
			return nil, fmt.Errorf("unsupported color space %d", v.Space)
		}
	case sass.List:
		sep, err := toProtocolSeparator(v.Separator)
		if err != nil {
			return nil, err
		}
		contents := make([]protocol.Value, len(v.Elements))
		for i, el := range v.Elements {
			if contents[i], err = ToProtocol(el); err != nil {
				return nil, err
			}
		}
		return protocol.List{Contents: contents, Separator: sep, HasBrackets: v.Bracketed}, nil
	case sass.Map:
		entries := make([]protocol.MapEntry, len(v.Entries))
		for i, e := range v.Entries {
			key, err := ToProtocol(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := ToProtocol(e.Value)
			if err != nil {
				return nil, err
			}
			entries[i] = protocol.MapEntry{Key: key, Value: val}
		}
		return protocol.Map{Entries: entries}, nil
	case sass.Number:
		return protocol.Number{
			Value:        v.Value,
			Numerators:   slices.Clone(v.NumeratorUnits),
			Denominators: slices.Clone(v.DenominatorUnits),
		}, nil
	case sass.String:
		return protocol.String{Text: v.Text, Quoted: v.Kind == sass.StringQuoted}, nil
	default:
		return nil, fmt.Errorf("unsupported legacy value %T", v)
	}
}

// FromProtocol converts a protocol value into its legacy shape. The color
// constructor is selected by which representation the protocol value
// carries.
func FromProtocol(v protocol.Value) (sass.Value, error) {
	switch v := v.(type) {
	case protocol.Null:
		return sass.Null{}, nil
	case protocol.Bool:
		return sass.Bool(v), nil
	case protocol.RGBColor:
		return sass.RGBA(v.Red, v.Green, v.Blue, v.Alpha), nil
	case protocol.HSLColor:
		return sass.HSLA(v.Hue, v.Saturation, v.Lightness, v.Alpha), nil
	case protocol.List:
		sep, err := fromProtocolSeparator(v.Separator)
		if err != nil {
			return nil, err
		}
		elements := make([]sass.Value, len(v.Contents))
		for i, el := range v.Contents {
			if elements[i], err = FromProtocol(el); err != nil {
				return nil, err
			}
		}
		return sass.List{Elements: elements, Separator: sep, Bracketed: v.HasBrackets}, nil
	case protocol.Map:
		entries := make([]sass.MapEntry, len(v.Entries))
		for i, e := range v.Entries {
			key, err := FromProtocol(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := FromProtocol(e.Value)
			if err != nil {
				return nil, err
			}
			entries[i] = sass.MapEntry{Key: key, Value: val}
		}
		return sass.Map{Entries: entries}, nil
	case protocol.Number:
		return sass.Number{
			Value:            v.Value,
			NumeratorUnits:   slices.Clone(v.Numerators),
			DenominatorUnits: slices.Clone(v.Denominators),
		}, nil
	case protocol.String:
		kind := sass.StringIdentifier
		if v.Quoted {
			kind = sass.StringQuoted
		}
		return sass.String{Text: v.Text, Kind: kind}, nil
	default:
		return nil, fmt.Errorf("unsupported protocol value %T", v)
	}
}

func toProtocolSeparator(s sass.Separator) (protocol.ListSeparator, error) {
	switch s {
	case sass.SeparatorComma:
		return protocol.SeparatorComma, nil
	case sass.SeparatorSpace:
		return protocol.SeparatorSpace, nil
	default:
		return 0, fmt.Errorf("unsupported list separator %d", s)
	}
}

func fromProtocolSeparator(s protocol.ListSeparator) (sass.Separator, error) {
	switch s {
	case protocol.SeparatorComma:
		return sass.SeparatorComma, nil
	case protocol.SeparatorSpace:
		return sass.SeparatorSpace, nil
	default:
		return 0, fmt.Errorf("unsupported list separator %d", s)
	}
}
