package sass

import (
	"errors"
	"fmt"
)

// ErrNotRendered is returned when render results are read before Render
// has completed successfully.
var ErrNotRendered = errors.New("render must be called first")

// SyntaxError is the legacy shape of a stylesheet compile error. Line is
// 1-based; zero means the compiler reported no location.
type SyntaxError struct {
	Message  string
	Filename string
	Line     int
}

func (e *SyntaxError) Error() string {
	switch {
	case e.Filename != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Filename, e.Line, e.Message)
	case e.Filename != "":
		return fmt.Sprintf("%s: %s", e.Filename, e.Message)
	default:
		return e.Message
	}
}

// InvalidStyleError reports an output style outside the legacy enumeration.
// It is raised before any compilation work begins.
type InvalidStyleError struct {
	Style Style
}

func (e *InvalidStyleError) Error() string {
	return fmt.Sprintf("unknown output style %q", string(e.Style))
}
