// Package fileurl converts between filesystem paths and file: URLs.
//
// The conversion round-trips: ToPath(FromPath(p)) returns the absolute form
// of p for any valid path, including paths that need percent-encoding.
package fileurl

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// driveLetterPath matches the decoded form a Windows drive-letter absolute
// path takes inside a file URL, e.g. "/C:/Users/...".
var driveLetterPath = regexp.MustCompile(`^/[A-Za-z]:/`)

// ToPath decodes a file-scheme URL into a filesystem path. Plain paths
// without a scheme pass through decoded. Empty input yields empty output.
func ToPath(fileURL string) (string, error) {
	if fileURL == "" {
		return "", nil
	}
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("malformed file URL %q: %w", fileURL, err)
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %q", fileURL)
	}
	p := u.Path
	if runtime.GOOS == "windows" {
		if driveLetterPath.MatchString(p) {
			p = p[1:]
		}
		p = filepath.FromSlash(p)
	}
	return p, nil
}

// FromPath absolutizes path and renders it as a percent-encoded file-scheme
// URL. Empty input yields empty output.
func FromPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("unable to absolutize %q: %w", path, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{Scheme: "file", Path: p}
	return u.String(), nil
}
