package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sassc/fileurl"
	"sassc/protocol"
	"sassc/sass"
)

// canonicalURL tags the two kinds of canonical URLs the handler caches:
// real absolute file URLs and URLs synthesized by the shim to reference
// importer-produced content. The wire form exchanged with the compiler is
// always a plain string.
type canonicalURL struct {
	synthetic bool
	wire      string
}

func (c canonicalURL) String() string {
	return c.wire
}

// resolution is one settled cache entry. A cached entry with found=false
// means the importer declined this URL; the cache map miss itself is the
// third, "not yet looked up" state.
type resolution struct {
	found bool
	imp   protocol.Import
}

// ImportHandler bridges a legacy importer capability into the two-phase
// canonicalize/load protocol. One handler serves exactly one render; its
// cache is never shared across renders. The compiler dispatches callbacks
// synchronously within the single blocked Compile call, so cache access
// needs no locking.
type ImportHandler struct {
	importer sass.Importer
	opts     *sass.Options
	log      *zap.Logger

	// id namespaces synthesized canonical URLs so they cannot collide
	// with URLs the compiler produces on its own.
	id    string
	cache map[string]resolution
}

// NewImportHandler creates a handler for one render. importer may be nil,
// in which case only the file passthrough resolver is registered.
func NewImportHandler(importer sass.Importer, opts *sass.Options, log *zap.Logger) *ImportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportHandler{
		importer: importer,
		opts:     opts,
		log:      log.Named("import-handler"),
		id:       uuid.NewString(),
		cache:    make(map[string]resolution),
	}
}

// Resolvers returns the ordered importer list to register with the
// compiler: the file passthrough resolver always first, then the legacy
// importer wrapper if one was supplied.
func (h *ImportHandler) Resolvers() []protocol.Importer {
	resolvers := []protocol.Importer{fileResolver{}}
	if h.importer != nil {
		resolvers = append(resolvers, h)
	}
	return resolvers
}

// Canonicalize resolves an import request through the legacy importer.
// Previously settled URLs are answered from the cache without reinvoking
// the importer; previously declined URLs stay declined for the whole
// render.
func (h *ImportHandler) Canonicalize(url string) (string, error) {
	if i := strings.IndexByte(url, ':'); i >= 0 && !strings.HasPrefix(url, "file:") {
		// foreign scheme, not ours to resolve
		return "", nil
	}
	path, err := fileurl.ToPath(url)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	fileURL, err := fileurl.FromPath(abs)
	if err != nil {
		return "", err
	}

	real := canonicalURL{wire: fileURL}
	if r, ok := h.cache[real.wire]; ok {
		if !r.found {
			return "", nil
		}
		return real.wire, nil
	}
	synthetic := h.synthesize(fileURL)
	if r, ok := h.cache[synthetic.wire]; ok {
		if !r.found {
			return "", nil
		}
		return synthetic.wire, nil
	}

	imports, err := h.importer.Imports(path, h.opts.Filename)
	if err != nil {
		// legacy importer failures propagate unchanged
		return "", err
	}

	if len(imports) == 1 && imports[0].Path == path && imports[0].Source == "" {
		// the importer handed the request back: decline and remember it
		h.log.Debug("Importer declined", zap.String("path", path))
		h.cache[real.wire] = resolution{}
		return "", nil
	}

	statements := make([]string, 0, len(imports))
	for _, imp := range imports {
		impURL, err := h.cacheImport(path, imp)
		if err != nil {
			return "", err
		}
		statements = append(statements, fmt.Sprintf("@import %q;", impURL))
	}

	h.cache[synthetic.wire] = resolution{found: true, imp: protocol.Import{
		Contents: strings.Join(statements, "\n"),
		Syntax:   protocol.SyntaxSCSS,
	}}
	h.log.Debug("Importer resolved", zap.String("path", path), zap.Int("imports", len(imports)))
	return synthetic.wire, nil
}

// Load answers from the resolution cache only; it never reinvokes the
// legacy importer.
func (h *ImportHandler) Load(canonical string) (*protocol.Import, error) {
	if r, ok := h.cache[canonical]; ok && r.found {
		imp := r.imp
		return &imp, nil
	}
	return nil, nil
}

// cacheImport resolves one importer-produced Import to its file URL,
// caching inline source contents when present, and returns the URL the
// synthetic @import statement should reference.
func (h *ImportHandler) cacheImport(requested string, imp sass.Import) (string, error) {
	abs, err := filepath.Abs(imp.Path)
	if err != nil {
		return "", err
	}
	impURL, err := fileurl.FromPath(abs)
	if err != nil {
		return "", err
	}
	if imp.Source == "" {
		return impURL, nil
	}

	syntax, err := SyntaxForPath(abs)
	if err != nil {
		return "", err
	}
	var sourceMapURL string
	if imp.SourceMapPath != "" {
		smPath := imp.SourceMapPath
		if !filepath.IsAbs(smPath) {
			smPath = filepath.Join(filepath.Dir(requested), smPath)
		}
		if sourceMapURL, err = fileurl.FromPath(smPath); err != nil {
			return "", err
		}
	}
	h.cache[impURL] = resolution{found: true, imp: protocol.Import{
		Contents:     imp.Source,
		Syntax:       syntax,
		SourceMapURL: sourceMapURL,
	}}
	return impURL, nil
}

func (h *ImportHandler) synthesize(fileURL string) canonicalURL {
	return canonicalURL{
		synthetic: true,
		wire:      "sassc-shim://" + h.id + strings.TrimPrefix(fileURL, "file://"),
	}
}

// fileResolver is the built-in file passthrough resolver: it claims URLs
// that already carry the file scheme and loads them from disk, declining
// everything else so the next resolver can try.
type fileResolver struct{}

func (fileResolver) Canonicalize(url string) (string, error) {
	if strings.HasPrefix(url, "file:") {
		return url, nil
	}
	return "", nil
}

func (fileResolver) Load(canonical string) (*protocol.Import, error) {
	path, err := fileurl.ToPath(canonical)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	syntax, err := SyntaxForPath(path)
	if err != nil {
		return nil, err
	}
	return &protocol.Import{Contents: string(data), Syntax: syntax}, nil
}

// SyntaxForPath infers the protocol syntax from a file extension. Any
// extension outside the stylesheet set is a contract violation by the
// collaborator that produced the path.
func SyntaxForPath(path string) (protocol.Syntax, error) {
	switch filepath.Ext(path) {
	case ".scss":
		return protocol.SyntaxSCSS, nil
	case ".sass":
		return protocol.SyntaxIndented, nil
	case ".css":
		return protocol.SyntaxCSS, nil
	default:
		return "", fmt.Errorf("unsupported stylesheet extension in %q", path)
	}
}
