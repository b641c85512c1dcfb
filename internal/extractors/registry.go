package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry implements ExtractorRegistry with one extractor per MIME type.
// Registering a second extractor for a type replaces the first.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]driven.Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[string]driven.Extractor),
	}
}

// Register registers an extractor for each of its supported types.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range extractor.SupportedTypes() {
		r.byType[normaliseMIMEType(t)] = extractor
	}
}

// Get returns the extractor for a MIME type, or nil.
func (r *Registry) Get(mimeType string) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byType[normaliseMIMEType(mimeType)]
}

// List returns all registered MIME types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract dispatches to the extractor registered for mimeType.
// Returns domain.ErrUnsupportedFormat when none is registered.
func (r *Registry) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	ex := r.Get(mimeType)
	if ex == nil {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, mimeType)
	}
	return ex.Extract(ctx, data)
}

// DefaultRegistry creates a registry with the plain text, Markdown and PDF extractors.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlainTextExtractor{})
	r.Register(&MarkdownExtractor{})
	r.Register(&PDFExtractor{})
	return r
}

// normaliseMIMEType lowercases a MIME type and strips parameters such as charset.
func normaliseMIMEType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".pdf":      "application/pdf",
}

// ResolveMIMEType returns the declared type unless it is missing or generic,
// in which case the filename extension decides.
func ResolveMIMEType(filename, declared string) string {
	declared = normaliseMIMEType(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return declared
}
