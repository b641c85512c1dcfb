package extractors

import (
	"context"
	"errors"
	"testing"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
)

type stubExtractor struct {
	name  string
	types []string
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return s.name + ":" + string(data), nil
}

func (s *stubExtractor) SupportedTypes() []string {
	return s.types
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "a", types: []string{"text/plain", "Text/CSV"}})

	types := r.List()
	if len(types) != 2 || types[0] != "text/csv" || types[1] != "text/plain" {
		t.Errorf("unexpected types %v", types)
	}
}

func TestRegistry_GetIgnoresParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "plain", types: []string{"text/plain"}})

	for _, mt := range []string{"text/plain", "TEXT/PLAIN", "text/plain; charset=utf-8", " text/plain "} {
		if r.Get(mt) == nil {
			t.Errorf("expected extractor for %q", mt)
		}
	}
	if r.Get("text/html") != nil {
		t.Error("expected no extractor for text/html")
	}
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubExtractor{name: "first", types: []string{"text/plain"}})
	r.Register(&stubExtractor{name: "second", types: []string{"text/plain"}})

	got, err := r.Extract(context.Background(), "text/plain", []byte("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "second:x" {
		t.Errorf("expected second extractor, got %q", got)
	}
}

func TestRegistry_ExtractUnsupported(t *testing.T) {
	r := DefaultRegistry()

	for _, mt := range []string{"image/png", "application/zip", "text/html", ""} {
		_, err := r.Extract(context.Background(), mt, []byte("data"))
		if !errors.Is(err, domain.ErrUnsupportedFormat) {
			t.Errorf("%q: expected ErrUnsupportedFormat, got %v", mt, err)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, mt := range []string{"text/plain", "text/markdown", "text/x-markdown", "application/pdf"} {
		if r.Get(mt) == nil {
			t.Errorf("expected default extractor for %s", mt)
		}
	}
}

func TestResolveMIMEType(t *testing.T) {
	tests := []struct {
		filename, declared, want string
	}{
		{"notes.md", "text/markdown", "text/markdown"},
		{"notes.md", "", "text/markdown"},
		{"notes.md", "application/octet-stream", "text/markdown"},
		{"REPORT.PDF", "", "application/pdf"},
		{"readme.txt", "text/plain; charset=utf-8", "text/plain"},
		{"image.png", "image/png", "image/png"},
		{"blob.bin", "", ""},
	}

	for _, tt := range tests {
		if got := ResolveMIMEType(tt.filename, tt.declared); got != tt.want {
			t.Errorf("ResolveMIMEType(%q, %q) = %q, want %q", tt.filename, tt.declared, got, tt.want)
		}
	}
}
