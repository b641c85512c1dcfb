package extractors

import (
	"context"
	"testing"
)

func TestPlainTextExtractor_Verbatim(t *testing.T) {
	e := &PlainTextExtractor{}
	src := "  line one\r\nline two\r\n\n"

	got, err := e.Extract(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != src {
		t.Errorf("expected %q unchanged, got %q", src, got)
	}
}

func TestPlainTextExtractor_StripsBOM(t *testing.T) {
	e := &PlainTextExtractor{}

	got, err := e.Extract(context.Background(), []byte("\ufeffline one\rline two "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "line one\rline two "; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPlainTextExtractor_InvalidUTF8(t *testing.T) {
	e := &PlainTextExtractor{}

	got, err := e.Extract(context.Background(), []byte{'o', 'k', 0xff, '!'})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok\uFFFD!" {
		t.Errorf("expected replacement character, got %q", got)
	}
}

func TestMarkdownExtractor_KeepsMarkup(t *testing.T) {
	e := &MarkdownExtractor{}
	src := "# Title\n\n- item *one*\n- item `two`"

	got, err := e.Extract(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != src {
		t.Errorf("expected markdown verbatim, got %q", got)
	}
}

func TestPlainTextExtractor_WhitespaceOnly(t *testing.T) {
	e := &PlainTextExtractor{}

	got, err := e.Extract(context.Background(), []byte("   \n\n  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "   \n\n  " {
		t.Errorf("expected whitespace kept, got %q", got)
	}
}
