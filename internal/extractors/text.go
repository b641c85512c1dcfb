package extractors

import (
	"context"
	"strings"
)

// PlainTextExtractor returns text files verbatim.
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return normaliseText(string(data)), nil
}

func (e *PlainTextExtractor) SupportedTypes() []string {
	return []string{"text/plain"}
}

// MarkdownExtractor returns Markdown source verbatim; markup is left for the model.
type MarkdownExtractor struct{}

func (e *MarkdownExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	return normaliseText(string(data)), nil
}

func (e *MarkdownExtractor) SupportedTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// normaliseText drops a UTF-8 BOM and replaces invalid UTF-8. Whitespace and
// line endings are kept as uploaded.
func normaliseText(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	return strings.ToValidUTF8(content, "\uFFFD")
}
