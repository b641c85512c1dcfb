package driven

import (
	"context"
)

// Extractor turns the raw bytes of one file format into plain text.
type Extractor interface {
	// Extract returns the document's text with line endings normalised to \n.
	Extract(ctx context.Context, data []byte) (string, error)

	// SupportedTypes returns the MIME types this extractor handles.
	SupportedTypes() []string
}

// ExtractorRegistry dispatches extraction by declared MIME type.
type ExtractorRegistry interface {
	// Get returns the extractor for a MIME type, or nil if none is registered.
	// Parameters such as "; charset=utf-8" are ignored.
	Get(mimeType string) Extractor

	Register(extractor Extractor)

	// List returns all registered MIME types, sorted.
	List() []string
}

// PostProcessor applies one stage of text processing.
// Processors form a pipeline ordered by Order(); the chunker is stage 0.
type PostProcessor interface {
	// Process transforms chunks. The first processor receives a single chunk
	// holding the full text.
	Process(chunks []Chunk) []Chunk

	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	Order() int
}

// Chunk is a span of document text flowing through the post-processing pipeline.
// Offsets are in characters (runes), half-open [StartOffset, EndOffset).
type Chunk struct {
	Content     string
	Position    int
	StartOffset int
	EndOffset   int
	Metadata    map[string]string
}

// PostProcessorPipeline chains post-processors in order.
type PostProcessorPipeline interface {
	// Process runs text through every stage and returns the final chunks.
	Process(content string) []Chunk

	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
