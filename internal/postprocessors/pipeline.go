package postprocessors

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process runs text through every processor in order.
// Empty text produces no chunks.
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	if content == "" {
		return nil
	}

	chunks := []driven.Chunk{
		{
			Content:     content,
			Position:    0,
			StartOffset: 0,
			EndOffset:   utf8.RuneCountInString(content),
		},
	}

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// NewChunkingPipeline creates a pipeline whose only stage is a chunker with config.
func NewChunkingPipeline(config ChunkConfig) (*Pipeline, error) {
	chunker, err := NewChunker(config)
	if err != nil {
		return nil, err
	}
	p := NewPipeline()
	p.Add(chunker)
	return p, nil
}

// DefaultPipeline creates a pipeline with the default chunker.
func DefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.Add(&Chunker{config: DefaultChunkConfig()})
	return p
}

// ChunkConfig configures the chunker. Sizes are in characters.
type ChunkConfig struct {
	// WindowSize is the maximum characters per chunk
	WindowSize int

	// Overlap is the number of characters shared by consecutive chunks
	Overlap int
}

// DefaultChunkConfig returns a 1000 character window with 200 characters of overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		WindowSize: 1000,
		Overlap:    200,
	}
}

// Step is the distance between the starts of consecutive windows.
func (c ChunkConfig) Step() int {
	return c.WindowSize - c.Overlap
}

// Validate rejects configs whose loop would not advance.
func (c ChunkConfig) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: chunk window size must be positive, got %d", domain.ErrInvalidInput, c.WindowSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidInput, c.Overlap)
	}
	if c.Overlap >= c.WindowSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than window size %d", domain.ErrInvalidInput, c.Overlap, c.WindowSize)
	}
	return nil
}

// ExpectedChunks returns how many chunks text of n characters produces:
// max(1, ceil((n - overlap) / step)) for n > 0, otherwise 0.
func (c ChunkConfig) ExpectedChunks(n int) int {
	if n <= 0 {
		return 0
	}
	step := c.Step()
	count := (n - c.Overlap + step - 1) / step
	if count < 1 {
		return 1
	}
	return count
}

// Chunker splits text into fixed-size overlapping windows.
// It is the first processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a chunker, rejecting invalid configs with domain.ErrInvalidInput.
func NewChunker(config ChunkConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Config returns the chunker's configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Process splits each input chunk into windows, numbering them consecutively.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		result = append(result, c.split(chunk.Content, chunk.StartOffset, &position)...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// split emits [start, min(start+W, N)) for start = 0, S, 2S, ... and stops at the
// first window that reaches N. Offsets count runes so multi-byte characters are
// never cut.
func (c *Chunker) split(content string, baseOffset int, position *int) []driven.Chunk {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return nil
	}

	step := c.config.Step()
	chunks := make([]driven.Chunk, 0, c.config.ExpectedChunks(n))

	for start := 0; ; start += step {
		end := start + c.config.WindowSize
		if end > n {
			end = n
		}

		chunks = append(chunks, driven.Chunk{
			Content:     string(runes[start:end]),
			Position:    *position,
			StartOffset: baseOffset + start,
			EndOffset:   baseOffset + end,
		})
		*position++

		if end == n {
			break
		}
	}

	return chunks
}
