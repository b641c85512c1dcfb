package postprocessors

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Allerac/allerac-one-sub001/internal/core/domain"
	"github.com/Allerac/allerac-one-sub001/internal/core/ports/driven"
)

func mustChunker(t *testing.T, cfg ChunkConfig) *Chunker {
	t.Helper()
	c, err := NewChunker(cfg)
	if err != nil {
		t.Fatalf("NewChunker(%+v): %v", cfg, err)
	}
	return c
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if len(p.List()) != 0 {
		t.Errorf("expected empty processors, got %d", len(p.List()))
	}
}

func TestPipeline_Process_EmptyContent(t *testing.T) {
	p := DefaultPipeline()

	if chunks := p.Process(""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestPipeline_Process_SmallContent(t *testing.T) {
	p := DefaultPipeline()

	content := "Hello, world!"
	chunks := p.Process(content)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != content {
		t.Errorf("expected %q, got %q", content, chunks[0].Content)
	}
	if chunks[0].StartOffset != 0 || chunks[0].EndOffset != len(content) {
		t.Errorf("expected offsets [0,%d), got [%d,%d)", len(content), chunks[0].StartOffset, chunks[0].EndOffset)
	}
}

func TestPipeline_ProcessorOrder(t *testing.T) {
	p := NewPipeline()
	p.Add(&upperCaser{})
	p.Add(mustChunker(t, ChunkConfig{WindowSize: 4, Overlap: 1}))

	if names := p.List(); len(names) != 2 {
		t.Fatalf("expected 2 processors, got %v", names)
	}

	chunks := p.Process("abcdefg")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "ABCD" || chunks[1].Content != "DEFG" {
		t.Errorf("expected chunker to run first, got %q and %q", chunks[0].Content, chunks[1].Content)
	}
	if names := p.List(); names[0] != "chunker" {
		t.Errorf("expected chunker first after sorting, got %v", names)
	}
}

// upperCaser is a test stage that runs after the chunker
type upperCaser struct{}

func (u *upperCaser) Process(chunks []driven.Chunk) []driven.Chunk {
	for i := range chunks {
		chunks[i].Content = strings.ToUpper(chunks[i].Content)
	}
	return chunks
}
func (u *upperCaser) Name() string { return "upper" }
func (u *upperCaser) Order() int   { return 5 }

func TestNewChunker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  ChunkConfig
	}{
		{"zero window", ChunkConfig{WindowSize: 0, Overlap: 0}},
		{"negative overlap", ChunkConfig{WindowSize: 10, Overlap: -1}},
		{"overlap equals window", ChunkConfig{WindowSize: 10, Overlap: 10}},
		{"overlap exceeds window", ChunkConfig{WindowSize: 10, Overlap: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.cfg)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestChunker_TwentyFiveHundredCharacters(t *testing.T) {
	c := mustChunker(t, DefaultChunkConfig())
	text := strings.Repeat("x", 2500)

	chunks := c.Process([]driven.Chunk{{Content: text}})

	want := [][2]int{{0, 1000}, {800, 1800}, {1600, 2500}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, w := range want {
		if chunks[i].StartOffset != w[0] || chunks[i].EndOffset != w[1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)", i, w[0], w[1], chunks[i].StartOffset, chunks[i].EndOffset)
		}
		if chunks[i].Position != i {
			t.Errorf("chunk %d: expected position %d, got %d", i, i, chunks[i].Position)
		}
	}
	if len(chunks[2].Content) != 900 {
		t.Errorf("expected final chunk of 900 characters, got %d", len(chunks[2].Content))
	}
}

func TestChunker_CoverageProperties(t *testing.T) {
	configs := []ChunkConfig{
		DefaultChunkConfig(),
		{WindowSize: 10, Overlap: 3},
		{WindowSize: 7, Overlap: 0},
		{WindowSize: 5, Overlap: 4},
		{WindowSize: 1, Overlap: 0},
	}
	lengths := []int{1, 2, 5, 9, 10, 11, 199, 200, 201, 999, 1000, 1001, 1800, 2500, 4321}

	for _, cfg := range configs {
		c := mustChunker(t, cfg)
		for _, n := range lengths {
			text := sampleText(n)
			chunks := c.Process([]driven.Chunk{{Content: text}})

			if got, want := len(chunks), cfg.ExpectedChunks(n); got != want {
				t.Errorf("cfg=%+v n=%d: expected %d chunks, got %d", cfg, n, want, got)
				continue
			}
			if chunks[0].StartOffset != 0 {
				t.Errorf("cfg=%+v n=%d: first chunk starts at %d", cfg, n, chunks[0].StartOffset)
			}
			if last := chunks[len(chunks)-1]; last.EndOffset != n {
				t.Errorf("cfg=%+v n=%d: last chunk ends at %d", cfg, n, last.EndOffset)
			}

			runes := []rune(text)
			for i, ch := range chunks {
				size := ch.EndOffset - ch.StartOffset
				if size <= 0 || size > cfg.WindowSize {
					t.Errorf("cfg=%+v n=%d chunk %d: bad size %d", cfg, n, i, size)
				}
				if ch.Content != string(runes[ch.StartOffset:ch.EndOffset]) {
					t.Errorf("cfg=%+v n=%d chunk %d: content does not match offsets", cfg, n, i)
				}
				if i > 0 {
					prev := chunks[i-1]
					if ch.StartOffset != prev.StartOffset+cfg.Step() {
						t.Errorf("cfg=%+v n=%d chunk %d: expected start %d, got %d", cfg, n, i, prev.StartOffset+cfg.Step(), ch.StartOffset)
					}
					if overlap := prev.EndOffset - ch.StartOffset; overlap != cfg.Overlap && i < len(chunks)-1 {
						t.Errorf("cfg=%+v n=%d chunk %d: expected overlap %d, got %d", cfg, n, i, cfg.Overlap, overlap)
					}
				}
			}
		}
	}
}

func TestChunker_ShortTextBelowOverlap(t *testing.T) {
	c := mustChunker(t, DefaultChunkConfig())

	chunks := c.Process([]driven.Chunk{{Content: strings.Repeat("a", 150)}})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].EndOffset != 150 {
		t.Errorf("expected end 150, got %d", chunks[0].EndOffset)
	}
}

func TestChunker_MultiByteCharacters(t *testing.T) {
	c := mustChunker(t, ChunkConfig{WindowSize: 4, Overlap: 1})
	text := "héllo wörld ✓✓"

	chunks := c.Process([]driven.Chunk{{Content: text}})

	n := utf8.RuneCountInString(text)
	if chunks[len(chunks)-1].EndOffset != n {
		t.Errorf("expected offsets in runes ending at %d, got %d", n, chunks[len(chunks)-1].EndOffset)
	}
	for i, ch := range chunks {
		if !utf8.ValidString(ch.Content) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, ch.Content)
		}
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := mustChunker(t, DefaultChunkConfig())

	if chunks := c.Process([]driven.Chunk{{Content: ""}}); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunkConfig_ExpectedChunks(t *testing.T) {
	cfg := DefaultChunkConfig()
	tests := []struct {
		n, want int
	}{
		{0, 0},
		{1, 1},
		{200, 1},
		{1000, 1},
		{1001, 2},
		{1800, 2},
		{1801, 3},
		{2500, 3},
	}

	for _, tt := range tests {
		if got := cfg.ExpectedChunks(tt.n); got != tt.want {
			t.Errorf("ExpectedChunks(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func sampleText(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyzäöü "
	runes := []rune(alphabet)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(runes[i%len(runes)])
	}
	return b.String()
}
