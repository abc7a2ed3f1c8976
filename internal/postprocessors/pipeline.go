package postprocessors

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains post-processors by Order(): normalisation, chunking, then dedup.
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

// Process applies all processors in order to one page of text.
func (p *Pipeline) Process(content string) []driven.Segment {
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

	segments := []driven.Segment{
		{
			Content:   content,
			EndOffset: len(content),
		},
	}

	for _, proc := range processors {
		segments = proc.Process(segments)
	}

	return segments
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

// DefaultPipeline creates the syllabus pipeline with default chunking.
func DefaultPipeline() *Pipeline {
	return NewSyllabusPipeline(DefaultChunkConfig(), false)
}

// NewSyllabusPipeline creates the page pipeline used by ingestion.
func NewSyllabusPipeline(config ChunkConfig, deduplicate bool) *Pipeline {
	p := NewPipeline()
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewChunker(config))
	if deduplicate {
		p.Add(NewDeduplicator(DefaultDeduplicatorConfig()))
	}
	return p
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum bytes per chunk
	MaxChunkSize int

	// Overlap is the byte overlap between consecutive chunks
	Overlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns the syllabus chunking defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       1000,
		Overlap:            100,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Chunker splits segments into overlapping chunks.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.MaxChunkSize {
		config.Overlap = 0
	}
	return &Chunker{config: config}
}

// Process splits segments into chunks.
func (c *Chunker) Process(segments []driven.Segment) []driven.Segment {
	var result []driven.Segment
	position := 0

	for _, seg := range segments {
		result = append(result, c.split(seg.Content, seg.StartOffset, &position)...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0.
func (c *Chunker) Order() int {
	return 0
}

// split cuts content into overlapping chunks on rune boundaries.
func (c *Chunker) split(content string, baseOffset int, position *int) []driven.Segment {
	if len(content) <= c.config.MaxChunkSize {
		seg := driven.Segment{
			Content:     content,
			Position:    *position,
			StartOffset: baseOffset,
			EndOffset:   baseOffset + len(content),
		}
		*position++
		return []driven.Segment{seg}
	}

	var segments []driven.Segment
	start := 0

	for start < len(content) {
		end := start + c.config.MaxChunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			if c.config.PreserveSentences || c.config.PreserveParagraphs {
				if bp := c.findBreakPoint(content, start, end); bp > start {
					end = bp
				}
			}
			end = runeFloor(content, end, start+1)
		}

		segments = append(segments, driven.Segment{
			Content:     content[start:end],
			Position:    *position,
			StartOffset: baseOffset + start,
			EndOffset:   baseOffset + end,
		})
		*position++

		if end >= len(content) {
			break
		}

		// Always advance, even when the overlap swallows the whole chunk
		next := end - c.config.Overlap
		if next <= start {
			next = end
		}
		start = runeFloor(content, next, start+1)
	}

	return segments
}

// runeFloor moves i back to the start of a UTF-8 sequence, never below min.
// If min itself is inside a sequence, i moves forward past it instead.
func runeFloor(s string, i, min int) int {
	for i > min && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// findBreakPoint looks for a paragraph, sentence or word boundary near maxEnd.
func (c *Chunker) findBreakPoint(content string, start, maxEnd int) int {
	searchStart := maxEnd - 100
	if searchStart < start {
		searchStart = start
	}

	window := content[searchStart:maxEnd]

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return searchStart + idx + 2
		}
	}

	if c.config.PreserveSentences {
		best := -1
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if idx := strings.LastIndex(window, ender); idx != -1 && idx+len(ender) > best {
				best = idx + len(ender)
			}
		}
		if best > 0 {
			return searchStart + best
		}
	}

	if idx := strings.LastIndexAny(window, " \n"); idx != -1 {
		return searchStart + idx + 1
	}

	return maxEnd
}

// DeduplicatorConfig configures the deduplicator.
type DeduplicatorConfig struct {
	// MinDuplicateLength is the minimum chunk length to check for duplicates
	MinDuplicateLength int
}

// DefaultDeduplicatorConfig returns sensible defaults.
func DefaultDeduplicatorConfig() DeduplicatorConfig {
	return DeduplicatorConfig{
		MinDuplicateLength: 50,
	}
}

// Deduplicator drops repeated chunks within a page, such as running headers.
type Deduplicator struct {
	config DeduplicatorConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Deduplicator)(nil)

// NewDeduplicator creates a new deduplicator with the given config.
func NewDeduplicator(config DeduplicatorConfig) *Deduplicator {
	return &Deduplicator{config: config}
}

// Process removes duplicate chunks, comparing case-insensitively.
func (d *Deduplicator) Process(segments []driven.Segment) []driven.Segment {
	if len(segments) <= 1 {
		return segments
	}

	seen := make(map[string]bool)
	var result []driven.Segment

	for _, seg := range segments {
		if len(seg.Content) < d.config.MinDuplicateLength {
			result = append(result, seg)
			continue
		}

		key := strings.TrimSpace(strings.ToLower(seg.Content))
		if !seen[key] {
			seen[key] = true
			result = append(result, seg)
		}
	}

	return result
}

// Name returns the processor name.
func (d *Deduplicator) Name() string {
	return "deduplicator"
}

// Order returns 10 so dedup sees final chunks.
func (d *Deduplicator) Order() int {
	return 10
}

// WhitespaceNormalizer cleans extracted PDF text before chunking.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process collapses runs of spaces, trims lines and squeezes blank lines.
// Segments left empty are dropped.
func (w *WhitespaceNormalizer) Process(segments []driven.Segment) []driven.Segment {
	result := make([]driven.Segment, 0, len(segments))

	for _, seg := range segments {
		content := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(seg.Content)

		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		content = strings.Join(lines, "\n")

		for strings.Contains(content, "\n\n\n") {
			content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
		}

		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}

		out := seg
		out.Content = content
		out.EndOffset = out.StartOffset + len(content)
		result = append(result, out)
	}

	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

// Order returns -10 so text is clean before it is chunked.
func (w *WhitespaceNormalizer) Order() int {
	return -10
}
