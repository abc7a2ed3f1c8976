package driven

// Segment is a piece of page text produced by the post-processing pipeline.
type Segment struct {
	Content     string
	Position    int // index within the page
	StartOffset int
	EndOffset   int
}

// PostProcessor transforms page segments (chunking, normalisation, dedup).
type PostProcessor interface {
	// Process transforms the input segments
	Process(segments []Segment) []Segment
	// Name identifies the processor
	Name() string
	// Order determines position in the pipeline; lower runs first
	Order() int
}

// PostProcessorPipeline turns raw page text into embeddable segments.
type PostProcessorPipeline interface {
	Process(content string) []Segment
	List() []string
}
