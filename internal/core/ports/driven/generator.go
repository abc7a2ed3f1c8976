package driven

import "context"

// GroundedGenerator answers a question using only the supplied context.
// When the context does not answer the question it must reply with
// domain.NotFoundSentinel, verbatim.
type GroundedGenerator interface {
	Generate(ctx context.Context, context, question string) (string, error)
}

// GeneralGenerator answers a question from general knowledge, without context.
type GeneralGenerator interface {
	Generate(ctx context.Context, question string) (string, error)
}
