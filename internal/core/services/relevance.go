package services

import (
	"fmt"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
)

// RelevancePolicy decides whether retrieved chunks are worth grounding an answer on.
// The engine applies the sentinel check after generation regardless of policy.
type RelevancePolicy interface {
	Name() string
	Admit(results []*domain.ScoredChunk) bool
}

// ThresholdPolicy admits results whose best distance is strictly below Threshold.
type ThresholdPolicy struct {
	Threshold float64
}

func (p ThresholdPolicy) Name() string { return domain.PolicyThreshold }

// Admit expects results in ascending distance order.
func (p ThresholdPolicy) Admit(results []*domain.ScoredChunk) bool {
	if len(results) == 0 {
		return false
	}
	return results[0].Score < p.Threshold
}

// SentinelOnlyPolicy admits any non-empty result and leaves the decision to the generator.
type SentinelOnlyPolicy struct{}

func (SentinelOnlyPolicy) Name() string { return domain.PolicySentinel }

func (SentinelOnlyPolicy) Admit(results []*domain.ScoredChunk) bool {
	return len(results) > 0
}

// PolicyByName resolves a configured policy name
func PolicyByName(name string, threshold float64) (RelevancePolicy, error) {
	switch name {
	case domain.PolicyThreshold:
		return ThresholdPolicy{Threshold: threshold}, nil
	case domain.PolicySentinel:
		return SentinelOnlyPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown relevance policy %q: %w", name, domain.ErrInvalidInput)
	}
}
