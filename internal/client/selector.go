package client

import (
	"fmt"
	"math/rand"
	"sync"
)

// Selector picks the sub-target (model variant) for one invocation.
//
// Multi-model endpoints serve several variants of a model behind one URL;
// spreading invocations across variants is a property of the request
// workload, so it is injected here rather than baked into the client.
type Selector interface {
	Pick() string
}

// Fixed always selects the same target.
type Fixed string

func (f Fixed) Pick() string { return string(f) }

// RandomVariant selects "<model>-v<N>" uniformly over Count variants.
type RandomVariant struct {
	Model string
	Count int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomVariant creates a selector over count variants of model.
// A count below 2 collapses to always selecting variant 0.
func NewRandomVariant(model string, count int, seed int64) *RandomVariant {
	if count < 1 {
		count = 1
	}
	return &RandomVariant{
		Model: model,
		Count: count,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Pick returns the next variant name. Safe for concurrent use.
func (s *RandomVariant) Pick() string {
	s.mu.Lock()
	n := s.rng.Intn(s.Count)
	s.mu.Unlock()
	return fmt.Sprintf("%s-v%d", s.Model, n)
}
