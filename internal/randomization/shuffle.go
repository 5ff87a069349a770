// Package randomization produces reproducible presentation orders for quiz
// questions and options.
//
// Orders are derived purely from a seed string so that resuming an attempt
// yields the same layout. The generator is xorshift64* and is not suitable
// for anything security sensitive.
package randomization

import (
	"hash/fnv"

	"github.com/cropsgg/ionia-stage2-sub000/internal/models"
)

// Source is a seeded xorshift64* generator.
type Source struct {
	state uint64
}

// NewSource derives a generator from seed. Equal seeds produce equal sequences.
func NewSource(seed string) *Source {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return newSourceFromHash(h.Sum64())
}

func newSourceFromHash(v uint64) *Source {
	// xorshift has a fixed point at zero
	if v == 0 {
		v = 0x9E3779B97F4A7C15
	}
	return &Source{state: v}
}

// Uint64 advances the generator.
func (s *Source) Uint64() uint64 {
	s.state ^= s.state >> 12
	s.state ^= s.state << 25
	s.state ^= s.state >> 27
	return s.state * 2685821657736338717
}

// Intn returns a value in [0, n). n must be positive.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		panic("randomization: Intn called with non-positive n")
	}
	bound := uint64(n)
	// Rejection sampling keeps the distribution uniform.
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v := s.Uint64()
		if v < limit {
			return int(v % bound)
		}
	}
}

// Permutation returns a Fisher–Yates permutation of [0, n).
func (s *Source) Permutation(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// ShuffledQuestions returns the questions in presentation order for seed.
// Disabled shuffling returns a copy in definition order.
func ShuffledQuestions(questions []models.Question, enabled bool, seed string) []models.Question {
	out := make([]models.Question, len(questions))
	if !enabled {
		copy(out, questions)
		return out
	}
	perm := NewSource(seed).Permutation(len(questions))
	for i, p := range perm {
		out[i] = questions[p]
	}
	return out
}

// ShuffledOptions returns options in presentation order. The question id is
// mixed into the seed so questions with identical option counts do not share
// an order.
func ShuffledOptions(options []models.Option, enabled bool, seed, questionID string) []models.Option {
	out := make([]models.Option, len(options))
	if !enabled {
		copy(out, options)
		return out
	}
	perm := NewSource(seed + "\x00" + questionID).Permutation(len(options))
	for i, p := range perm {
		out[i] = options[p]
	}
	return out
}

// Snapshot applies both question and option shuffling per settings and
// returns deep copies safe to persist on an attempt.
func Snapshot(questions []models.Question, settings models.QuizSettings, seed string) []models.Question {
	ordered := ShuffledQuestions(questions, settings.ShuffleQuestions, seed)
	for i := range ordered {
		ordered[i].Options = ShuffledOptions(ordered[i].Options, settings.ShuffleOptions, seed, ordered[i].ID)
	}
	return ordered
}
