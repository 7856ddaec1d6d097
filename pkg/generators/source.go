package generators

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Streams of the seeded generator, one per kind of record so that changing
// one count does not reshuffle everything else.
const (
	streamVendors uint64 = iota + 1
	streamCustomers
	streamMaterials
	streamEmployees
	streamDocumentFlows
	streamJournalEntries
	streamBank
	streamAnomalies
	streamQuality
)

// source is a deterministic random source. Ids are drawn from the same
// ChaCha8 stream as numbers so a seed reproduces a whole run.
type source struct {
	chacha *rand.ChaCha8
	rng    *rand.Rand
}

func newSource(seed, stream uint64) *source {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], stream)
	c := rand.NewChaCha8(key)
	return &source{chacha: c, rng: rand.New(c)}
}

func (s *source) id() string {
	id, err := uuid.NewRandomFromReader(s.chacha)
	if err != nil {
		// ChaCha8.Read never fails
		return uuid.NewString()
	}
	return id.String()
}

func (s *source) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}

// between returns a value in [lo, hi].
func (s *source) between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Int64N(hi-lo+1)
}

func (s *source) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return s.rng.Float64() < p
}

func (s *source) float(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func pick[T any](s *source, items []T) T {
	return items[s.intn(len(items))]
}
