package gostatsc

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes the 64 bit hash used to place an aggregation key into a
// registry shard.  Metric names and tags can originate from less trusted
// dimensions (user supplied labels), so the default implementation is keyed.
type Hasher interface {
	HashKey(name, tags string) uint64
}

// NewSeededHasher returns the default Hasher.  It is keyed with a random
// per-process seed, making the shard placement resistant to collision
// flooding from attacker-controlled metric names or tag values.
func NewSeededHasher() Hasher {
	return &seededHasher{seed: maphash.MakeSeed()}
}

type seededHasher struct {
	seed maphash.Seed
}

func (s *seededHasher) HashKey(name, tags string) uint64 {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(name)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(tags)
	return h.Sum64()
}

// NewXXHasher returns a Hasher backed by xxhash64.  It is faster than the
// seeded default but not keyed; only use it when metric names and tags come
// from trusted code.
func NewXXHasher() Hasher {
	return xxHasher{}
}

type xxHasher struct{}

func (xxHasher) HashKey(name, tags string) uint64 {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.WriteString(name)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(tags)
	return d.Sum64()
}
