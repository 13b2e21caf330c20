package shortcode

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	randomPartLen  = 5
	timePartLen    = 2
)

type Generator interface {
	Generate() string
}

// RandomGenerator builds codes from five random base36 characters followed by the
// last two base36 digits of the current time in milliseconds.
type RandomGenerator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	nowFunc func() time.Time
}

func NewRandomGenerator() *RandomGenerator {
	return NewSeededGenerator(rand.Uint64(), rand.Uint64(), time.Now)
}

func NewSeededGenerator(seed1, seed2 uint64, now func() time.Time) *RandomGenerator {
	return &RandomGenerator{
		rnd:     rand.New(rand.NewPCG(seed1, seed2)),
		nowFunc: now,
	}
}

func (g *RandomGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, 0, randomPartLen+timePartLen)
	for i := 0; i < randomPartLen; i++ {
		b = append(b, base36Alphabet[g.rnd.IntN(len(base36Alphabet))])
	}

	ts := strconv.FormatInt(g.nowFunc().UnixMilli(), 36)
	if len(ts) > timePartLen {
		ts = ts[len(ts)-timePartLen:]
	}
	return string(append(b, ts...))
}
