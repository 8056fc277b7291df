package traffic

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is a goroutine-safe uniform random source shared by the simulated
// generator and optimizer.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a Rand seeded with seed. A zero seed uses the current time.
func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Uniform returns a value in [lo, hi).
func (r *Rand) Uniform(lo, hi float64) float64 {
	r.mu.Lock()
	f := r.r.Float64()
	r.mu.Unlock()
	return lo + f*(hi-lo)
}
