package services

import (
	"math/rand"
	"sync"
	"time"

	"luckydraw/internal/models"
)

// DrawEngine picks winners. It never mutates the pool it is given.
type DrawEngine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDrawEngine creates an engine seeded with seed. A zero seed uses the current time.
func NewDrawEngine(seed int64) *DrawEngine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DrawEngine{rng: rand.New(rand.NewSource(seed))}
}

// SelectWinners returns up to count distinct items drawn uniformly from the
// items in pool that have not won yet. count is clamped to the size of that
// subset; an empty subset or count < 1 yields an empty slice.
func (e *DrawEngine) SelectWinners(pool []models.Item, count int) []models.Item {
	eligible := make([]models.Item, 0, len(pool))
	for _, it := range pool {
		if !it.HasWon {
			eligible = append(eligible, it)
		}
	}
	if len(eligible) == 0 || count < 1 {
		return []models.Item{}
	}
	if count > len(eligible) {
		count = len(eligible)
	}

	// Fisher-Yates over the whole copy so every permutation is equally likely.
	e.mu.Lock()
	for i := len(eligible) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	e.mu.Unlock()

	return eligible[:count:count]
}
