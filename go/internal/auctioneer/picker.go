package auctioneer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/live-auction/go/internal/models"
)

// Picker chooses the next player from a non-empty candidate list.
type Picker interface {
	Pick(candidates []models.Player) models.Player
}

// RandomPicker draws uniformly at random.
type RandomPicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPicker constructs a RandomPicker with its own seed.
func NewRandomPicker() *RandomPicker {
	return NewSeededPicker(time.Now().UnixNano())
}

// NewSeededPicker returns a deterministic RandomPicker.
func NewSeededPicker(seed int64) *RandomPicker {
	return &RandomPicker{rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomPicker) Pick(candidates []models.Player) models.Player {
	p.mu.Lock()
	defer p.mu.Unlock()
	return candidates[p.rng.Intn(len(candidates))]
}

// PickerFunc adapts a function to Picker.
type PickerFunc func([]models.Player) models.Player

func (f PickerFunc) Pick(candidates []models.Player) models.Player { return f(candidates) }
