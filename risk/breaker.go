package risk

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CIRCUIT BREAKER - Consecutive-loss protection
// ═══════════════════════════════════════════════════════════════════════════════
//
// Distinct from the daily-loss ceiling: this one trips on a losing streak and
// stays tripped until manually cleared.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Breaker halts new entries after a run of consecutive losses
type Breaker struct {
	mu sync.RWMutex

	maxConsecutiveLosses int

	consecutiveLosses int
	tripped           bool
}

// NewBreaker creates a consecutive-loss circuit breaker
func NewBreaker(maxLosses int) *Breaker {
	return &Breaker{maxConsecutiveLosses: maxLosses}
}

// RecordLoss counts a losing trade and trips at the threshold
func (b *Breaker) RecordLoss() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveLosses++
	if b.consecutiveLosses >= b.maxConsecutiveLosses && !b.tripped {
		b.tripped = true
		log.Warn().
			Int("consecutive_losses", b.consecutiveLosses).
			Msg("🚨 CIRCUIT BREAKER TRIPPED")
	}
}

// RecordWin resets the streak. Does not un-trip the breaker.
func (b *Breaker) RecordWin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveLosses = 0
}

// Tripped returns current trip state
func (b *Breaker) Tripped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tripped
}

// Losses returns the current consecutive-loss count
func (b *Breaker) Losses() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.consecutiveLosses
}

// Clear manually resets the breaker
func (b *Breaker) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveLosses = 0
	b.tripped = false
	log.Info().Msg("✅ Circuit breaker manually cleared")
}
