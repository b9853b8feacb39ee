package wire

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Property 3: sequence monotonicity. Across any interleaving of
// concurrent NextSequence calls, assigned values are pairwise distinct.
func TestNextSequenceUniqueUnderConcurrency(t *testing.T) {
	const goroutines = 32
	const perGoroutine = 1000

	results := make(chan uint64, goroutines*perGoroutine)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				results <- NextSequence()
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[uint64]struct{}, goroutines*perGoroutine)
	for seq := range results {
		assert.NotZero(t, seq, "sequence numbers must never be zero")
		_, dup := seen[seq]
		assert.False(t, dup, "sequence number %d assigned twice", seq)
		seen[seq] = struct{}{}
	}
	assert.Len(t, seen, goroutines*perGoroutine)
}
