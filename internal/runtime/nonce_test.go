package runtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_Format(t *testing.T) {
	n := UUIDv7Generator{}.Generate()

	parsed, err := uuid.Parse(n)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, n, 36)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := gen.Generate()
		assert.False(t, seen[n], "duplicate nonce %s", n)
		seen[n] = true
	}
}

func TestFixedGenerator_Order(t *testing.T) {
	gen := NewFixedGenerator("n-1", "n-2")

	assert.Equal(t, "n-1", gen.Generate())
	assert.Equal(t, "n-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestSequentialGenerator_Sequence(t *testing.T) {
	gen := NewSequentialGenerator("step")

	assert.Equal(t, "step-1", gen.Generate())
	assert.Equal(t, "step-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "step-1", gen.Generate())
}

func TestSequentialGenerator_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "nonce-1", NewSequentialGenerator("").Generate())
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequentialGenerator("n")
	const goroutines = 20
	const perGoroutine = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				n := gen.Generate()
				mu.Lock()
				require.False(t, seen[n], "duplicate nonce %s", n)
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
}

func TestSequentialGenerator_Deterministic(t *testing.T) {
	a := NewSequentialGenerator("x")
	b := NewSequentialGenerator("x")
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}
