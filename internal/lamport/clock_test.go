package lamport

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClock(t *testing.T) {
	tests := []struct {
		name string
		seed int64
		want int64
	}{
		{"zero seed", 0, 0},
		{"positive seed", 42, 42},
		{"negative seed clamps to zero", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(tt.seed)
			require.NotNil(t, clock)
			assert.Equal(t, tt.want, clock.Current())
		})
	}
}

func TestClock_Witness(t *testing.T) {
	clock := NewClock(10)

	assert.Equal(t, int64(15), clock.Witness(12, 15, 11), "max of witnessed values")
	assert.Equal(t, int64(15), clock.Witness(3), "older timestamp must not move the mark back")
	assert.Equal(t, int64(15), clock.Witness(), "no values keeps the mark")
	assert.Equal(t, int64(20), clock.Witness(20))
}

func TestClock_Reset(t *testing.T) {
	clock := NewClock(100)
	clock.Reset(7)
	assert.Equal(t, int64(7), clock.Current())

	clock.Reset(-1)
	assert.Equal(t, int64(0), clock.Current())
}

func TestClock_ConcurrentWitness(t *testing.T) {
	clock := NewClock(0)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			clock.Witness(ts)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, int64(100), clock.Current())
}
