package cache

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, New[string, int](0).Cap())
	assert.Equal(t, DefaultCapacity, New[string, int](-3).Cap())
	assert.Equal(t, 2, New[string, int](2).Cap())
}

func TestSixInsertsLeaveFive(t *testing.T) {
	c := New[string, int](5)
	for i := 1; i <= 6; i++ {
		c.Put(fmt.Sprintf("src-%d", i), i)
	}

	assert.Equal(t, 5, c.Len())
	_, ok := c.Get("src-1")
	assert.False(t, ok, "first inserted source must be evicted")
	for i := 2; i <= 6; i++ {
		v, ok := c.Get(fmt.Sprintf("src-%d", i))
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []string{"src-2", "src-3", "src-4", "src-5", "src-6"}, c.Keys())
}

func TestHitDoesNotRefreshOrder(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// A recency-based cache would keep "a" after this read.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", 3)
	assert.False(t, c.Contains("a"))
	assert.True(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))
}

func TestPutExistingKeyKeepsPosition(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)

	assert.Equal(t, 2, c.Len())
	v, _ := c.Get("a")
	assert.Equal(t, 10, v)

	c.Put("c", 3)
	assert.False(t, c.Contains("a"), "re-put must not move the entry to the back")
	assert.Equal(t, []int{2, 3}, c.Values())
}

func TestOnEvictReportsOldest(t *testing.T) {
	c := New[string, int](2)
	var evicted []string
	c.OnEvict(func(k string, v int) {
		evicted = append(evicted, fmt.Sprintf("%s=%d", k, v))
	})

	c.Put("a", 1)
	c.Put("b", 2)
	assert.Empty(t, evicted)

	c.Put("c", 3)
	c.Put("d", 4)
	assert.Equal(t, []string{"a=1", "b=2"}, evicted)
}

func TestNeverExceedsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := New[int, int](5)
	var inserted []int

	for i := 0; i < 500; i++ {
		k := rng.Intn(20)
		if !c.Contains(k) {
			inserted = append(inserted, k)
		}
		c.Put(k, i)
		require.LessOrEqual(t, c.Len(), 5)

		// The resident keys are always the last distinct insertions.
		want := inserted
		if len(want) > 5 {
			want = want[len(want)-5:]
		}
		require.Equal(t, want, c.Keys())
		inserted = want
	}
}

func TestConcurrentUse(t *testing.T) {
	c := New[int, int](5)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(g*1000+i, i)
				c.Get(i)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
