package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentCreate_ExactlyOneWins relies on O_EXCL alone; no locking is
// configured.
func TestConcurrentCreate_ExactlyOneWins(t *testing.T) {
	t.Parallel()

	const writers = 16

	s := newTestStore(t)
	mkNamespace(t, s, "race")

	results := make([]Result[string], writers)

	var wg sync.WaitGroup

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i] = s.Create("race", "k.json", map[string]int{"writer": i})
		}()
	}

	wg.Wait()

	wins, conflicts := 0, 0

	for _, res := range results {
		switch {
		case !res.Failed():
			wins++
		case res.Err.Kind == KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected failure: %v", res.Err)
		}
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)

	var doc map[string]int

	require.NoError(t, json.Unmarshal([]byte(requireOK(t, s.Read("race", "k.json"))), &doc))
}

// TestConcurrentUpdate_LockWritesNeverInterleaves checks that with locking
// the final document is exactly one of the written values.
func TestConcurrentUpdate_LockWritesNeverInterleaves(t *testing.T) {
	t.Parallel()

	const writers = 8

	s := newTestStore(t, func(c *Config) { c.LockWrites = true })
	mkNamespace(t, s, "race")
	requireOK(t, s.Create("race", "k.json", map[string]string{"v": "seed"}))

	var wg sync.WaitGroup

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			// Different lengths so an interleaved truncate+write would show.
			value := strings.Repeat(fmt.Sprint(i), 10*(i+1))
			res := s.Update("race", "k.json", map[string]string{"v": value})
			assert.False(t, res.Failed(), "update %d: %v", i, res.Err)
		}()
	}

	wg.Wait()

	var doc map[string]string

	raw := requireOK(t, s.Read("race", "k.json"))
	require.NoError(t, json.Unmarshal([]byte(raw), &doc), "raw=%q", raw)

	valid := false

	for i := range writers {
		if doc["v"] == strings.Repeat(fmt.Sprint(i), 10*(i+1)) {
			valid = true
		}
	}

	assert.True(t, valid, "final document %q is not one of the writes", raw)
}

// TestConcurrentReadsDuringAtomicUpdates checks readers never see a partial
// document in atomic mode.
func TestConcurrentReadsDuringAtomicUpdates(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, func(c *Config) { c.UpdateMode = UpdateAtomic })
	mkNamespace(t, s, "race")
	requireOK(t, s.Create("race", "k.json", map[string]int{"n": 0}))

	done := make(chan struct{})

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(done)

		for n := 1; n <= 50; n++ {
			res := s.Update("race", "k.json", map[string]int{"n": n})
			assert.False(t, res.Failed(), "update: %v", res.Err)
		}
	}()

	for {
		select {
		case <-done:
			wg.Wait()

			return
		default:
		}

		res := ReadJSON[map[string]int](s, "race", "k.json")
		require.False(t, res.Failed(), "read during atomic update: %v", res.Err)
	}
}
