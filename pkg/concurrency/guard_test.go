package concurrency

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardExecutesTask(t *testing.T) {
	g := NewGuard()

	ran := false
	require.NoError(t, g.Execute(func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
	assert.False(t, g.Busy())
}

func TestGuardPropagatesTaskError(t *testing.T) {
	g := NewGuard()

	boom := errors.New("boom")
	assert.ErrorIs(t, g.Execute(func() error { return boom }), boom)
	assert.False(t, g.Busy(), "a failed task still releases the guard")
}

func TestGuardRejectsConcurrentExecution(t *testing.T) {
	g := NewGuard()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	assert.True(t, g.Busy())
	assert.ErrorIs(t, g.Execute(func() error { return nil }), ErrBusy)
	close(release)
}

func TestGuardReusableAfterCompletion(t *testing.T) {
	g := NewGuard()

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Execute(func() error { return nil }))
	}
}

func TestGuardUnderContention(t *testing.T) {
	g := NewGuard()

	var mu sync.Mutex
	var ran, busy int
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Execute(func() error { return nil })
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrBusy) {
				busy++
			} else if err == nil {
				ran++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 16, ran+busy)
	assert.GreaterOrEqual(t, ran, 1)
}
