package pool

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitRunsTask(t *testing.T) {
	p := New(2)

	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestSubmitNeverBlocksWhenSaturated(t *testing.T) {
	p := New(2)
	gate := make(chan struct{})
	running := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		p.Submit(func() {
			running <- struct{}{}
			<-gate
		})
	}
	<-running
	<-running

	// Both slots are busy; further submissions must queue and return
	// immediately.
	third := make(chan struct{})
	submitted := make(chan struct{})
	go func() {
		p.Submit(func() { close(third) })
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a saturated pool")
	}
	assert.Equal(t, 3, p.InFlight())

	select {
	case <-third:
		t.Fatal("queued task ran while all slots were busy")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case <-third:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never ran after a slot freed up")
	}
}

func TestQueueDrainsInSubmissionOrder(t *testing.T) {
	p := New(1)
	gate := make(chan struct{})
	blocked := make(chan struct{})
	p.Submit(func() {
		close(blocked)
		<-gate
	})
	<-blocked

	// The single worker is held, so these all queue.
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	close(gate)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
	require.Eventually(t, func() bool { return p.InFlight() == 0 },
		2*time.Second, 5*time.Millisecond)
}

func TestPanicReleasesSlot(t *testing.T) {
	p := New(1, WithLogger(quietLogger()))

	p.Submit(func() { panic("oops") })

	// The slot must come back; a subsequent task still runs.
	done := make(chan struct{})
	p.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran after a panicking predecessor")
	}
	require.Eventually(t, func() bool { return p.InFlight() == 0 },
		2*time.Second, 5*time.Millisecond)
}

func TestNewFallsBackToDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultSize(), New(0).Limit())
	assert.Equal(t, DefaultSize(), New(-3).Limit())
	assert.Equal(t, 2, New(2).Limit())
	assert.GreaterOrEqual(t, DefaultSize(), 4)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
