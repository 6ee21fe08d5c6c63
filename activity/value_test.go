package activity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueGetSet(t *testing.T) {
	v := NewValue(10)
	assert.Equal(t, 10, v.Get())

	v.Set(42)
	assert.Equal(t, 42, v.Get())
}

func TestValueNotifiesListenersInOrder(t *testing.T) {
	v := NewValue(0)

	var seen []int
	v.Subscribe(func(x int) {
		seen = append(seen, x)
	})

	v.Set(1)
	v.Set(2)
	v.Set(3)

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestValueNotifiesBeforeSetReturns(t *testing.T) {
	v := NewValue("")

	notified := false
	v.Subscribe(func(string) {
		notified = true
	})

	v.Set("hello")
	require.True(t, notified, "listener must run synchronously within Set")
}

func TestValueUnsubscribe(t *testing.T) {
	v := NewValue(0)

	calls := 0
	unsubscribe := v.Subscribe(func(int) {
		calls++
	})

	v.Set(1)
	unsubscribe()
	v.Set(2)

	assert.Equal(t, 1, calls)

	// Calling unsubscribe again is a no-op.
	unsubscribe()
	v.Set(3)
	assert.Equal(t, 1, calls)
}

func TestValueMultipleListeners(t *testing.T) {
	v := NewValue(0)

	a, b := 0, 0
	v.Subscribe(func(x int) { a = x })
	v.Subscribe(func(x int) { b = x })

	v.Set(7)
	assert.Equal(t, 7, a)
	assert.Equal(t, 7, b)
}

func TestValueUpdateIsAtomic(t *testing.T) {
	v := NewValue(0)

	var wg sync.WaitGroup
	const goroutines = 8
	const increments = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				v.Update(func(x int) int { return x + 1 })
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines*increments, v.Get(),
		"concurrent read-modify-write must not lose updates")
}

func TestValueListenerUpdatesOtherCell(t *testing.T) {
	// The intended aggregation pattern: a listener on one cell writes to
	// a different cell.
	child := NewValue(0)
	parent := NewValue(0)

	child.Subscribe(func(x int) {
		parent.Update(func(sum int) int { return sum + x })
	})

	child.Set(3)
	child.Set(4)
	assert.Equal(t, 7, parent.Get())
}
