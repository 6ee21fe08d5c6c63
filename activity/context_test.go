package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildPathComposition(t *testing.T) {
	root := NewRootContext("Execute workflow", 0, nil)
	child := NewChild[string](root, "transform1", "", 0)
	grandchild := NewChild[int](child, "fetch", 0, 0)

	assert.Equal(t, "Execute workflow", root.Path())
	assert.Equal(t, "Execute workflow -> transform1", child.Path())
	assert.Equal(t, "Execute workflow -> transform1 -> fetch", grandchild.Path())
	assert.Equal(t, "fetch", grandchild.Name())
}

func TestWeightedProgressRollUp(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	a := NewChild[int](root, "a", 0, 0.5)
	b := NewChild[int](root, "b", 0, 0.5)

	a.SetProgress(1)
	assert.InDelta(t, 0.5, root.Status().Get().Progress, 1e-9)

	b.SetProgress(0.5)
	assert.InDelta(t, 0.75, root.Status().Get().Progress, 1e-9)

	b.SetProgress(1)
	assert.InDelta(t, 1.0, root.Status().Get().Progress, 1e-9)
}

func TestUnweightedChildrenShareRemainder(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	weighted := NewChild[int](root, "weighted", 0, 0.5)
	u1 := NewChild[int](root, "u1", 0, 0)
	u2 := NewChild[int](root, "u2", 0, 0)

	// The two unweighted children split the remaining 0.5 equally.
	u1.SetProgress(1)
	assert.InDelta(t, 0.25, root.Status().Get().Progress, 1e-9)

	u2.SetProgress(1)
	assert.InDelta(t, 0.5, root.Status().Get().Progress, 1e-9)

	weighted.SetProgress(1)
	assert.InDelta(t, 1.0, root.Status().Get().Progress, 1e-9)
}

func TestAllUnweightedChildrenShareEqually(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	children := make([]*Context[int], 4)
	for i := range children {
		children[i] = NewChild[int](root, string(rune('a'+i)), 0, 0)
	}

	children[0].SetProgress(1)
	assert.InDelta(t, 0.25, root.Status().Get().Progress, 1e-9)

	for _, c := range children[1:] {
		c.SetProgress(1)
	}
	assert.InDelta(t, 1.0, root.Status().Get().Progress, 1e-9)
}

func TestChildFinishReportsFullProgress(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	child := NewChild[int](root, "only", 0, 0)

	child.Finish(nil)

	status := child.Status().Get()
	assert.True(t, status.Succeeded())
	assert.Equal(t, 1.0, status.Progress)
	assert.InDelta(t, 1.0, root.Status().Get().Progress, 1e-9)
}

func TestProgressClamped(t *testing.T) {
	root := NewRootContext("root", 0, nil)

	root.SetProgress(-0.5)
	assert.Equal(t, 0.0, root.Status().Get().Progress)

	root.SetProgress(1.5)
	assert.Equal(t, 1.0, root.Status().Get().Progress)
}

func TestChildInheritsCancellation(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	child := NewChild[int](root, "child", 0, 0)
	grandchild := NewChild[int](child, "grandchild", 0, 0)

	require.NoError(t, grandchild.Context().Err())

	root.cancel()
	assert.Error(t, child.Context().Err())
	assert.Error(t, grandchild.Context().Err())
}

func TestFinishAfterCancellationRecordsCancelled(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	child := NewChild[int](root, "child", 0, 0)

	root.cancel()
	child.Finish(child.Context().Err())

	status := child.Status().Get()
	assert.True(t, status.State.IsFinished())
	assert.True(t, status.Cancelled)
	assert.False(t, status.Succeeded())
}

func TestSetMessagePreservesProgress(t *testing.T) {
	root := NewRootContext("root", 0, nil)
	root.SetProgress(0.4)
	root.SetMessage("halfway there")

	status := root.Status().Get()
	assert.Equal(t, "halfway there", status.Message)
	assert.InDelta(t, 0.4, status.Progress, 1e-9)
}
