package scheduler

import (
	"testing"

	"geobatch/internal/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedIsSingleton(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	a := Shared()
	b := Shared()
	assert.Same(t, a, b)
	assert.GreaterOrEqual(t, a.Pool.Size(), 1)
}

func TestResetForTestingRebuilds(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	a := Shared()
	ResetForTesting()
	b := Shared()
	assert.NotSame(t, a, b)
}

func TestIsolatedContext(t *testing.T) {
	caps := task.Capabilities{TransferBuffers: true}
	ctx := New(caps, 2, 4)
	defer func() {
		ctx.Pool.Destroy()
		ctx.Combine.Destroy()
	}()

	require.Equal(t, 2, ctx.Pool.Size())
	assert.Equal(t, caps, ctx.Caps)
	assert.Equal(t, "combineGeometry", ctx.Combine.Name())
}
