package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerIsNoop(t *testing.T) {
	var c *Controller

	ctx := context.Background()
	require.NoError(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()
	require.NoError(t, c.WaitIO(ctx, 1<<20))
}

func TestWorkerLimit(t *testing.T) {
	c := NewController(Config{MaxDecodeWorkers: 1})

	ctx := context.Background()
	require.NoError(t, c.AcquireWorker(ctx))

	// Second acquire must block until released.
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireWorker(blocked))

	c.ReleaseWorker()
	require.NoError(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()
}

func TestWaitIOLargerThanBurst(t *testing.T) {
	// 1 MB/s budget; a 2 KB transfer splits into installments without
	// erroring even though it exceeds nothing here.
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	require.NoError(t, c.WaitIO(context.Background(), 2048))
}
