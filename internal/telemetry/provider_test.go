package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitProvider_UnreachableCollector(t *testing.T) {
	// The gRPC dial is non-blocking, so setup succeeds even with no
	// collector listening; the bootstrap must never be delayed by telemetry.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := InitProvider(ctx, "localhost:19999", "bemboot-test", true)
	require.NoError(t, err)
	require.NotNil(t, p)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutCancel()
	assert.NoError(t, p.Shutdown(shutCtx))
}
