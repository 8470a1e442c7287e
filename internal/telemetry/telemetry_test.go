package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestInit_WithEndpoint(t *testing.T) {
	// Exporters connect lazily, so no collector is needed to build the pipeline.
	shutdown, err := Init(context.Background(), Config{
		Endpoint:       "127.0.0.1:4317",
		ServiceName:    "test",
		ServiceVersion: "v0.0.0",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing against a missing collector may fail; it must not hang.
	_ = shutdown(ctx)
}
