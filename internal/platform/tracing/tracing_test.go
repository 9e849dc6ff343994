package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("none leaves tracing disabled", func(t *testing.T) {
		p, err := NewProvider(ctx, Config{Exporter: ExporterNone}, nil)
		require.NoError(t, err)
		assert.False(t, p.Enabled())
		assert.NoError(t, p.Shutdown(ctx))
	})

	t.Run("stdout exports spans on shutdown", func(t *testing.T) {
		prev := otel.GetTracerProvider()
		t.Cleanup(func() { otel.SetTracerProvider(prev) })

		var buf bytes.Buffer
		p, err := NewProvider(ctx, Config{Exporter: ExporterStdout, ServiceName: "workerhub-test"}, &buf)
		require.NoError(t, err)
		require.True(t, p.Enabled())

		_, span := otel.Tracer("test").Start(ctx, "hub.AddOne")
		span.End()
		require.NoError(t, p.Shutdown(ctx))

		assert.Contains(t, buf.String(), "hub.AddOne")
	})

	t.Run("unknown exporter is rejected", func(t *testing.T) {
		_, err := NewProvider(ctx, Config{Exporter: "zipkin"}, nil)
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Exporter: ExporterOTLP, SampleRate: 0.5}.Validate())
	assert.Error(t, Config{Exporter: "jaeger"}.Validate())
	assert.Error(t, Config{Exporter: ExporterNone, SampleRate: 2}.Validate())
}
