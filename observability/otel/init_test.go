package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken,=x,tenant=cryb")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "cryb"}, headers)
}

func TestFromEnvDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg := FromEnv("saled", "test")
	require.Equal(t, "saled", cfg.ServiceName)
	require.False(t, cfg.Traces)
	require.False(t, cfg.Metrics)
}

func TestFromEnvReadsExporterSettings(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=token")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_SERVICE_NAME", "sale-api")

	cfg := FromEnv("saled", "prod")
	require.Equal(t, "sale-api", cfg.ServiceName)
	require.Equal(t, "collector:4318", cfg.Endpoint)
	require.True(t, cfg.Insecure)
	require.True(t, cfg.Traces)
	require.Equal(t, 0.25, cfg.SampleRatio)
	require.Equal(t, "token", cfg.Headers["authorization"])
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersReturnsShutdown(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "saled"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
