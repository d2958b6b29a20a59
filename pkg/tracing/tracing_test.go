package tracing

import (
	"context"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	tracer, closer, err := InitTracer(Params{})
	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tracer)
	assert.NoError(t, closer.Close())

	span, ctx := StartSpan(context.Background(), tracer, "cycle")
	assert.NotNil(t, span)
	assert.NotNil(t, opentracing.SpanFromContext(ctx))
	span.Finish()
}

func TestInitTracer_Jaeger(t *testing.T) {
	tracer, closer, err := InitTracer(Params{Enabled: true, ServiceName: "vt-test", AgentHostPort: "127.0.0.1:6831"})
	require.NoError(t, err)
	defer closer.Close()

	span, _ := StartSpan(context.Background(), tracer, "cycle")
	span.SetTag("cycle", 1)
	span.Finish()
}
