package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextHandler_Handle(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	testCases := []struct {
		name        string
		ctx         context.Context
		expectReq   string
		expectTrace string
	}{
		{
			name: "no context values",
			ctx:  context.Background(),
		},
		{
			name:      "request id only",
			ctx:       context.WithValue(context.Background(), middleware.RequestIDKey, "abc"),
			expectReq: "abc",
		},
		{
			name:        "request and trace id",
			ctx:         trace.ContextWithSpanContext(context.WithValue(context.Background(), middleware.RequestIDKey, "abc"), spanCtx),
			expectReq:   "abc",
			expectTrace: traceID.String(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("component", "test")

			// when
			log.InfoContext(tc.ctx, "message")

			// then
			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			assert.Equal(t, "test", record["component"], "attributes survive WithAttrs")
			if tc.expectReq == "" {
				assert.NotContains(t, record, "request_id")
			} else {
				assert.Equal(t, tc.expectReq, record["request_id"])
			}
			if tc.expectTrace == "" {
				assert.NotContains(t, record, "trace_id")
			} else {
				assert.Equal(t, tc.expectTrace, record["trace_id"])
			}
		})
	}
}
