package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Errorf("FromContext without logger = %v, want slog.Default()", got)
	}
}

func TestWithLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, slog.LevelInfo)
	ctx := Component(WithLogger(context.Background(), l), "weights")

	FromContext(ctx).Info("loaded", "tensors", 3)

	out := buf.String()
	for _, want := range []string{"component=weights", "tensors=3", "msg=loaded", "source=logutil_test.go"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

func TestTraceLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		want  bool
	}{
		{"trace enabled", LevelTrace, true},
		{"debug hides trace", slog.LevelDebug, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := WithLogger(context.Background(), NewLogger(&buf, tt.level))
			Trace(ctx, "merge", "rank", 7)

			got := strings.Contains(buf.String(), "level=TRACE")
			if got != tt.want {
				t.Errorf("trace written = %v, want %v (output %q)", got, tt.want, buf.String())
			}
		})
	}
}
