package context

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/vnykmshr/jobgraph/internal/testutil"
)

func TestLogger_FallsBackToDefault(t *testing.T) {
	testutil.AssertEqual(t, Logger(context.Background()), slog.Default())
}

func TestLogger_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	Logger(ctx).Info("hello", "job", "physics")

	if !strings.Contains(buf.String(), "job=physics") {
		t.Fatalf("expected log line with job attr, got %q", buf.String())
	}
}

func TestJobName(t *testing.T) {
	testutil.AssertEqual(t, JobName(context.Background()), "")

	ctx := WithJobName(context.Background(), "cull")
	testutil.AssertEqual(t, JobName(ctx), "cull")
}
