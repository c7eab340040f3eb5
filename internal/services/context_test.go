package services_test

import (
	"context"
	"testing"

	"longrec/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSessionID(ctx, "sess-1")
	ctx = services.WithSegment(ctx, 3)
	ctx = services.WithStream(ctx, "ecg/0")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SessionIDFromContext(ctx); !ok || id != "sess-1" {
		t.Fatalf("unexpected session id: %v %v", id, ok)
	}
	if seg, ok := services.SegmentFromContext(ctx); !ok || seg != 3 {
		t.Fatalf("unexpected segment: %v %v", seg, ok)
	}
	if stream, ok := services.StreamFromContext(ctx); !ok || stream != "ecg/0" {
		t.Fatalf("unexpected stream: %v %v", stream, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStream(ctx, "")
	ctx = services.WithSessionID(ctx, "")
	if _, ok := services.StreamFromContext(ctx); ok {
		t.Fatal("expected no stream value")
	}
	if _, ok := services.SessionIDFromContext(ctx); ok {
		t.Fatal("expected no session value")
	}
	if _, ok := services.SegmentFromContext(ctx); ok {
		t.Fatal("expected no segment value")
	}
}
