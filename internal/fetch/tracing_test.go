package fetch

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/any-hub/any-cache/internal/cache"
)

func TestOrchestratorRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	orch, err := NewOrchestrator(Options{
		Storage: newTestEngine(t),
		Fetcher: &countingFetcher{payload: []byte("traced")},
		Logger:  discardLogger(),
		Tracer:  provider.Tracer(tracerName),
	})
	if err != nil {
		t.Fatalf("orchestrator error: %v", err)
	}
	t.Cleanup(orch.Close)

	if _, err := orch.Fetch(context.Background(), NewRequest(testURL), cache.DefaultParameters()); err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if hit, ok := attrs["cache.hit"]; !ok || hit.AsBool() {
		t.Fatalf("first fetch should record cache.hit=false, got %v", attrs)
	}
	if key, _ := RequestKey(NewRequest(testURL)); attrs["cache.key"].AsString() != key {
		t.Fatalf("span should carry the cache key, got %v", attrs["cache.key"])
	}
}
