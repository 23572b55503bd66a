package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/config"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	tr, err := NewTracing(config.Observability{ServiceName: "test"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTracing: %v", err)
	}
	if tr.Enabled() {
		t.Fatal("tracing should be disabled")
	}
	tr.Install()
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestEnabledTracingShutsDown(t *testing.T) {
	tr, err := NewTracing(config.Observability{ServiceName: "test", EnableTracing: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTracing: %v", err)
	}
	if !tr.Enabled() {
		t.Fatal("tracing should be enabled")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
