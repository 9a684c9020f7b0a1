package health

import (
	"context"
	"testing"

	"github.com/frenchline/adminapi/internal/xerrors"
)

func TestFixed(t *testing.T) {
	if err := Fixed(true, "").Check(context.Background()); err != nil {
		t.Fatalf("Fixed(true) failed: %v", err)
	}
	err := Fixed(false, "db down").Check(context.Background())
	if err == nil || err.Error() != "db down" {
		t.Fatalf("Fixed(false) = %v, want db down", err)
	}
}

func TestAll_FirstFailureWins(t *testing.T) {
	firstErr := xerrors.New("first")
	p := All(
		Fixed(true, ""),
		CheckFunc(func(context.Context) error { return firstErr }),
		Fixed(false, "second"),
	)
	if err := p.Check(context.Background()); err != firstErr {
		t.Fatalf("All returned %v, want first error", err)
	}
}

func TestAll_SkipsNilProbes(t *testing.T) {
	p := All(nil, Fixed(true, ""), nil)
	if err := p.Check(context.Background()); err != nil {
		t.Fatalf("All with nils failed: %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	if err := g.Probe().Check(context.Background()); err != nil {
		t.Fatalf("open gate should pass: %v", err)
	}

	g.Set("draining for deploy")
	err := g.Probe().Check(context.Background())
	if err == nil || err.Error() != "draining for deploy" {
		t.Fatalf("closed gate = %v", err)
	}

	g.Clear()
	if err := g.Probe().Check(context.Background()); err != nil {
		t.Fatalf("cleared gate should pass: %v", err)
	}
}
