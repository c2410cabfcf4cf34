package health

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/mptmeter/pkg/provider/vad/energy"
	"github.com/MrWong99/mptmeter/pkg/provider/vad/mock"
)

func TestVADCheck_EnergyEngineHealthy(t *testing.T) {
	c := VADCheck(energy.New(energy.DefaultOptions()))
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("energy engine reported unhealthy: %v", err)
	}
}

func TestVADCheck_SilenceAsSpeech(t *testing.T) {
	sess := &mock.Session{Default: true}
	c := VADCheck(&mock.Engine{Session: sess})
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("expected failure when silence is classified as speech")
	}
	if sess.CloseCallCount != 1 {
		t.Errorf("session closed %d times, want 1", sess.CloseCallCount)
	}
}

func TestVADCheck_SessionError(t *testing.T) {
	sentinel := errors.New("no detector")
	c := VADCheck(&mock.Engine{NewSessionErr: sentinel})
	if err := c.Check(context.Background()); !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want wrapped sentinel", err)
	}
}

func TestVADCheck_CancelledContext(t *testing.T) {
	eng := &mock.Engine{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := VADCheck(eng).Check(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(eng.NewSessionCalls) != 0 {
		t.Error("engine should not be touched after cancellation")
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	down := errors.New("down")
	c := PingCheck("store", pingFunc(func(context.Context) error { return down }))
	if c.Name != "store" {
		t.Errorf("name = %q", c.Name)
	}
	if err := c.Check(context.Background()); !errors.Is(err, down) {
		t.Errorf("got %v", err)
	}
}
