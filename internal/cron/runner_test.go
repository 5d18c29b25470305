package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunner_AddEveryRejectsShortInterval(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	if _, err := r.AddEvery(500*time.Millisecond, func(context.Context) {}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := r.AddEvery(15*time.Minute, func(context.Context) {}); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestRunner_RunsAndStops(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	var n atomic.Int32
	if _, err := r.AddEvery(time.Second, func(context.Context) { n.Add(1) }); err != nil {
		t.Fatalf("err=%v", err)
	}
	r.Start()
	deadline := time.Now().Add(3 * time.Second)
	for n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx, false); err != nil {
		t.Fatalf("stop err=%v", err)
	}
	if n.Load() == 0 {
		t.Fatalf("job never ran")
	}
}

func TestRunner_StopCancelsRunningJobs(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	started := make(chan struct{})
	var cancelled atomic.Bool
	if _, err := r.AddEvery(time.Second, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
	}); err != nil {
		t.Fatalf("err=%v", err)
	}
	r.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job never started")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Stop(ctx, true); err != nil {
		t.Fatalf("stop err=%v", err)
	}
	if !cancelled.Load() {
		t.Fatalf("job context not cancelled")
	}
}
