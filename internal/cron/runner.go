package cronrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	cl := zapCronLogger{l: logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// AddEvery schedules job at a fixed interval. Intervals below one second are rejected.
func (r *Runner) AddEvery(interval time.Duration, job func(context.Context)) (cron.EntryID, error) {
	if interval < time.Second {
		return 0, fmt.Errorf("cron interval too short: %s", interval)
	}
	return r.Add("@every "+interval.String(), job)
}

func (r *Runner) Remove(id cron.EntryID) {
	r.cron.Remove(id)
}

func (r *Runner) Start() {
	r.logger.Info("cron started")
	r.cron.Start()
}

// Stop stops scheduling and waits for running jobs. With cancelRunning the
// context handed to jobs is cancelled first. ctx bounds the wait.
func (r *Runner) Stop(ctx context.Context, cancelRunning bool) error {
	if cancelRunning {
		r.cancel()
	}
	done := r.cron.Stop()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-done.Done():
		r.logger.Info("cron stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("cron stop timed out", zap.Error(ctx.Err()))
		return errors.Join(errors.New("cron stop: jobs still running"), ctx.Err())
	}
}

type zapCronLogger struct {
	l *zap.Logger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Debug("cron: "+msg, zap.Any("kv", keysAndValues))
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Error("cron: "+msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
