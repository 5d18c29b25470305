// Package background delivers periodic and externally triggered sync events,
// the way a mobile OS delivers background-fetch and headless task events.
package background

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	cronrunner "healthsync/internal/cron"
)

var (
	ErrNotConfigured    = errors.New("background host not configured")
	ErrHeadlessDisabled = errors.New("headless events are disabled")
)

type Options struct {
	MinimumFetchInterval time.Duration
	StopOnTerminate      bool
	StartOnBoot          bool
	EnableHeadless       bool
	// TaskTimeout bounds one event run. Zero means no bound.
	TaskTimeout time.Duration
}

// Event is one firing. Timeout events tell the handler its task ran out of
// time; the handler must only finish the task.
type Event struct {
	TaskID   string `json:"task_id"`
	Timeout  bool   `json:"timeout"`
	Headless bool   `json:"headless"`
}

type (
	EventHandler func(ctx context.Context, ev Event)
	ErrorHandler func(err error)
)

// Host is the scheduler surface the sync service registers with.
type Host interface {
	Configure(opts Options, onEvent EventHandler, onError ErrorHandler) error
	Finish(taskID string)
}

type pendingTask struct {
	started time.Time
	cancel  context.CancelFunc
}

// CronHost is a Host backed by the cron runner. Every tick becomes an event
// with a fresh task id.
type CronHost struct {
	runner *cronrunner.Runner
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	configured bool
	opts       Options
	onEvent    EventHandler
	onError    ErrorHandler
	entryID    cron.EntryID
	pending    map[string]*pendingTask

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewCronHost(runner *cronrunner.Runner, logger *zap.Logger) *CronHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronHost{
		runner:  runner,
		logger:  logger,
		now:     time.Now,
		pending: map[string]*pendingTask{},
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Configure registers the handlers and (re)schedules the periodic tick.
func (h *CronHost) Configure(opts Options, onEvent EventHandler, onError ErrorHandler) error {
	if onEvent == nil {
		return errors.New("background host: nil event handler")
	}
	if opts.MinimumFetchInterval <= 0 {
		return fmt.Errorf("background host: invalid minimum fetch interval %s", opts.MinimumFetchInterval)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runner != nil {
		if h.entryID != 0 {
			h.runner.Remove(h.entryID)
			h.entryID = 0
		}
		id, err := h.runner.AddEvery(opts.MinimumFetchInterval, func(ctx context.Context) {
			if err := h.Fire(ctx, Event{}); err != nil {
				h.logger.Warn("background tick failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("background host: schedule: %w", err)
		}
		h.entryID = id
	}
	h.opts = opts
	h.onEvent = onEvent
	h.onError = onError
	h.configured = true
	h.logger.Info("background host configured",
		zap.Duration("interval", opts.MinimumFetchInterval),
		zap.Bool("stop_on_terminate", opts.StopOnTerminate),
		zap.Bool("start_on_boot", opts.StartOnBoot),
		zap.Bool("enable_headless", opts.EnableHeadless),
	)
	return nil
}

// Start begins periodic delivery. With StartOnBoot one event is dispatched immediately.
func (h *CronHost) Start() error {
	h.mu.Lock()
	configured, opts := h.configured, h.opts
	h.mu.Unlock()
	if !configured {
		return ErrNotConfigured
	}
	if h.runner != nil {
		h.runner.Start()
	}
	if opts.StartOnBoot {
		if _, err := h.Dispatch(Event{}); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch delivers ev asynchronously and returns its task id.
func (h *CronHost) Dispatch(ev Event) (string, error) {
	h.mu.Lock()
	configured := h.configured
	h.mu.Unlock()
	if !configured {
		return "", ErrNotConfigured
	}
	if ev.TaskID == "" {
		ev.TaskID = uuid.NewString()
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.Fire(h.baseCtx, ev); err != nil {
			h.logger.Warn("background dispatch failed", zap.String("task_id", ev.TaskID), zap.Error(err))
		}
	}()
	return ev.TaskID, nil
}

// Fire delivers ev and returns once the handler has returned. A task the
// handler did not finish is finished here, so every event is finished once.
func (h *CronHost) Fire(ctx context.Context, ev Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	if !h.configured {
		h.mu.Unlock()
		return ErrNotConfigured
	}
	opts, onEvent, onError := h.opts, h.onEvent, h.onError
	if ev.TaskID == "" {
		ev.TaskID = uuid.NewString()
	}

	if ev.Timeout {
		// The timed-out run is cancelled; its slot is released by the handler's Finish.
		if t, ok := h.pending[ev.TaskID]; ok {
			t.cancel()
		}
		h.mu.Unlock()
		h.logger.Warn("background task timeout", zap.String("task_id", ev.TaskID))
		onEvent(ctx, ev)
		return nil
	}

	if _, dup := h.pending[ev.TaskID]; dup {
		h.mu.Unlock()
		return fmt.Errorf("background task %s already running", ev.TaskID)
	}

	if ev.Headless && !opts.EnableHeadless {
		// Rejected events still start and finish once; the handler never sees them.
		h.pending[ev.TaskID] = &pendingTask{started: h.now(), cancel: func() {}}
		h.mu.Unlock()
		if onError != nil {
			onError(fmt.Errorf("task %s: %w", ev.TaskID, ErrHeadlessDisabled))
		}
		h.Finish(ev.TaskID)
		return nil
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if opts.TaskTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.TaskTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	h.pending[ev.TaskID] = &pendingTask{started: h.now(), cancel: cancel}
	h.mu.Unlock()

	h.logger.Info("background task started",
		zap.String("task_id", ev.TaskID),
		zap.Bool("headless", ev.Headless),
	)
	onEvent(runCtx, ev)

	h.mu.Lock()
	_, unfinished := h.pending[ev.TaskID]
	h.mu.Unlock()
	if unfinished {
		h.logger.Warn("background task not finished by handler", zap.String("task_id", ev.TaskID))
		h.Finish(ev.TaskID)
	}
	return nil
}

// Finish marks taskID done. Unknown or already finished ids are ignored.
func (h *CronHost) Finish(taskID string) {
	h.mu.Lock()
	t, ok := h.pending[taskID]
	if ok {
		delete(h.pending, taskID)
	}
	h.mu.Unlock()
	if !ok {
		h.logger.Debug("background finish for unknown task", zap.String("task_id", taskID))
		return
	}
	h.logger.Info("background task finished",
		zap.String("task_id", taskID),
		zap.Duration("elapsed", h.now().Sub(t.started)),
	)
}

// Pending returns the ids of running tasks, sorted.
func (h *CronHost) Pending() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.pending))
	for id := range h.pending {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Stop ends periodic delivery. With StopOnTerminate running tasks are
// cancelled, otherwise they are allowed to finish. ctx bounds the wait.
func (h *CronHost) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	stopRunning := h.opts.StopOnTerminate
	h.mu.Unlock()
	if stopRunning {
		h.cancel()
	}
	var errs []error
	if h.runner != nil {
		if err := h.runner.Stop(ctx, stopRunning); err != nil {
			errs = append(errs, err)
		}
	}
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("background host stop: %w", ctx.Err()))
	}
	h.cancel()
	return errors.Join(errs...)
}

var _ Host = (*CronHost)(nil)
