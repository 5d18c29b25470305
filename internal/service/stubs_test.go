package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"healthsync/internal/background"
	"healthsync/internal/health"
	"healthsync/internal/kv"
	"healthsync/internal/models"
	"healthsync/internal/repository"
)

type callEvent struct {
	start bool
	rt    health.RecordType
}

type stubProvider struct {
	initOK  bool
	initErr error
	permErr error
	records map[health.RecordType][]health.RawRecord
	errs    map[health.RecordType]error
	delay   time.Duration

	mu       sync.Mutex
	calls    map[health.RecordType]int
	filters  map[health.RecordType]health.TimeRangeFilter
	events   []callEvent
	inflight int
	maxSeen  int
	perms    []health.Permission
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		initOK:  true,
		records: map[health.RecordType][]health.RawRecord{},
		errs:    map[health.RecordType]error{},
		calls:   map[health.RecordType]int{},
		filters: map[health.RecordType]health.TimeRangeFilter{},
	}
}

func (p *stubProvider) Initialize(ctx context.Context) (bool, error) {
	return p.initOK, p.initErr
}

func (p *stubProvider) RequestPermission(ctx context.Context, perms []health.Permission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perms = perms
	return p.permErr
}

func (p *stubProvider) ReadRecords(ctx context.Context, rt health.RecordType, opts health.ReadOptions) (health.ReadResult, error) {
	p.mu.Lock()
	p.calls[rt]++
	p.filters[rt] = opts.TimeRangeFilter
	p.events = append(p.events, callEvent{start: true, rt: rt})
	p.inflight++
	if p.inflight > p.maxSeen {
		p.maxSeen = p.inflight
	}
	recs, err := p.records[rt], p.errs[rt]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	p.inflight--
	p.events = append(p.events, callEvent{start: false, rt: rt})
	p.mu.Unlock()
	if err != nil {
		return health.ReadResult{}, err
	}
	return health.ReadResult{Records: recs}, nil
}

func (p *stubProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *stubProvider) callCount(rt health.RecordType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[rt]
}

type fakeHost struct {
	mu         sync.Mutex
	opts       background.Options
	onEvent    background.EventHandler
	finished   []string
	configured int
}

func (h *fakeHost) Configure(opts background.Options, onEvent background.EventHandler, onError background.ErrorHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts = opts
	h.onEvent = onEvent
	h.configured++
	return nil
}

func (h *fakeHost) Finish(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, taskID)
}

type stubRepo struct {
	mu        sync.Mutex
	states    map[string]models.SyncState
	snapshots []models.HealthSnapshotRecord
	saveErr   error
}

func newStubRepo() *stubRepo {
	return &stubRepo{states: map[string]models.SyncState{}}
}

func (r *stubRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *stubRepo) SaveSyncState(ctx context.Context, state *models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.states[state.Scope] = *state
	return nil
}

func (r *stubRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SyncState, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	return out, nil
}

func (r *stubRepo) InsertHealthSnapshot(ctx context.Context, item *models.HealthSnapshotRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, *item)
	return nil
}

func (r *stubRepo) ListHealthSnapshots(ctx context.Context, params repository.ListHealthSnapshotsParams) ([]models.HealthSnapshotRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.HealthSnapshotRecord, len(r.snapshots))
	copy(out, r.snapshots)
	return out, nil
}

// failingKV fails every operation.
type failingKV struct{}

var errBackend = errors.New("backend down")

func (failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.Join(kv.ErrStore, errBackend)
}

func (failingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Join(kv.ErrStore, errBackend)
}

func (failingKV) Delete(ctx context.Context, key string) error {
	return errors.Join(kv.ErrStore, errBackend)
}

type capturePublisher struct {
	mu      sync.Mutex
	results []SyncResult
}

func (p *capturePublisher) Publish(result SyncResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
}

func i64(v int64) *int64 { return &v }

// sampleDay fills p with one day of records at base (UTC midday).
func sampleDay(p *stubProvider, base time.Time) {
	p.records[health.Steps] = []health.RawRecord{
		{StartTime: base, EndTime: base.Add(time.Hour), Count: i64(1200)},
		{StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour), Count: i64(800)},
		{StartTime: base.Add(4 * time.Hour), EndTime: base.Add(5 * time.Hour)},
	}
	p.records[health.TotalCaloriesBurned] = []health.RawRecord{
		{StartTime: base, EndTime: base.Add(time.Hour), Energy: &health.Energy{InKilocalories: 100.5}},
		{StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), Energy: &health.Energy{InKilocalories: 200.25}},
	}
	p.records[health.Distance] = []health.RawRecord{
		{StartTime: base, EndTime: base.Add(time.Hour), Distance: &health.Length{InMeters: 1500}},
		{StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), Distance: &health.Length{InMeters: 1000}},
	}
	p.records[health.Height] = []health.RawRecord{
		{Time: base.Add(-time.Hour), Height: &health.Length{InMeters: 1.80}},
		{Time: base, Height: &health.Length{InMeters: 1.81}},
	}
	p.records[health.Weight] = []health.RawRecord{
		{Time: base, Weight: &health.Mass{InKilograms: 72.4}},
		{Time: base.Add(-time.Hour), Weight: &health.Mass{InKilograms: 73}},
	}
	p.records[health.HeartRate] = []health.RawRecord{
		{StartTime: base, EndTime: base.Add(time.Minute), Samples: []health.HeartRateSample{
			{Time: base, BeatsPerMinute: 60},
			{Time: base.Add(30 * time.Second), BeatsPerMinute: 80},
		}},
		{StartTime: base.Add(time.Hour), EndTime: base.Add(time.Hour + time.Minute), Samples: []health.HeartRateSample{
			{Time: base.Add(time.Hour), BeatsPerMinute: 70},
		}},
	}
	p.records[health.SleepSession] = []health.RawRecord{
		{StartTime: base.Add(-12 * time.Hour), EndTime: base.Add(-12*time.Hour + 7*time.Hour + 30*time.Minute)},
	}
}
