package lifecycle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/registry/engine"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
	"github.com/yungbote/neurobridge-backend/internal/registry/lifecycle"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/statemachine"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
	"github.com/yungbote/neurobridge-backend/internal/registry/testutil"
)

// fakeStore duplicates engine_test's in-memory store so this package's
// tests don't need a database either; see engine_test.go for the same
// shape with commentary.
type fakeStore struct {
	mu   sync.Mutex
	jobs map[string]*registry.Job
	hist map[string][]registry.HistoryEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[string]*registry.Job{}, hist: map[string][]registry.HistoryEntry{}}
}

func (s *fakeStore) InsertJob(ctx context.Context, job *registry.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	s.hist[job.ID] = []registry.HistoryEntry{{JobID: job.ID, Seq: 1, Stage: job.Stage, At: job.CreatedAt, BagSnapshot: job.Bag}}
	return nil
}

func (s *fakeStore) LoadJob(ctx context.Context, id string) (*registry.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobserr.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) UpdateJob(ctx context.Context, id string, expectNotTerminal bool, mutate store.Mutator) (*registry.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, jobserr.ErrNotFound
	}
	if expectNotTerminal && job.Stage.Terminal() {
		return nil, jobserr.ErrTerminal
	}
	cp := *job
	entry, err := mutate(&cp)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &cp, nil
	}
	s.jobs[id] = &cp
	entry.JobID = id
	entry.Seq = int64(len(s.hist[id]) + 1)
	s.hist[id] = append(s.hist[id], *entry)
	out := cp
	return &out, nil
}

func (s *fakeStore) History(ctx context.Context, id string) ([]registry.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.HistoryEntry(nil), s.hist[id]...), nil
}

func (s *fakeStore) Query(ctx context.Context, f store.Filters, p store.Paging) ([]*registry.Job, error) {
	return nil, nil
}
func (s *fakeStore) CountByStage(ctx context.Context) (map[registry.Stage]int64, error) {
	return nil, nil
}
func (s *fakeStore) ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error) {
	return nil, nil
}

func newLifecycle(t *testing.T) (lifecycle.Lifecycle, *fakeStore) {
	t.Helper()
	graph, err := statemachine.Default()
	require.NoError(t, err)
	st := newFakeStore()
	eng := engine.New(st, graph, pause.NewMemory(), nil, testutil.Logger(t), metrics.New(prometheus.NewRegistry()))
	life := lifecycle.New(st, eng, nil, testutil.Logger(t))
	return life, st
}

func advanceTo(t *testing.T, st *fakeStore, job *registry.Job, stages ...registry.Stage) {
	t.Helper()
	for _, s := range stages {
		_, err := st.UpdateJob(context.Background(), job.ID, false, func(j *registry.Job) (*registry.HistoryEntry, error) {
			j.Stage = s
			return &registry.HistoryEntry{Stage: s, At: time.Now().UTC()}, nil
		})
		require.NoError(t, err)
	}
}

func TestRetry_RejectsNonTerminalJob(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()
	job := &registry.Job{ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))

	_, err := life.Retry(ctx, job.ID)
	require.ErrorIs(t, err, jobserr.ErrNotRestartable)
}

func TestRetry_RewindsToLastNonFailedStage(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()
	job := &registry.Job{ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))
	advanceTo(t, st, job, registry.StageCategorizing, registry.StageCategorized, registry.StageFailed)

	updated, err := life.Retry(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, registry.StageCategorized, updated.Stage)
}

func TestRetry_RewindsToSubmittedWhenNoPriorAdvance(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()
	job := &registry.Job{ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))
	advanceTo(t, st, job, registry.StageFailed)

	updated, err := life.Retry(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, registry.StageSubmitted, updated.Stage)
}

func TestCancel_IdempotentFromCanceled(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()
	job := &registry.Job{ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))
	advanceTo(t, st, job, registry.StageCanceled)

	updated, err := life.Cancel(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, registry.StageCanceled, updated.Stage, "canceling an already-canceled job is a no-op, not an error")
}

func TestCancel_CompleteIsNotCancelable(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()

	job := &registry.Job{ID: "job-1", Stage: registry.StageComplete, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))

	_, err := life.Cancel(ctx, job.ID)
	require.ErrorIs(t, err, jobserr.ErrNotCancelable)
}

func TestCancel_MovesNonTerminalJobToCanceled(t *testing.T) {
	life, st := newLifecycle(t)
	ctx := context.Background()
	job := &registry.Job{ID: "job-1", Stage: registry.StageCategorizing, Bag: []byte(`{}`), CreatedAt: time.Now().UTC()}
	require.NoError(t, st.InsertJob(ctx, job))

	updated, err := life.Cancel(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, registry.StageCanceled, updated.Stage)
}
