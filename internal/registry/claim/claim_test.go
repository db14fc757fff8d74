package claim_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/registry/claim"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
	"github.com/yungbote/neurobridge-backend/internal/registry/testutil"
)

// serializedStore is a minimal in-memory store.Store whose UpdateJob holds
// a real mutex across the whole read-mutate-write sequence, the same
// serialization property the database's row lock gives the real store —
// which is exactly the property the claim protocol's exactly-one-winner
// guarantee depends on.
type serializedStore struct {
	mu  sync.Mutex
	job *registry.Job
}

func (s *serializedStore) InsertJob(ctx context.Context, job *registry.Job) error { return nil }

func (s *serializedStore) LoadJob(ctx context.Context, id string) (*registry.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.job
	return &cp, nil
}

func (s *serializedStore) UpdateJob(ctx context.Context, id string, expectNotTerminal bool, mutate store.Mutator) (*registry.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expectNotTerminal && s.job.Stage.Terminal() {
		return nil, jobserr.ErrTerminal
	}
	cp := *s.job
	entry, err := mutate(&cp)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &cp, nil
	}
	s.job = &cp
	out := cp
	return &out, nil
}

func (s *serializedStore) History(ctx context.Context, id string) ([]registry.HistoryEntry, error) {
	return nil, nil
}
func (s *serializedStore) Query(ctx context.Context, f store.Filters, p store.Paging) ([]*registry.Job, error) {
	return nil, nil
}
func (s *serializedStore) CountByStage(ctx context.Context) (map[registry.Stage]int64, error) {
	return nil, nil
}
func (s *serializedStore) ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error) {
	return nil, nil
}

func TestClaim_ExactlyOneWinnerUnderConcurrency(t *testing.T) {
	st := &serializedStore{job: &registry.Job{
		ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC(),
	}}
	proto := claim.New(st, pause.NewMemory(), testutil.Logger(t), metrics.New(prometheus.NewRegistry()))

	const racers = 20
	var wg sync.WaitGroup
	wins := make([]bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := proto.Claim(context.Background(), "job-1", registry.StageSubmitted, registry.StageCategorizing)
			wins[i] = err == nil
		}(i)
	}
	wg.Wait()

	winCount := 0
	for _, w := range wins {
		if w {
			winCount++
		}
	}
	require.Equal(t, 1, winCount, "exactly one concurrent claimant should win the race")
}

func TestClaim_ContendedWhenStageAlreadyMoved(t *testing.T) {
	st := &serializedStore{job: &registry.Job{
		ID: "job-1", Stage: registry.StageCategorizing, Bag: []byte(`{}`), CreatedAt: time.Now().UTC(),
	}}
	proto := claim.New(st, pause.NewMemory(), testutil.Logger(t), metrics.New(prometheus.NewRegistry()))

	_, err := proto.Claim(context.Background(), "job-1", registry.StageSubmitted, registry.StageCategorizing)
	require.ErrorIs(t, err, jobserr.ErrContended)
}

func TestClaim_RejectedWhilePaused(t *testing.T) {
	st := &serializedStore{job: &registry.Job{
		ID: "job-1", Stage: registry.StageSubmitted, Bag: []byte(`{}`), CreatedAt: time.Now().UTC(),
	}}
	pauseCtl := pause.NewMemory()
	require.NoError(t, pauseCtl.Pause(context.Background()))
	proto := claim.New(st, pauseCtl, testutil.Logger(t), metrics.New(prometheus.NewRegistry()))

	_, err := proto.Claim(context.Background(), "job-1", registry.StageSubmitted, registry.StageCategorizing)
	require.ErrorIs(t, err, jobserr.ErrPipelinePaused)
}
