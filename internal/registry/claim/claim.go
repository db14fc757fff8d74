// Package claim implements the Worker Claim Protocol (C4): a read-only
// candidate listing plus an atomic compare-and-set claim, generalizing
// internal/data/repos/jobs/job_run.go's ClaimNextRunnable from "pull one
// of many runnable jobs" to the spec's explicit from-stage/to-stage CAS.
package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// Protocol is the Worker Claim Protocol contract (C4).
type Protocol interface {
	// ListCandidates is a read; no lease is taken.
	ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error)
	// Claim atomically moves a job from fromStage to toStage. It is the
	// serialization point that yields at-most-one active worker per job
	// per stage: concurrent callers racing the same job id see exactly one
	// winner, and the rest get jobserr.ErrContended.
	Claim(ctx context.Context, jobID string, fromStage, toStage registry.Stage) (*registry.Job, error)
}

type protocol struct {
	store   store.Store
	pause   pause.Controller
	log     *logger.Logger
	metrics *metrics.Registry
}

// New constructs the claim protocol.
func New(st store.Store, pauseCtl pause.Controller, baseLog *logger.Logger, m *metrics.Registry) Protocol {
	return &protocol{
		store:   st,
		pause:   pauseCtl,
		log:     baseLog.With("component", "registry.Claim"),
		metrics: m,
	}
}

func (p *protocol) ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error) {
	return p.store.ListCandidates(ctx, stage, engineHint, limit)
}

func (p *protocol) Claim(ctx context.Context, jobID string, fromStage, toStage registry.Stage) (*registry.Job, error) {
	job, err := p.store.UpdateJob(ctx, jobID, true, func(j *registry.Job) (*registry.HistoryEntry, error) {
		// Pause and stage are both re-checked inside the mutator, while the
		// per-job lock is held. The pause flag is read with a nil tx, so a
		// store-backed flag is read outside this transaction.
		if p.pause.IsPaused(ctx, nil) {
			return nil, jobserr.ErrPipelinePaused
		}
		if j.Stage != fromStage {
			return nil, jobserr.ErrContended
		}
		now := time.Now().UTC()
		j.Stage = toStage
		j.UpdatedAt = now
		return &registry.HistoryEntry{
			Stage:       toStage,
			At:          now,
			BagSnapshot: j.Bag,
		}, nil
	})
	if err != nil {
		if errors.Is(err, jobserr.ErrContended) {
			p.metrics.ObserveClaim("contended")
			return nil, err
		}
		if errors.Is(err, jobserr.ErrPipelinePaused) || errors.Is(err, jobserr.ErrTerminal) || errors.Is(err, jobserr.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	p.metrics.ObserveClaim("won")
	return job, nil
}
