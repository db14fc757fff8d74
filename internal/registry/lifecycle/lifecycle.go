// Package lifecycle implements Retry/Cancel Logic (C5), generalizing
// internal/services/job_service.go's RestartForRequestUser/
// CancelForRequestUser from the neurobridge job-run model to the
// spec's history-driven rewind-target algorithm.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/engine"
	"github.com/yungbote/neurobridge-backend/internal/registry/eventbus"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// Lifecycle is the Retry/Cancel Logic contract (C5).
type Lifecycle interface {
	Retry(ctx context.Context, id string) (*registry.Job, error)
	Cancel(ctx context.Context, id string) (*registry.Job, error)
}

type lifecycle struct {
	store  store.Store
	engine engine.Engine
	bus    eventbus.Bus
	log    *logger.Logger
}

// New constructs the Retry/Cancel service.
func New(st store.Store, eng engine.Engine, bus eventbus.Bus, baseLog *logger.Logger) Lifecycle {
	return &lifecycle{store: st, engine: eng, bus: bus, log: baseLog.With("component", "registry.Lifecycle")}
}

func (l *lifecycle) Retry(ctx context.Context, id string) (*registry.Job, error) {
	job, err := l.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Stage != registry.StageFailed && job.Stage != registry.StageCanceled {
		return nil, fmt.Errorf("%w: job is in stage %s", jobserr.ErrNotRestartable, job.Stage)
	}

	rewindTarget, err := l.rewindTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := l.engine.Transition(ctx, id, rewindTarget, nil, "", engine.ActorSystem)
	if err != nil {
		return nil, err
	}

	if l.bus != nil {
		if pubErr := l.bus.Publish(ctx, eventbus.TopicJobsLifecycle, eventbus.Event{
			Event: "retried", JobID: updated.ID, Owner: updated.Owner,
			Stage: string(updated.Stage), At: time.Now().UTC(), TraceID: updated.TraceID,
		}); pubErr != nil {
			l.log.Warn("retry event publish failed", "job_id", id, "error", pubErr)
		}
	}
	return updated, nil
}

// rewindTarget finds the most recent history entry whose stage is neither
// failed nor canceled; if none exists (the job failed before its first
// real advance), it rewinds to submitted (spec.md §4.5 steps 1-3).
func (l *lifecycle) rewindTarget(ctx context.Context, id string) (registry.Stage, error) {
	hist, err := l.store.History(ctx, id)
	if err != nil {
		return "", err
	}
	for i := len(hist) - 1; i >= 0; i-- {
		s := hist[i].Stage
		if s != registry.StageFailed && s != registry.StageCanceled {
			return s, nil
		}
	}
	return registry.StageSubmitted, nil
}

func (l *lifecycle) Cancel(ctx context.Context, id string) (*registry.Job, error) {
	job, err := l.store.LoadJob(ctx, id)
	if err != nil {
		return nil, err
	}

	// Idempotent: already canceled returns the current state unchanged
	// (Invariant 4). Complete is terminal but not cancelable — it never
	// reached a failure, so there is nothing to finalize.
	if job.Stage == registry.StageCanceled {
		return job, nil
	}
	if job.Stage == registry.StageComplete {
		return nil, jobserr.ErrNotCancelable
	}

	updated, err := l.engine.Transition(ctx, id, registry.StageCanceled, nil, "", engine.ActorUser)
	if err != nil {
		if errors.Is(err, jobserr.ErrIllegalTransition) {
			// Shouldn't happen: cancel is legal from every non-terminal
			// stage and from failed. Surface as-is for visibility.
			return nil, err
		}
		return nil, err
	}
	return updated, nil
}
