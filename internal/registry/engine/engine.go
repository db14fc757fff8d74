// Package engine implements the Transition Engine (C3): the heart of the
// registry. It validates and applies state changes, writing history
// atomically with the job mutation (via store.Store), and publishes
// jobs.lifecycle events best-effort after commit.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/eventbus"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
	"github.com/yungbote/neurobridge-backend/internal/registry/metrics"
	"github.com/yungbote/neurobridge-backend/internal/registry/pause"
	"github.com/yungbote/neurobridge-backend/internal/registry/statemachine"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// Actor distinguishes operator/worker-initiated transitions (subject to the
// pause gate) from system-initiated ones (retry's rewind, which must run
// even while paused so in-flight work can still be reconciled by an
// operator who just resumed).
type Actor int

const (
	ActorUser Actor = iota
	ActorSystem
)

// CreateInput is the payload for a job creation request.
type CreateInput struct {
	ID          string
	Owner       string
	SourceRef   string
	DisplayName string
	EngineHint  string
	TraceID     string
}

// Engine is the Transition Engine contract (C3).
type Engine interface {
	Create(ctx context.Context, in CreateInput) (*registry.Job, error)
	// Transition moves a job to target, merging bagPatch into its bag.
	// errMsg is required when target is StageFailed.
	Transition(ctx context.Context, id string, target registry.Stage, bagPatch map[string]any, errMsg string, actor Actor) (*registry.Job, error)
}

type engine struct {
	store   store.Store
	graph   *statemachine.Graph
	pause   pause.Controller
	bus     eventbus.Bus
	log     *logger.Logger
	metrics *metrics.Registry
}

// New constructs the Transition Engine.
func New(st store.Store, graph *statemachine.Graph, pauseCtl pause.Controller, bus eventbus.Bus, baseLog *logger.Logger, m *metrics.Registry) Engine {
	return &engine{
		store:   st,
		graph:   graph,
		pause:   pauseCtl,
		bus:     bus,
		log:     baseLog.With("component", "registry.Engine"),
		metrics: m,
	}
}

func (e *engine) Create(ctx context.Context, in CreateInput) (*registry.Job, error) {
	if in.Owner == "" || in.SourceRef == "" {
		return nil, fmt.Errorf("%w: owner and source_ref are required", jobserr.ErrBadRequest)
	}
	if e.pause.IsPaused(ctx, nil) {
		return nil, jobserr.ErrPipelinePaused
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	job := &registry.Job{
		ID:          id,
		Owner:       in.Owner,
		SourceRef:   in.SourceRef,
		DisplayName: in.DisplayName,
		Stage:       registry.StageSubmitted,
		EngineHint:  in.EngineHint,
		Bag:         []byte(`{}`),
		TraceID:     in.TraceID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertJob(ctx, job); err != nil {
		return nil, err
	}
	e.metrics.ObserveTransition("", string(registry.StageSubmitted))
	e.publish(ctx, eventbus.TopicJobsLifecycle, eventbus.Event{
		Event: "created", JobID: job.ID, Owner: job.Owner,
		Stage: string(job.Stage), At: now, TraceID: job.TraceID,
	})
	return job, nil
}

func (e *engine) Transition(ctx context.Context, id string, target registry.Stage, bagPatch map[string]any, errMsg string, actor Actor) (*registry.Job, error) {
	if target == registry.StageFailed && errMsg == "" {
		return nil, fmt.Errorf("%w: error message required when failing a job", jobserr.ErrBadRequest)
	}

	var (
		idempotent bool
		fromStage  registry.Stage
	)

	job, err := e.store.UpdateJob(ctx, id, false, func(j *registry.Job) (*registry.HistoryEntry, error) {
		fromStage = j.Stage

		if j.Stage == target {
			idempotent = true
			return nil, nil
		}

		if e.pause.IsPaused(ctx, nil) && !target.Terminal() && actor != ActorSystem {
			return nil, jobserr.ErrPipelinePaused
		}

		if !e.legalFor(j.Stage, target, actor) {
			return nil, fmt.Errorf("%w: %s -> %s", jobserr.ErrIllegalTransition, j.Stage, target)
		}

		merged, err := registry.MergeBag(j.Bag, bagPatch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", jobserr.ErrBadRequest, err)
		}

		now := time.Now().UTC()
		j.Stage = target
		j.Bag = merged
		j.UpdatedAt = now
		if target == registry.StageFailed {
			j.LastError = errMsg
		} else {
			j.LastError = ""
		}

		return &registry.HistoryEntry{
			Stage:       target,
			At:          now,
			BagSnapshot: merged,
			Error:       errMsg,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if idempotent {
		return job, nil
	}

	e.metrics.ObserveTransition(string(fromStage), string(target))
	e.publish(ctx, eventbus.TopicJobsLifecycle, eventbus.Event{
		Event: "updated", JobID: job.ID, Owner: job.Owner,
		Stage: string(job.Stage), At: job.UpdatedAt, TraceID: job.TraceID,
	})
	return job, nil
}

// legalFor authorizes a target stage from the current stage: the forward
// chain, failed/canceled from any non-terminal stage, or (system actor
// only, from a terminal stage) a rewind into any known non-terminal stage
// — which is how Retry re-enters the graph without going through the
// forward chain.
func (e *engine) legalFor(from, target registry.Stage, actor Actor) bool {
	if actor == ActorSystem && from.Terminal() && e.graph.Known(target) && !target.Terminal() {
		return true
	}
	if target == registry.StageFailed {
		return !from.Terminal()
	}
	if target == registry.StageCanceled {
		// Cancel is legal from any non-terminal stage, and additionally as
		// an idempotent finalization from failed (spec.md §4.5). lifecycle.Cancel
		// handles canceled (idempotent no-op) and complete (ErrNotCancelable)
		// before reaching the engine; here both are illegal.
		return !from.Terminal() || from == registry.StageFailed
	}
	return e.graph.IsLegalForward(from, target)
}

func (e *engine) publish(ctx context.Context, topic string, ev eventbus.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, topic, ev); err != nil {
		e.log.Warn("event publish failed", "topic", topic, "error", err)
	}
}
