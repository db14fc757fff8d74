// Package query implements the Query/Stats API (C7): read-only,
// lock-free access to jobs, history, and aggregate counts. Generalizes
// internal/services/job_service.go's GetByIDForRequestUser et al. to the
// registry's owner/stage/time-range filters.
package query

import (
	"context"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/registry/store"
)

// Stats is the aggregate counts view returned by GET /api/stats.
type Stats struct {
	Total     int64                    `json:"total"`
	PerStage  map[registry.Stage]int64 `json:"per_stage"`
	Active    int64                    `json:"active"`
	Completed int64                    `json:"completed"`
	Failed    int64                    `json:"failed"`
}

// API is the Query/Stats API contract (C7).
type API interface {
	List(ctx context.Context, f store.Filters, limit, offset int) ([]*registry.Job, error)
	Get(ctx context.Context, id string) (*registry.Job, error)
	History(ctx context.Context, id string) ([]registry.HistoryEntry, error)
	Stats(ctx context.Context) (*Stats, error)
}

type api struct {
	store store.Store
}

// New constructs the Query/Stats API.
func New(st store.Store) API { return &api{store: st} }

func (a *api) List(ctx context.Context, f store.Filters, limit, offset int) ([]*registry.Job, error) {
	return a.store.Query(ctx, f, store.Paging{Limit: limit, Offset: offset})
}

func (a *api) Get(ctx context.Context, id string) (*registry.Job, error) {
	return a.store.LoadJob(ctx, id)
}

func (a *api) History(ctx context.Context, id string) ([]registry.HistoryEntry, error) {
	return a.store.History(ctx, id)
}

func (a *api) Stats(ctx context.Context) (*Stats, error) {
	perStage, err := a.store.CountByStage(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{PerStage: perStage}
	for stage, count := range perStage {
		stats.Total += count
		if stage.Terminal() {
			switch stage {
			case registry.StageComplete:
				stats.Completed += count
			case registry.StageFailed:
				stats.Failed += count
			}
			continue
		}
		stats.Active += count
	}
	return stats, nil
}
