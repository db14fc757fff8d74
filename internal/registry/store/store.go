// Package store implements the Durable Store (C1): transactional job
// mutation under a per-job pessimistic lock, with an append-only history
// log written in the same transaction. Grounded on
// internal/data/repos/jobs/job_run.go's ClaimNextRunnable, which already
// demonstrates SELECT ... FOR UPDATE plus an in-transaction Updates call.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
	"github.com/yungbote/neurobridge-backend/internal/pkg/logger"
	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
)

// Filters narrows a Query call.
type Filters struct {
	Owner      string
	Stages     []registry.Stage
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Paging bounds a Query call.
type Paging struct {
	Limit  int
	Offset int
}

// Mutator runs inside the per-job transaction with the locked, freshly
// re-read job. It returns the history entry to append (seq/job_id are
// filled in by the store) or an error to roll back the whole transaction.
type Mutator func(job *registry.Job) (*registry.HistoryEntry, error)

// Store is the Durable Store contract (C1).
type Store interface {
	InsertJob(ctx context.Context, job *registry.Job) error
	LoadJob(ctx context.Context, id string) (*registry.Job, error)
	// UpdateJob locks the job row, re-reads its current stage, runs mutate,
	// and appends one history entry in the same transaction. If
	// expectNotTerminal is set and the locked stage is terminal, it returns
	// jobserr.ErrTerminal without calling mutate.
	UpdateJob(ctx context.Context, id string, expectNotTerminal bool, mutate Mutator) (*registry.Job, error)
	History(ctx context.Context, id string) ([]registry.HistoryEntry, error)
	Query(ctx context.Context, f Filters, p Paging) ([]*registry.Job, error)
	CountByStage(ctx context.Context) (map[registry.Stage]int64, error)
	// ListCandidates is a lock-free read used by the Worker Claim Protocol;
	// it takes no lease and returns up to limit jobs in stage, creation-time order.
	ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error)
}

type gormStore struct {
	db      *gorm.DB
	log     *logger.Logger
	timeout time.Duration
}

// New constructs a gorm-backed Store. timeout bounds every call's context
// (spec.md §5); a non-positive value disables the deadline.
func New(db *gorm.DB, baseLog *logger.Logger, timeout time.Duration) Store {
	return &gormStore{db: db, log: baseLog.With("component", "registry.Store"), timeout: timeout}
}

// withDeadline bounds ctx by the store's configured timeout, the way every
// method below uses it before issuing its query.
func (s *gormStore) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *gormStore) InsertJob(ctx context.Context, job *registry.Job) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing registry.Job
		err := tx.Where("id = ?", job.ID).Take(&existing).Error
		if err == nil {
			return jobserr.ErrConflict
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		first := registry.HistoryEntry{
			JobID:       job.ID,
			Seq:         1,
			Stage:       job.Stage,
			At:          job.CreatedAt,
			BagSnapshot: job.Bag,
		}
		return tx.Create(&first).Error
	})
	if err != nil {
		if errors.Is(err, jobserr.ErrConflict) {
			return jobserr.ErrConflict
		}
		return fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return nil
}

func (s *gormStore) LoadJob(ctx context.Context, id string) (*registry.Job, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	var job registry.Job
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, jobserr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return &job, nil
}

func (s *gormStore) UpdateJob(ctx context.Context, id string, expectNotTerminal bool, mutate Mutator) (*registry.Job, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	var result *registry.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job registry.Job
		// Lock is acquired before the mutator sees the current stage, so a
		// concurrent transition on the same job cannot change the value the
		// mutator reasons over until this transaction commits (spec §4.1).
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jobserr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if expectNotTerminal && job.Stage.Terminal() {
			return jobserr.ErrTerminal
		}

		entry, mErr := mutate(&job)
		if mErr != nil {
			return mErr
		}
		if entry == nil {
			// No-op mutation (e.g. idempotent transition): persist nothing.
			result = &job
			return nil
		}

		if err := tx.Model(&registry.Job{}).Where("id = ?", job.ID).Updates(map[string]any{
			"owner":        job.Owner,
			"source_ref":   job.SourceRef,
			"display_name": job.DisplayName,
			"stage":        job.Stage,
			"engine_hint":  job.EngineHint,
			"bag":          job.Bag,
			"last_error":   job.LastError,
			"trace_id":     job.TraceID,
			"updated_at":   job.UpdatedAt,
		}).Error; err != nil {
			return err
		}

		var lastSeq int64
		if err := tx.Model(&registry.HistoryEntry{}).
			Where("job_id = ?", job.ID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&lastSeq).Error; err != nil {
			return err
		}
		entry.JobID = job.ID
		entry.Seq = lastSeq + 1
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		result = &job
		return nil
	})
	if err != nil {
		if errors.Is(err, jobserr.ErrNotFound) || errors.Is(err, jobserr.ErrTerminal) ||
			errors.Is(err, jobserr.ErrIllegalTransition) || errors.Is(err, jobserr.ErrContended) ||
			errors.Is(err, jobserr.ErrPipelinePaused) || errors.Is(err, jobserr.ErrBadRequest) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return result, nil
}

func (s *gormStore) History(ctx context.Context, id string) ([]registry.HistoryEntry, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	var rows []registry.HistoryEntry
	err := s.db.WithContext(ctx).
		Where("job_id = ?", id).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return rows, nil
}

func (s *gormStore) Query(ctx context.Context, f Filters, p Paging) ([]*registry.Job, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	q := s.db.WithContext(ctx).Model(&registry.Job{})
	if f.Owner != "" {
		q = q.Where("owner = ?", f.Owner)
	}
	if len(f.Stages) > 0 {
		q = q.Where("stage IN ?", f.Stages)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	q = q.Order("created_at DESC")
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	var rows []*registry.Job
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return rows, nil
}

func (s *gormStore) CountByStage(ctx context.Context) (map[registry.Stage]int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	type row struct {
		Stage registry.Stage
		Count int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&registry.Job{}).
		Select("stage, COUNT(*) as count").
		Group("stage").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	out := make(map[registry.Stage]int64, len(rows))
	for _, r := range rows {
		out[r.Stage] = r.Count
	}
	return out, nil
}

func (s *gormStore) ListCandidates(ctx context.Context, stage registry.Stage, engineHint string, limit int) ([]*registry.Job, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	q := s.db.WithContext(ctx).Model(&registry.Job{}).Where("stage = ?", stage)
	if engineHint != "" {
		q = q.Where("engine_hint = ?", engineHint)
	}
	q = q.Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*registry.Job
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", jobserr.ErrUnavailable, err)
	}
	return rows, nil
}
