// Package pause implements the Pause Controller (C6): a process-wide
// admission gate for new jobs and non-terminal transitions. The flag is an
// in-memory atomic by default; on restart the registry comes up
// un-paused, exactly as DN prescribes.
package pause

import (
	"context"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-backend/internal/domain/registry"
)

// Controller is the pause/resume switch.
type Controller interface {
	IsPaused(ctx context.Context, tx *gorm.DB) bool
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// memController is the default, single-instance, in-memory controller.
type memController struct {
	paused atomic.Bool
}

// NewMemory returns a Controller backed by an in-process atomic bool.
func NewMemory() Controller { return &memController{} }

func (c *memController) IsPaused(ctx context.Context, tx *gorm.DB) bool { return c.paused.Load() }
func (c *memController) Pause(ctx context.Context) error               { c.paused.Store(true); return nil }
func (c *memController) Resume(ctx context.Context) error              { c.paused.Store(false); return nil }

// storeController backs the flag with a single row in the durable store,
// so PAUSE_FLAG_BACKING=store lets a replicated registry share the switch.
// IsPaused reads through tx when one is supplied and through db otherwise.
// The engine and the claim protocol both call IsPaused with a nil tx, so
// their reads go through db, outside the transition's own transaction.
type storeController struct {
	db *gorm.DB
}

// NewStoreBacked returns a Controller backed by a registry_system_flag row.
func NewStoreBacked(db *gorm.DB) (Controller, error) {
	if err := db.Exec(`INSERT INTO registry_system_flag (id, paused) VALUES (1, false) ON CONFLICT (id) DO NOTHING`).Error; err != nil {
		return nil, err
	}
	return &storeController{db: db}, nil
}

func (c *storeController) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

func (c *storeController) IsPaused(ctx context.Context, tx *gorm.DB) bool {
	var flag registry.SystemFlag
	if err := c.conn(tx).WithContext(ctx).Where("id = ?", 1).Take(&flag).Error; err != nil {
		return false
	}
	return flag.Paused
}

func (c *storeController) Pause(ctx context.Context) error {
	return c.db.WithContext(ctx).Model(&registry.SystemFlag{}).Where("id = ?", 1).Update("paused", true).Error
}

func (c *storeController) Resume(ctx context.Context) error {
	return c.db.WithContext(ctx).Model(&registry.SystemFlag{}).Where("id = ?", 1).Update("paused", false).Error
}
