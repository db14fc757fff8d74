// Package registry holds the durable job and history models shared by the
// store, transition engine, claim protocol, and query layers.
package registry

import (
	"time"

	"gorm.io/datatypes"
)

// Stage is a job's position in the IM2 pipeline state machine.
type Stage string

const (
	StageSubmitted           Stage = "submitted"
	StageCategorizing        Stage = "categorizing"
	StageCategorized         Stage = "categorized"
	StageMetadataExtracting  Stage = "metadata_extracting"
	StageMetadataExtracted   Stage = "metadata_extracted"
	StageStaging             Stage = "staging"
	StageStaged              Stage = "staged"
	StageSplitting           Stage = "splitting"
	StageSplit               Stage = "split"
	StageRecombining         Stage = "recombining"
	StageRecombined          Stage = "recombined"
	StageOrganizing          Stage = "organizing"
	StageComplete            Stage = "complete"
	StageFailed              Stage = "failed"
	StageCanceled            Stage = "canceled"
)

// Terminal reports whether a stage accepts no forward transitions.
func (s Stage) Terminal() bool {
	switch s {
	case StageComplete, StageFailed, StageCanceled:
		return true
	default:
		return false
	}
}

// Job is the unit of work tracked through the pipeline.
type Job struct {
	ID          string         `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Owner       string         `gorm:"column:owner;not null;index" json:"owner"`
	SourceRef   string         `gorm:"column:source_ref;not null" json:"source_ref"`
	DisplayName string         `gorm:"column:display_name" json:"display_name"`
	Stage       Stage          `gorm:"column:stage;not null;index;type:varchar(32)" json:"stage"`
	EngineHint  string         `gorm:"column:engine_hint;index" json:"engine_hint,omitempty"`
	Bag         datatypes.JSON `gorm:"column:bag;type:jsonb;not null;default:'{}'" json:"bag"`
	LastError   string         `gorm:"column:last_error" json:"last_error,omitempty"`
	TraceID     string         `gorm:"column:trace_id;index" json:"trace_id"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Job) TableName() string { return "registry_job" }

// HistoryEntry is an append-only audit record of one job's state changes.
type HistoryEntry struct {
	JobID       string         `gorm:"column:job_id;primaryKey;type:varchar(64)" json:"job_id"`
	Seq         int64          `gorm:"column:seq;primaryKey;autoIncrement:false" json:"seq"`
	Stage       Stage          `gorm:"column:stage;not null;type:varchar(32)" json:"stage"`
	At          time.Time      `gorm:"column:at;not null" json:"at"`
	BagSnapshot datatypes.JSON `gorm:"column:bag_snapshot;type:jsonb" json:"bag_snapshot"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
}

func (HistoryEntry) TableName() string { return "registry_job_history" }

// SystemFlag backs the pause switch when PAUSE_FLAG_BACKING=store is set,
// so a replicated registry can share the switch across instances.
type SystemFlag struct {
	ID     int  `gorm:"column:id;primaryKey"`
	Paused bool `gorm:"column:paused;not null;default:false"`
}

func (SystemFlag) TableName() string { return "registry_system_flag" }
