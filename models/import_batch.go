package models

import (
	"time"
)

const (
	ImportBatchStatusRunning   = "running"
	ImportBatchStatusCompleted = "completed"
	ImportBatchStatusFailed    = "failed"
	ImportBatchStatusDryRun    = "dry_run"
)

const (
	SubjectDepartments      = "departments"
	SubjectEmployees        = "employees"
	SubjectCertificateTypes = "certificate_types"
	SubjectTrainingRecords  = "training_records"
	SubjectWorkbook         = "workbook"
)

// ImportBatch is the audit record of one execution of the import engine.
// Counters are written by Finalize; a finalized batch is never updated again.
type ImportBatch struct {
	ID            uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	BatchID       string     `json:"batch_id" gorm:"column:batch_id;type:varchar(36);uniqueIndex;not null"`
	SubjectType   string     `json:"subject_type" gorm:"column:subject_type;type:varchar(32);not null"`
	Status        string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'running';index"`
	TriggerSource string     `json:"trigger_source" gorm:"column:trigger_source;type:varchar(64);not null"`
	DryRun        bool       `json:"dry_run" gorm:"column:dry_run;not null"`
	FileName      string     `json:"file_name" gorm:"column:file_name;type:varchar(255)"`
	FileChecksum  string     `json:"file_checksum" gorm:"column:file_checksum;type:varchar(64);index"`
	Options       string     `json:"options" gorm:"column:options;type:text"`
	ErrorMessage  *string    `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	StartedAt     time.Time  `json:"started_at" gorm:"column:started_at;not null"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" gorm:"column:finished_at"`
	Duration      *float64   `json:"duration_seconds,omitempty" gorm:"column:duration_seconds"`
	TotalRows     uint       `json:"total_rows" gorm:"column:total_rows;not null;default:0"`
	Processed     uint       `json:"processed" gorm:"column:processed;not null;default:0"`
	Created       uint       `json:"created" gorm:"column:created;not null;default:0"`
	Updated       uint       `json:"updated" gorm:"column:updated;not null;default:0"`
	Skipped       uint       `json:"skipped" gorm:"column:skipped;not null;default:0"`
	Errors        uint       `json:"errors" gorm:"column:errors;not null;default:0"`
	Warnings      uint       `json:"warnings" gorm:"column:warnings;not null;default:0"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Outcomes []ImportRowOutcome `json:"outcomes,omitempty" gorm:"foreignKey:BatchID;references:BatchID"`
}

func (ImportBatch) TableName() string { return "import_batches" }

// IsFinalized reports whether the batch has already been closed.
func (b *ImportBatch) IsFinalized() bool {
	return b != nil && b.FinishedAt != nil
}

const (
	RowOutcomeCreated = "created"
	RowOutcomeUpdated = "updated"
	RowOutcomeSkipped = "skipped"
	RowOutcomeError   = "error"
)

// ImportRowOutcome stores the result of a single input row.
type ImportRowOutcome struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	BatchID   string    `json:"batch_id" gorm:"column:batch_id;type:varchar(36);index;not null"`
	Sheet     string    `json:"sheet" gorm:"column:sheet;type:varchar(128)"`
	RowNumber int       `json:"row_number" gorm:"column:row_no;not null"`
	Kind      string    `json:"kind" gorm:"column:kind;type:varchar(16);not null"`
	Detail    string    `json:"detail" gorm:"column:detail;type:text"`
	Warnings  string    `json:"warnings,omitempty" gorm:"column:warnings;type:text"`
	Input     string    `json:"input,omitempty" gorm:"column:input;type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ImportRowOutcome) TableName() string { return "import_row_outcomes" }
