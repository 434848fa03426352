package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"hr-compliance-api/models"

	"github.com/go-playground/validator/v10"
)

const (
	SyncModeReplace    = "replace"
	SyncModeMerge      = "merge"
	SyncModeUpdateOnly = "update_only"
)

const (
	// FailurePolicyAtomic aborts and rolls back the whole batch on any persistence error.
	FailurePolicyAtomic = "atomic"
	// FailurePolicySavepoint rolls back only the failing row; connectivity errors stay fatal.
	FailurePolicySavepoint = "savepoint"
)

const (
	ReasonEmptyRow       = "empty row"
	ReasonAlreadyExists  = "already exists"
	ReasonNoChanges      = "no changes"
	ReasonNotFoundUpdate = "not found (update only)"
	ReasonNotInUpload    = "not present in upload"
)

const (
	ActionDeactivated = "deactivated"
	ActionDeleted     = "deleted"
)

// ImportOptions are supplied by the caller for one batch.
type ImportOptions struct {
	DryRun         bool   `json:"dry_run"`
	UpdateExisting bool   `json:"update_existing"`
	CreateMissing  bool   `json:"create_missing"`
	SyncMode       string `json:"sync_mode" validate:"omitempty,oneof=replace merge update_only"`
	SoftDelete     bool   `json:"soft_delete"`
	FailurePolicy  string `json:"failure_policy" validate:"omitempty,oneof=atomic savepoint"`
	TriggerSource  string `json:"trigger_source" validate:"max=64"`
	FileName       string `json:"file_name,omitempty" validate:"max=255"`
	FileChecksum   string `json:"file_checksum,omitempty" validate:"omitempty,hexadecimal"`
}

var (
	optionsValidatorOnce sync.Once
	optionsValidator     *validator.Validate
)

// WithDefaults fills unset modes.
func (o ImportOptions) WithDefaults() ImportOptions {
	o.SyncMode = strings.ToLower(strings.TrimSpace(o.SyncMode))
	if o.SyncMode == "" {
		o.SyncMode = SyncModeMerge
	}
	o.FailurePolicy = strings.ToLower(strings.TrimSpace(o.FailurePolicy))
	if o.FailurePolicy == "" {
		o.FailurePolicy = FailurePolicyAtomic
	}
	if strings.TrimSpace(o.TriggerSource) == "" {
		o.TriggerSource = "unknown"
	}
	return o
}

func (o ImportOptions) Validate() error {
	optionsValidatorOnce.Do(func() {
		optionsValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("invalid import options: %w", err)
	}
	return nil
}

func (o ImportOptions) JSON() string {
	data, err := json.Marshal(o)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SheetInput is one sheet of an upload routed to an entity kind.
type SheetInput struct {
	Name string
	Kind string
	Rows []RawRow
	// Date1904 marks a workbook whose serial dates count from 1904-01-01.
	Date1904 bool
}

// RowOutcome is appended once per input row and never mutated afterwards.
type RowOutcome struct {
	Sheet         string            `json:"sheet"`
	Entity        string            `json:"entity"`
	RowNumber     int               `json:"row_number"`
	Kind          string            `json:"kind"`
	Key           string            `json:"key,omitempty"`
	Detail        string            `json:"detail"`
	ChangedFields []string          `json:"changed_fields,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Input         map[string]string `json:"input,omitempty"`
}

// BatchCounters aggregate row outcomes. Processed counts rows that were created
// or updated plus reconciliation actions.
type BatchCounters struct {
	TotalRows int `json:"total_rows"`
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Warnings  int `json:"warnings"`
}

func (c *BatchCounters) add(o RowOutcome) {
	c.TotalRows++
	switch o.Kind {
	case models.RowOutcomeCreated:
		c.Created++
		c.Processed++
	case models.RowOutcomeUpdated:
		c.Updated++
		c.Processed++
	case models.RowOutcomeSkipped:
		c.Skipped++
	case models.RowOutcomeError:
		c.Errors++
	}
	c.Warnings += len(o.Warnings)
}

// SheetReport is the per-sheet breakdown of a batch.
type SheetReport struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Counters BatchCounters `json:"counters"`
}

// ReconcileAction records an entity deactivated or deleted because the upload no longer lists it.
type ReconcileAction struct {
	Sheet  string `json:"sheet"`
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// EntityCounters count storage effects per entity kind, including entities
// created as a side effect of resolving references.
type EntityCounters struct {
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Deleted     int `json:"deleted"`
}

// BatchReport is the in-memory result of one batch. On a fatal error it is the
// best-effort record of what was attempted and does not reflect committed state.
type BatchReport struct {
	BatchID        string                     `json:"batch_id"`
	Status         string                     `json:"status"`
	DryRun         bool                       `json:"dry_run"`
	Options        ImportOptions              `json:"options"`
	StartedAt      time.Time                  `json:"started_at"`
	FinishedAt     time.Time                  `json:"finished_at"`
	Counters       BatchCounters              `json:"counters"`
	Sheets         []*SheetReport             `json:"sheets"`
	Outcomes       []RowOutcome               `json:"outcomes"`
	Reconciliation []ReconcileAction          `json:"reconciliation,omitempty"`
	Entities       map[string]*EntityCounters `json:"entities"`
	Warnings       []string                   `json:"warnings,omitempty"`
	Error          string                     `json:"error,omitempty"`
}

func newBatchReport(batchID string, opts ImportOptions, started time.Time) *BatchReport {
	return &BatchReport{
		BatchID:   batchID,
		Status:    models.ImportBatchStatusRunning,
		DryRun:    opts.DryRun,
		Options:   opts,
		StartedAt: started,
		Entities:  make(map[string]*EntityCounters),
	}
}

func (r *BatchReport) addSheet(name, kind string) *SheetReport {
	sr := &SheetReport{Name: name, Kind: kind}
	r.Sheets = append(r.Sheets, sr)
	return sr
}

func (r *BatchReport) appendOutcome(sheet *SheetReport, o RowOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Counters.add(o)
	if sheet != nil {
		sheet.Counters.add(o)
	}
}

func (r *BatchReport) appendReconcile(sheet *SheetReport, a ReconcileAction) {
	r.Reconciliation = append(r.Reconciliation, a)
	r.Counters.Updated++
	r.Counters.Processed++
	if sheet != nil {
		sheet.Counters.Updated++
		sheet.Counters.Processed++
	}
	ec := r.entity(a.Entity)
	if a.Action == ActionDeleted {
		ec.Deleted++
	} else {
		ec.Deactivated++
	}
}

func (r *BatchReport) entity(kind string) *EntityCounters {
	ec, ok := r.Entities[kind]
	if !ok {
		ec = &EntityCounters{}
		r.Entities[kind] = ec
	}
	return ec
}

func (r *BatchReport) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
	r.Counters.Warnings++
}

func (r *BatchReport) finish(at time.Time, err error) {
	r.FinishedAt = at
	switch {
	case err != nil:
		r.Status = models.ImportBatchStatusFailed
		r.Error = err.Error()
	case r.DryRun:
		r.Status = models.ImportBatchStatusDryRun
	default:
		r.Status = models.ImportBatchStatusCompleted
	}
}

// SubjectType derives the batch subject from its sheets.
func SubjectType(sheets []SheetInput) string {
	if len(sheets) == 1 {
		return sheets[0].Kind
	}
	return models.SubjectWorkbook
}
