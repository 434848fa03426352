package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-compliance-api/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// importStrategy is the per-entity part of the row pipeline. In is the
// resolved upload value and M the stored model.
type importStrategy[In, M any] interface {
	Kind() string
	// EmptyCheckFields are the fields that decide whether a row is blank.
	EmptyCheckFields() []string
	Normalize(row CanonicalRow)
	Validate(row CanonicalRow) error
	NaturalKey(row CanonicalRow) string
	Resolve(bc *batchContext, row CanonicalRow) (*In, error)
	FindExisting(bc *batchContext, in *In) (*M, error)
	// Diff returns the stored entity with uploaded values applied and the changed columns.
	Diff(bc *batchContext, existing *M, in *In) (*M, *changeSet)
	Create(bc *batchContext, in *In) (*M, error)
	Remember(bc *batchContext, m *M)
	// StoredKey identifies the entity for reconciliation.
	StoredKey(m *M) string
	Describe(m *M) string
}

// sheetRunner runs every row of one sheet.
type sheetRunner interface {
	runSheet(bc *batchContext, sheet SheetInput) error
}

// keySet collects stored keys per entity kind across the whole batch.
type keySet map[string]map[string]struct{}

func (k keySet) add(kind, key string) {
	if key == "" {
		return
	}
	if k[kind] == nil {
		k[kind] = make(map[string]struct{})
	}
	k[kind][key] = struct{}{}
}

type pipeline[In, M any] struct {
	strategy importStrategy[In, M]
}

// batchContext carries the state shared by every row of a batch.
type batchContext struct {
	ctx             context.Context
	db              *gorm.DB
	batchID         string
	opts            ImportOptions
	now             time.Time
	defaultProvider string

	normalizer *RowNormalizer
	engine     *StatusEngine
	resolver   *EntityResolver
	report     *BatchReport
	sheet      *SheetReport
	log        *logrus.Entry

	row      int
	warnings []string
	date1904 bool

	// listed holds the keys named by rows of each kind's own sheets and
	// referenced the keys any successful row resolved through the resolver.
	listed     keySet
	referenced keySet

	sequences   map[string]int
	reservedSeq map[string]int
}

func (bc *batchContext) beginRow(number int) {
	bc.row = number
	bc.warnings = nil
	bc.resolver.beginRow()
}

func (bc *batchContext) warn(format string, args ...any) {
	bc.warnings = append(bc.warnings, fmt.Sprintf(format, args...))
}

// updatesExisting reports whether found entities may be modified.
func (bc *batchContext) updatesExisting() bool {
	return bc.opts.UpdateExisting || bc.opts.SyncMode == SyncModeUpdateOnly
}

// date parses a date field. Unparseable values are dropped with a warning.
func (bc *batchContext) date(row CanonicalRow, field string) *time.Time {
	v, ok := row[field]
	if !ok || isEmptyValue(v) {
		return nil
	}
	t, err := ParseDateIn(v, bc.date1904)
	if err != nil {
		bc.warn("%s", (&DateParseError{Field: field, Value: toText(v)}).Error())
		return nil
	}
	return t
}

func (bc *batchContext) insert(value any, what string) error {
	if bc.opts.DryRun {
		return nil
	}
	return persistenceErr(bc.db.Create(value).Error, "create "+what)
}

func (bc *batchContext) update(model any, fields []string, what string) error {
	if bc.opts.DryRun {
		return nil
	}
	columns := append(append([]string(nil), fields...), "updated_at")
	return persistenceErr(bc.db.Model(model).Select(columns).Updates(model).Error, "update "+what)
}

// withinRow runs fn under a savepoint so a failed row leaves no trace. Dry
// runs write nothing and need none.
func (bc *batchContext) withinRow(fn func() error) error {
	if bc.opts.DryRun {
		return fn()
	}
	return bc.db.Transaction(func(*gorm.DB) error { return fn() })
}

// nextCertificateNumber allocates the next number in the provider's sequence,
// seeding the counter from storage on first use.
func (bc *batchContext) nextCertificateNumber(provider string, issued time.Time) (string, error) {
	current, ok := bc.sequences[provider]
	if !ok {
		stored, err := MaxCertificateSequence(bc.ctx, bc.db, provider)
		if err != nil {
			return "", persistenceErr(err, "seed certificate sequence")
		}
		current = max(stored, bc.reservedSeq[provider])
	}
	seq := NextCertificateSequence(current)
	bc.sequences[provider] = seq
	return NewCertificateNumber(provider, seq, issued).String(), nil
}

// reserveSequence keeps generated numbers clear of a number the upload states
// explicitly.
func (bc *batchContext) reserveSequence(provider string, seq int) {
	if seq > bc.reservedSeq[provider] {
		bc.reservedSeq[provider] = seq
	}
	if current, ok := bc.sequences[provider]; ok && seq > current {
		bc.sequences[provider] = seq
	}
}

// fatal stamps a batch-aborting error with its location.
func (bc *batchContext) fatal(err error) error {
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		pe = &PersistenceError{Err: err}
	}
	if pe.BatchID == "" {
		pe.BatchID = bc.batchID
	}
	if pe.Row == 0 && bc.row > 0 {
		pe.Sheet = bc.sheet.Name
		pe.Row = bc.row
	}
	return pe
}

func (bc *batchContext) rowError(out RowOutcome, err error) RowOutcome {
	out.Kind = models.RowOutcomeError
	var pe *PersistenceError
	if errors.As(err, &pe) && pe.Err != nil {
		out.Detail = pe.Err.Error()
	} else {
		out.Detail = err.Error()
	}
	out.Warnings = bc.warnings
	bc.log.WithFields(logrus.Fields{"sheet": out.Sheet, "row": out.RowNumber}).Debugf("row rejected: %s", out.Detail)
	return out
}

// sheetPreparer is implemented by strategies that need a look at every row
// before the first one is applied.
type sheetPreparer interface {
	prepareSheet(bc *batchContext, rows []CanonicalRow)
}

func (p pipeline[In, M]) runSheet(bc *batchContext, sheet SheetInput) error {
	bc.date1904 = sheet.Date1904
	if prep, ok := any(p.strategy).(sheetPreparer); ok {
		rows := make([]CanonicalRow, 0, len(sheet.Rows))
		for _, raw := range sheet.Rows {
			row := bc.normalizer.Normalize(raw)
			p.strategy.Normalize(row)
			rows = append(rows, row)
		}
		prep.prepareSheet(bc, rows)
	}
	seen := make(map[string]int)
	for _, raw := range sheet.Rows {
		if err := bc.ctx.Err(); err != nil {
			return bc.fatal(err)
		}
		outcome, err := p.processRow(bc, raw, seen)
		bc.report.appendOutcome(bc.sheet, outcome)
		if err != nil {
			return err
		}
	}
	bc.row = 0
	return nil
}

func (p pipeline[In, M]) processRow(bc *batchContext, raw RawRow, seen map[string]int) (RowOutcome, error) {
	s := p.strategy
	bc.beginRow(raw.Number)
	row := bc.normalizer.Normalize(raw)
	out := RowOutcome{Sheet: bc.sheet.Name, Entity: s.Kind(), RowNumber: raw.Number}

	if IsEmptyRow(row, s.EmptyCheckFields()) {
		out.Kind = models.RowOutcomeSkipped
		out.Detail = ReasonEmptyRow
		return out, nil
	}
	out.Input = row.Snapshot()
	s.Normalize(row)
	if err := s.Validate(row); err != nil {
		return bc.rowError(out, err), nil
	}
	key := s.NaturalKey(row)
	out.Key = key
	if first, dup := seen[key]; dup {
		return bc.rowError(out, &DuplicateError{Key: key, FirstRow: first}), nil
	}
	seen[key] = raw.Number

	var (
		result    RowOutcome
		storedKey string
	)
	err := bc.withinRow(func() error {
		var err error
		result, err = p.apply(bc, row, out, &storedKey)
		return err
	})
	bc.listed.add(s.Kind(), storedKey)
	if err != nil {
		bc.resolver.discardRow()
		if isRowLevelError(err) {
			return bc.rowError(out, err), nil
		}
		if bc.opts.FailurePolicy == FailurePolicySavepoint && !bc.opts.DryRun && !IsConnectivityError(err) {
			return bc.rowError(out, err), nil
		}
		fatal := bc.fatal(err)
		return bc.rowError(out, fatal), fatal
	}

	for _, ref := range bc.resolver.touchedRow() {
		bc.referenced.add(ref.kind, ref.key)
	}
	for _, kind := range bc.resolver.commitRow() {
		bc.report.entity(kind).Created++
	}
	switch result.Kind {
	case models.RowOutcomeCreated:
		bc.report.entity(s.Kind()).Created++
	case models.RowOutcomeUpdated:
		bc.report.entity(s.Kind()).Updated++
	}
	result.Warnings = bc.warnings
	return result, nil
}

func (p pipeline[In, M]) apply(bc *batchContext, row CanonicalRow, out RowOutcome, storedKey *string) (RowOutcome, error) {
	s := p.strategy
	in, err := s.Resolve(bc, row)
	if err != nil {
		return out, err
	}
	existing, err := s.FindExisting(bc, in)
	if err != nil {
		return out, err
	}

	if existing != nil {
		*storedKey = s.StoredKey(existing)
		if !bc.updatesExisting() {
			out.Kind = models.RowOutcomeSkipped
			out.Detail = ReasonAlreadyExists
			return out, nil
		}
		merged, changes := s.Diff(bc, existing, in)
		if changes.Empty() {
			out.Kind = models.RowOutcomeSkipped
			out.Detail = ReasonNoChanges
			return out, nil
		}
		if err := bc.update(merged, changes.Fields(), s.Kind()); err != nil {
			return out, err
		}
		s.Remember(bc, merged)
		out.Kind = models.RowOutcomeUpdated
		out.ChangedFields = changes.Fields()
		out.Detail = fmt.Sprintf("updated %s: %s", s.Describe(merged), describeChanges(changes))
		return out, nil
	}

	if bc.opts.SyncMode == SyncModeUpdateOnly {
		out.Kind = models.RowOutcomeSkipped
		out.Detail = ReasonNotFoundUpdate
		return out, nil
	}
	created, err := s.Create(bc, in)
	if err != nil {
		return out, err
	}
	*storedKey = s.StoredKey(created)
	s.Remember(bc, created)
	out.Kind = models.RowOutcomeCreated
	out.Detail = "created " + s.Describe(created)
	return out, nil
}

func describeChanges(cs *changeSet) string {
	parts := make([]string, 0, len(cs.changes))
	for _, c := range cs.changes {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, "; ")
}
