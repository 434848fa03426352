package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/models"

	gerrors "github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// sheetOrder makes referenced entities exist before the rows that reference them.
var sheetOrder = map[string]int{
	models.SubjectDepartments:      0,
	models.SubjectCertificateTypes: 1,
	models.SubjectEmployees:        2,
	models.SubjectTrainingRecords:  3,
}

// ImportCoordinator runs one batch: every sheet of an upload inside a single
// transaction, followed by finalization of the batch record.
type ImportCoordinator struct {
	db         *gorm.DB
	batches    *ImportBatchService
	normalizer *RowNormalizer
	engine     *StatusEngine
	reconciler *SyncReconciler
	settings   *config.Settings
	now        func() time.Time
}

func NewImportCoordinator(db *gorm.DB, settings *config.Settings) (*ImportCoordinator, error) {
	if db == nil {
		db = config.DB
	}
	if settings == nil {
		settings = config.Current()
	}
	var extra map[string][]string
	if settings.HeaderSynonymsFile != "" {
		loaded, err := LoadHeaderSynonyms(settings.HeaderSynonymsFile)
		if err != nil {
			return nil, err
		}
		extra = loaded
	}
	return &ImportCoordinator{
		db:         db,
		batches:    NewImportBatchService(db),
		normalizer: NewRowNormalizer(extra),
		engine:     NewStatusEngine(settings.DefaultWarningDays),
		reconciler: NewSyncReconciler(),
		settings:   settings,
		now:        time.Now,
	}, nil
}

// Process imports the given sheets as one batch. A non-nil error means the
// batch failed and nothing was committed; the returned report then describes
// what was attempted. Row-level problems never produce an error.
func (c *ImportCoordinator) Process(ctx context.Context, sheets []SheetInput, opts ImportOptions) (*BatchReport, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, ErrNoSheetsToImport
	}
	for _, sheet := range sheets {
		if _, ok := sheetOrder[sheet.Kind]; !ok {
			return nil, fmt.Errorf("sheet %q: unsupported entity kind %q", sheet.Name, sheet.Kind)
		}
	}
	ordered := append([]SheetInput(nil), sheets...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sheetOrder[ordered[i].Kind] < sheetOrder[ordered[j].Kind]
	})

	batch, err := c.batches.Start(ctx, SubjectType(ordered), opts)
	if err != nil {
		return nil, gerrors.Wrap(err, "start import batch")
	}
	report := newBatchReport(batch.BatchID, opts, batch.StartedAt)
	log := logrus.WithFields(logrus.Fields{
		"batch_id": batch.BatchID,
		"dry_run":  opts.DryRun,
		"mode":     opts.SyncMode,
		"trigger":  opts.TriggerSource,
	})
	log.Info("import batch started")

	if previous, err := c.batches.LatestByChecksum(ctx, opts.FileChecksum); err != nil {
		log.WithError(err).Warn("checksum lookup failed")
	} else if previous != nil {
		report.addWarning("this file was already imported in batch %s on %s",
			previous.BatchID, previous.StartedAt.Format(time.RFC3339))
	}

	var runErr error
	if opts.DryRun {
		runErr = c.run(ctx, c.db.WithContext(ctx), report, ordered, log)
	} else {
		runErr = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return c.run(ctx, tx, report, ordered, log)
		})
	}
	report.finish(c.now(), runErr)

	fields := logrus.Fields{
		"total":     report.Counters.TotalRows,
		"created":   report.Counters.Created,
		"updated":   report.Counters.Updated,
		"skipped":   report.Counters.Skipped,
		"errors":    report.Counters.Errors,
		"warnings":  report.Counters.Warnings,
		"duration":  report.FinishedAt.Sub(report.StartedAt).String(),
		"status":    report.Status,
		"reconcile": len(report.Reconciliation),
	}
	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Error("import batch failed, rolled back")
	} else {
		log.WithFields(fields).Info("import batch finished")
	}

	// The batch record lives outside the data transaction so a failed batch is still audited.
	if err := c.batches.Finalize(context.WithoutCancel(ctx), report); err != nil {
		log.WithError(err).Error("finalize import batch")
		if runErr == nil {
			return report, gerrors.Wrap(err, "finalize import batch")
		}
	}
	return report, runErr
}

func (c *ImportCoordinator) run(ctx context.Context, db *gorm.DB, report *BatchReport, sheets []SheetInput, log *logrus.Entry) error {
	opts := report.Options
	bc := &batchContext{
		ctx:             ctx,
		db:              db,
		batchID:         report.BatchID,
		opts:            opts,
		now:             c.now(),
		defaultProvider: NormalizeCode(c.settings.DefaultProviderCode),
		normalizer:      c.normalizer,
		engine:          c.engine,
		report:          report,
		log:             log,
		listed:          make(keySet),
		referenced:      make(keySet),
		sequences:       make(map[string]int),
		reservedSeq:     make(map[string]int),
		resolver: NewEntityResolver(ctx, db, ResolverOptions{
			DryRun:                opts.DryRun,
			CreateMissing:         opts.CreateMissing && opts.SyncMode != SyncModeUpdateOnly,
			DefaultWarningDays:    c.settings.DefaultWarningDays,
			DefaultValidityMonths: c.settings.DefaultValidityMonths,
		}),
	}

	firstSheet := make(map[string]*SheetReport)
	for _, sheet := range sheets {
		bc.sheet = report.addSheet(sheet.Name, sheet.Kind)
		if _, ok := firstSheet[sheet.Kind]; !ok {
			firstSheet[sheet.Kind] = bc.sheet
		}
		if err := runnerFor(sheet.Kind).runSheet(bc, sheet); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"sheet":   sheet.Name,
			"kind":    sheet.Kind,
			"rows":    bc.sheet.Counters.TotalRows,
			"created": bc.sheet.Counters.Created,
			"updated": bc.sheet.Counters.Updated,
			"errors":  bc.sheet.Counters.Errors,
		}).Debug("sheet processed")
	}
	if opts.SyncMode != SyncModeReplace {
		return nil
	}

	// Dependents go first so hard deletes unlink them before their parents.
	for i := len(sheets) - 1; i >= 0; i-- {
		kind := sheets[i].Kind
		if firstSheet[kind] == nil {
			continue
		}
		bc.sheet = firstSheet[kind]
		delete(firstSheet, kind)
		if err := c.reconciler.Reconcile(bc, kind, bc.listed[kind], bc.referenced[kind]); err != nil {
			return err
		}
	}
	return nil
}

func runnerFor(kind string) sheetRunner {
	switch kind {
	case models.SubjectDepartments:
		return pipeline[departmentInput, models.Department]{strategy: departmentStrategy{}}
	case models.SubjectCertificateTypes:
		return pipeline[certificateTypeInput, models.CertificateType]{strategy: certificateTypeStrategy{}}
	case models.SubjectEmployees:
		return pipeline[employeeInput, models.Employee]{strategy: employeeStrategy{}}
	default:
		return pipeline[trainingRecordInput, models.CertificateRecord]{strategy: trainingRecordStrategy{}}
	}
}
