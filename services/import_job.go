package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hr-compliance-api/config"
	"hr-compliance-api/models"
	"hr-compliance-api/monitor"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ImportFileInput describes one uploaded file. Data wins over Path when both are set.
type ImportFileInput struct {
	Path     string
	FileName string
	Data     []byte
	Kind     string
	Options  ImportOptions
	LockName string
}

// ImportJobService is the entry point shared by the HTTP handler, the CLI and
// the queue worker: it reads the upload, serializes imports on a dataset lock
// and reports the outcome.
type ImportJobService struct {
	db          *gorm.DB
	settings    *config.Settings
	coordinator *ImportCoordinator
	reports     *ReportGenerator
	sendMail    func(to []string, subject, html string) error
}

func NewImportJobService(db *gorm.DB, settings *config.Settings) (*ImportJobService, error) {
	if db == nil {
		db = config.DB
	}
	if settings == nil {
		settings = config.Current()
	}
	coordinator, err := NewImportCoordinator(db, settings)
	if err != nil {
		return nil, err
	}
	return &ImportJobService{
		db:          db,
		settings:    settings,
		coordinator: coordinator,
		reports:     NewReportGenerator(settings.ReportMaxItems),
		sendMail:    config.SendMail,
	}, nil
}

func (s *ImportJobService) Reports() *ReportGenerator { return s.reports }

func (s *ImportJobService) RunFile(ctx context.Context, input *ImportFileInput) (*BatchReport, error) {
	if input == nil {
		return nil, errors.New("input is nil")
	}
	data := input.Data
	fileName := input.FileName
	if data == nil {
		if input.Path == "" {
			return nil, errors.New("no file to import")
		}
		raw, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		data = raw
		if fileName == "" {
			fileName = filepath.Base(input.Path)
		}
	}

	opts := input.Options
	opts.FileName = fileName
	opts.FileChecksum = FileChecksum(data)

	sheets, err := ReadWorkbook(fileName, data, input.Kind)
	if err != nil {
		return nil, err
	}

	lockName := strings.TrimSpace(input.LockName)
	if lockName == "" {
		lockName = s.settings.ImportLockName
	}
	release, err := acquireDatasetLock(ctx, s.db, lockName)
	if err != nil {
		if errors.Is(err, ErrImportAlreadyRunning) {
			monitor.IncLockConflict()
		}
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			logrus.WithError(rerr).WithField("lock", lockName).Warn("release import lock")
		}
	}()

	report, err := s.coordinator.Process(ctx, sheets, opts)
	if report != nil {
		s.observe(report)
		s.notify(report)
	}
	return report, err
}

func (s *ImportJobService) observe(report *BatchReport) {
	if !s.settings.MetricsEnabled {
		return
	}
	subject := models.SubjectWorkbook
	if len(report.Sheets) == 1 {
		subject = report.Sheets[0].Kind
	}
	monitor.ObserveBatch(report.Status, subject, report.FinishedAt.Sub(report.StartedAt).Seconds())
	for _, sheet := range report.Sheets {
		monitor.AddRows(sheet.Kind, models.RowOutcomeCreated, sheet.Counters.Created)
		monitor.AddRows(sheet.Kind, models.RowOutcomeUpdated, sheet.Counters.Updated)
		monitor.AddRows(sheet.Kind, models.RowOutcomeSkipped, sheet.Counters.Skipped)
		monitor.AddRows(sheet.Kind, models.RowOutcomeError, sheet.Counters.Errors)
	}
	for _, a := range report.Reconciliation {
		monitor.AddReconcileAction(a.Entity, a.Action)
	}
}

func (s *ImportJobService) notify(report *BatchReport) {
	if len(s.settings.ReportRecipients) == 0 || s.sendMail == nil {
		return
	}
	subject := fmt.Sprintf("[HR compliance] import %s: %s", report.Status, report.Options.FileName)
	if err := s.sendMail(s.settings.ReportRecipients, subject, s.reports.HTML(report)); err != nil {
		logrus.WithError(err).WithField("batch_id", report.BatchID).Warn("send import report mail")
	}
}
