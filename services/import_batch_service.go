package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxErrorMessageLen = 2000
	outcomeInsertBatch = 200
)

// ImportBatchService owns the import_batches audit trail.
type ImportBatchService struct {
	db *gorm.DB
}

func NewImportBatchService(db *gorm.DB) *ImportBatchService {
	if db == nil {
		db = config.DB
	}
	return &ImportBatchService{db: db}
}

// Start records a new running batch with a fresh batch id.
func (s *ImportBatchService) Start(ctx context.Context, subject string, opts ImportOptions) (*models.ImportBatch, error) {
	batch := &models.ImportBatch{
		BatchID:       uuid.NewString(),
		SubjectType:   subject,
		Status:        models.ImportBatchStatusRunning,
		TriggerSource: opts.TriggerSource,
		DryRun:        opts.DryRun,
		FileName:      opts.FileName,
		FileChecksum:  opts.FileChecksum,
		Options:       opts.JSON(),
		StartedAt:     time.Now(),
	}
	if batch.TriggerSource == "" {
		batch.TriggerSource = "unknown"
	}
	if err := s.db.WithContext(ctx).Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

// Finalize writes the final status, counters and row outcomes. It succeeds at
// most once per batch.
func (s *ImportBatchService) Finalize(ctx context.Context, report *BatchReport) error {
	finished := report.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	updates := map[string]interface{}{
		"status":           report.Status,
		"finished_at":      finished,
		"duration_seconds": finished.Sub(report.StartedAt).Seconds(),
		"total_rows":       report.Counters.TotalRows,
		"processed":        report.Counters.Processed,
		"created":          report.Counters.Created,
		"updated":          report.Counters.Updated,
		"skipped":          report.Counters.Skipped,
		"errors":           report.Counters.Errors,
		"warnings":         report.Counters.Warnings,
	}
	if report.Error != "" {
		updates["error_message"] = truncateMessage(report.Error)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ImportBatch{}).
			Where("batch_id = ? AND finished_at IS NULL", report.BatchID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ImportBatch{}).Where("batch_id = ?", report.BatchID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrImportBatchNotFound
			}
			return ErrImportBatchFinalized
		}
		rows := outcomeRecords(report)
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, outcomeInsertBatch).Error
	})
}

func (s *ImportBatchService) GetByBatchID(ctx context.Context, batchID string, withOutcomes bool) (*models.ImportBatch, error) {
	q := s.db.WithContext(ctx)
	if withOutcomes {
		q = q.Preload("Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}
	var batch models.ImportBatch
	if err := q.Where("batch_id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImportBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// List returns batches newest first. limit is clamped to 1..100.
func (s *ImportBatchService) List(ctx context.Context, limit, offset int) ([]models.ImportBatch, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.ImportBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var batches []models.ImportBatch
	err := s.db.WithContext(ctx).Order("started_at DESC").Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

// LatestByChecksum returns the most recent completed non-dry-run batch that
// imported the same file, or nil.
func (s *ImportBatchService) LatestByChecksum(ctx context.Context, checksum string) (*models.ImportBatch, error) {
	if strings.TrimSpace(checksum) == "" {
		return nil, nil
	}
	var batch models.ImportBatch
	err := s.db.WithContext(ctx).
		Where("file_checksum = ? AND status = ? AND dry_run = ?", checksum, models.ImportBatchStatusCompleted, false).
		Order("started_at DESC").
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func outcomeRecords(report *BatchReport) []models.ImportRowOutcome {
	rows := make([]models.ImportRowOutcome, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rec := models.ImportRowOutcome{
			BatchID:   report.BatchID,
			Sheet:     o.Sheet,
			RowNumber: o.RowNumber,
			Kind:      o.Kind,
			Detail:    o.Detail,
		}
		if len(o.Warnings) > 0 {
			rec.Warnings = strings.Join(o.Warnings, "\n")
		}
		if len(o.Input) > 0 {
			if data, err := json.Marshal(o.Input); err == nil {
				rec.Input = string(data)
			}
		}
		rows = append(rows, rec)
	}
	return rows
}

func truncateMessage(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	return fmt.Sprintf("%s...", msg[:maxErrorMessageLen-3])
}
