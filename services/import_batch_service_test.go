package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"hr-compliance-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeWritesOnce(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportBatchService(db)
	ctx := context.Background()

	batch, err := svc.Start(ctx, models.SubjectEmployees, ImportOptions{TriggerSource: "cli", FileName: "karyawan.xlsx"}.WithDefaults())
	require.NoError(t, err)
	assert.Len(t, batch.BatchID, 36)
	assert.Equal(t, models.ImportBatchStatusRunning, batch.Status)
	assert.Contains(t, batch.Options, `"sync_mode":"merge"`)

	report := newBatchReport(batch.BatchID, ImportOptions{}, batch.StartedAt)
	sheet := report.addSheet("Karyawan", models.SubjectEmployees)
	report.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 2, Kind: models.RowOutcomeCreated, Detail: "created employee E1 (Budi)", Input: map[string]string{"name": "Budi"}})
	report.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 3, Kind: models.RowOutcomeError, Detail: "missing required field(s): name", Warnings: []string{"w1", "w2"}})
	report.finish(batch.StartedAt.Add(2*time.Second), nil)

	require.NoError(t, svc.Finalize(ctx, report))
	assert.ErrorIs(t, svc.Finalize(ctx, report), ErrImportBatchFinalized)

	stored, err := svc.GetByBatchID(ctx, batch.BatchID, true)
	require.NoError(t, err)
	assert.True(t, stored.IsFinalized())
	assert.Equal(t, models.ImportBatchStatusCompleted, stored.Status)
	assert.EqualValues(t, 2, stored.TotalRows)
	assert.EqualValues(t, 1, stored.Created)
	assert.EqualValues(t, 1, stored.Errors)
	assert.EqualValues(t, 2, stored.Warnings)
	require.NotNil(t, stored.Duration)
	assert.InDelta(t, 2.0, *stored.Duration, 0.01)
	require.Len(t, stored.Outcomes, 2, "outcomes are written once")
	assert.Equal(t, `{"name":"Budi"}`, stored.Outcomes[0].Input)
	assert.Equal(t, "w1\nw2", stored.Outcomes[1].Warnings)
}

func TestFinalizeUnknownBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportBatchService(db)

	report := newBatchReport("00000000-0000-0000-0000-000000000000", ImportOptions{}, time.Now())
	report.finish(time.Now(), nil)
	assert.ErrorIs(t, svc.Finalize(context.Background(), report), ErrImportBatchNotFound)

	_, err := svc.GetByBatchID(context.Background(), "missing", false)
	assert.ErrorIs(t, err, ErrImportBatchNotFound)
}

func TestFinalizeTruncatesLongErrors(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportBatchService(db)
	batch, err := svc.Start(context.Background(), models.SubjectWorkbook, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "unknown", batch.TriggerSource)

	report := newBatchReport(batch.BatchID, ImportOptions{}, batch.StartedAt)
	report.finish(time.Now(), assert.AnError)
	report.Error = strings.Repeat("x", 5000)
	require.NoError(t, svc.Finalize(context.Background(), report))

	stored, err := svc.GetByBatchID(context.Background(), batch.BatchID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ImportBatchStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, 2000)
	assert.True(t, strings.HasSuffix(*stored.ErrorMessage, "..."))
}

func TestListAndLatestByChecksum(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportBatchService(db)
	ctx := context.Background()
	checksum := FileChecksum([]byte("karyawan"))

	var ids []string
	for i, dryRun := range []bool{false, true, false} {
		b, err := svc.Start(ctx, models.SubjectEmployees, ImportOptions{DryRun: dryRun, FileChecksum: checksum, TriggerSource: "test"})
		require.NoError(t, err)
		require.NoError(t, db.Model(b).Update("started_at", date(2024, time.May, 1+i)).Error)
		report := newBatchReport(b.BatchID, ImportOptions{DryRun: dryRun}, date(2024, time.May, 1+i))
		report.finish(date(2024, time.May, 1+i).Add(time.Minute), nil)
		require.NoError(t, svc.Finalize(ctx, report))
		ids = append(ids, b.BatchID)
	}

	batches, total, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, batches, 2)
	assert.Equal(t, ids[2], batches[0].BatchID, "newest first")

	batches, _, err = svc.List(ctx, 500, 2)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, ids[0], batches[0].BatchID)

	latest, err := svc.LatestByChecksum(ctx, checksum)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, ids[2], latest.BatchID)

	latest, err = svc.LatestByChecksum(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, latest)
}
