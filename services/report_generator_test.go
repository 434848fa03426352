package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"hr-compliance-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(errorRows int) *BatchReport {
	started := date(2024, time.June, 1)
	r := newBatchReport("batch-1", ImportOptions{SyncMode: SyncModeMerge, FailurePolicy: FailurePolicyAtomic}, started)
	sheet := r.addSheet("Karyawan", models.SubjectEmployees)
	r.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 2, Kind: models.RowOutcomeCreated})
	r.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 3, Kind: models.RowOutcomeUpdated, Warnings: []string{"invalid email \"x\" ignored"}})
	r.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 4, Kind: models.RowOutcomeSkipped})
	for i := 0; i < errorRows; i++ {
		r.appendOutcome(sheet, RowOutcome{Sheet: "Karyawan", RowNumber: 5 + i, Kind: models.RowOutcomeError, Detail: fmt.Sprintf("missing required field(s): name <%d>", i)})
	}
	r.entity(models.SubjectEmployees).Created = 1
	r.finish(started.Add(1500*time.Millisecond), nil)
	return r
}

func TestSuccessRate(t *testing.T) {
	r := sampleReport(1)
	assert.InDelta(t, 50.0, SuccessRate(r), 0.001)
	assert.Zero(t, SuccessRate(newBatchReport("empty", ImportOptions{}, time.Now())))
}

func TestSummaryCapsItemLists(t *testing.T) {
	g := NewReportGenerator(5)
	s := g.Summary(sampleReport(20))

	assert.Len(t, s.Errors, 5)
	assert.Equal(t, 15, s.MoreErrors)
	assert.Len(t, s.Warnings, 1)
	assert.Zero(t, s.MoreWarnings)
	assert.Equal(t, models.ImportBatchStatusCompleted, s.Status)
	assert.InDelta(t, 1.5, s.DurationSeconds, 0.001)
	assert.Equal(t, 23, s.Counters.TotalRows)
}

func TestTextReport(t *testing.T) {
	g := NewReportGenerator(5)
	text := g.Text(sampleReport(20))

	assert.Contains(t, text, "Import batch batch-1 [completed]")
	assert.Contains(t, text, "Rows: 23 total, 2 processed (1 created, 1 updated), 1 skipped, 20 errors, 1 warnings")
	assert.Contains(t, text, "Success rate: 8.7%")
	assert.Contains(t, text, "Karyawan row 5: missing required field(s): name <0>")
	assert.NotContains(t, text, "name <5>")
	assert.Contains(t, text, "  ...and 15 more\n")
	assert.Contains(t, text, "Karyawan row 3: invalid email")
	assert.Contains(t, text, "employees: 1 created, 0 updated, 0 deactivated, 0 deleted")
}

func TestTextReportForFailedDryRun(t *testing.T) {
	r := newBatchReport("batch-2", ImportOptions{DryRun: true}, time.Now())
	r.appendReconcile(r.addSheet("Departments", models.SubjectDepartments), ReconcileAction{
		Entity: models.SubjectDepartments, Key: "C", Name: "Dept C", Action: ActionDeactivated, Reason: ReasonNotInUpload,
	})
	r.finish(time.Now(), fmt.Errorf("connection reset"))

	text := NewReportGenerator(0).Text(r)
	assert.Contains(t, text, "(dry run, nothing was saved)")
	assert.Contains(t, text, "Batch failed and was rolled back: connection reset")
	assert.Contains(t, text, "deactivated departments C (Dept C): not present in upload")
}

func TestHTMLReportEscapes(t *testing.T) {
	out := NewReportGenerator(5).HTML(sampleReport(1))
	require.True(t, strings.HasPrefix(out, "<pre"))
	assert.Contains(t, out, "name &lt;0&gt;")
	assert.NotContains(t, out, "<0>")
}
