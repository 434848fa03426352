package services

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"hr-compliance-api/models"
)

const defaultReportMaxItems = 15

// ReportSummary is the API shape of a finished batch. Item lists are capped;
// the More* fields count what was left out.
type ReportSummary struct {
	BatchID         string        `json:"batch_id"`
	Status          string        `json:"status"`
	DryRun          bool          `json:"dry_run"`
	SyncMode        string        `json:"sync_mode"`
	FailurePolicy   string        `json:"failure_policy"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	Counters        BatchCounters `json:"counters"`
	// SuccessRate is 100 * (created + updated) / total rows. Rows skipped as
	// unchanged or already present count against it.
	SuccessRate        float64                    `json:"success_rate"`
	Sheets             []*SheetReport             `json:"sheets"`
	Entities           map[string]*EntityCounters `json:"entities"`
	Errors             []RowOutcome               `json:"errors"`
	MoreErrors         int                        `json:"more_errors"`
	Warnings           []string                   `json:"warnings"`
	MoreWarnings       int                        `json:"more_warnings"`
	Reconciliation     []ReconcileAction          `json:"reconciliation"`
	MoreReconciliation int                        `json:"more_reconciliation"`
	Error              string                     `json:"error,omitempty"`
}

type ReportGenerator struct {
	MaxItems int
}

func NewReportGenerator(maxItems int) *ReportGenerator {
	if maxItems <= 0 {
		maxItems = defaultReportMaxItems
	}
	return &ReportGenerator{MaxItems: maxItems}
}

// SuccessRate is the percentage of input rows that were created or updated.
func SuccessRate(r *BatchReport) float64 {
	if r.Counters.TotalRows == 0 {
		return 0
	}
	ok := 0
	for _, o := range r.Outcomes {
		if o.Kind == models.RowOutcomeCreated || o.Kind == models.RowOutcomeUpdated {
			ok++
		}
	}
	return float64(ok) * 100 / float64(r.Counters.TotalRows)
}

func (g *ReportGenerator) Summary(r *BatchReport) ReportSummary {
	s := ReportSummary{
		BatchID:         r.BatchID,
		Status:          r.Status,
		DryRun:          r.DryRun,
		SyncMode:        r.Options.SyncMode,
		FailurePolicy:   r.Options.FailurePolicy,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.FinishedAt.Sub(r.StartedAt).Seconds(),
		Counters:        r.Counters,
		SuccessRate:     SuccessRate(r),
		Sheets:          r.Sheets,
		Entities:        r.Entities,
		Error:           r.Error,
	}
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}

	var errs []RowOutcome
	for _, o := range r.Outcomes {
		if o.Kind == models.RowOutcomeError {
			errs = append(errs, o)
		}
	}
	s.Errors, s.MoreErrors = capItems(errs, g.MaxItems)
	s.Warnings, s.MoreWarnings = capItems(allWarnings(r), g.MaxItems)
	s.Reconciliation, s.MoreReconciliation = capItems(r.Reconciliation, g.MaxItems)
	return s
}

// Text renders the summary as plain text for logs, the CLI and mail.
func (g *ReportGenerator) Text(r *BatchReport) string {
	s := g.Summary(r)
	var b strings.Builder

	title := fmt.Sprintf("Import batch %s [%s]", s.BatchID, s.Status)
	if s.DryRun {
		title += " (dry run, nothing was saved)"
	}
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "Mode: %s, failure policy: %s, duration: %.2fs\n", s.SyncMode, s.FailurePolicy, s.DurationSeconds)
	c := s.Counters
	fmt.Fprintf(&b, "Rows: %d total, %d processed (%d created, %d updated), %d skipped, %d errors, %d warnings\n",
		c.TotalRows, c.Processed, c.Created, c.Updated, c.Skipped, c.Errors, c.Warnings)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n", s.SuccessRate)
	if s.Error != "" {
		fmt.Fprintf(&b, "Batch failed and was rolled back: %s\n", s.Error)
	}

	if len(s.Sheets) > 0 {
		b.WriteString("\nSheets:\n")
		for _, sh := range s.Sheets {
			fmt.Fprintf(&b, "  - %s (%s): %d rows, %d created, %d updated, %d skipped, %d errors\n",
				sh.Name, sh.Kind, sh.Counters.TotalRows, sh.Counters.Created, sh.Counters.Updated,
				sh.Counters.Skipped, sh.Counters.Errors)
		}
	}

	if len(s.Entities) > 0 {
		b.WriteString("\nEntities:\n")
		kinds := make([]string, 0, len(s.Entities))
		for k := range s.Entities {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			e := s.Entities[k]
			fmt.Fprintf(&b, "  - %s: %d created, %d updated, %d deactivated, %d deleted\n",
				k, e.Created, e.Updated, e.Deactivated, e.Deleted)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, o := range s.Errors {
			fmt.Fprintf(&b, "  - %s row %d: %s\n", o.Sheet, o.RowNumber, o.Detail)
		}
		writeMore(&b, s.MoreErrors)
	}
	if len(s.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
		writeMore(&b, s.MoreWarnings)
	}
	if len(s.Reconciliation) > 0 {
		b.WriteString("\nReconciliation:\n")
		for _, a := range s.Reconciliation {
			fmt.Fprintf(&b, "  - %s %s %s (%s): %s\n", a.Action, a.Entity, a.Key, a.Name, a.Reason)
		}
		writeMore(&b, s.MoreReconciliation)
	}
	return b.String()
}

// HTML wraps Text for mail clients.
func (g *ReportGenerator) HTML(r *BatchReport) string {
	return "<pre style=\"font-family:monospace\">" + html.EscapeString(g.Text(r)) + "</pre>"
}

func allWarnings(r *BatchReport) []string {
	out := append([]string(nil), r.Warnings...)
	for _, o := range r.Outcomes {
		for _, w := range o.Warnings {
			out = append(out, fmt.Sprintf("%s row %d: %s", o.Sheet, o.RowNumber, w))
		}
	}
	return out
}

func capItems[T any](items []T, max int) ([]T, int) {
	if max <= 0 || len(items) <= max {
		return items, 0
	}
	return items[:max], len(items) - max
}

func writeMore(b *strings.Builder, more int) {
	if more > 0 {
		fmt.Fprintf(b, "  ...and %d more\n", more)
	}
}
