package services

import (
	"time"

	"hr-compliance-api/models"
)

// StatusEngine derives certificate lifecycle and compliance status from dates.
// Uploaded status columns are never trusted; every write goes through Apply.
type StatusEngine struct {
	DefaultWarningDays int
}

func NewStatusEngine(defaultWarningDays int) *StatusEngine {
	if defaultWarningDays < 0 {
		defaultWarningDays = 0
	}
	return &StatusEngine{DefaultWarningDays: defaultWarningDays}
}

// ComputeStatus evaluates the lifecycle state at day granularity.
func (e *StatusEngine) ComputeStatus(issueDate, expiryDate *time.Time, warningDays int, now time.Time) string {
	if issueDate == nil {
		return models.CertificateStatusRegistered
	}
	if expiryDate == nil {
		return models.CertificateStatusActive
	}
	today := truncateToDate(now)
	expiry := truncateToDate(*expiryDate)
	if !today.Before(expiry) {
		return models.CertificateStatusExpired
	}
	if warningDays < 0 {
		warningDays = 0
	}
	daysLeft := int(expiry.Sub(today).Hours() / 24)
	if daysLeft <= warningDays {
		return models.CertificateStatusExpiringSoon
	}
	return models.CertificateStatusActive
}

// ComputeComplianceStatus maps a lifecycle status onto the coarser compliance scale.
func (e *StatusEngine) ComputeComplianceStatus(status string, certType *models.CertificateType) string {
	switch status {
	case models.CertificateStatusActive:
		return models.ComplianceCompliant
	case models.CertificateStatusExpiringSoon:
		return models.ComplianceExpiringSoon
	case models.CertificateStatusExpired:
		return models.ComplianceNonCompliant
	}
	if certType != nil && !certType.IsRecurrent && !certType.IsMandatory {
		return models.ComplianceExempt
	}
	return models.CompliancePending
}

// WarningDays returns the type's warning window, falling back to the engine default.
func (e *StatusEngine) WarningDays(certType *models.CertificateType) int {
	if certType == nil {
		return e.DefaultWarningDays
	}
	return certType.WarningDays
}

// DeriveExpiry returns issue + validityMonths calendar months, or nil when the
// type never expires or no issue date is known.
func DeriveExpiry(issue *time.Time, validityMonths *int) *time.Time {
	if issue == nil || validityMonths == nil || *validityMonths <= 0 {
		return nil
	}
	t := AddCalendarMonths(*issue, *validityMonths)
	return &t
}

// AddCalendarMonths adds months and clamps to the last day of the target month,
// so 2024-01-31 + 1 month is 2024-02-29 rather than rolling into March.
func AddCalendarMonths(t time.Time, months int) time.Time {
	t = truncateToDate(t)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

// EffectiveIssueDate is the date the certification was obtained: completion when
// recorded, otherwise the issue date.
func EffectiveIssueDate(record *models.CertificateRecord) *time.Time {
	if record.CompletionDate != nil {
		return record.CompletionDate
	}
	return record.IssueDate
}

// Apply fills a derivable expiry date and recomputes both status fields in place.
func (e *StatusEngine) Apply(record *models.CertificateRecord, certType *models.CertificateType, now time.Time) {
	issued := EffectiveIssueDate(record)
	if record.ExpiryDate == nil && certType != nil {
		record.ExpiryDate = DeriveExpiry(issued, certType.ValidityMonths)
	}
	record.Status = e.ComputeStatus(issued, record.ExpiryDate, e.WarningDays(certType), now)
	record.ComplianceStatus = e.ComputeComplianceStatus(record.Status, certType)
}
