package services

import (
	"testing"
	"time"

	"hr-compliance-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatus(t *testing.T) {
	e := NewStatusEngine(30)
	issued := datePtr(2023, time.June, 1)
	expiry := datePtr(2024, time.June, 1)

	tests := []struct {
		name   string
		issue  *time.Time
		expiry *time.Time
		now    time.Time
		want   string
	}{
		{"no issue date", nil, expiry, date(2024, time.January, 1), models.CertificateStatusRegistered},
		{"never expires", issued, nil, date(2030, time.January, 1), models.CertificateStatusActive},
		{"well before window", issued, expiry, date(2024, time.April, 1), models.CertificateStatusActive},
		{"day before window", issued, expiry, date(2024, time.May, 1), models.CertificateStatusActive},
		{"window opens", issued, expiry, date(2024, time.May, 2), models.CertificateStatusExpiringSoon},
		{"last valid day", issued, expiry, time.Date(2024, time.May, 31, 23, 59, 0, 0, time.UTC), models.CertificateStatusExpiringSoon},
		{"expiry day", issued, expiry, date(2024, time.June, 1), models.CertificateStatusExpired},
		{"long expired", issued, expiry, date(2026, time.June, 1), models.CertificateStatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.ComputeStatus(tt.issue, tt.expiry, 30, tt.now))
		})
	}
}

func TestExpiryRoundTrip(t *testing.T) {
	e := NewStatusEngine(30)
	certType := &models.CertificateType{ValidityMonths: intPtr(12), WarningDays: 45, IsRecurrent: true}
	issued := date(2023, time.March, 10)
	rec := &models.CertificateRecord{IssueDate: &issued}

	e.Apply(rec, certType, date(2023, time.April, 1))
	require.NotNil(t, rec.ExpiryDate)
	expiry := date(2024, time.March, 10)
	assert.Equal(t, expiry, *rec.ExpiryDate)
	assert.Equal(t, models.CertificateStatusActive, rec.Status)
	assert.Equal(t, models.ComplianceCompliant, rec.ComplianceStatus)

	windowStart := expiry.AddDate(0, 0, -45)
	assert.Equal(t, models.CertificateStatusActive, e.ComputeStatus(&issued, rec.ExpiryDate, 45, windowStart.AddDate(0, 0, -1)))
	assert.Equal(t, models.CertificateStatusExpiringSoon, e.ComputeStatus(&issued, rec.ExpiryDate, 45, windowStart))
	assert.Equal(t, models.CertificateStatusExpiringSoon, e.ComputeStatus(&issued, rec.ExpiryDate, 45, expiry.AddDate(0, 0, -1)))
	assert.Equal(t, models.CertificateStatusExpired, e.ComputeStatus(&issued, rec.ExpiryDate, 45, expiry))

	e.Apply(rec, certType, expiry)
	assert.Equal(t, models.CertificateStatusExpired, rec.Status)
	assert.Equal(t, models.ComplianceNonCompliant, rec.ComplianceStatus)
}

func TestApplyPrefersCompletionDateAndKeepsExplicitExpiry(t *testing.T) {
	e := NewStatusEngine(30)
	certType := &models.CertificateType{ValidityMonths: intPtr(6), WarningDays: 30}

	rec := &models.CertificateRecord{
		IssueDate:      datePtr(2024, time.January, 1),
		CompletionDate: datePtr(2024, time.January, 31),
	}
	e.Apply(rec, certType, date(2024, time.March, 1))
	assert.Equal(t, date(2024, time.July, 31), *rec.ExpiryDate)

	explicit := &models.CertificateRecord{IssueDate: datePtr(2024, time.January, 1), ExpiryDate: datePtr(2024, time.March, 15)}
	e.Apply(explicit, certType, date(2024, time.March, 1))
	assert.Equal(t, date(2024, time.March, 15), *explicit.ExpiryDate)
	assert.Equal(t, models.CertificateStatusExpiringSoon, explicit.Status)
}

func TestAddCalendarMonthsClampsToMonthEnd(t *testing.T) {
	assert.Equal(t, date(2024, time.February, 29), AddCalendarMonths(date(2024, time.January, 31), 1))
	assert.Equal(t, date(2023, time.February, 28), AddCalendarMonths(date(2023, time.January, 31), 1))
	assert.Equal(t, date(2025, time.February, 28), AddCalendarMonths(date(2024, time.February, 29), 12))
	assert.Equal(t, date(2026, time.May, 15), AddCalendarMonths(date(2024, time.May, 15), 24))
	assert.Equal(t, date(2023, time.November, 30), AddCalendarMonths(date(2024, time.May, 31), -6))
}

func TestDeriveExpiry(t *testing.T) {
	issued := datePtr(2024, time.January, 15)
	assert.Nil(t, DeriveExpiry(nil, intPtr(12)))
	assert.Nil(t, DeriveExpiry(issued, nil))
	assert.Nil(t, DeriveExpiry(issued, intPtr(0)))
	assert.Equal(t, date(2025, time.January, 15), *DeriveExpiry(issued, intPtr(12)))
}

func TestComputeComplianceStatus(t *testing.T) {
	e := NewStatusEngine(30)
	optional := &models.CertificateType{}
	mandatory := &models.CertificateType{IsMandatory: true}

	assert.Equal(t, models.ComplianceCompliant, e.ComputeComplianceStatus(models.CertificateStatusActive, nil))
	assert.Equal(t, models.ComplianceExpiringSoon, e.ComputeComplianceStatus(models.CertificateStatusExpiringSoon, nil))
	assert.Equal(t, models.ComplianceNonCompliant, e.ComputeComplianceStatus(models.CertificateStatusExpired, mandatory))
	assert.Equal(t, models.ComplianceExempt, e.ComputeComplianceStatus(models.CertificateStatusRegistered, optional))
	assert.Equal(t, models.CompliancePending, e.ComputeComplianceStatus(models.CertificateStatusRegistered, mandatory))
	assert.Equal(t, models.CompliancePending, e.ComputeComplianceStatus(models.CertificateStatusRegistered, nil))
}

func TestWarningDaysFallsBackToDefault(t *testing.T) {
	e := NewStatusEngine(-3)
	assert.Equal(t, 0, e.WarningDays(nil))
	assert.Equal(t, 14, e.WarningDays(&models.CertificateType{WarningDays: 14}))
}

func intPtr(n int) *int { return &n }
