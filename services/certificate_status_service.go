package services

import (
	"context"
	"time"

	"hr-compliance-api/config"
	"hr-compliance-api/models"
	"hr-compliance-api/monitor"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const statusRefreshPageSize = 500

// StatusRefreshSummary counts the work done by one refresh.
type StatusRefreshSummary struct {
	Scanned  int            `json:"scanned"`
	Updated  int            `json:"updated"`
	ByStatus map[string]int `json:"by_status"`
}

// CertificateStatusService keeps stored statuses in line with the calendar:
// certificates drift into expiring_soon and expired without any upload.
type CertificateStatusService struct {
	db     *gorm.DB
	engine *StatusEngine
}

func NewCertificateStatusService(db *gorm.DB, settings *config.Settings) *CertificateStatusService {
	if db == nil {
		db = config.DB
	}
	if settings == nil {
		settings = config.Current()
	}
	return &CertificateStatusService{db: db, engine: NewStatusEngine(settings.DefaultWarningDays)}
}

// RefreshStatuses recomputes status, compliance status and any derivable
// expiry date, page by page, and writes back only rows that changed.
func (s *CertificateStatusService) RefreshStatuses(ctx context.Context, now time.Time) (*StatusRefreshSummary, error) {
	summary := &StatusRefreshSummary{ByStatus: make(map[string]int)}
	var page []models.CertificateRecord
	res := s.db.WithContext(ctx).
		Preload("CertificateType").
		Order("id").
		FindInBatches(&page, statusRefreshPageSize, func(tx *gorm.DB, _ int) error {
			for i := range page {
				rec := &page[i]
				summary.Scanned++
				before := *rec
				s.engine.Apply(rec, rec.CertificateType, now)
				if rec.Status == before.Status && rec.ComplianceStatus == before.ComplianceStatus &&
					sameDate(rec.ExpiryDate, before.ExpiryDate) {
					continue
				}
				err := s.db.WithContext(ctx).Model(&models.CertificateRecord{}).
					Where("id = ?", rec.ID).
					Updates(map[string]interface{}{
						"status":            rec.Status,
						"compliance_status": rec.ComplianceStatus,
						"expiry_date":       rec.ExpiryDate,
						"updated_at":        now,
					}).Error
				if err != nil {
					return err
				}
				summary.Updated++
				summary.ByStatus[rec.Status]++
			}
			return nil
		})
	if res.Error != nil {
		return summary, res.Error
	}
	for status, n := range summary.ByStatus {
		monitor.AddStatusRefreshed(status, n)
	}
	logrus.WithFields(logrus.Fields{"scanned": summary.Scanned, "updated": summary.Updated}).Info("certificate statuses refreshed")
	return summary, nil
}
