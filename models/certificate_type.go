package models

import "time"

// CertificateType represents the certificate_types table.
// A nil ValidityMonths means certificates of this type never expire.
type CertificateType struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Code           string    `json:"code" gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
	Name           string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	Category       string    `json:"category" gorm:"column:category;type:varchar(64)"`
	ValidityMonths *int      `json:"validity_months,omitempty" gorm:"column:validity_months"`
	WarningDays    int       `json:"warning_days" gorm:"column:warning_days;not null"`
	IsMandatory    bool      `json:"is_mandatory" gorm:"column:is_mandatory;not null"`
	IsRecurrent    bool      `json:"is_recurrent" gorm:"column:is_recurrent;not null"`
	IsActive       bool      `json:"is_active" gorm:"column:is_active;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (CertificateType) TableName() string { return "certificate_types" }

func (t *CertificateType) NeverExpires() bool {
	return t.ValidityMonths == nil || *t.ValidityMonths <= 0
}
