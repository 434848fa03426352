package models

import "time"

const (
	CertificateStatusRegistered   = "registered"
	CertificateStatusActive       = "active"
	CertificateStatusExpiringSoon = "expiring_soon"
	CertificateStatusExpired      = "expired"
)

const (
	ComplianceCompliant    = "compliant"
	ComplianceExpiringSoon = "expiring_soon"
	ComplianceNonCompliant = "non_compliant"
	CompliancePending      = "pending"
	ComplianceExempt       = "exempt"
)

// CertificateRecord represents a training certification held by an employee.
// Status and ComplianceStatus are derived values and are recomputed on every write.
type CertificateRecord struct {
	ID                uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	EmployeeID        uint       `json:"employee_id" gorm:"column:employee_id;not null;index"`
	CertificateTypeID uint       `json:"certificate_type_id" gorm:"column:certificate_type_id;not null;index"`
	CertificateNumber *string    `json:"certificate_number,omitempty" gorm:"column:certificate_number;type:varchar(128);uniqueIndex"`
	Provider          string     `json:"provider" gorm:"column:provider;type:varchar(64)"`
	IssueDate         *time.Time `json:"issue_date,omitempty" gorm:"column:issue_date;type:date"`
	CompletionDate    *time.Time `json:"completion_date,omitempty" gorm:"column:completion_date;type:date"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty" gorm:"column:expiry_date;type:date;index"`
	Status            string     `json:"status" gorm:"column:status;type:varchar(16);not null;default:'registered';index"`
	ComplianceStatus  string     `json:"compliance_status" gorm:"column:compliance_status;type:varchar(16);not null;default:'pending'"`
	Notes             string     `json:"notes" gorm:"column:notes;type:text"`
	CreatedAt         time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Employee        *Employee        `json:"employee,omitempty" gorm:"foreignKey:EmployeeID"`
	CertificateType *CertificateType `json:"certificate_type,omitempty" gorm:"foreignKey:CertificateTypeID"`
}

func (CertificateRecord) TableName() string { return "certificate_records" }

// AllModels lists every table managed by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Department{},
		&Employee{},
		&CertificateType{},
		&CertificateRecord{},
		&ImportBatch{},
		&ImportRowOutcome{},
	}
}
