package models

import "time"

const (
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
)

// Employee represents the employees table.
// EmployeeID is the external identifier; NIP is the legacy alias some uploads still carry.
type Employee struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	EmployeeID   string    `json:"employee_id" gorm:"column:employee_id;type:varchar(64);uniqueIndex;not null"`
	NIP          *string   `json:"nip,omitempty" gorm:"column:nip;type:varchar(64);uniqueIndex"`
	Name         string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	DepartmentID *uint     `json:"department_id,omitempty" gorm:"column:department_id;index"`
	Position     string    `json:"position" gorm:"column:position;type:varchar(255)"`
	Email        string    `json:"email" gorm:"column:email;type:varchar(255)"`
	Status       string    `json:"status" gorm:"column:status;type:varchar(16);not null;default:'active';index"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (Employee) TableName() string { return "employees" }

func (e *Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}
