package models

import "time"

// Department represents the departments table. Departments form a tree via ParentID.
type Department struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Code      string    `json:"code" gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"column:name;type:varchar(255);not null"`
	ParentID  *uint     `json:"parent_id,omitempty" gorm:"column:parent_id;index"`
	IsActive  bool      `json:"is_active" gorm:"column:is_active;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Parent *Department `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

func (Department) TableName() string { return "departments" }
