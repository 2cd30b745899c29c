package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category is the closed set of investment categories.
type Category string

const (
	CategoryInverter       Category = "inverter"
	CategoryPVModuleString Category = "pv_module_string"
	CategoryBattery        Category = "battery"
	CategoryWallbox        Category = "wallbox"
	CategoryEV             Category = "ev"
	CategoryHeatPump       Category = "heat_pump"
	CategoryBalconyPV      Category = "balcony_pv"
	CategoryOther          Category = "other"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryInverter, CategoryPVModuleString, CategoryBattery, CategoryWallbox,
		CategoryEV, CategoryHeatPump, CategoryBalconyPV, CategoryOther:
		return true
	}
	return false
}

// ParentRule describes a category's parent requirement. Hard rules block
// advancing past the investments step, soft rules only warn.
type ParentRule struct {
	ParentCategory Category
	Hard           bool
}

// ParentRules maps categories that need a parent investment. PV module
// strings hang off an inverter and cannot stand alone.
var ParentRules = map[Category]ParentRule{
	CategoryPVModuleString: {ParentCategory: CategoryInverter, Hard: true},
	CategoryBalconyPV:      {ParentCategory: CategoryInverter, Hard: false},
}

// Investment is one financed component of an installation.
type Investment struct {
	InvestmentID    uuid.UUID      `gorm:"column:investment_id;type:uuid;primaryKey" json:"investment_id"`
	InstallationID  uuid.UUID      `gorm:"column:installation_id;type:uuid;not null" json:"installation_id"`
	Category        Category       `gorm:"column:category;type:varchar(32);not null" json:"category"`
	ParentID        *uuid.UUID     `gorm:"column:parent_id;type:uuid" json:"parent_id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Parameters      datatypes.JSON `gorm:"column:parameters;type:jsonb" json:"parameters"`
	AcquisitionDate *time.Time     `gorm:"column:acquisition_date" json:"acquisition_date"`
	AcquisitionCost *float64       `gorm:"column:acquisition_cost;type:decimal(12,2)" json:"acquisition_cost"`
	Active          bool           `gorm:"column:active;default:true" json:"active"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Investment) TableName() string {
	return "Investments"
}
