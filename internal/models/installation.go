package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Installation is the physical PV system being set up.
type Installation struct {
	InstallationID   uuid.UUID      `gorm:"column:installation_id;type:uuid;primaryKey" json:"installation_id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	RatedPowerKwp    float64        `gorm:"column:rated_power_kwp;type:decimal(10,3);not null" json:"rated_power_kwp"`
	InstallDate      time.Time      `gorm:"column:install_date;not null" json:"install_date"`
	PostalCode       string         `gorm:"column:postal_code;not null" json:"postal_code"`
	Latitude         *float64       `gorm:"column:latitude;type:decimal(9,6)" json:"latitude"`
	Longitude        *float64       `gorm:"column:longitude;type:decimal(9,6)" json:"longitude"`
	OrientationDeg   *float64       `gorm:"column:orientation_deg;type:decimal(5,1)" json:"orientation_deg"`
	TiltDeg          *float64       `gorm:"column:tilt_deg;type:decimal(4,1)" json:"tilt_deg"`
	ManufacturerHint *string        `gorm:"column:manufacturer_hint" json:"manufacturer_hint"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Installation) TableName() string {
	return "Installations"
}
