package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tariff holds the grid price and feed-in rate for one installation.
// Prices are in EUR per kWh, the base fee in EUR per month.
type Tariff struct {
	TariffID       uuid.UUID      `gorm:"column:tariff_id;type:uuid;primaryKey" json:"tariff_id"`
	InstallationID uuid.UUID      `gorm:"column:installation_id;type:uuid;not null" json:"installation_id"`
	GridPrice      float64        `gorm:"column:grid_price;type:decimal(8,4);not null" json:"grid_price"`
	FeedInRate     float64        `gorm:"column:feed_in_rate;type:decimal(8,4);not null" json:"feed_in_rate"`
	BaseFee        *float64       `gorm:"column:base_fee;type:decimal(8,2)" json:"base_fee"`
	EffectiveFrom  time.Time      `gorm:"column:effective_from;not null" json:"effective_from"`
	Label          *string        `gorm:"column:label" json:"label"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Tariff) TableName() string {
	return "Tariffs"
}
