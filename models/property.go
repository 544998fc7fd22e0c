package models

import (
	"time"
)

// PropertyStatus представляет статус объекта недвижимости
type PropertyStatus string

const (
	PropertyStatusAvailable        PropertyStatus = "AVAILABLE"
	PropertyStatusActivelyMarketed PropertyStatus = "ACTIVELY_MARKETED"
	PropertyStatusUnderOffer       PropertyStatus = "UNDER_OFFER"
	PropertyStatusUnderContract    PropertyStatus = "UNDER_CONTRACT"
	PropertyStatusLeased           PropertyStatus = "LEASED"
	PropertyStatusSold             PropertyStatus = "SOLD"
)

// Property представляет объект недвижимости
type Property struct {
	ID        string         `gorm:"primaryKey;size:50"`
	Title     string         `gorm:"column:title;not null;size:200"`
	Address   string         `gorm:"column:address;not null;size:255"`
	Price     float64        `gorm:"column:price;type:decimal(20,2);not null"`
	Status    PropertyStatus `gorm:"type:varchar(30);not null;default:'AVAILABLE'"`
	OwnerID   string         `gorm:"column:owner_id;size:50;index"`
	OwnerName string         `gorm:"column:owner_name;size:100"`
	Version   int64          `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time      `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели Property
func (Property) TableName() string {
	return "properties"
}
