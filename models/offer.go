package models

import (
	"time"
)

// OfferStatus представляет статус предложения
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusRejected OfferStatus = "REJECTED"
	OfferStatusConsumed OfferStatus = "CONSUMED" // По предложению уже создана сделка
)

// Offer представляет предложение по объекту недвижимости
type Offer struct {
	ID                 string      `gorm:"primaryKey;size:50"`
	PropertyID         string      `gorm:"column:property_id;not null;size:50;index"`
	ListingCycleID     *string     `gorm:"column:listing_cycle_id;size:50"`
	AcquisitionCycleID *string     `gorm:"column:acquisition_cycle_id;size:50"`
	SellerID           string      `gorm:"column:seller_id;not null;size:50"`
	BuyerID            string      `gorm:"column:buyer_id;not null;size:50"`
	Amount             float64     `gorm:"column:amount;type:decimal(20,2);not null"`
	CommissionRate     float64     `gorm:"column:commission_rate;not null"` // Процент комиссии
	Status             OfferStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt          time.Time   `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time   `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели Offer
func (Offer) TableName() string {
	return "offers"
}
