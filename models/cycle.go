package models

import (
	"time"
)

// ListingCycleStatus представляет статус листингового цикла (сторона продавца)
type ListingCycleStatus string

const (
	ListingStatusActiveMarketing ListingCycleStatus = "ACTIVE_MARKETING"
	ListingStatusOfferAccepted   ListingCycleStatus = "OFFER_ACCEPTED"
	ListingStatusUnderContract   ListingCycleStatus = "UNDER_CONTRACT"
	ListingStatusClosing         ListingCycleStatus = "CLOSING"
	ListingStatusSold            ListingCycleStatus = "SOLD"
	ListingStatusLeased          ListingCycleStatus = "LEASED"
	ListingStatusCancelled       ListingCycleStatus = "CANCELLED"
)

// AcquisitionCycleStatus представляет статус цикла приобретения (сторона покупателя)
type AcquisitionCycleStatus string

const (
	AcquisitionStatusSearching     AcquisitionCycleStatus = "SEARCHING"
	AcquisitionStatusOfferAccepted AcquisitionCycleStatus = "OFFER_ACCEPTED"
	AcquisitionStatusUnderContract AcquisitionCycleStatus = "UNDER_CONTRACT"
	AcquisitionStatusClosing       AcquisitionCycleStatus = "CLOSING"
	AcquisitionStatusAcquired      AcquisitionCycleStatus = "ACQUIRED"
	AcquisitionStatusCancelled     AcquisitionCycleStatus = "CANCELLED"
)

// BuyerType представляет классификацию покупателя
type BuyerType string

const (
	BuyerTypeClient   BuyerType = "CLIENT"
	BuyerTypeAgency   BuyerType = "AGENCY"
	BuyerTypeInvestor BuyerType = "INVESTOR"
)

// ListingCycle представляет цикл продажи объекта
type ListingCycle struct {
	ID            string             `gorm:"primaryKey;size:50"`
	PropertyID    string             `gorm:"column:property_id;not null;size:50;index"`
	Property      Property           `gorm:"foreignKey:PropertyID"`
	SellerID      string             `gorm:"column:seller_id;not null;size:50"`
	AgentID       uint               `gorm:"column:agent_id;not null"`
	Status        ListingCycleStatus `gorm:"type:varchar(30);not null;default:'ACTIVE_MARKETING'"`
	ListingPrice  float64            `gorm:"column:listing_price;type:decimal(20,2);not null"`
	DealUpdatedAt *time.Time         `gorm:"column:deal_updated_at"` // Время последнего обновления со стороны сделки
	Version       int64              `gorm:"column:version;not null;default:0"`
	CreatedAt     time.Time          `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели ListingCycle
func (ListingCycle) TableName() string {
	return "listing_cycles"
}

// AcquisitionCycle представляет цикл приобретения объекта
type AcquisitionCycle struct {
	ID             string                 `gorm:"primaryKey;size:50"`
	PropertyID     string                 `gorm:"column:property_id;not null;size:50;index"`
	Property       Property               `gorm:"foreignKey:PropertyID"`
	BuyerID        string                 `gorm:"column:buyer_id;not null;size:50"`
	AgentID        uint                   `gorm:"column:agent_id;not null"`
	BuyerType      BuyerType              `gorm:"type:varchar(20);not null;default:'CLIENT'"`
	InvestorShares string                 `gorm:"column:investor_shares;size:255"` // Доли инвесторов в формате "id:доля,id:доля"
	Status         AcquisitionCycleStatus `gorm:"type:varchar(30);not null;default:'SEARCHING'"`
	Budget         float64                `gorm:"column:budget;type:decimal(20,2)"`
	DealUpdatedAt  *time.Time             `gorm:"column:deal_updated_at"`
	Version        int64                  `gorm:"column:version;not null;default:0"`
	CreatedAt      time.Time              `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time              `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели AcquisitionCycle
func (AcquisitionCycle) TableName() string {
	return "acquisition_cycles"
}
