package models

import (
	"time"
)

// Transaction представляет итоговую запись о завершенной сделке
type Transaction struct {
	ID                  string    `gorm:"primaryKey;size:50"`
	DealID              string    `gorm:"column:deal_id;not null;size:50;index"`
	PropertyID          string    `gorm:"column:property_id;not null;size:50;index"`
	Amount              float64   `gorm:"column:amount;type:decimal(20,2);not null"`
	TransferCosts       float64   `gorm:"column:transfer_costs;type:decimal(20,2);not null;default:0"`
	TotalCommission     float64   `gorm:"column:total_commission;type:decimal(20,2);not null"`
	PrimaryCommission   float64   `gorm:"column:primary_commission;type:decimal(20,2);not null"`
	SecondaryCommission float64   `gorm:"column:secondary_commission;type:decimal(20,2);not null"`
	SellerID            string    `gorm:"column:seller_id;not null;size:50"`
	BuyerID             string    `gorm:"column:buyer_id;not null;size:50"`
	BuyerType           BuyerType `gorm:"type:varchar(20);not null;default:'CLIENT'"`
	CompletedBy         string    `gorm:"column:completed_by;not null;size:100"`
	CreatedAt           time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// OwnershipRecord представляет результат переноса права собственности
type OwnershipRecord struct {
	ID            string    `gorm:"primaryKey;size:50"`
	PropertyID    string    `gorm:"column:property_id;not null;size:50;index"`
	NewOwnerID    string    `gorm:"column:new_owner_id;not null;size:50"`
	NewOwnerName  string    `gorm:"column:new_owner_name;not null;size:100"`
	OwnerType     BuyerType `gorm:"type:varchar(20);not null"`
	TransactionID string    `gorm:"column:transaction_id;not null;size:50"`
	Shares        string    `gorm:"column:shares;size:255"` // Доли инвесторов, если применимо
	Price         float64   `gorm:"column:price;type:decimal(20,2);not null"`
	Memo          string    `gorm:"column:memo;size:255"`
	CreatedAt     time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели OwnershipRecord
func (OwnershipRecord) TableName() string {
	return "ownership_records"
}
