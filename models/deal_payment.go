package models

import (
	"time"
)

// PaymentKind представляет тип платежа по сделке
type PaymentKind string

const (
	PaymentKindDownPayment PaymentKind = "DOWN_PAYMENT"
	PaymentKindInstallment PaymentKind = "INSTALLMENT"
	PaymentKindToken       PaymentKind = "TOKEN"
	PaymentKindFinal       PaymentKind = "FINAL_PAYMENT"
	PaymentKindAdHoc       PaymentKind = "AD_HOC" // Платеж вне графика
)

// PaymentMethod представляет способ оплаты
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodCard         PaymentMethod = "CARD"
)

// DealPayment представляет одно движение денег по сделке.
// Платежи только добавляются и никогда не удаляются.
type DealPayment struct {
	ID              string        `gorm:"primaryKey;size:50"`
	DealID          string        `gorm:"column:deal_id;not null;size:50;index"`
	InstallmentID   *string       `gorm:"column:installment_id;size:50"` // Пусто для платежей вне графика
	Kind            PaymentKind   `gorm:"type:varchar(15);not null"`
	Amount          float64       `gorm:"column:amount;type:decimal(20,2);not null"`
	Method          PaymentMethod `gorm:"type:varchar(15);not null"`
	ReferenceNumber string        `gorm:"column:reference_number;size:100"`
	ReceiptNumber   string        `gorm:"column:receipt_number;size:100"`
	RecordedBy      string        `gorm:"column:recorded_by;not null;size:100"`
	PaidAt          time.Time     `gorm:"column:paid_at;not null"`
	CreatedAt       time.Time     `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели DealPayment
func (DealPayment) TableName() string {
	return "deal_payments"
}

// PaymentKindForInstallment возвращает тип платежа по типу взноса
func PaymentKindForInstallment(kind InstallmentKind) PaymentKind {
	switch kind {
	case InstallmentKindDownPayment:
		return PaymentKindDownPayment
	case InstallmentKindToken:
		return PaymentKindToken
	case InstallmentKindFinal:
		return PaymentKindFinal
	default:
		return PaymentKindInstallment
	}
}
