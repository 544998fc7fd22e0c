package models

import (
	"time"
)

// PaymentFrequency представляет периодичность платежей
type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "MONTHLY"   // Шаг 30 дней
	FrequencyQuarterly PaymentFrequency = "QUARTERLY" // Шаг 90 дней
)

// PaymentPlanStatus представляет статус графика платежей
type PaymentPlanStatus string

const (
	PlanStatusActive PaymentPlanStatus = "ACTIVE"
	PlanStatusClosed PaymentPlanStatus = "CLOSED"
)

// PaymentPlan представляет график платежей по сделке
type PaymentPlan struct {
	ID              uint              `gorm:"primaryKey;autoIncrement"`
	DealID          string            `gorm:"column:deal_id;uniqueIndex;not null;size:50"`
	TotalAmount     float64           `gorm:"column:total_amount;type:decimal(20,2);not null"`
	DownPaymentPct  float64           `gorm:"column:down_payment_pct;not null"`
	NumInstallments int               `gorm:"column:num_installments;not null"` // Без учета первого взноса
	Frequency       PaymentFrequency  `gorm:"type:varchar(10);not null"`
	Status          PaymentPlanStatus `gorm:"type:varchar(10);not null;default:'ACTIVE'"`
	CreatedBy       string            `gorm:"column:created_by;size:100"`
	CreatedAt       time.Time         `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`

	Installments []PaymentInstallment `gorm:"foreignKey:PlanID"`
}

// TableName возвращает имя таблицы для модели PaymentPlan
func (PaymentPlan) TableName() string {
	return "payment_plans"
}

// InstallmentKind представляет тип взноса. Тип хранится явно и задается при
// создании взноса, семантика не выводится из текста описания.
type InstallmentKind string

const (
	InstallmentKindDownPayment InstallmentKind = "DOWN_PAYMENT"
	InstallmentKindRegular     InstallmentKind = "INSTALLMENT"
	InstallmentKindToken       InstallmentKind = "TOKEN"
	InstallmentKindFinal       InstallmentKind = "FINAL_PAYMENT"
)

// InstallmentStatus представляет статус взноса
type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "PENDING"
	InstallmentStatusPartial InstallmentStatus = "PARTIAL"
	InstallmentStatusPaid    InstallmentStatus = "PAID"
	InstallmentStatusOverdue InstallmentStatus = "OVERDUE"
)

// PaymentInstallment представляет один взнос графика платежей.
// Последовательность взносов непрерывна 1..N и перенумеровывается при
// добавлении и удалении. Оплаченный взнос изменять и удалять нельзя.
type PaymentInstallment struct {
	ID          string            `gorm:"primaryKey;size:50"`
	PlanID      uint              `gorm:"column:plan_id;not null;index"`
	DealID      string            `gorm:"column:deal_id;not null;size:50;index"`
	Sequence    int               `gorm:"column:sequence;not null"`
	Kind        InstallmentKind   `gorm:"type:varchar(15);not null;default:'INSTALLMENT'"`
	Description string            `gorm:"column:description;size:200"`
	Amount      float64           `gorm:"column:amount;type:decimal(20,2);not null"`
	DueDate     time.Time         `gorm:"column:due_date;not null"`
	Status      InstallmentStatus `gorm:"type:varchar(10);not null;default:'PENDING'"`
	PaidAmount  float64           `gorm:"column:paid_amount;type:decimal(20,2);not null;default:0"`
	PaidDate    *time.Time        `gorm:"column:paid_date"`

	// Снимок исходных значений делается один раз, при первом изменении
	WasModified     bool       `gorm:"column:was_modified;not null;default:false"`
	OriginalAmount  *float64   `gorm:"column:original_amount;type:decimal(20,2)"`
	OriginalDueDate *time.Time `gorm:"column:original_due_date"`

	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели PaymentInstallment
func (PaymentInstallment) TableName() string {
	return "payment_installments"
}

// ModificationType представляет тип изменения графика платежей
type ModificationType string

const (
	ModificationInstallmentAdded    ModificationType = "INSTALLMENT_ADDED"
	ModificationInstallmentModified ModificationType = "INSTALLMENT_MODIFIED"
	ModificationInstallmentRemoved  ModificationType = "INSTALLMENT_REMOVED"
)

// PaymentPlanModification представляет запись аудита изменения графика.
// Записи только добавляются, никогда не редактируются и не удаляются.
type PaymentPlanModification struct {
	ID            string           `gorm:"primaryKey;size:50"`
	DealID        string           `gorm:"column:deal_id;not null;size:50;index"`
	InstallmentID string           `gorm:"column:installment_id;size:50"`
	Type          ModificationType `gorm:"type:varchar(25);not null"`
	Actor         string           `gorm:"column:actor;not null;size:100"`
	Reason        string           `gorm:"column:reason;type:text"`
	Changes       string           `gorm:"column:changes;type:text"` // JSON-список пар поле/старое/новое
	CreatedAt     time.Time        `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели PaymentPlanModification
func (PaymentPlanModification) TableName() string {
	return "payment_plan_modifications"
}

// FieldChange представляет одно изменение поля для записи аудита
type FieldChange struct {
	Field string      `json:"field"`
	Old   interface{} `json:"old"`
	New   interface{} `json:"new"`
}
