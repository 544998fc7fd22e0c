package models

import (
	"time"
)

// DealStage представляет этап сделки. Этапы проходятся строго по порядку,
// переход назад не определен.
type DealStage string

const (
	DealStageOfferAccepted        DealStage = "OFFER_ACCEPTED"
	DealStageAgreementSigning     DealStage = "AGREEMENT_SIGNING"
	DealStageDocumentation        DealStage = "DOCUMENTATION"
	DealStagePaymentProcessing    DealStage = "PAYMENT_PROCESSING"
	DealStageHandoverPrep         DealStage = "HANDOVER_PREP"
	DealStageTransferRegistration DealStage = "TRANSFER_REGISTRATION"
	DealStageFinalHandover        DealStage = "FINAL_HANDOVER"
)

// StageOrder задает порядок прохождения этапов
var StageOrder = []DealStage{
	DealStageOfferAccepted,
	DealStageAgreementSigning,
	DealStageDocumentation,
	DealStagePaymentProcessing,
	DealStageHandoverPrep,
	DealStageTransferRegistration,
	DealStageFinalHandover,
}

// NextStage возвращает следующий этап или пустое значение, если этап последний
func NextStage(stage DealStage) DealStage {
	for i, s := range StageOrder {
		if s == stage && i+1 < len(StageOrder) {
			return StageOrder[i+1]
		}
	}
	return ""
}

// DealStatus представляет статус сделки
type DealStatus string

const (
	DealStatusActive    DealStatus = "ACTIVE"
	DealStatusOnHold    DealStatus = "ON_HOLD"
	DealStatusCancelled DealStatus = "CANCELLED"
	DealStatusCompleted DealStatus = "COMPLETED"
)

// PaymentState представляет состояние оплаты по сделке
type PaymentState string

const (
	PaymentStateNoPlan       PaymentState = "NO_PLAN"
	PaymentStatePlanActive   PaymentState = "PLAN_ACTIVE"
	PaymentStatePlanModified PaymentState = "PLAN_MODIFIED"
	PaymentStateFullyPaid    PaymentState = "FULLY_PAID"
)

// Deal представляет сделку по объекту недвижимости от принятия предложения
// до завершения или отмены
type Deal struct {
	ID         string `gorm:"primaryKey;size:50"`
	DealNumber string `gorm:"column:deal_number;unique;not null;size:20"` // DEAL-<год>-<номер>

	// Участники
	PropertyID string `gorm:"column:property_id;not null;size:50;index"`
	SellerID   string `gorm:"column:seller_id;not null;size:50"`
	BuyerID    string `gorm:"column:buyer_id;not null;size:50"`

	// Агенты и комиссия
	PrimaryAgentID      uint    `gorm:"column:primary_agent_id;not null;index"`
	SecondaryAgentID    *uint   `gorm:"column:secondary_agent_id"`
	CommissionRate      float64 `gorm:"column:commission_rate;not null"`
	TotalCommission     float64 `gorm:"column:total_commission;type:decimal(20,2);not null"`
	PrimarySplitPct     float64 `gorm:"column:primary_split_pct;not null"`
	SecondarySplitPct   float64 `gorm:"column:secondary_split_pct;not null"`
	PrimaryCommission   float64 `gorm:"column:primary_commission;type:decimal(20,2);not null"`
	SecondaryCommission float64 `gorm:"column:secondary_commission;type:decimal(20,2);not null"`

	// Связанные циклы. У сделки есть хотя бы один из двух
	ListingCycleID     *string `gorm:"column:listing_cycle_id;size:50"`
	AcquisitionCycleID *string `gorm:"column:acquisition_cycle_id;size:50"`

	// Финансовая часть
	AgreedPrice      float64      `gorm:"column:agreed_price;type:decimal(20,2);not null"`
	PaymentState     PaymentState `gorm:"type:varchar(20);not null;default:'NO_PLAN'"`
	TotalPaid        float64      `gorm:"column:total_paid;type:decimal(20,2);not null;default:0"`
	BalanceRemaining float64      `gorm:"column:balance_remaining;type:decimal(20,2);not null"`
	TransferCosts    float64      `gorm:"column:transfer_costs;type:decimal(20,2);not null;default:0"`

	// Жизненный цикл
	Stage  DealStage  `gorm:"type:varchar(30);not null;default:'OFFER_ACCEPTED'"`
	Status DealStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`

	// Метаданные совместной работы
	Notes         string `gorm:"column:notes;type:text"`
	LastUpdatedBy string `gorm:"column:last_updated_by;size:100"`

	// Метаданные синхронизации
	LastSyncedAt        *time.Time `gorm:"column:last_synced_at"`
	ListingSyncedAt     *time.Time `gorm:"column:listing_synced_at"`
	AcquisitionSyncedAt *time.Time `gorm:"column:acquisition_synced_at"`
	IsInSync            bool       `gorm:"column:is_in_sync;not null;default:false"`

	Version   int64     `gorm:"column:version;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`

	// Связи
	StageEntries  []DealStageEntry          `gorm:"foreignKey:DealID"`
	Tasks         []DealTask                `gorm:"foreignKey:DealID"`
	Documents     []DealDocument            `gorm:"foreignKey:DealID"`
	Plan          *PaymentPlan              `gorm:"foreignKey:DealID"`
	Payments      []DealPayment             `gorm:"foreignKey:DealID"`
	Modifications []PaymentPlanModification `gorm:"foreignKey:DealID"`
}

// TableName возвращает имя таблицы для модели Deal
func (Deal) TableName() string {
	return "deals"
}

// IsTerminal возвращает true, если сделка находится в конечном статусе
func (d *Deal) IsTerminal() bool {
	return d.Status == DealStatusCompleted || d.Status == DealStatusCancelled
}

// StageEntryStatus представляет статус записи этапа в таймлайне
type StageEntryStatus string

const (
	StageEntryPending    StageEntryStatus = "PENDING"
	StageEntryInProgress StageEntryStatus = "IN_PROGRESS"
	StageEntryCompleted  StageEntryStatus = "COMPLETED"
)

// DealStageEntry представляет запись таймлайна по одному этапу сделки
type DealStageEntry struct {
	ID            uint             `gorm:"primaryKey;autoIncrement"`
	DealID        string           `gorm:"column:deal_id;not null;size:50;index"`
	Stage         DealStage        `gorm:"type:varchar(30);not null"`
	Status        StageEntryStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	StartedAt     *time.Time       `gorm:"column:started_at"`
	CompletedAt   *time.Time       `gorm:"column:completed_at"`
	CompletionPct float64          `gorm:"column:completion_pct;not null;default:0"`
	TasksTotal    int              `gorm:"column:tasks_total;not null;default:0"`
	TasksDone     int              `gorm:"column:tasks_done;not null;default:0"`
	CreatedAt     time.Time        `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели DealStageEntry
func (DealStageEntry) TableName() string {
	return "deal_stage_entries"
}
