package models

import (
	"time"
)

// TaskPriority представляет приоритет задачи
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
	TaskPriorityUrgent TaskPriority = "URGENT"
)

// TaskStatus представляет статус задачи
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "OPEN"
	TaskStatusDone TaskStatus = "DONE"
)

// TaskSource представляет источник создания задачи
type TaskSource string

const (
	TaskSourceTemplate   TaskSource = "TEMPLATE"   // Шаблон этапа
	TaskSourceAutomation TaskSource = "AUTOMATION" // Правило автоматизации
	TaskSourceManual     TaskSource = "MANUAL"
)

// DealTask представляет задачу по сделке
type DealTask struct {
	ID        uint         `gorm:"primaryKey;autoIncrement"`
	DealID    string       `gorm:"column:deal_id;not null;size:50;index"`
	Stage     DealStage    `gorm:"type:varchar(30);not null"`
	Title     string       `gorm:"column:title;not null;size:200"`
	Priority  TaskPriority `gorm:"type:varchar(10);not null;default:'MEDIUM'"`
	Status    TaskStatus   `gorm:"type:varchar(10);not null;default:'OPEN'"`
	Source    TaskSource   `gorm:"type:varchar(15);not null;default:'TEMPLATE'"`
	DueDate   time.Time    `gorm:"column:due_date;not null"`
	CreatedBy string       `gorm:"column:created_by;size:100"`
	CreatedAt time.Time    `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели DealTask
func (DealTask) TableName() string {
	return "deal_tasks"
}

// DocumentStatus представляет статус документа по сделке
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "PENDING"
	DocumentStatusReceived DocumentStatus = "RECEIVED"
)

// DealDocument представляет требуемый документ по этапу сделки
type DealDocument struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	DealID    string         `gorm:"column:deal_id;not null;size:50;index"`
	Stage     DealStage      `gorm:"type:varchar(30);not null"`
	Title     string         `gorm:"column:title;not null;size:200"`
	Required  bool           `gorm:"column:required;not null;default:true"`
	Status    DocumentStatus `gorm:"type:varchar(10);not null;default:'PENDING'"`
	CreatedAt time.Time      `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

// TableName возвращает имя таблицы для модели DealDocument
func (DealDocument) TableName() string {
	return "deal_documents"
}
