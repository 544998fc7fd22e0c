package services

import (
	"dealcrm/models"
	"time"

	"gorm.io/gorm"
)

// AutomationRunner представляет возможность запуска правил автоматизации.
// Сбой автоматизации логируется вызывающим кодом и не прерывает мутацию.
type AutomationRunner interface {
	Run(trigger string, deal *models.Deal, actor string) (int, error)
}

// automationRule описывает одно правило: по триггеру создаются задачи
type automationRule struct {
	Title    string
	Priority models.TaskPriority
	DueDays  int
}

// Встроенные правила автоматизации по триггерам жизненного цикла
var automationRules = map[string][]automationRule{
	"deal-created": {
		{Title: "Связаться с покупателем и подтвердить условия", Priority: models.TaskPriorityHigh, DueDays: 1},
		{Title: "Запросить подтверждение источника средств", Priority: models.TaskPriorityMedium, DueDays: 3},
	},
	"plan-created": {
		{Title: "Отправить график платежей покупателю", Priority: models.TaskPriorityHigh, DueDays: 1},
	},
	"payment-overdue": {
		{Title: "Связаться с покупателем по просроченному платежу", Priority: models.TaskPriorityUrgent, DueDays: 1},
	},
	"deal-completed": {
		{Title: "Передать ключи и документы покупателю", Priority: models.TaskPriorityHigh, DueDays: 2},
		{Title: "Запросить отзыв клиента", Priority: models.TaskPriorityLow, DueDays: 7},
	},
}

// AutomationService создает задачи по встроенным правилам автоматизации
type AutomationService struct {
	db *gorm.DB
}

// NewAutomationService создает новый экземпляр AutomationService
func NewAutomationService(db *gorm.DB) *AutomationService {
	return &AutomationService{db: db}
}

// Run выполняет правила для триггера и возвращает число созданных задач
func (s *AutomationService) Run(trigger string, deal *models.Deal, actor string) (int, error) {
	rules, ok := automationRules[trigger]
	if !ok {
		return 0, nil
	}

	now := time.Now()
	created := 0
	for _, rule := range rules {
		task := models.DealTask{
			DealID:    deal.ID,
			Stage:     deal.Stage,
			Title:     rule.Title,
			Priority:  rule.Priority,
			Status:    models.TaskStatusOpen,
			Source:    models.TaskSourceAutomation,
			DueDate:   now.AddDate(0, 0, rule.DueDays),
			CreatedBy: actor,
		}
		if err := s.db.Create(&task).Error; err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}
