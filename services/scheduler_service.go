package services

import (
	"dealcrm/models"
	"dealcrm/utils"
	"errors"
	"time"

	"gorm.io/gorm"
)

// SchedulerService периодически размечает просроченные взносы и повторяет
// синхронизацию сделок, у которых предыдущий прогон завершился сбоем
type SchedulerService struct {
	db          *gorm.DB
	planService *PaymentPlanService
	sync        *SyncService
}

// NewSchedulerService создает новый экземпляр SchedulerService
func NewSchedulerService(db *gorm.DB, planService *PaymentPlanService, sync *SyncService) *SchedulerService {
	return &SchedulerService{
		db:          db,
		planService: planService,
		sync:        sync,
	}
}

// Start запускает фоновые задачи планировщика
func (s *SchedulerService) Start() {
	// Разметка просрочки каждый час
	overdueTicker := time.NewTicker(1 * time.Hour)
	go func() {
		for range overdueTicker.C {
			count, err := s.planService.MarkOverdue(time.Now())
			if err != nil {
				utils.LogError("Ошибка при разметке просроченных взносов: %v", err)
				continue
			}
			if count > 0 {
				utils.LogInfo("Планировщик пометил просроченными %d взносов", count)
			}
		}
	}()

	// Повтор синхронизации рассинхронизированных сделок каждые 8 часов
	syncTicker := time.NewTicker(8 * time.Hour)
	go func() {
		for range syncTicker.C {
			if err := s.resyncStaleDeals(); err != nil {
				utils.LogError("Ошибка при повторной синхронизации сделок: %v", err)
			}
		}
	}()
}

// resyncStaleDeals повторяет синхронизацию сделок с незавершенным
// распространением состояния
func (s *SchedulerService) resyncStaleDeals() error {
	var deals []models.Deal
	if err := s.db.
		Where("is_in_sync = ? AND status IN ?", false,
			[]models.DealStatus{models.DealStatusActive, models.DealStatusOnHold}).
		Find(&deals).Error; err != nil {
		return errors.New("ошибка при поиске рассинхронизированных сделок")
	}

	for i := range deals {
		s.sync.SyncDeal(&deals[i])
	}

	if len(deals) > 0 {
		utils.LogInfo("Повторная синхронизация выполнена для %d сделок", len(deals))
	}
	return nil
}
