package services

import (
	"dealcrm/database"
	"dealcrm/models"
	"dealcrm/utils"
	"errors"
	"time"

	"gorm.io/gorm"
)

// CycleGateway предоставляет доступ к циклам и объекту недвижимости.
// Интерфейс разрывает зависимость оркестратора завершения от конкретной
// реализации синхронизатора.
type CycleGateway interface {
	ListingCycle(id string) (*models.ListingCycle, error)
	AcquisitionCycle(id string) (*models.AcquisitionCycle, error)
	SyncDeal(deal *models.Deal)
	RecomputePropertyStatus(propertyID string) (models.PropertyStatus, error)
}

// SyncService распространяет состояние сделки в связанные циклы и запись
// объекта недвижимости. Три записи выполняются независимо, без общей
// транзакции: сбой одной не откатывает остальные.
type SyncService struct {
	db *gorm.DB
}

// NewSyncService создает новый экземпляр SyncService
func NewSyncService(db *gorm.DB) *SyncService {
	return &SyncService{db: db}
}

// ListingCycle возвращает листинговый цикл по ID
func (s *SyncService) ListingCycle(id string) (*models.ListingCycle, error) {
	var cycle models.ListingCycle
	if err := s.db.Where("id = ?", id).First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("листинговый цикл не найден")
		}
		return nil, err
	}
	return &cycle, nil
}

// AcquisitionCycle возвращает цикл приобретения по ID
func (s *SyncService) AcquisitionCycle(id string) (*models.AcquisitionCycle, error) {
	var cycle models.AcquisitionCycle
	if err := s.db.Where("id = ?", id).First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("цикл приобретения не найден")
		}
		return nil, err
	}
	return &cycle, nil
}

// listingStatusFor возвращает статус листингового цикла для этапа и статуса сделки
func listingStatusFor(stage models.DealStage, status models.DealStatus) models.ListingCycleStatus {
	switch status {
	case models.DealStatusCancelled:
		return models.ListingStatusCancelled
	case models.DealStatusCompleted:
		return models.ListingStatusSold
	}

	switch stage {
	case models.DealStageOfferAccepted:
		return models.ListingStatusOfferAccepted
	case models.DealStageAgreementSigning, models.DealStageDocumentation, models.DealStagePaymentProcessing:
		return models.ListingStatusUnderContract
	default:
		return models.ListingStatusClosing
	}
}

// acquisitionStatusFor возвращает статус цикла приобретения для этапа и статуса сделки
func acquisitionStatusFor(stage models.DealStage, status models.DealStatus) models.AcquisitionCycleStatus {
	switch status {
	case models.DealStatusCancelled:
		return models.AcquisitionStatusCancelled
	case models.DealStatusCompleted:
		return models.AcquisitionStatusAcquired
	}

	switch stage {
	case models.DealStageOfferAccepted:
		return models.AcquisitionStatusOfferAccepted
	case models.DealStageAgreementSigning, models.DealStageDocumentation, models.DealStagePaymentProcessing:
		return models.AcquisitionStatusUnderContract
	default:
		return models.AcquisitionStatusClosing
	}
}

// propertyStatusFor возвращает статус объекта для этапа и статуса сделки.
// Этот статус участвует в пересчете наряду со статусами других циклов,
// объект не перезаписывается напрямую из одной сделки.
func propertyStatusFor(stage models.DealStage, status models.DealStatus) models.PropertyStatus {
	switch status {
	case models.DealStatusCancelled:
		return models.PropertyStatusAvailable
	case models.DealStatusCompleted:
		return models.PropertyStatusSold
	default:
		return models.PropertyStatusUnderOffer
	}
}

// Ранги статусов объекта: больший ранг побеждает при пересчете
var propertyStatusRank = map[models.PropertyStatus]int{
	models.PropertyStatusAvailable:        0,
	models.PropertyStatusActivelyMarketed: 1,
	models.PropertyStatusLeased:           2,
	models.PropertyStatusUnderOffer:       3,
	models.PropertyStatusUnderContract:    3,
	models.PropertyStatusSold:             4,
}

// SyncDeal распространяет состояние сделки в связанные записи. Все записи
// выполняются в режиме "максимум усилий": ошибка логируется и не
// прерывает вызывающую операцию.
func (s *SyncService) SyncDeal(deal *models.Deal) {
	now := time.Now()
	allOK := true

	if deal.ListingCycleID != nil {
		if s.runNonCritical("sync-listing-cycle", func() error {
			return s.syncListingCycle(*deal.ListingCycleID, deal)
		}) {
			deal.ListingSyncedAt = &now
		} else {
			allOK = false
		}
	}

	if deal.AcquisitionCycleID != nil {
		if s.runNonCritical("sync-acquisition-cycle", func() error {
			return s.syncAcquisitionCycle(*deal.AcquisitionCycleID, deal)
		}) {
			deal.AcquisitionSyncedAt = &now
		} else {
			allOK = false
		}
	}

	if !s.runNonCritical("sync-property", func() error {
		_, err := s.RecomputePropertyStatus(deal.PropertyID)
		return err
	}) {
		allOK = false
	}

	deal.LastSyncedAt = &now
	deal.IsInSync = allOK
	utils.GetMetrics().RecordSync(!allOK)

	// Обновляем только метаданные синхронизации, без проверки версии:
	// основная мутация уже сохранена вызывающим кодом
	if err := s.db.Model(&models.Deal{}).Where("id = ?", deal.ID).Updates(map[string]interface{}{
		"last_synced_at":        deal.LastSyncedAt,
		"listing_synced_at":     deal.ListingSyncedAt,
		"acquisition_synced_at": deal.AcquisitionSyncedAt,
		"is_in_sync":            deal.IsInSync,
	}).Error; err != nil {
		utils.LogError("Ошибка при сохранении метаданных синхронизации сделки %s: %v", deal.ID, err)
	}
}

// syncListingCycle записывает производный статус в листинговый цикл
func (s *SyncService) syncListingCycle(cycleID string, deal *models.Deal) error {
	cycle, err := s.ListingCycle(cycleID)
	if err != nil {
		return err
	}

	newStatus := listingStatusFor(deal.Stage, deal.Status)
	now := time.Now()
	cycle.Status = newStatus
	cycle.DealUpdatedAt = &now

	return database.SaveListingCycleCAS(s.db, cycle)
}

// syncAcquisitionCycle записывает производный статус в цикл приобретения
func (s *SyncService) syncAcquisitionCycle(cycleID string, deal *models.Deal) error {
	cycle, err := s.AcquisitionCycle(cycleID)
	if err != nil {
		return err
	}

	newStatus := acquisitionStatusFor(deal.Stage, deal.Status)
	now := time.Now()
	cycle.Status = newStatus
	cycle.DealUpdatedAt = &now

	return database.SaveAcquisitionCycleCAS(s.db, cycle)
}

// RecomputePropertyStatus пересчитывает статус объекта по всем циклам,
// которые на него ссылаются. Пересчет идемпотентен: повторный вызов без
// изменения состояния дает тот же результат.
func (s *SyncService) RecomputePropertyStatus(propertyID string) (models.PropertyStatus, error) {
	var property models.Property
	if err := s.db.Where("id = ?", propertyID).First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.New("объект недвижимости не найден")
		}
		return "", err
	}

	var listings []models.ListingCycle
	if err := s.db.Where("property_id = ?", propertyID).Find(&listings).Error; err != nil {
		return "", err
	}

	var acquisitions []models.AcquisitionCycle
	if err := s.db.Where("property_id = ?", propertyID).Find(&acquisitions).Error; err != nil {
		return "", err
	}

	derived := models.PropertyStatusAvailable
	for _, c := range listings {
		derived = maxPropertyStatus(derived, propertyStatusForListing(c.Status))
	}
	for _, c := range acquisitions {
		derived = maxPropertyStatus(derived, propertyStatusForAcquisition(c.Status))
	}

	if property.Status == derived {
		return derived, nil
	}

	property.Status = derived
	if err := database.SavePropertyCAS(s.db, &property); err != nil {
		return "", err
	}

	utils.GetEventBus().Publish(utils.EventPropertyStatusChanged, map[string]interface{}{
		"property_id": propertyID,
		"status":      string(derived),
	})

	return derived, nil
}

// propertyStatusForListing выводит вклад листингового цикла в статус объекта
func propertyStatusForListing(status models.ListingCycleStatus) models.PropertyStatus {
	switch status {
	case models.ListingStatusSold:
		return models.PropertyStatusSold
	case models.ListingStatusOfferAccepted:
		return models.PropertyStatusUnderOffer
	case models.ListingStatusUnderContract, models.ListingStatusClosing:
		return models.PropertyStatusUnderContract
	case models.ListingStatusLeased:
		return models.PropertyStatusLeased
	case models.ListingStatusActiveMarketing:
		return models.PropertyStatusActivelyMarketed
	default:
		return models.PropertyStatusAvailable
	}
}

// propertyStatusForAcquisition выводит вклад цикла приобретения в статус объекта
func propertyStatusForAcquisition(status models.AcquisitionCycleStatus) models.PropertyStatus {
	switch status {
	case models.AcquisitionStatusAcquired:
		return models.PropertyStatusSold
	case models.AcquisitionStatusOfferAccepted:
		return models.PropertyStatusUnderOffer
	case models.AcquisitionStatusUnderContract, models.AcquisitionStatusClosing:
		return models.PropertyStatusUnderContract
	default:
		return models.PropertyStatusAvailable
	}
}

// maxPropertyStatus возвращает статус с большим рангом
func maxPropertyStatus(a, b models.PropertyStatus) models.PropertyStatus {
	if propertyStatusRank[b] > propertyStatusRank[a] {
		return b
	}
	return a
}

// runNonCritical выполняет побочный эффект в режиме "максимум усилий".
// Ошибка логируется и подавляется, вызывающая операция продолжается.
// Хелпер не используется для основных мутаций агрегатов: их ошибки
// возвращаются вызывающему коду обычным путем.
func (s *SyncService) runNonCritical(name string, fn func() error) bool {
	if err := fn(); err != nil {
		utils.LogError("Некритичный эффект %s завершился ошибкой: %v", name, err)
		utils.GetMetrics().RecordError(err)
		return false
	}
	return true
}
