package services

import (
	"dealcrm/database"
	"dealcrm/models"
	"dealcrm/utils"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CompleteDealDTO представляет данные для завершения сделки
type CompleteDealDTO struct {
	DealID  string `json:"deal_id" validate:"required"`
	Memo    string `json:"memo"`
	ActorID uint   `json:"-" validate:"required"`
}

// CompletionService оркестрирует завершение и отмену сделки. Завершение
// атомарно: итоговая запись, перенос права собственности и смена статуса
// сделки либо фиксируются вместе, либо не фиксируются вовсе.
type CompletionService struct {
	db         *gorm.DB
	validator  *validator.Validate
	cycles     CycleGateway
	ownership  OwnershipTransferrer
	notifier   Notifier
	automation AutomationRunner
}

// NewCompletionService создает новый экземпляр CompletionService
func NewCompletionService(db *gorm.DB, cycles CycleGateway, ownership OwnershipTransferrer, notifier Notifier, automation AutomationRunner) *CompletionService {
	return &CompletionService{
		db:         db,
		validator:  validator.New(),
		cycles:     cycles,
		ownership:  ownership,
		notifier:   notifier,
		automation: automation,
	}
}

// Complete завершает сделку: создает итоговую запись, переносит право
// собственности и переводит сделку в конечный статус. Сбой переноса права
// собственности откатывает завершение целиком, статус сделки не меняется.
func (s *CompletionService) Complete(dto CompleteDealDTO) (*models.Transaction, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, formatValidationErrors(err)
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	deal, err := loadActiveDeal(tx, dto.DealID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := requirePrimaryAgent(deal, dto.ActorID); err != nil {
		tx.Rollback()
		return nil, err
	}

	// Классификация покупателя и доли инвесторов берутся из цикла приобретения
	buyerType := models.BuyerTypeClient
	investorShares := ""
	if deal.AcquisitionCycleID != nil {
		cycle, err := s.cycles.AcquisitionCycle(*deal.AcquisitionCycleID)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		buyerType = cycle.BuyerType
		investorShares = cycle.InvestorShares
	}

	var buyer models.Client
	if err := tx.Where("id = ?", deal.BuyerID).First(&buyer).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("покупатель не найден")
	}

	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	transaction := &models.Transaction{
		ID:                  models.NewID(models.PrefixTransaction),
		DealID:              deal.ID,
		PropertyID:          deal.PropertyID,
		Amount:              deal.AgreedPrice,
		TransferCosts:       deal.TransferCosts,
		TotalCommission:     deal.TotalCommission,
		PrimaryCommission:   deal.PrimaryCommission,
		SecondaryCommission: deal.SecondaryCommission,
		SellerID:            deal.SellerID,
		BuyerID:             deal.BuyerID,
		BuyerType:           buyerType,
		CompletedBy:         actor,
	}

	if err := tx.Create(transaction).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании итоговой записи")
	}

	record, err := s.ownership.Transfer(tx, TransferOwnershipDTO{
		PropertyID:    deal.PropertyID,
		NewOwnerID:    deal.BuyerID,
		NewOwnerName:  buyer.FullName(),
		OwnerType:     buyerType,
		TransactionID: transaction.ID,
		Shares:        investorShares,
		Price:         deal.AgreedPrice,
		Memo:          dto.Memo,
	})
	if err != nil || record == nil {
		tx.Rollback()
		if err != nil {
			utils.LogError("Перенос права собственности по сделке %s не выполнен: %v", deal.ID, err)
		}
		return nil, ErrOwnershipTransfer
	}

	// Все записи таймлайна закрываются на 100%
	now := time.Now()
	if err := tx.Model(&models.DealStageEntry{}).
		Where("deal_id = ? AND status <> ?", deal.ID, models.StageEntryCompleted).
		Updates(map[string]interface{}{
			"status":         models.StageEntryCompleted,
			"completed_at":   now,
			"completion_pct": 100.0,
		}).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при закрытии записей таймлайна")
	}

	deal.Status = models.DealStatusCompleted
	appendNote(deal, actor, "Сделка завершена, итоговая запись "+transaction.ID)

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordDealOperation("complete")

	// Распространение в циклы и объект идет после фиксации: сделка уже
	// завершена, сбой синхронизации ее не откатывает
	s.cycles.SyncDeal(deal)
	utils.GetEventBus().Publish(utils.EventDealCompleted, map[string]interface{}{
		"deal_id":        deal.ID,
		"transaction_id": transaction.ID,
	})
	notifyDealAgents(s.db, s.notifier, deal, "dealCompleted", map[string]interface{}{
		"deal_number": deal.DealNumber,
		"amount":      transaction.Amount,
	})
	runDealAutomation(s.automation, "deal-completed", deal, actor)

	return transaction, nil
}

// Cancel отменяет сделку. Объект недвижимости освобождается при
// последующем пересчете статуса.
func (s *CompletionService) Cancel(dealID, reason string, actorID uint) (*models.Deal, error) {
	if reason == "" {
		return nil, errors.New("поле Reason обязательно")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	deal, err := loadActiveDeal(tx, dealID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := requirePrimaryAgent(deal, actorID); err != nil {
		tx.Rollback()
		return nil, err
	}

	actor := fmt.Sprintf("agent:%d", actorID)
	deal.Status = models.DealStatusCancelled
	appendNote(deal, actor, "Сделка отменена: "+reason)

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordDealOperation("cancel")

	s.cycles.SyncDeal(deal)
	notifyDealAgents(s.db, s.notifier, deal, "dealCancelled", map[string]interface{}{
		"deal_number": deal.DealNumber,
		"reason":      reason,
	})

	return deal, nil
}
