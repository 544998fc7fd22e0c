package services

import (
	"dealcrm/models"
	"errors"
	"testing"

	"gorm.io/gorm"
)

// failingTransferrer имитирует сбой внешнего переноса права собственности
type failingTransferrer struct{}

func (f *failingTransferrer) Transfer(tx *gorm.DB, dto TransferOwnershipDTO) (*models.OwnershipRecord, error) {
	return nil, errors.New("реестр недоступен")
}

func TestCompleteDeal(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	transaction, err := env.completion.Complete(CompleteDealDTO{
		DealID:  deal.ID,
		Memo:    "передача по акту",
		ActorID: env.agent.ID,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if transaction.Amount != 10000000 {
		t.Errorf("transaction amount: got %v", transaction.Amount)
	}
	if transaction.TotalCommission != 200000 {
		t.Errorf("transaction commission: got %v", transaction.TotalCommission)
	}
	if transaction.BuyerType != models.BuyerTypeClient {
		t.Errorf("buyer type: got %v", transaction.BuyerType)
	}

	current := env.reloadDeal(t, deal.ID)
	if current.Status != models.DealStatusCompleted {
		t.Errorf("deal status: got %v want %v", current.Status, models.DealStatusCompleted)
	}

	// Право собственности перенесено на покупателя
	var record models.OwnershipRecord
	if err := env.db.Where("transaction_id = ?", transaction.ID).First(&record).Error; err != nil {
		t.Fatalf("ownership record: %v", err)
	}
	if record.NewOwnerID != env.buyer.ID {
		t.Errorf("new owner: got %v want %v", record.NewOwnerID, env.buyer.ID)
	}

	var property models.Property
	env.db.Where("id = ?", env.property.ID).First(&property)
	if property.OwnerID != env.buyer.ID {
		t.Errorf("property owner: got %v want %v", property.OwnerID, env.buyer.ID)
	}
	if property.Status != models.PropertyStatusSold {
		t.Errorf("property status: got %v want %v", property.Status, models.PropertyStatusSold)
	}

	// Циклы переведены в конечные статусы
	var listing models.ListingCycle
	env.db.Where("id = ?", env.listing.ID).First(&listing)
	if listing.Status != models.ListingStatusSold {
		t.Errorf("listing status: got %v want %v", listing.Status, models.ListingStatusSold)
	}

	var acquisition models.AcquisitionCycle
	env.db.Where("id = ?", env.acquisition.ID).First(&acquisition)
	if acquisition.Status != models.AcquisitionStatusAcquired {
		t.Errorf("acquisition status: got %v want %v", acquisition.Status, models.AcquisitionStatusAcquired)
	}

	// Все записи таймлайна закрыты
	var entries []models.DealStageEntry
	env.db.Where("deal_id = ?", deal.ID).Find(&entries)
	for _, entry := range entries {
		if entry.Status != models.StageEntryCompleted || entry.CompletionPct != 100 {
			t.Errorf("entry %v: status %v pct %v", entry.Stage, entry.Status, entry.CompletionPct)
		}
	}

	if env.notifier.count("dealCompleted") == 0 {
		t.Error("expected dealCompleted notification")
	}
}

func TestCompleteDealAbortsOnOwnershipFailure(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	// Подменяем перенос права собственности на всегда падающий
	completion := NewCompletionService(env.db, env.sync, &failingTransferrer{}, env.notifier, nil)

	_, err := completion.Complete(CompleteDealDTO{
		DealID:  deal.ID,
		ActorID: env.agent.ID,
	})
	if !errors.Is(err, ErrOwnershipTransfer) {
		t.Fatalf("got %v want %v", err, ErrOwnershipTransfer)
	}

	// Статус сделки не изменился
	current := env.reloadDeal(t, deal.ID)
	if current.Status != models.DealStatusActive {
		t.Errorf("deal status: got %v want %v", current.Status, models.DealStatusActive)
	}

	// Итоговая запись откатилась вместе с транзакцией
	var count int64
	env.db.Model(&models.Transaction{}).Where("deal_id = ?", deal.ID).Count(&count)
	if count != 0 {
		t.Errorf("transactions: got %d want 0", count)
	}

	var records int64
	env.db.Model(&models.OwnershipRecord{}).Where("property_id = ?", env.property.ID).Count(&records)
	if records != 0 {
		t.Errorf("ownership records: got %d want 0", records)
	}
}

func TestCompleteDealOnlyPrimaryAgent(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	_, err := env.completion.Complete(CompleteDealDTO{
		DealID:  deal.ID,
		ActorID: env.buyerAgent.ID,
	})
	if !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("got %v want %v", err, ErrNotPrimaryAgent)
	}
}

func TestCompleteDealRejectsTerminal(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	if _, err := env.completion.Cancel(deal.ID, "отмена", env.agent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := env.completion.Complete(CompleteDealDTO{
		DealID:  deal.ID,
		ActorID: env.agent.ID,
	})
	if !errors.Is(err, ErrDealTerminal) {
		t.Errorf("got %v want %v", err, ErrDealTerminal)
	}
}
