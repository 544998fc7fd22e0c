package services

import (
	"dealcrm/models"
	"errors"
	"regexp"
	"testing"
)

func TestCreateFromOffer(t *testing.T) {
	env := newTestEnv(t)

	deal := env.createDeal(t)

	if matched, _ := regexp.MatchString(`^DEAL-\d{4}-\d{3}$`, deal.DealNumber); !matched {
		t.Errorf("deal number format: got %q", deal.DealNumber)
	}
	if deal.Stage != models.DealStageOfferAccepted {
		t.Errorf("stage: got %v want %v", deal.Stage, models.DealStageOfferAccepted)
	}
	if deal.Status != models.DealStatusActive {
		t.Errorf("status: got %v want %v", deal.Status, models.DealStatusActive)
	}
	if deal.PaymentState != models.PaymentStateNoPlan {
		t.Errorf("payment state: got %v want %v", deal.PaymentState, models.PaymentStateNoPlan)
	}
	if deal.BalanceRemaining != deal.AgreedPrice {
		t.Errorf("balance: got %v want %v", deal.BalanceRemaining, deal.AgreedPrice)
	}

	// Комиссия фиксируется при создании: 2% от 10 000 000, доли 60/40
	if deal.TotalCommission != 200000 {
		t.Errorf("total commission: got %v", deal.TotalCommission)
	}
	if deal.PrimaryCommission != 120000 || deal.SecondaryCommission != 80000 {
		t.Errorf("commission split: got %v/%v", deal.PrimaryCommission, deal.SecondaryCommission)
	}
	if deal.PrimaryAgentID != env.agent.ID {
		t.Errorf("primary agent: got %v want %v", deal.PrimaryAgentID, env.agent.ID)
	}
	if deal.SecondaryAgentID == nil || *deal.SecondaryAgentID != env.buyerAgent.ID {
		t.Errorf("secondary agent: got %v want %v", deal.SecondaryAgentID, env.buyerAgent.ID)
	}

	// Предложение помечено использованным
	var offer models.Offer
	if err := env.db.Where("id = ?", env.offer.ID).First(&offer).Error; err != nil {
		t.Fatalf("ошибка чтения предложения: %v", err)
	}
	if offer.Status != models.OfferStatusConsumed {
		t.Errorf("offer status: got %v want %v", offer.Status, models.OfferStatusConsumed)
	}

	// Открыта запись таймлайна первого этапа
	var entries []models.DealStageEntry
	env.db.Where("deal_id = ?", deal.ID).Find(&entries)
	if len(entries) != 1 || entries[0].Status != models.StageEntryInProgress {
		t.Errorf("stage entries: got %d", len(entries))
	}

	// Созданы шаблонные задачи этапа и задачи автоматизации
	var tasks []models.DealTask
	env.db.Where("deal_id = ?", deal.ID).Find(&tasks)
	if len(tasks) == 0 {
		t.Error("expected template and automation tasks to be created")
	}

	if env.notifier.count("dealCreated") == 0 {
		t.Error("expected dealCreated notification")
	}
}

func TestCreateFromOfferRequiresAcceptedOffer(t *testing.T) {
	env := newTestEnv(t)

	env.db.Model(&models.Offer{}).Where("id = ?", env.offer.ID).
		Update("status", models.OfferStatusPending)

	_, err := env.deals.CreateFromOffer(CreateDealDTO{OfferID: env.offer.ID, ActorID: env.agent.ID})
	if !errors.Is(err, ErrOfferNotAccepted) {
		t.Errorf("got %v want %v", err, ErrOfferNotAccepted)
	}
}

func TestCreateFromOfferRequiresCycle(t *testing.T) {
	env := newTestEnv(t)

	env.db.Model(&models.Offer{}).Where("id = ?", env.offer.ID).
		Updates(map[string]interface{}{"listing_cycle_id": nil, "acquisition_cycle_id": nil})

	_, err := env.deals.CreateFromOffer(CreateDealDTO{OfferID: env.offer.ID, ActorID: env.agent.ID})
	if !errors.Is(err, ErrDealHasNoCycle) {
		t.Errorf("got %v want %v", err, ErrDealHasNoCycle)
	}
}

func TestProgressStage(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	updated, err := env.deals.ProgressStage(deal.ID, env.agent.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Stage != models.DealStageAgreementSigning {
		t.Errorf("stage: got %v want %v", updated.Stage, models.DealStageAgreementSigning)
	}

	// Запись предыдущего этапа закрыта на 100%
	var prev models.DealStageEntry
	env.db.Where("deal_id = ? AND stage = ?", deal.ID, models.DealStageOfferAccepted).First(&prev)
	if prev.Status != models.StageEntryCompleted || prev.CompletionPct != 100 {
		t.Errorf("previous entry: status %v pct %v", prev.Status, prev.CompletionPct)
	}

	// Открыта запись нового этапа
	var next models.DealStageEntry
	env.db.Where("deal_id = ? AND stage = ?", deal.ID, models.DealStageAgreementSigning).First(&next)
	if next.Status != models.StageEntryInProgress {
		t.Errorf("next entry status: got %v", next.Status)
	}

	// Статус листингового цикла следует за этапом сделки
	var listing models.ListingCycle
	env.db.Where("id = ?", env.listing.ID).First(&listing)
	if listing.Status != models.ListingStatusUnderContract {
		t.Errorf("listing status: got %v want %v", listing.Status, models.ListingStatusUnderContract)
	}
}

func TestProgressStageOnlyPrimaryAgent(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	_, err := env.deals.ProgressStage(deal.ID, env.buyerAgent.ID)
	if !errors.Is(err, ErrNotPrimaryAgent) {
		t.Errorf("got %v want %v", err, ErrNotPrimaryAgent)
	}
}

func TestProgressStageStopsAtLastStage(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	// Проходим все этапы до последнего
	for i := 0; i < len(models.StageOrder)-1; i++ {
		if _, err := env.deals.ProgressStage(deal.ID, env.agent.ID); err != nil {
			t.Fatalf("progress %d: %v", i, err)
		}
	}

	current := env.reloadDeal(t, deal.ID)
	if current.Stage != models.DealStageFinalHandover {
		t.Fatalf("stage: got %v want %v", current.Stage, models.DealStageFinalHandover)
	}

	_, err := env.deals.ProgressStage(deal.ID, env.agent.ID)
	if !errors.Is(err, ErrNoNextStage) {
		t.Errorf("got %v want %v", err, ErrNoNextStage)
	}
}

func TestHoldAndResume(t *testing.T) {
	env := newTestEnv(t)
	deal := env.createDeal(t)

	held, err := env.deals.Hold(deal.ID, env.agent.ID, "ожидание документов")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Status != models.DealStatusOnHold {
		t.Errorf("status after hold: got %v", held.Status)
	}

	resumed, err := env.deals.Resume(deal.ID, env.agent.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != models.DealStatusActive {
		t.Errorf("status after resume: got %v", resumed.Status)
	}
}
