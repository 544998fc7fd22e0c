package services

import (
	"dealcrm/database"
	"dealcrm/models"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB создает изолированную базу данных в памяти для теста
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("ошибка открытия тестовой базы: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("ошибка миграции тестовой базы: %v", err)
	}

	return db
}

// recordingNotifier собирает отправленные уведомления вместо отправки почты
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(event string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

// testEnv содержит сервисы и тестовые данные одной сделки
type testEnv struct {
	db          *gorm.DB
	notifier    *recordingNotifier
	sync        *SyncService
	deals       *DealService
	plans       *PaymentPlanService
	completion  *CompletionService
	overdue     *OverdueService
	agent       *models.User
	buyerAgent  *models.User
	property    *models.Property
	seller      *models.Client
	buyer       *models.Client
	listing     *models.ListingCycle
	acquisition *models.AcquisitionCycle
	offer       *models.Offer
}

// newTestEnv создает сервисы и полный набор данных: объект, продавца,
// покупателя, оба цикла и принятое предложение на 10 000 000
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	notifier := &recordingNotifier{}
	syncService := NewSyncService(db)
	automation := NewAutomationService(db)
	ownership := NewOwnershipService(db)
	receipts := NewReceiptService("test-hmac-key")

	env := &testEnv{
		db:         db,
		notifier:   notifier,
		sync:       syncService,
		deals:      NewDealService(db, syncService, notifier, automation),
		plans:      NewPaymentPlanService(db, syncService, notifier, receipts, automation),
		completion: NewCompletionService(db, syncService, ownership, notifier, automation),
		overdue:    NewOverdueService(db),
	}

	env.agent = &models.User{FirstName: "Анна", LastName: "Смирнова", Email: "anna@example.com", Password: "hash", Role: models.UserRoleAgent}
	env.buyerAgent = &models.User{FirstName: "Петр", LastName: "Иванов", Email: "petr@example.com", Password: "hash", Role: models.UserRoleAgent}
	for _, u := range []*models.User{env.agent, env.buyerAgent} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("ошибка создания пользователя: %v", err)
		}
	}

	env.property = &models.Property{
		ID:      models.NewID(models.PrefixProperty),
		Title:   "Квартира на Ленина 10",
		Address: "Ленина 10",
		Price:   10000000,
		Status:  models.PropertyStatusActivelyMarketed,
	}
	if err := db.Create(env.property).Error; err != nil {
		t.Fatalf("ошибка создания объекта: %v", err)
	}

	env.seller = &models.Client{FirstName: "Иван", LastName: "Продавцов", Email: "seller@example.com", AgentID: env.agent.ID}
	env.buyer = &models.Client{FirstName: "Мария", LastName: "Покупцова", Email: "buyer@example.com", AgentID: env.buyerAgent.ID}
	for _, c := range []*models.Client{env.seller, env.buyer} {
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("ошибка создания клиента: %v", err)
		}
	}

	env.listing = &models.ListingCycle{
		ID:           models.NewID(models.PrefixListing),
		PropertyID:   env.property.ID,
		SellerID:     env.seller.ID,
		AgentID:      env.agent.ID,
		Status:       models.ListingStatusActiveMarketing,
		ListingPrice: 10500000,
	}
	if err := db.Create(env.listing).Error; err != nil {
		t.Fatalf("ошибка создания листингового цикла: %v", err)
	}

	env.acquisition = &models.AcquisitionCycle{
		ID:         models.NewID(models.PrefixAcquisition),
		PropertyID: env.property.ID,
		BuyerID:    env.buyer.ID,
		AgentID:    env.buyerAgent.ID,
		BuyerType:  models.BuyerTypeClient,
		Status:     models.AcquisitionStatusSearching,
		Budget:     11000000,
	}
	if err := db.Create(env.acquisition).Error; err != nil {
		t.Fatalf("ошибка создания цикла приобретения: %v", err)
	}

	env.offer = &models.Offer{
		ID:                 models.NewID(models.PrefixOffer),
		PropertyID:         env.property.ID,
		ListingCycleID:     &env.listing.ID,
		AcquisitionCycleID: &env.acquisition.ID,
		SellerID:           env.seller.ID,
		BuyerID:            env.buyer.ID,
		Amount:             10000000,
		CommissionRate:     2,
		Status:             models.OfferStatusAccepted,
	}
	if err := db.Create(env.offer).Error; err != nil {
		t.Fatalf("ошибка создания предложения: %v", err)
	}

	return env
}

// createDeal создает сделку по предложению окружения
func (env *testEnv) createDeal(t *testing.T) *models.Deal {
	t.Helper()

	deal, err := env.deals.CreateFromOffer(CreateDealDTO{
		OfferID: env.offer.ID,
		ActorID: env.agent.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания сделки: %v", err)
	}
	return deal
}

// reloadDeal перечитывает сделку из базы
func (env *testEnv) reloadDeal(t *testing.T, id string) *models.Deal {
	t.Helper()

	var deal models.Deal
	if err := env.db.Where("id = ?", id).First(&deal).Error; err != nil {
		t.Fatalf("ошибка чтения сделки: %v", err)
	}
	return &deal
}

// installmentsFor возвращает взносы сделки в порядке следования
func (env *testEnv) installmentsFor(t *testing.T, dealID string) []models.PaymentInstallment {
	t.Helper()

	var installments []models.PaymentInstallment
	if err := env.db.Where("deal_id = ?", dealID).Order("sequence asc").Find(&installments).Error; err != nil {
		t.Fatalf("ошибка чтения взносов: %v", err)
	}
	return installments
}
