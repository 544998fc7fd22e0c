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

// taskTemplate описывает шаблонную задачу этапа
type taskTemplate struct {
	Title    string
	Priority models.TaskPriority
	DueDays  int // Смещение срока от момента входа в этап
}

// docTemplate описывает требуемый документ этапа
type docTemplate struct {
	Title    string
	Required bool
}

// Шаблоны задач по этапам. Набор фиксирован, сроки считаются от момента
// входа в этап.
var stageTaskTemplates = map[models.DealStage][]taskTemplate{
	models.DealStageOfferAccepted: {
		{Title: "Подготовить проект договора купли-продажи", Priority: models.TaskPriorityHigh, DueDays: 3},
		{Title: "Согласовать дату подписания с обеими сторонами", Priority: models.TaskPriorityMedium, DueDays: 5},
	},
	models.DealStageAgreementSigning: {
		{Title: "Организовать подписание договора", Priority: models.TaskPriorityUrgent, DueDays: 2},
		{Title: "Получить подписанные экземпляры от сторон", Priority: models.TaskPriorityHigh, DueDays: 4},
	},
	models.DealStageDocumentation: {
		{Title: "Собрать правоустанавливающие документы", Priority: models.TaskPriorityHigh, DueDays: 7},
		{Title: "Проверить обременения по объекту", Priority: models.TaskPriorityHigh, DueDays: 7},
		{Title: "Заказать оценку объекта", Priority: models.TaskPriorityMedium, DueDays: 10},
	},
	models.DealStagePaymentProcessing: {
		{Title: "Проконтролировать поступление первого взноса", Priority: models.TaskPriorityUrgent, DueDays: 3},
		{Title: "Сверить график платежей с покупателем", Priority: models.TaskPriorityMedium, DueDays: 5},
	},
	models.DealStageHandoverPrep: {
		{Title: "Согласовать дату передачи объекта", Priority: models.TaskPriorityHigh, DueDays: 5},
		{Title: "Подготовить акт приема-передачи", Priority: models.TaskPriorityMedium, DueDays: 7},
	},
	models.DealStageTransferRegistration: {
		{Title: "Подать документы на регистрацию перехода права", Priority: models.TaskPriorityUrgent, DueDays: 3},
		{Title: "Отследить статус регистрации", Priority: models.TaskPriorityMedium, DueDays: 10},
	},
	models.DealStageFinalHandover: {
		{Title: "Провести финальный осмотр объекта", Priority: models.TaskPriorityHigh, DueDays: 2},
		{Title: "Передать ключи и подписать акт", Priority: models.TaskPriorityUrgent, DueDays: 3},
	},
}

// Шаблоны документов по этапам
var stageDocumentTemplates = map[models.DealStage][]docTemplate{
	models.DealStageOfferAccepted: {
		{Title: "Принятое предложение с подписями", Required: true},
	},
	models.DealStageAgreementSigning: {
		{Title: "Договор купли-продажи", Required: true},
		{Title: "Паспорта сторон", Required: true},
	},
	models.DealStageDocumentation: {
		{Title: "Выписка из реестра прав", Required: true},
		{Title: "Справка об отсутствии задолженности", Required: true},
		{Title: "Отчет об оценке", Required: false},
	},
	models.DealStagePaymentProcessing: {
		{Title: "Подтверждение первого взноса", Required: true},
	},
	models.DealStageHandoverPrep: {
		{Title: "Акт приема-передачи (проект)", Required: true},
	},
	models.DealStageTransferRegistration: {
		{Title: "Заявление на регистрацию", Required: true},
		{Title: "Квитанция об оплате пошлины", Required: true},
	},
	models.DealStageFinalHandover: {
		{Title: "Подписанный акт приема-передачи", Required: true},
	},
}

// CreateDealDTO представляет данные для создания сделки по принятому предложению
type CreateDealDTO struct {
	OfferID       string  `json:"offer_id" validate:"required"`
	TransferCosts float64 `json:"transfer_costs" validate:"gte=0"`
	ActorID       uint    `json:"-" validate:"required"`
}

// DealService управляет жизненным циклом сделки: создание по принятому
// предложению и продвижение по этапам
type DealService struct {
	db         *gorm.DB
	validator  *validator.Validate
	commission *CommissionService
	sync       *SyncService
	notifier   Notifier
	automation AutomationRunner
}

// NewDealService создает новый экземпляр DealService
func NewDealService(db *gorm.DB, sync *SyncService, notifier Notifier, automation AutomationRunner) *DealService {
	return &DealService{
		db:         db,
		validator:  validator.New(),
		commission: NewCommissionService(),
		sync:       sync,
		notifier:   notifier,
		automation: automation,
	}
}

// nextDealNumber генерирует следующий номер сделки в формате DEAL-<год>-<номер>
func (s *DealService) nextDealNumber(tx *gorm.DB) (string, error) {
	year := time.Now().Year()
	prefix := fmt.Sprintf("DEAL-%d-", year)

	var count int64
	if err := tx.Model(&models.Deal{}).Where("deal_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

// appendNote добавляет заметку аудита в метаданные сделки
func appendNote(deal *models.Deal, actor, text string) {
	line := fmt.Sprintf("[%s] %s: %s\n", time.Now().Format("02.01.2006 15:04"), actor, text)
	deal.Notes += line
	deal.LastUpdatedBy = actor
}

// requirePrimaryAgent проверяет, что операцию выполняет основной агент
func requirePrimaryAgent(deal *models.Deal, actorID uint) error {
	if deal.PrimaryAgentID != actorID {
		return ErrNotPrimaryAgent
	}
	return nil
}

// instantiateStageTemplates создает задачи и документы этапа по шаблонам
func instantiateStageTemplates(tx *gorm.DB, deal *models.Deal, stage models.DealStage, actor string) (int, error) {
	now := time.Now()

	tasks := stageTaskTemplates[stage]
	for _, t := range tasks {
		task := models.DealTask{
			DealID:    deal.ID,
			Stage:     stage,
			Title:     t.Title,
			Priority:  t.Priority,
			Status:    models.TaskStatusOpen,
			Source:    models.TaskSourceTemplate,
			DueDate:   now.AddDate(0, 0, t.DueDays),
			CreatedBy: actor,
		}
		if err := tx.Create(&task).Error; err != nil {
			return 0, errors.New("ошибка при создании задачи этапа")
		}
	}

	for _, d := range stageDocumentTemplates[stage] {
		doc := models.DealDocument{
			DealID:   deal.ID,
			Stage:    stage,
			Title:    d.Title,
			Required: d.Required,
			Status:   models.DocumentStatusPending,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return 0, errors.New("ошибка при создании документа этапа")
		}
	}

	return len(tasks), nil
}

// CreateFromOffer создает сделку по принятому предложению
func (s *DealService) CreateFromOffer(dto CreateDealDTO) (*models.Deal, error) {
	if err := s.validator.Struct(dto); err != nil {
		return nil, formatValidationErrors(err)
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	// Получаем предложение
	var offer models.Offer
	if err := tx.Where("id = ?", dto.OfferID).First(&offer).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, errors.New("ошибка при поиске предложения")
	}

	if offer.Status != models.OfferStatusAccepted {
		tx.Rollback()
		return nil, ErrOfferNotAccepted
	}

	// У сделки должен быть хотя бы один связанный цикл
	if offer.ListingCycleID == nil && offer.AcquisitionCycleID == nil {
		tx.Rollback()
		return nil, ErrDealHasNoCycle
	}

	// Определяем агентов: основной — со стороны продавца, второй — со
	// стороны покупателя, если он отличается от основного
	primaryAgentID := dto.ActorID
	if offer.ListingCycleID != nil {
		var listing models.ListingCycle
		if err := tx.Where("id = ?", *offer.ListingCycleID).First(&listing).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("листинговый цикл не найден")
		}
		primaryAgentID = listing.AgentID
	}

	var secondaryAgentID *uint
	if offer.AcquisitionCycleID != nil {
		var acquisition models.AcquisitionCycle
		if err := tx.Where("id = ?", *offer.AcquisitionCycleID).First(&acquisition).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("цикл приобретения не найден")
		}
		if acquisition.AgentID != primaryAgentID {
			agentID := acquisition.AgentID
			secondaryAgentID = &agentID
		}
	}

	// Рассчитываем комиссию. Доли 60/40 фиксируются при создании сделки
	primaryPct, secondaryPct := s.commission.DefaultSplit(secondaryAgentID != nil)
	breakdown, err := s.commission.Calculate(offer.Amount, offer.CommissionRate, primaryPct, secondaryPct)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	dealNumber, err := s.nextDealNumber(tx)
	if err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при генерации номера сделки")
	}

	now := time.Now()
	deal := &models.Deal{
		ID:                  models.NewID(models.PrefixDeal),
		DealNumber:          dealNumber,
		PropertyID:          offer.PropertyID,
		SellerID:            offer.SellerID,
		BuyerID:             offer.BuyerID,
		PrimaryAgentID:      primaryAgentID,
		SecondaryAgentID:    secondaryAgentID,
		CommissionRate:      offer.CommissionRate,
		TotalCommission:     breakdown.TotalCommission,
		PrimarySplitPct:     breakdown.PrimaryPct,
		SecondarySplitPct:   breakdown.SecondaryPct,
		PrimaryCommission:   breakdown.PrimaryCommission,
		SecondaryCommission: breakdown.SecondaryCommission,
		ListingCycleID:      offer.ListingCycleID,
		AcquisitionCycleID:  offer.AcquisitionCycleID,
		AgreedPrice:         offer.Amount,
		PaymentState:        models.PaymentStateNoPlan,
		TotalPaid:           0,
		BalanceRemaining:    offer.Amount,
		TransferCosts:       dto.TransferCosts,
		Stage:               models.DealStageOfferAccepted,
		Status:              models.DealStatusActive,
	}

	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	appendNote(deal, actor, "Сделка создана по принятому предложению "+offer.ID)

	if err := tx.Create(deal).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании сделки")
	}

	// Открываем запись таймлайна первого этапа
	entry := models.DealStageEntry{
		DealID:    deal.ID,
		Stage:     models.DealStageOfferAccepted,
		Status:    models.StageEntryInProgress,
		StartedAt: &now,
	}

	tasksTotal, err := instantiateStageTemplates(tx, deal, models.DealStageOfferAccepted, actor)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	entry.TasksTotal = tasksTotal

	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании записи этапа")
	}

	// Помечаем предложение использованным
	offer.Status = models.OfferStatusConsumed
	if err := tx.Save(&offer).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении предложения")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.GetMetrics().RecordDealOperation("create")

	// Побочные эффекты выполняются после фиксации основной мутации и не
	// влияют на ее результат
	s.sync.SyncDeal(deal)
	utils.GetEventBus().Publish(utils.EventDealCreated, map[string]interface{}{
		"deal_id":     deal.ID,
		"deal_number": deal.DealNumber,
	})
	s.notifyAgents(deal, "dealCreated", map[string]interface{}{
		"deal_number": deal.DealNumber,
	})
	s.runAutomation("deal-created", deal, actor)

	return deal, nil
}

// ProgressStage переводит сделку на следующий этап. Переход выполняется
// строго на один этап вперед, переход назад не определен.
func (s *DealService) ProgressStage(dealID string, actorID uint) (*models.Deal, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	var deal models.Deal
	if err := tx.Where("id = ?", dealID).First(&deal).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, errors.New("ошибка при поиске сделки")
	}

	if deal.IsTerminal() {
		tx.Rollback()
		return nil, ErrDealTerminal
	}

	if err := requirePrimaryAgent(&deal, actorID); err != nil {
		tx.Rollback()
		return nil, err
	}

	next := models.NextStage(deal.Stage)
	if next == "" {
		tx.Rollback()
		return nil, ErrNoNextStage
	}

	now := time.Now()
	actor := fmt.Sprintf("agent:%d", actorID)

	// Закрываем запись текущего этапа на 100%
	if err := tx.Model(&models.DealStageEntry{}).
		Where("deal_id = ? AND stage = ?", deal.ID, deal.Stage).
		Updates(map[string]interface{}{
			"status":         models.StageEntryCompleted,
			"completed_at":   now,
			"completion_pct": 100.0,
		}).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при закрытии текущего этапа")
	}

	deal.Stage = next
	appendNote(&deal, actor, "Сделка переведена на этап "+string(next))

	// Открываем запись нового этапа и создаем задачи и документы по шаблонам
	entry := models.DealStageEntry{
		DealID:    deal.ID,
		Stage:     next,
		Status:    models.StageEntryInProgress,
		StartedAt: &now,
	}

	tasksTotal, err := instantiateStageTemplates(tx, &deal, next, actor)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	entry.TasksTotal = tasksTotal

	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании записи этапа")
	}

	if err := database.SaveDealCAS(tx, &deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	s.sync.SyncDeal(&deal)
	s.notifyAgents(&deal, "stageAdvanced", map[string]interface{}{
		"deal_number": deal.DealNumber,
		"stage":       string(next),
	})
	s.runAutomation("stage-advanced", &deal, actor)

	return &deal, nil
}

// Hold приостанавливает сделку
func (s *DealService) Hold(dealID string, actorID uint, reason string) (*models.Deal, error) {
	return s.setStatus(dealID, actorID, models.DealStatusOnHold, "Сделка приостановлена: "+reason)
}

// Resume возобновляет приостановленную сделку
func (s *DealService) Resume(dealID string, actorID uint) (*models.Deal, error) {
	return s.setStatus(dealID, actorID, models.DealStatusActive, "Сделка возобновлена")
}

// setStatus переключает статус сделки между активным и приостановленным
func (s *DealService) setStatus(dealID string, actorID uint, status models.DealStatus, note string) (*models.Deal, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, errors.New("ошибка при начале транзакции")
	}

	var deal models.Deal
	if err := tx.Where("id = ?", dealID).First(&deal).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, errors.New("ошибка при поиске сделки")
	}

	if deal.IsTerminal() {
		tx.Rollback()
		return nil, ErrDealTerminal
	}

	if err := requirePrimaryAgent(&deal, actorID); err != nil {
		tx.Rollback()
		return nil, err
	}

	deal.Status = status
	appendNote(&deal, fmt.Sprintf("agent:%d", actorID), note)

	if err := database.SaveDealCAS(tx, &deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	s.sync.SyncDeal(&deal)
	return &deal, nil
}

// notifyAgents отправляет уведомление обоим агентам сделки
func (s *DealService) notifyAgents(deal *models.Deal, event string, payload map[string]interface{}) {
	notifyDealAgents(s.db, s.notifier, deal, event, payload)
}

// runAutomation запускает правила автоматизации в режиме "максимум усилий"
func (s *DealService) runAutomation(trigger string, deal *models.Deal, actor string) {
	runDealAutomation(s.automation, trigger, deal, actor)
}

// notifyDealAgents отправляет уведомление обоим агентам сделки. Ошибки
// логируются и не возвращаются.
func notifyDealAgents(db *gorm.DB, notifier Notifier, deal *models.Deal, event string, payload map[string]interface{}) {
	if notifier == nil {
		return
	}

	agentIDs := []uint{deal.PrimaryAgentID}
	if deal.SecondaryAgentID != nil {
		agentIDs = append(agentIDs, *deal.SecondaryAgentID)
	}

	for _, agentID := range agentIDs {
		var agent models.User
		if err := db.First(&agent, agentID).Error; err != nil {
			utils.LogError("Агент %d не найден для уведомления %s: %v", agentID, event, err)
			continue
		}

		p := make(map[string]interface{}, len(payload)+1)
		for k, v := range payload {
			p[k] = v
		}
		p["email"] = agent.Email
		notifier.Notify(event, p)
	}
}

// runDealAutomation запускает правила автоматизации в режиме "максимум усилий"
func runDealAutomation(automation AutomationRunner, trigger string, deal *models.Deal, actor string) {
	if automation == nil {
		return
	}

	created, err := automation.Run(trigger, deal, actor)
	if err != nil {
		utils.LogError("Ошибка автоматизации %s по сделке %s: %v", trigger, deal.ID, err)
		return
	}
	if created > 0 {
		utils.LogInfo("Автоматизация %s создала %d задач по сделке %s", trigger, created, deal.ID)
	}
}
