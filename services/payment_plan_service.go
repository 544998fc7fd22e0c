package services

import (
	"dealcrm/database"
	"dealcrm/models"
	"dealcrm/utils"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreatePlanDTO представляет данные для создания графика платежей.
// Первый взнос обязателен, нулевая доля не принимается.
type CreatePlanDTO struct {
	DealID               string    `json:"deal_id" validate:"required"`
	DownPaymentPct       float64   `json:"down_payment_pct" validate:"required,gt=0,lt=100"`
	DownPaymentDate      time.Time `json:"down_payment_date" validate:"required"`
	NumInstallments      int       `json:"num_installments" validate:"required,gt=0"`
	Frequency            string    `json:"frequency" validate:"required,oneof=MONTHLY QUARTERLY"`
	FirstInstallmentDate time.Time `json:"first_installment_date" validate:"required"`
	ActorID              uint      `json:"-" validate:"required"`
}

// RecordPaymentDTO представляет данные для записи платежа по взносу.
// Номер квитанции генерируется, если не передан вызывающей стороной.
type RecordPaymentDTO struct {
	DealID          string  `json:"deal_id" validate:"required"`
	InstallmentID   string  `json:"installment_id" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	Method          string  `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CHEQUE CARD"`
	ReferenceNumber string  `json:"reference_number"`
	ReceiptNumber   string  `json:"receipt_number"`
	ActorID         uint    `json:"-" validate:"required"`
}

// AdHocPaymentDTO представляет данные для записи платежа вне графика
type AdHocPaymentDTO struct {
	DealID          string  `json:"deal_id" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	Method          string  `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CHEQUE CARD"`
	ReferenceNumber string  `json:"reference_number"`
	ReceiptNumber   string  `json:"receipt_number"`
	ActorID         uint    `json:"-" validate:"required"`
}

// AddInstallmentDTO представляет данные для добавления взноса в график
type AddInstallmentDTO struct {
	DealID      string    `json:"deal_id" validate:"required"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	Kind        string    `json:"kind" validate:"omitempty,oneof=DOWN_PAYMENT INSTALLMENT TOKEN FINAL_PAYMENT"`
	Description string    `json:"description"`
	Reason      string    `json:"reason" validate:"required"`
	ActorID     uint      `json:"-" validate:"required"`
}

// ModifyInstallmentDTO представляет данные для изменения взноса.
// Пустое изменение (оба поля nil или равны текущим значениям) не
// записывается в аудит и не меняет состояние.
type ModifyInstallmentDTO struct {
	DealID        string     `json:"deal_id" validate:"required"`
	InstallmentID string     `json:"installment_id" validate:"required"`
	NewAmount     *float64   `json:"new_amount" validate:"omitempty,gt=0"`
	NewDueDate    *time.Time `json:"new_due_date"`
	Reason        string     `json:"reason" validate:"required"`
	ActorID       uint       `json:"-" validate:"required"`
}

// PlanSummary представляет сводку по графику платежей
type PlanSummary struct {
	DealID          string     `json:"deal_id"`
	PlanStatus      string     `json:"plan_status"`
	TotalAmount     float64    `json:"total_amount"`
	TotalPaid       float64    `json:"total_paid"`
	Outstanding     float64    `json:"outstanding"`
	InstallmentsNum int        `json:"installments_num"`
	PendingCount    int        `json:"pending_count"`
	PartialCount    int        `json:"partial_count"`
	PaidCount       int        `json:"paid_count"`
	OverdueCount    int        `json:"overdue_count"`
	NextDueDate     *time.Time `json:"next_due_date,omitempty"`
	NextDueAmount   float64    `json:"next_due_amount,omitempty"`
}

// PaymentPlanService управляет графиком платежей сделки: создание графика,
// запись платежей, изменение взносов и разметка просрочки
type PaymentPlanService struct {
	db         *gorm.DB
	validator  *validator.Validate
	sync       *SyncService
	notifier   Notifier
	receipts   ReceiptGenerator
	automation AutomationRunner
}

// NewPaymentPlanService создает новый экземпляр PaymentPlanService
func NewPaymentPlanService(db *gorm.DB, sync *SyncService, notifier Notifier, receipts ReceiptGenerator, automation AutomationRunner) *PaymentPlanService {
	return &PaymentPlanService{
		db:         db,
		validator:  validator.New(),
		sync:       sync,
		notifier:   notifier,
		receipts:   receipts,
		automation: automation,
	}
}

// loadActiveDeal возвращает сделку в нетерминальном статусе
func loadActiveDeal(tx *gorm.DB, dealID string) (*models.Deal, error) {
	var deal models.Deal
	if err := tx.Where("id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, errors.New("ошибка при поиске сделки")
	}
	if deal.IsTerminal() {
		return nil, ErrDealTerminal
	}
	return &deal, nil
}

// loadPlan возвращает график платежей сделки
func loadPlan(tx *gorm.DB, dealID string) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	if err := tx.Where("deal_id = ?", dealID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, errors.New("ошибка при поиске графика платежей")
	}
	return &plan, nil
}

// CreatePlan создает график платежей по сделке. Первый взнос равен доле от
// согласованной цены и подлежит оплате в заданную дату, остаток
// распределяется равными частями с шагом периодичности, остаток округления
// уходит в последний взнос.
func (s *PaymentPlanService) CreatePlan(dto CreatePlanDTO) (*models.PaymentPlan, error) {
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

	// График по сделке может быть только один
	var existing int64
	if err := tx.Model(&models.PaymentPlan{}).Where("deal_id = ?", dto.DealID).Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при проверке существующего графика")
	}
	if existing > 0 {
		tx.Rollback()
		return nil, ErrPlanAlreadyExists
	}

	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	plan := &models.PaymentPlan{
		DealID:          deal.ID,
		TotalAmount:     deal.AgreedPrice,
		DownPaymentPct:  dto.DownPaymentPct,
		NumInstallments: dto.NumInstallments,
		Frequency:       models.PaymentFrequency(dto.Frequency),
		Status:          models.PlanStatusActive,
		CreatedBy:       actor,
	}

	if err := tx.Create(plan).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании графика платежей")
	}

	installments := scheduleDueDates(buildInstallments(plan, deal), dto.DownPaymentDate, dto.FirstInstallmentDate, plan.Frequency)
	for i := range installments {
		if err := tx.Create(&installments[i]).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("ошибка при создании взноса")
		}
	}

	deal.PaymentState = models.PaymentStatePlanActive
	appendNote(deal, actor, fmt.Sprintf("Создан график платежей: взнос %.0f%%, %d платежей, периодичность %s",
		dto.DownPaymentPct, dto.NumInstallments, dto.Frequency))

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	plan.Installments = installments

	s.sync.SyncDeal(deal)
	runDealAutomation(s.automation, "plan-created", deal, actor)

	return plan, nil
}

// buildInstallments строит взносы графика без сроков оплаты. Первым всегда
// идет первоначальный взнос.
func buildInstallments(plan *models.PaymentPlan, deal *models.Deal) []models.PaymentInstallment {
	installments := make([]models.PaymentInstallment, 0, plan.NumInstallments+1)
	seq := 1

	downPayment := roundMoney(plan.TotalAmount * plan.DownPaymentPct / 100)
	remainder := roundMoney(plan.TotalAmount - downPayment)
	installments = append(installments, models.PaymentInstallment{
		ID:          models.NewID(models.PrefixInstallment),
		PlanID:      plan.ID,
		DealID:      deal.ID,
		Sequence:    seq,
		Kind:        models.InstallmentKindDownPayment,
		Description: "Первоначальный взнос",
		Amount:      downPayment,
		Status:      models.InstallmentStatusPending,
	})
	seq++

	// Остаток делится поровну, последний взнос забирает остаток округления
	per := roundMoney(remainder / float64(plan.NumInstallments))
	for i := 0; i < plan.NumInstallments; i++ {
		amount := per
		kind := models.InstallmentKindRegular
		description := fmt.Sprintf("Платеж %d из %d", i+1, plan.NumInstallments)
		if i == plan.NumInstallments-1 {
			amount = roundMoney(remainder - per*float64(plan.NumInstallments-1))
			kind = models.InstallmentKindFinal
			description = "Заключительный платеж"
		}
		installments = append(installments, models.PaymentInstallment{
			ID:          models.NewID(models.PrefixInstallment),
			PlanID:      plan.ID,
			DealID:      deal.ID,
			Sequence:    seq,
			Kind:        kind,
			Description: description,
			Amount:      amount,
			Status:      models.InstallmentStatusPending,
		})
		seq++
	}

	return installments
}

// scheduleDueDates расставляет сроки оплаты: первоначальный взнос подлежит
// оплате в заданную дату, остальные идут с шагом периодичности от первой даты
func scheduleDueDates(installments []models.PaymentInstallment, downPaymentDate, first time.Time, frequency models.PaymentFrequency) []models.PaymentInstallment {
	step := 30
	if frequency == models.FrequencyQuarterly {
		step = 90
	}

	offset := 0
	for i := range installments {
		if installments[i].Kind == models.InstallmentKindDownPayment {
			installments[i].DueDate = downPaymentDate
			continue
		}
		installments[i].DueDate = first.AddDate(0, 0, offset*step)
		offset++
	}
	return installments
}

// RecordPayment записывает платеж по взносу графика. Тип платежа берется из
// типа взноса, номер квитанции генерируется, если не передан.
func (s *PaymentPlanService) RecordPayment(dto RecordPaymentDTO) (*models.DealPayment, error) {
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

	var installment models.PaymentInstallment
	if err := tx.Where("id = ? AND deal_id = ?", dto.InstallmentID, dto.DealID).First(&installment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, errors.New("ошибка при поиске взноса")
	}

	if installment.Status == models.InstallmentStatusPaid {
		tx.Rollback()
		return nil, ErrInstallmentPaid
	}

	receiptNumber := dto.ReceiptNumber
	if receiptNumber == "" {
		receiptNumber = s.receipts.GenerateNumber()
	}

	now := time.Now()
	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	payment := &models.DealPayment{
		ID:              models.NewID(models.PrefixPayment),
		DealID:          deal.ID,
		InstallmentID:   &installment.ID,
		Kind:            models.PaymentKindForInstallment(installment.Kind),
		Amount:          dto.Amount,
		Method:          models.PaymentMethod(dto.Method),
		ReferenceNumber: dto.ReferenceNumber,
		ReceiptNumber:   receiptNumber,
		RecordedBy:      actor,
		PaidAt:          now,
	}

	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при записи платежа")
	}

	// Обновляем состояние взноса
	installment.PaidAmount = roundMoney(installment.PaidAmount + dto.Amount)
	if installment.PaidAmount >= installment.Amount {
		installment.Status = models.InstallmentStatusPaid
		installment.PaidDate = &now
	} else {
		installment.Status = models.InstallmentStatusPartial
	}
	if err := tx.Save(&installment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении взноса")
	}

	// Баланс сделки держит инвариант: остаток = цена - оплачено
	deal.TotalPaid = roundMoney(deal.TotalPaid + dto.Amount)
	deal.BalanceRemaining = roundMoney(deal.AgreedPrice - deal.TotalPaid)
	appendNote(deal, actor, fmt.Sprintf("Записан платеж %.2f по взносу %d", dto.Amount, installment.Sequence))

	// Когда все взносы оплачены, график закрывается
	fullyPaid, err := allInstallmentsPaid(tx, installment.PlanID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if fullyPaid {
		deal.PaymentState = models.PaymentStateFullyPaid
		if err := tx.Model(&models.PaymentPlan{}).
			Where("id = ?", installment.PlanID).
			Update("status", models.PlanStatusClosed).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("ошибка при закрытии графика платежей")
		}
	}

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.LogPayment(deal.ID, payment.ID, payment.Amount, string(payment.Kind), actor)
	utils.GetMetrics().RecordPayment(payment.Amount)

	s.sync.SyncDeal(deal)
	notifyDealAgents(s.db, s.notifier, deal, "paymentRecorded", map[string]interface{}{
		"deal_number": deal.DealNumber,
		"amount":      payment.Amount,
		"receipt":     payment.ReceiptNumber,
	})
	if fullyPaid {
		utils.GetEventBus().Publish(utils.EventDealFullyPaid, map[string]interface{}{
			"deal_id": deal.ID,
		})
		notifyDealAgents(s.db, s.notifier, deal, "dealFullyPaid", map[string]interface{}{
			"deal_number": deal.DealNumber,
		})
	}

	return payment, nil
}

// RecordAdHocPayment записывает платеж вне графика. Платеж уменьшает остаток
// по сделке напрямую: при нулевом остатке сделка считается полностью
// оплаченной даже при неоплаченных взносах графика.
func (s *PaymentPlanService) RecordAdHocPayment(dto AdHocPaymentDTO) (*models.DealPayment, error) {
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

	receiptNumber := dto.ReceiptNumber
	if receiptNumber == "" {
		receiptNumber = s.receipts.GenerateNumber()
	}

	now := time.Now()
	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	payment := &models.DealPayment{
		ID:              models.NewID(models.PrefixPayment),
		DealID:          deal.ID,
		Kind:            models.PaymentKindAdHoc,
		Amount:          dto.Amount,
		Method:          models.PaymentMethod(dto.Method),
		ReferenceNumber: dto.ReferenceNumber,
		ReceiptNumber:   receiptNumber,
		RecordedBy:      actor,
		PaidAt:          now,
	}

	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при записи платежа")
	}

	deal.TotalPaid = roundMoney(deal.TotalPaid + dto.Amount)
	deal.BalanceRemaining = roundMoney(deal.AgreedPrice - deal.TotalPaid)
	if deal.BalanceRemaining <= 0 {
		deal.PaymentState = models.PaymentStateFullyPaid
	}
	appendNote(deal, actor, fmt.Sprintf("Записан платеж вне графика %.2f", dto.Amount))

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	utils.LogPayment(deal.ID, payment.ID, payment.Amount, string(payment.Kind), actor)
	utils.GetMetrics().RecordPayment(payment.Amount)
	s.sync.SyncDeal(deal)
	notifyDealAgents(s.db, s.notifier, deal, "paymentRecorded", map[string]interface{}{
		"deal_number": deal.DealNumber,
		"amount":      payment.Amount,
		"receipt":     payment.ReceiptNumber,
	})

	return payment, nil
}

// AddInstallment добавляет взнос в активный график. Сумма взноса
// увеличивает итог графика, согласованную цену и остаток по сделке.
func (s *PaymentPlanService) AddInstallment(dto AddInstallmentDTO) (*models.PaymentInstallment, error) {
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

	plan, err := loadPlan(tx, dto.DealID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	kind := models.InstallmentKindRegular
	if dto.Kind != "" {
		kind = models.InstallmentKind(dto.Kind)
	}

	installment := &models.PaymentInstallment{
		ID:          models.NewID(models.PrefixInstallment),
		PlanID:      plan.ID,
		DealID:      deal.ID,
		Kind:        kind,
		Description: dto.Description,
		Amount:      roundMoney(dto.Amount),
		DueDate:     dto.DueDate,
		Status:      models.InstallmentStatusPending,
	}

	if err := tx.Create(installment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при создании взноса")
	}

	if err := renumberInstallments(tx, plan.ID); err != nil {
		tx.Rollback()
		return nil, err
	}

	plan.TotalAmount = roundMoney(plan.TotalAmount + installment.Amount)
	if err := tx.Model(&models.PaymentPlan{}).
		Where("id = ?", plan.ID).
		Update("total_amount", plan.TotalAmount).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении итога графика")
	}

	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	deal.AgreedPrice = roundMoney(deal.AgreedPrice + installment.Amount)
	deal.BalanceRemaining = roundMoney(deal.AgreedPrice - deal.TotalPaid)
	deal.PaymentState = models.PaymentStatePlanModified
	appendNote(deal, actor, fmt.Sprintf("Добавлен взнос %.2f со сроком %s", installment.Amount, dto.DueDate.Format("02.01.2006")))

	if err := recordModification(tx, deal.ID, installment.ID, models.ModificationInstallmentAdded, actor, dto.Reason, []models.FieldChange{
		{Field: "amount", Old: nil, New: installment.Amount},
		{Field: "due_date", Old: nil, New: installment.DueDate.Format(time.RFC3339)},
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	s.sync.SyncDeal(deal)
	return installment, nil
}

// ModifyInstallment изменяет сумму или срок неоплаченного взноса. Исходные
// значения снимаются один раз, при первом изменении. Пустое изменение
// завершается без записи аудита.
func (s *PaymentPlanService) ModifyInstallment(dto ModifyInstallmentDTO) (*models.PaymentInstallment, error) {
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

	var installment models.PaymentInstallment
	if err := tx.Where("id = ? AND deal_id = ?", dto.InstallmentID, dto.DealID).First(&installment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, errors.New("ошибка при поиске взноса")
	}

	if installment.Status == models.InstallmentStatusPaid {
		tx.Rollback()
		return nil, ErrInstallmentPaid
	}

	var changes []models.FieldChange
	amountDelta := 0.0
	dueDateChanged := false

	if dto.NewAmount != nil && roundMoney(*dto.NewAmount) != installment.Amount {
		newAmount := roundMoney(*dto.NewAmount)
		changes = append(changes, models.FieldChange{Field: "amount", Old: installment.Amount, New: newAmount})
		amountDelta = roundMoney(newAmount - installment.Amount)
	}
	if dto.NewDueDate != nil && !dto.NewDueDate.Equal(installment.DueDate) {
		changes = append(changes, models.FieldChange{
			Field: "due_date",
			Old:   installment.DueDate.Format(time.RFC3339),
			New:   dto.NewDueDate.Format(time.RFC3339),
		})
		dueDateChanged = true
	}

	// Пустое изменение не оставляет следов
	if len(changes) == 0 {
		tx.Rollback()
		return &installment, nil
	}

	if !installment.WasModified {
		originalAmount := installment.Amount
		originalDueDate := installment.DueDate
		installment.WasModified = true
		installment.OriginalAmount = &originalAmount
		installment.OriginalDueDate = &originalDueDate
	}

	if amountDelta != 0 {
		installment.Amount = roundMoney(installment.Amount + amountDelta)
	}
	if dueDateChanged {
		installment.DueDate = *dto.NewDueDate
	}

	if err := tx.Save(&installment).Error; err != nil {
		tx.Rollback()
		return nil, errors.New("ошибка при обновлении взноса")
	}

	if dueDateChanged {
		if err := renumberInstallments(tx, installment.PlanID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if amountDelta != 0 {
		if err := tx.Model(&models.PaymentPlan{}).
			Where("id = ?", installment.PlanID).
			Update("total_amount", gorm.Expr("total_amount + ?", amountDelta)).Error; err != nil {
			tx.Rollback()
			return nil, errors.New("ошибка при обновлении итога графика")
		}
		deal.AgreedPrice = roundMoney(deal.AgreedPrice + amountDelta)
	}

	actor := fmt.Sprintf("agent:%d", dto.ActorID)
	deal.BalanceRemaining = roundMoney(deal.AgreedPrice - deal.TotalPaid)
	deal.PaymentState = models.PaymentStatePlanModified
	appendNote(deal, actor, fmt.Sprintf("Изменен взнос %d: %s", installment.Sequence, dto.Reason))

	if err := recordModification(tx, deal.ID, installment.ID, models.ModificationInstallmentModified, actor, dto.Reason, changes); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, errors.New("ошибка при подтверждении транзакции")
	}

	s.sync.SyncDeal(deal)
	return &installment, nil
}

// DeleteInstallment удаляет неоплаченный взнос из графика. Взнос с
// частичной оплатой удалить нельзя.
func (s *PaymentPlanService) DeleteInstallment(dealID, installmentID, reason string, actorID uint) error {
	if reason == "" {
		return errors.New("поле Reason обязательно")
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return errors.New("ошибка при начале транзакции")
	}

	deal, err := loadActiveDeal(tx, dealID)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := requirePrimaryAgent(deal, actorID); err != nil {
		tx.Rollback()
		return err
	}

	var installment models.PaymentInstallment
	if err := tx.Where("id = ? AND deal_id = ?", installmentID, dealID).First(&installment).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInstallmentNotFound
		}
		return errors.New("ошибка при поиске взноса")
	}

	if installment.Status == models.InstallmentStatusPaid {
		tx.Rollback()
		return ErrInstallmentPaid
	}
	if installment.PaidAmount > 0 {
		tx.Rollback()
		return ErrInstallmentHasPayment
	}

	if err := tx.Delete(&installment).Error; err != nil {
		tx.Rollback()
		return errors.New("ошибка при удалении взноса")
	}

	if err := renumberInstallments(tx, installment.PlanID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Model(&models.PaymentPlan{}).
		Where("id = ?", installment.PlanID).
		Update("total_amount", gorm.Expr("total_amount - ?", installment.Amount)).Error; err != nil {
		tx.Rollback()
		return errors.New("ошибка при обновлении итога графика")
	}

	actor := fmt.Sprintf("agent:%d", actorID)
	deal.AgreedPrice = roundMoney(deal.AgreedPrice - installment.Amount)
	deal.BalanceRemaining = roundMoney(deal.AgreedPrice - deal.TotalPaid)
	deal.PaymentState = models.PaymentStatePlanModified
	appendNote(deal, actor, fmt.Sprintf("Удален взнос %d на сумму %.2f: %s", installment.Sequence, installment.Amount, reason))

	if err := recordModification(tx, deal.ID, installment.ID, models.ModificationInstallmentRemoved, actor, reason, []models.FieldChange{
		{Field: "amount", Old: installment.Amount, New: nil},
		{Field: "due_date", Old: installment.DueDate.Format(time.RFC3339), New: nil},
	}); err != nil {
		tx.Rollback()
		return err
	}

	if err := database.SaveDealCAS(tx, deal); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New("ошибка при подтверждении транзакции")
	}

	s.sync.SyncDeal(deal)
	return nil
}

// GetPlanSummary возвращает сводку по графику платежей. Функция только
// читает данные и не меняет состояние взносов.
func (s *PaymentPlanService) GetPlanSummary(dealID string, actorID uint) (*PlanSummary, error) {
	var deal models.Deal
	if err := s.db.Where("id = ?", dealID).First(&deal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDealNotFound
		}
		return nil, errors.New("ошибка при поиске сделки")
	}

	if err := requirePrimaryAgent(&deal, actorID); err != nil {
		return nil, err
	}

	plan, err := loadPlan(s.db, dealID)
	if err != nil {
		return nil, err
	}

	var installments []models.PaymentInstallment
	if err := s.db.Where("plan_id = ?", plan.ID).Order("sequence asc").Find(&installments).Error; err != nil {
		return nil, errors.New("ошибка при загрузке взносов")
	}

	summary := &PlanSummary{
		DealID:          dealID,
		PlanStatus:      string(plan.Status),
		TotalAmount:     plan.TotalAmount,
		InstallmentsNum: len(installments),
	}

	for _, inst := range installments {
		summary.TotalPaid = roundMoney(summary.TotalPaid + inst.PaidAmount)
		switch inst.Status {
		case models.InstallmentStatusPending:
			summary.PendingCount++
		case models.InstallmentStatusPartial:
			summary.PartialCount++
		case models.InstallmentStatusPaid:
			summary.PaidCount++
		case models.InstallmentStatusOverdue:
			summary.OverdueCount++
		}

		if inst.Status != models.InstallmentStatusPaid && summary.NextDueDate == nil {
			dueDate := inst.DueDate
			summary.NextDueDate = &dueDate
			summary.NextDueAmount = roundMoney(inst.Amount - inst.PaidAmount)
		}
	}

	summary.Outstanding = roundMoney(summary.TotalAmount - summary.TotalPaid)
	return summary, nil
}

// MarkOverdue помечает просроченными все взносы с истекшим сроком оплаты.
// Команда выполняется явно, чтение сводки просрочку не помечает. Взносы
// завершенных и отмененных сделок не трогаются.
func (s *PaymentPlanService) MarkOverdue(now time.Time) (int, error) {
	openDeals := s.db.Model(&models.Deal{}).
		Select("id").
		Where("status IN ?", []models.DealStatus{models.DealStatusActive, models.DealStatusOnHold})

	var candidates []models.PaymentInstallment
	if err := s.db.
		Where("due_date < ? AND status IN ? AND deal_id IN (?)", now,
			[]models.InstallmentStatus{models.InstallmentStatusPending, models.InstallmentStatusPartial},
			openDeals).
		Find(&candidates).Error; err != nil {
		return 0, errors.New("ошибка при поиске просроченных взносов")
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(candidates))
	affectedDeals := make(map[string]bool)
	for _, inst := range candidates {
		ids = append(ids, inst.ID)
		affectedDeals[inst.DealID] = true
	}

	if err := s.db.Model(&models.PaymentInstallment{}).
		Where("id IN ?", ids).
		Update("status", models.InstallmentStatusOverdue).Error; err != nil {
		return 0, errors.New("ошибка при разметке просрочки")
	}

	utils.GetMetrics().RecordOverdue(len(candidates))
	utils.LogInfo("Помечено просроченными %d взносов по %d сделкам", len(candidates), len(affectedDeals))

	for dealID := range affectedDeals {
		var deal models.Deal
		if err := s.db.Where("id = ?", dealID).First(&deal).Error; err != nil {
			utils.LogError("Сделка %s не найдена при обработке просрочки: %v", dealID, err)
			continue
		}
		runDealAutomation(s.automation, "payment-overdue", &deal, "system")
	}

	return len(candidates), nil
}

// allInstallmentsPaid возвращает true, если в графике не осталось
// неоплаченных взносов
func allInstallmentsPaid(tx *gorm.DB, planID uint) (bool, error) {
	var open int64
	if err := tx.Model(&models.PaymentInstallment{}).
		Where("plan_id = ? AND status <> ?", planID, models.InstallmentStatusPaid).
		Count(&open).Error; err != nil {
		return false, errors.New("ошибка при проверке состояния графика")
	}
	return open == 0, nil
}

// renumberInstallments перенумеровывает взносы графика по сроку оплаты.
// Последовательность после перенумерации непрерывна, 1..N.
func renumberInstallments(tx *gorm.DB, planID uint) error {
	var installments []models.PaymentInstallment
	if err := tx.Where("plan_id = ?", planID).Find(&installments).Error; err != nil {
		return errors.New("ошибка при загрузке взносов для перенумерации")
	}

	sort.Slice(installments, func(i, j int) bool {
		if installments[i].DueDate.Equal(installments[j].DueDate) {
			return installments[i].Sequence < installments[j].Sequence
		}
		return installments[i].DueDate.Before(installments[j].DueDate)
	})

	for i := range installments {
		seq := i + 1
		if installments[i].Sequence == seq {
			continue
		}
		if err := tx.Model(&models.PaymentInstallment{}).
			Where("id = ?", installments[i].ID).
			Update("sequence", seq).Error; err != nil {
			return errors.New("ошибка при перенумерации взносов")
		}
	}
	return nil
}

// recordModification добавляет запись аудита изменения графика
func recordModification(tx *gorm.DB, dealID, installmentID string, modType models.ModificationType, actor, reason string, changes []models.FieldChange) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return errors.New("ошибка при сериализации изменений")
	}

	record := models.PaymentPlanModification{
		ID:            models.NewID(models.PrefixModification),
		DealID:        dealID,
		InstallmentID: installmentID,
		Type:          modType,
		Actor:         actor,
		Reason:        reason,
		Changes:       string(payload),
	}

	if err := tx.Create(&record).Error; err != nil {
		return errors.New("ошибка при записи аудита изменения графика")
	}
	return nil
}
