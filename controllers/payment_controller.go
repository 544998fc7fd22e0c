package controllers

import (
	"dealcrm/database"
	"dealcrm/models"
	"dealcrm/services"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// PaymentController обрабатывает запросы, связанные с графиком платежей
type PaymentController struct {
	db          *database.Database
	planService *services.PaymentPlanService
	receipts    *services.ReceiptService
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(db *database.Database, planService *services.PaymentPlanService, receipts *services.ReceiptService) *PaymentController {
	return &PaymentController{
		db:          db,
		planService: planService,
		receipts:    receipts,
	}
}

// CreatePlan обрабатывает запрос на создание графика платежей
func (c *PaymentController) CreatePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.CreatePlanDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	dto.DealID = vars["id"]
	dto.ActorID = userID

	plan, err := c.planService.CreatePlan(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// GetPlanSummary обрабатывает запрос на получение сводки по графику
func (c *PaymentController) GetPlanSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	summary, err := c.planService.GetPlanSummary(vars["id"], userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RecordPayment обрабатывает запрос на запись платежа по взносу
func (c *PaymentController) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.RecordPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	dto.DealID = vars["id"]
	dto.ActorID = userID

	payment, err := c.planService.RecordPayment(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// RecordAdHocPayment обрабатывает запрос на запись платежа вне графика
func (c *PaymentController) RecordAdHocPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.AdHocPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	dto.DealID = vars["id"]
	dto.ActorID = userID

	payment, err := c.planService.RecordAdHocPayment(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// AddInstallment обрабатывает запрос на добавление взноса в график
func (c *PaymentController) AddInstallment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.AddInstallmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	dto.DealID = vars["id"]
	dto.ActorID = userID

	installment, err := c.planService.AddInstallment(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, installment)
}

// ModifyInstallment обрабатывает запрос на изменение взноса
func (c *PaymentController) ModifyInstallment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.ModifyInstallmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	dto.DealID = vars["id"]
	dto.InstallmentID = vars["installmentId"]
	dto.ActorID = userID

	installment, err := c.planService.ModifyInstallment(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, installment)
}

// DeleteInstallment обрабатывает запрос на удаление взноса
func (c *PaymentController) DeleteInstallment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	if err := c.planService.DeleteInstallment(vars["id"], vars["installmentId"], body.Reason, userID); err != nil {
		respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkOverdue обрабатывает команду разметки просроченных взносов
func (c *PaymentController) MarkOverdue(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromRequest(w, r); !ok {
		return
	}

	count, err := c.planService.MarkOverdue(time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"marked": count,
	})
}

// GetReceipt обрабатывает запрос на получение XML-квитанции платежа
func (c *PaymentController) GetReceipt(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromRequest(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	deal, err := c.db.GetDealByID(vars["id"])
	if err != nil {
		respondError(w, services.ErrDealNotFound)
		return
	}

	var payment *models.DealPayment
	for i := range deal.Payments {
		if deal.Payments[i].ID == vars["paymentId"] {
			payment = &deal.Payments[i]
			break
		}
	}
	if payment == nil {
		http.Error(w, "платеж не найден", http.StatusNotFound)
		return
	}

	xml, err := c.receipts.RenderXML(payment, deal, payment.RecordedBy)
	if err != nil {
		http.Error(w, "ошибка при формировании квитанции", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write(xml)
}
