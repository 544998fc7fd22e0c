package controllers

import (
	"dealcrm/database"
	"dealcrm/services"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// DealController обрабатывает запросы, связанные со сделками
type DealController struct {
	db          *database.Database
	dealService *services.DealService
	completion  *services.CompletionService
}

// NewDealController создает новый экземпляр DealController
func NewDealController(db *database.Database, dealService *services.DealService, completion *services.CompletionService) *DealController {
	return &DealController{
		db:          db,
		dealService: dealService,
		completion:  completion,
	}
}

// CreateDeal обрабатывает запрос на создание сделки по принятому предложению
func (c *DealController) CreateDeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto services.CreateDealDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	dto.ActorID = userID

	deal, err := c.dealService.CreateFromOffer(dto)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, deal)
}

// GetDeals обрабатывает запрос на получение списка сделок агента
func (c *DealController) GetDeals(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	deals, err := c.db.GetDealsByAgentID(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, deals)
}

// GetDeal обрабатывает запрос на получение сделки со всеми связями
func (c *DealController) GetDeal(w http.ResponseWriter, r *http.Request) {
	if _, ok := userIDFromRequest(w, r); !ok {
		return
	}

	vars := mux.Vars(r)
	deal, err := c.db.GetDealByID(vars["id"])
	if err != nil {
		respondError(w, services.ErrDealNotFound)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// ProgressStage обрабатывает запрос на перевод сделки на следующий этап
func (c *DealController) ProgressStage(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	deal, err := c.dealService.ProgressStage(vars["id"], userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// HoldDeal обрабатывает запрос на приостановку сделки
func (c *DealController) HoldDeal(w http.ResponseWriter, r *http.Request) {
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
	deal, err := c.dealService.Hold(vars["id"], userID, body.Reason)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// ResumeDeal обрабатывает запрос на возобновление сделки
func (c *DealController) ResumeDeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	deal, err := c.dealService.Resume(vars["id"], userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}

// CompleteDeal обрабатывает запрос на завершение сделки
func (c *DealController) CompleteDeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var body struct {
		Memo string `json:"memo"`
	}
	// Тело запроса необязательно
	json.NewDecoder(r.Body).Decode(&body)

	vars := mux.Vars(r)
	transaction, err := c.completion.Complete(services.CompleteDealDTO{
		DealID:  vars["id"],
		Memo:    body.Memo,
		ActorID: userID,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// CancelDeal обрабатывает запрос на отмену сделки
func (c *DealController) CancelDeal(w http.ResponseWriter, r *http.Request) {
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
	if body.Reason == "" {
		http.Error(w, "поле Reason обязательно", http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	deal, err := c.completion.Cancel(vars["id"], body.Reason, userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deal)
}
