package controllers

import (
	"dealcrm/services"
	"net/http"
	"time"
)

// OverdueController обрабатывает запросы отчетов по просрочке
type OverdueController struct {
	overdueService *services.OverdueService
}

// NewOverdueController создает новый экземпляр OverdueController
func NewOverdueController(overdueService *services.OverdueService) *OverdueController {
	return &OverdueController{overdueService: overdueService}
}

// ListOverdue обрабатывает запрос на список просроченных взносов агента
func (c *OverdueController) ListOverdue(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	items, err := c.overdueService.ListOverdue(userID, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// GetReport обрабатывает запрос на сгруппированный отчет по просрочке
func (c *OverdueController) GetReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	report, err := c.overdueService.BuildReport(userID, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
