package controllers

import (
	"dealcrm/database"
	"dealcrm/services"
	"encoding/json"
	"errors"
	"net/http"
)

// writeJSON отправляет JSON-ответ с указанным статусом
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError переводит ошибку сервиса в HTTP-статус
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrDealNotFound),
		errors.Is(err, services.ErrOfferNotFound),
		errors.Is(err, services.ErrInstallmentNotFound),
		errors.Is(err, services.ErrPlanNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotPrimaryAgent):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, services.ErrDealTerminal),
		errors.Is(err, services.ErrOfferNotAccepted),
		errors.Is(err, services.ErrPlanAlreadyExists),
		errors.Is(err, services.ErrInstallmentPaid),
		errors.Is(err, services.ErrInstallmentHasPayment),
		errors.Is(err, services.ErrNoNextStage):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// userIDFromRequest возвращает ID пользователя из контекста запроса
func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}
