package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/infra/auth"
	"go.uber.org/zap"
)

type AlertService interface {
	List(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.ModerationAlert, error)
	Get(ctx context.Context, id string) (*domain.ModerationAlert, error)
	Decide(ctx context.Context, id string, status domain.AlertStatus, reviewerID, comment string) (*domain.ModerationAlert, error)
}

type AlertHandler struct {
	service AlertService
	logger  *zap.Logger
}

func NewAlertHandler(s AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{service: s, logger: logger}
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.AlertStatus(r.URL.Query().Get("status")) // Достаем из ?status=...
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := h.service.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("list alerts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch alerts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AlertHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type DecideRequest struct {
	Status  domain.AlertStatus `json:"status"` // reviewed | dismissed
	Comment string             `json:"comment"`
}

func (h *AlertHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// ReviewerID — авторизованный модератор из токена
	reviewerID := auth.UserIDFrom(r.Context())
	if reviewerID == "" {
		writeError(w, http.StatusUnauthorized, "reviewer is unknown")
		return
	}

	a, err := h.service.Decide(r.Context(), id, req.Status, reviewerID, req.Comment)
	if err != nil {
		h.writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AlertHandler) writeAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("alert operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
