package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/guildpulse/internal/console/service"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/engine"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

// AnalysisService Описываем, что нам нужно от сервиса
type AnalysisService interface {
	RunNow(ctx context.Context, opts engine.RunOptions) (domain.AnalysisRecord, error)
	History(ctx context.Context, q repository.HistoryQuery) ([]domain.AnalysisRecord, error)
	Get(ctx context.Context, id string) (*domain.AnalysisRecord, error)
}

type AnalysisHandler struct {
	service AnalysisService
	logger  *zap.Logger
}

func NewAnalysisHandler(s AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{service: s, logger: logger}
}

// RunRequest — необязательные фильтры ручного прогона.
type RunRequest struct {
	GuildID string    `json:"guildId"`
	Since   time.Time `json:"since"`
	Until   time.Time `json:"until"`
}

func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	// Пустое тело допустимо: анализ по последним событиям
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Since.IsZero() && !req.Until.IsZero() && req.Until.Before(req.Since) {
		writeError(w, http.StatusBadRequest, "until is before since")
		return
	}

	rec, err := h.service.RunNow(r.Context(), engine.RunOptions{
		GuildID: req.GuildID,
		Since:   req.Since,
		Until:   req.Until,
	})
	if err != nil {
		h.logger.Error("manual analysis failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "entry source unavailable")
		return
	}

	// Без ID запись не сохранена, но результат все равно отдаем
	status := http.StatusCreated
	if rec.ID == "" {
		status = http.StatusOK
	}
	writeJSON(w, status, rec)
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	q := repository.HistoryQuery{GuildID: r.URL.Query().Get("guildId")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	list, err := h.service.History(r.Context(), q)
	if err != nil {
		h.logger.Error("history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.service.Get(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrAnalysisNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.Error("get analysis failed", zap.String("analysis_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch analysis")
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}
