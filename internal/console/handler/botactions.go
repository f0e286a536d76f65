package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

type BotActionService interface {
	History(ctx context.Context, q repository.BotActionQuery) (*domain.BotActionHistory, error)
}

type BotActionHandler struct {
	service BotActionService
	logger  *zap.Logger
}

func NewBotActionHandler(s BotActionService, logger *zap.Logger) *BotActionHandler {
	return &BotActionHandler{service: s, logger: logger}
}

// List: ?limit=&guildId=&actionType=&status=&userId=&startDate=&endDate=
func (h *BotActionHandler) List(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := repository.BotActionQuery{
		GuildID:    qs.Get("guildId"),
		ActionType: qs.Get("actionType"),
		Status:     qs.Get("status"),
		UserID:     qs.Get("userId"),
	}
	if raw := qs.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	var err error
	if q.Since, err = parseDate(qs.Get("startDate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	if q.Until, err = parseDate(qs.Get("endDate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid endDate")
		return
	}

	history, err := h.service.History(r.Context(), q)
	if err != nil {
		h.logger.Error("bot action history failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch bot actions")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// parseDate принимает RFC3339 или YYYY-MM-DD (UTC). Пустая строка — без фильтра.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
