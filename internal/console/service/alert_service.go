package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/repository"
	"go.uber.org/zap"
)

const defaultAlertLimit = 100

// AlertService — очередь алертов модерации и решения по ним.
type AlertService struct {
	store  repository.AlertStore
	logger *zap.Logger
}

func NewAlertService(store repository.AlertStore, logger *zap.Logger) *AlertService {
	return &AlertService{store: store, logger: logger.Named("alert-service")}
}

// List по умолчанию отдает pending — то, что ждет модератора.
func (s *AlertService) List(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.ModerationAlert, error) {
	if status == "" {
		status = domain.AlertPending
	}
	if limit <= 0 || limit > defaultAlertLimit {
		limit = defaultAlertLimit
	}
	list, err := s.store.ListAlerts(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("alert_service: list: %w", err)
	}
	return list, nil
}

func (s *AlertService) Get(ctx context.Context, id string) (*domain.ModerationAlert, error) {
	return s.store.GetAlert(ctx, id)
}

// Decide переводит алерт из pending ровно один раз.
// Ошибки домена (ErrAlertNotFound, ErrAlreadyProcessed, ErrInvalidTransition) возвращаются как есть.
func (s *AlertService) Decide(ctx context.Context, id string, status domain.AlertStatus, reviewerID, comment string) (*domain.ModerationAlert, error) {
	a, err := s.store.UpdateAlertStatus(ctx, id, status, reviewerID, comment)
	if err != nil {
		s.logger.Warn("alert decision rejected",
			zap.String("alert_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, err
	}
	s.logger.Info("alert decided",
		zap.String("alert_id", id),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID))
	return a, nil
}
