package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xela07ax/guildpulse/internal/domain"
	"go.uber.org/zap"
)

const DefaultSchedule = "0 9 * * *"

type AnalysisRunner interface {
	Run(ctx context.Context, opts RunOptions) (domain.AnalysisRecord, error)
}

// Locker — межпроцессная блокировка планового прогона (RunLock).
type Locker interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// Scheduler запускает анализ по cron-расписанию.
type Scheduler struct {
	cron    *cron.Cron
	runner  AnalysisRunner
	locker  Locker // nil — без блокировки (единственный инстанс)
	logger  *zap.Logger
	timeout time.Duration
	ctx     context.Context
}

func NewScheduler(ctx context.Context, timezone string, runner AnalysisRunner, locker Locker, logger *zap.Logger) (*Scheduler, error) {
	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
		}
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		runner:  runner,
		locker:  locker,
		logger:  logger.Named("scheduler"),
		timeout: 5 * time.Minute,
		ctx:     ctx,
	}, nil
}

// Schedule регистрирует прогон по стандартному 5-польному cron-выражению.
func (s *Scheduler) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		return fmt.Errorf("adding cron entry %q: %w", spec, err)
	}
	s.logger.Info("analysis scheduled", zap.String("cron", spec), zap.String("timezone", s.cron.Location().String()))
	return nil
}

// RunOnce выполняет один плановый прогон, если блокировка досталась этому инстансу.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if s.locker != nil {
		release, ok, err := s.locker.TryAcquire(ctx)
		if err != nil {
			s.logger.Error("run lock unavailable, skipping scheduled run", zap.Error(err))
			return false
		}
		if !ok {
			s.logger.Info("scheduled run is held by another instance")
			return false
		}
		defer release()
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.runner.Run(runCtx, RunOptions{})
	if err != nil {
		s.logger.Error("scheduled analysis failed", zap.Error(err))
		return false
	}
	s.logger.Info("scheduled analysis finished", zap.String("id", rec.ID), zap.Int("log_count", rec.LogCount))
	return true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop останавливает cron и ждет завершения текущего прогона.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
