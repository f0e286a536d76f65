package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/guildpulse/internal/console/handler"
	"github.com/xela07ax/guildpulse/internal/domain"
	"github.com/xela07ax/guildpulse/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AuthService
	authValidator auth.TokenValidator
	gatherer      prometheus.Gatherer // nil — без /metrics

	authHandler     *handler.AuthHandler      // /auth/token
	analysisHandler *handler.AnalysisHandler  // /v1/analysis
	alertHandler    *handler.AlertHandler     // /v1/alerts
	botHandler      *handler.BotActionHandler // /v1/bot-actions
	dashHandler     *handler.DashboardHandler // /api/v1/dashboard
}

// NewConsoleServer инициализирует сервер консоли модератора со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	gatherer prometheus.Gatherer,
	authH *handler.AuthHandler,
	analysisH *handler.AnalysisHandler,
	alertH *handler.AlertHandler,
	botH *handler.BotActionHandler,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		authValidator:   validator,
		gatherer:        gatherer,
		authHandler:     authH,
		analysisHandler: analysisH,
		alertHandler:    alertH,
		botHandler:      botH,
		dashHandler:     dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		r.With(auth.RequireScope(domain.ScopeAnalysisRead)).
			Get("/api/v1/dashboard/stats", s.dashHandler.GetStats)

		r.Route("/v1/analysis", func(r chi.Router) {
			r.With(auth.RequireScope(domain.ScopeAnalysisRun)).Post("/", s.analysisHandler.Run)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireScope(domain.ScopeAnalysisRead))
				r.Get("/", s.analysisHandler.List)
				r.Get("/{id}", s.analysisHandler.Get)
			})
		})

		r.With(auth.RequireScope(domain.ScopeAnalysisRead)).Get("/v1/bot-actions", s.botHandler.List)

		// Очередь модерации
		r.Route("/v1/alerts", func(r chi.Router) {
			r.With(auth.RequireScope(domain.ScopeAnalysisRead)).Get("/", s.alertHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.With(auth.RequireScope(domain.ScopeAnalysisRead)).Get("/", s.alertHandler.GetDetails)
				r.With(auth.RequireScope(domain.ScopeAlertsDecide)).Post("/decide", s.alertHandler.Decide)
			})
		})
	})
}

// requestLogger — access-лог через zap вместо стандартного middleware.Logger
func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
