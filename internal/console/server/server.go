package server

import (
	"net/http"

	"github.com/freightops-pro/fopsbackend-sub006/internal/console/handler"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra"
	"github.com/freightops-pro/fopsbackend-sub006/internal/infra/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка RS256 токенов; выпуск токенов — на стороне внешнего IdP
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	actionHandler *handler.ActionHandler // /v1/actions (вход агентов + очередь)
	reviewHandler *handler.ReviewHandler // /v1/actions/{id}/approve|reject (HITL)
	ruleHandler   *handler.RuleHandler   // /v1/rules
	statsHandler  *handler.StatsHandler  // /v1/stats
}

// NewConsoleServer инициализирует API-сервер со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	actionH *handler.ActionHandler,
	reviewH *handler.ReviewHandler,
	ruleH *handler.RuleHandler,
	statsH *handler.StatsHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		cfg:           cfg,
		authValidator: validator,
		actionHandler: actionH,
		reviewHandler: reviewH,
		ruleHandler:   ruleH,
		statsHandler:  statsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Действия агентов и очередь ревью
		r.Route("/v1/actions", func(r chi.Router) {
			r.Post("/", s.actionHandler.Create)     // Агент предлагает действие
			r.Get("/", s.actionHandler.ListPending) // Очередь PENDING (worst-first)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.actionHandler.Get) // Карточка действия
				r.Post("/approve", s.reviewHandler.Approve)
				r.Post("/reject", s.reviewHandler.Reject)
			})
		})

		// Управление правилами автономии
		r.Route("/v1/rules", func(r chi.Router) {
			r.Get("/", s.ruleHandler.List)
			r.Post("/", s.ruleHandler.Create)
			r.Post("/seed", s.ruleHandler.Seed) // Дефолтный набор (идемпотентно)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.ruleHandler.Get)
				r.Put("/", s.ruleHandler.Update)
				r.Post("/deactivate", s.ruleHandler.Deactivate) // Мягкое отключение
			})
		})

		// Дашборд ревьюеров
		r.Get("/v1/stats/queue", s.statsHandler.GetQueueStats)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
