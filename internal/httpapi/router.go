package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"installments/internal/api"
	"installments/internal/engine"
	"installments/pkg/config"
)

type Dependencies struct {
	Cfg    config.Config
	Engine *engine.Engine
	Store  engine.Store
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(api.CORSMiddleware(deps.Cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ch := &ContractHandler{Engine: deps.Engine, Store: deps.Store}
	ph := &PaymentHandler{Engine: deps.Engine, Store: deps.Store}

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.AuthMiddleware(deps.Cfg.AuthSecret, deps.Cfg.AppEnv))

		r.Post("/contracts", ch.Create)
		r.Get("/contracts/{id}", ch.Get)
		r.Patch("/contracts/{id}/terms", ch.EditTerms)
		r.Post("/contracts/{id}/postpone", ch.Postpone)
		r.Post("/contracts/{id}/cancel", ch.Cancel)

		r.Post("/payments", ph.Create)
		r.Post("/payments/{id}/confirm", ph.Confirm)
		r.Post("/payments/{id}/reject", ph.Reject)

		r.Get("/balances/{managerID}", ph.Balance)
	})

	return r
}
