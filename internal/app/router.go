package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tillbook/tillbook/internal/billing"
	"github.com/tillbook/tillbook/internal/catalog"
	"github.com/tillbook/tillbook/internal/identity"
	"github.com/tillbook/tillbook/internal/parties"
	"github.com/tillbook/tillbook/internal/settings"
	"github.com/tillbook/tillbook/internal/shared"
	"github.com/tillbook/tillbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	IdentityHandler *identity.Handler
	CatalogHandler  *catalog.Handler
	PartiesHandler  *parties.Handler
	BillingHandler  *billing.Handler
	SettingsHandler *settings.Handler
	JobHandler      *jobs.Handler
}

// NewRouter constructs the chi.Router with the standard stack. Auth routes
// are open; everything else requires a signed-in operator.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.IdentityHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireActor)

		r.Route("/catalog", func(r chi.Router) {
			params.CatalogHandler.MountRoutes(r)
		})
		r.Route("/customers", func(r chi.Router) {
			params.PartiesHandler.MountRoutes(r)
		})
		r.Route("/billing", func(r chi.Router) {
			params.BillingHandler.MountRoutes(r)
		})
		r.Route("/settings", func(r chi.Router) {
			params.SettingsHandler.MountRoutes(r)
		})
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
