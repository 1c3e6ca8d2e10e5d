package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/billflow-erp/billflow/internal/billing"
	"github.com/billflow-erp/billflow/internal/invoice"
	"github.com/billflow-erp/billflow/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Metrics        *observability.Metrics
	InvoiceHandler *invoice.Handler
	BillingHandler *billing.Handler
}

// NewRouter wires middleware and routes into the application router.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config, Metrics: p.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if p.InvoiceHandler != nil {
			p.InvoiceHandler.MountRoutes(r)
		}
		if p.BillingHandler != nil {
			p.BillingHandler.MountRoutes(r)
		}
	})

	return r
}
