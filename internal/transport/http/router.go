// Package httptransport is the thin API layer over the reconciliation
// services. Handlers decode, delegate, and encode; business rules stay in
// the services.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"participation/internal/certificate"
	"participation/internal/fraud"
	"participation/internal/ledger"
	"participation/internal/platform/metrics"
	"participation/internal/platform/middleware"
	"participation/internal/reconcile"
	"participation/internal/resolution"
	"participation/internal/roles"
)

// Handler bundles every service the API exposes.
type Handler struct {
	reconcile    *reconcile.Service
	fraud        *fraud.Service
	ledger       *ledger.Service
	resolution   *resolution.Service
	certificates *certificate.Service
	roles        *roles.Service
	logger       *slog.Logger
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

type Deps struct {
	Reconcile    *reconcile.Service
	Fraud        *fraud.Service
	Ledger       *ledger.Service
	Resolution   *resolution.Service
	Certificates *certificate.Service
	Roles        *roles.Service
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	JWTValidator middleware.JWTValidator
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reconcile:    deps.Reconcile,
		fraud:        deps.Fraud,
		ledger:       deps.Ledger,
		resolution:   deps.Resolution,
		certificates: deps.Certificates,
		roles:        deps.Roles,
		logger:       logger,
		metrics:      deps.Metrics,
		jwtValidator: deps.JWTValidator,
	}
}

// Router wires every endpoint. Certificate verification, health, and metrics
// are public; everything else requires a bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(h.logger))
	if h.metrics != nil {
		r.Use(middleware.Latency(h.metrics))
	}

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/verify/certificate/{certificateID}", h.handleVerifyCertificate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/participants/{studentID}/status", h.handleCanonicalStatus)
			r.Get("/participants/{studentID}/history", h.handleChangeHistory)
			r.Get("/conflicts", h.handleEventConflicts)
			r.Get("/fraud-scan", h.handleFraudScan)
			r.Get("/audit-summary", h.handleAuditSummary)
			r.Post("/resolutions", h.handleResolveBatch)
			r.Get("/roles", h.handleListEventRoles)
			r.Post("/roles", h.handleAssignRole)
		})

		r.Post("/certificates/{certificateID}/revoke", h.handleRevokeCertificate)
		r.Post("/attendance/{attendanceID}/invalidate", h.handleInvalidateAttendance)
		r.Delete("/roles/{roleID}", h.handleRemoveRole)
		r.Get("/students/{studentID}/roles", h.handleListStudentRoles)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
