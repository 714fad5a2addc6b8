package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-premium-delivery/internal/usecase"
)

type Options struct {
	WebhookPath     string
	SignatureHeader string
	RequestTimeout  time.Duration // webhook processing budget, independent of the client connection
	AdminTimeout    time.Duration
	MaxBodyBytes    int64
}

// Server exposes the provider webhook, health, metrics and the admin API.
type Server struct {
	router   *usecase.PurchaseRouter
	ledger   usecase.EntitlementUseCase
	delivery usecase.DeliveryUseCase
	packs    usecase.PackUseCase
	auth     *AuthManager
	opts     Options
	log      *zerolog.Logger
}

func NewServer(
	router *usecase.PurchaseRouter,
	ledger usecase.EntitlementUseCase,
	delivery usecase.DeliveryUseCase,
	packs usecase.PackUseCase,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/api/v1/payments/tribute/webhook"
	}
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "trbt-signature"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 50 * time.Second
	}
	if opts.AdminTimeout <= 0 {
		opts.AdminTimeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Server{router: router, ledger: ledger, delivery: delivery, packs: packs, auth: auth, opts: opts, log: &l}
}

// Routes builds the chi router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post(s.opts.WebhookPath, s.handleWebhook)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1/admin", func(ar chi.Router) {
		ar.Use(Timeout(s.opts.AdminTimeout))
		ar.Post("/token", s.handleToken)
		ar.Group(func(g chi.Router) {
			g.Use(s.auth.requireAdmin)
			g.Post("/packs", s.handleCreatePack)
			g.Get("/packs/{packID}", s.handleGetPack)
			g.Post("/deliveries/resend", s.handleResend)
			g.Get("/entitlements/{subscriberID}/{productType}", s.handleGetEntitlement)
		})
	})
	return r
}
