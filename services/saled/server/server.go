package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"crybsale/core"
	"crybsale/services/saled/journal"
	"crybsale/services/saled/middleware"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress   string
	AdminScope      string
	ShutdownTimeout time.Duration
	TLS             TLSConfig
}

// TLSConfig describes TLS settings for the listener.
type TLSConfig struct {
	Disabled bool
	CertFile string
	KeyFile  string
	Config   *tls.Config
}

// Deps are the collaborators the handlers call into. Journal may be nil, in
// which case purchase history is unavailable.
type Deps struct {
	Runtime       *core.Runtime
	Journal       *journal.Journal
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Logger        *slog.Logger
}

// Server hosts the sale API for saled.
type Server struct {
	cfg     Config
	runtime *core.Runtime
	journal *journal.Journal
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	idem    *middleware.Idempotency
	logger  *slog.Logger
}

// New constructs a new HTTP server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Runtime == nil {
		return nil, fmt.Errorf("runtime required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(nil)
	}
	if deps.Observability == nil {
		deps.Observability = middleware.NewObservability(deps.Logger)
	}
	if strings.TrimSpace(cfg.AdminScope) == "" {
		cfg.AdminScope = "sale:admin"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	var idem *middleware.Idempotency
	if deps.Journal != nil {
		idem = middleware.NewIdempotency(deps.Journal, 24*time.Hour, deps.Logger)
	}
	return &Server{
		cfg:     cfg,
		runtime: deps.Runtime,
		journal: deps.Journal,
		auth:    deps.Authenticator,
		limiter: deps.RateLimiter,
		obs:     deps.Observability,
		idem:    idem,
		logger:  deps.Logger,
	}, nil
}

// Handler builds the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.obs.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.obs.MetricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sale", s.handleSaleStatus)
		r.Get("/sale/phases/{index}", s.handlePhase)
		r.Get("/vesting/{address}", s.handleVesting)
		r.Get("/vesting/{address}/{index}", s.handleVestingPosition)
		r.Get("/token/balance/{address}", s.handleTokenBalance)
		r.Get("/purchases", s.handlePurchases)
		r.Get("/events/ws", s.handleEventsWS)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware())
			r.Use(s.limiter.Middleware("trade"))
			r.Use(s.idem.Middleware)
			r.Post("/sale/presale", s.handlePurchase(s.runtime.PreSale))
			r.Post("/sale/public", s.handlePurchase(s.runtime.PublicSale))
			r.Post("/sale/buy", s.handlePurchase(s.runtime.Buy))
			r.Post("/vesting/release", s.handleRelease)
			r.Post("/vesting/release-all", s.handleReleaseAll)
			r.Post("/token/transfer", s.handleTokenTransfer)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.Middleware(s.cfg.AdminScope))
			r.Use(s.limiter.Middleware("admin"))
			r.Use(s.idem.Middleware)
			r.Post("/whitelist", s.handleWhitelist)
			r.Post("/withdraw-remaining", s.handleWithdrawRemaining)
			r.Post("/available-for-sale", s.handleAvailableForSale)
			r.Post("/token/exclude", s.handleTokenExclude)
			r.Post("/token/include", s.handleTokenInclude)
			r.Get("/exports/positions", s.handleExportPositions)
		})
	})
	return otelhttp.NewHandler(r, "saled")
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		TLSConfig:         s.cfg.TLS.Config,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("saled: http server listening", "addr", s.cfg.ListenAddress, "tls", !s.cfg.TLS.Disabled)
	var err error
	if s.cfg.TLS.Disabled {
		err = srv.ListenAndServe()
	} else {
		err = srv.ListenAndServeTLS(strings.TrimSpace(s.cfg.TLS.CertFile), strings.TrimSpace(s.cfg.TLS.KeyFile))
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "now": s.runtime.Now()})
}
