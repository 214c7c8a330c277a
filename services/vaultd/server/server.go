package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"riftvault/core"
	"riftvault/native/oraclefeed"
	"riftvault/native/vault"
	"riftvault/observability"
	"riftvault/services/vaultd/storage"
)

// Backend is the vault host the API drives.
type Backend interface {
	CreateVault(ctx context.Context, creator, underlying, wrapped common.Address, name string) (*vault.Vault, error)
	Wrap(ctx context.Context, req vault.WrapRequest) (*vault.WrapResult, error)
	Unwrap(ctx context.Context, req vault.UnwrapRequest) (*vault.UnwrapResult, error)
	RecordOraclePrice(ctx context.Context, oracle, vaultAddr common.Address, sample vault.OracleSample) (*vault.OracleUpdate, error)
	ReportArbitrage(ctx context.Context, oracle, vaultAddr common.Address, bps uint64) error
	TriggerRebalance(ctx context.Context, caller, vaultAddr common.Address) (*vault.RebalanceResult, error)
	Pause(ctx context.Context, caller, vaultAddr common.Address) error
	Unpause(ctx context.Context, caller, vaultAddr common.Address) error
	CloseVault(ctx context.Context, caller, vaultAddr common.Address) error
	DistributeRewards(ctx context.Context, caller, vaultAddr common.Address, amount uint64) error
	SetVaultPolicy(ctx context.Context, caller, vaultAddr common.Address, p vault.Policy) error
	AuthorizeOracle(ctx context.Context, caller, oracle common.Address) error
	RevokeOracle(ctx context.Context, caller, oracle common.Address) error
	SetModulePaused(ctx context.Context, caller common.Address, module string, paused bool) error

	Vaults() ([]*vault.Vault, error)
	Status(addr common.Address) (*core.VaultStatus, error)
	PreviewWrap(addr common.Address, amount uint64) (vault.WrapQuote, error)
	PreviewUnwrap(addr common.Address, amount uint64) (vault.UnwrapQuote, error)
	Policy(addr common.Address) (vault.Policy, error)
	Balance(asset, owner common.Address) (uint64, error)
}

// Journal records API mutations.
type Journal interface {
	RecordOperation(ctx context.Context, op *storage.Operation) error
	Operations(ctx context.Context, vault string, limit int) ([]storage.Operation, error)
}

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	ShutdownGrace time.Duration
	RateLimit     RateLimit
}

// Server exposes the vault engine over JSON/HTTP.
type Server struct {
	cfg     Config
	backend Backend
	journal Journal
	auth    *Authenticator
	limiter *RateLimiter
	parsers *oraclefeed.Registry
	logger  *slog.Logger
	nowFn   func() time.Time
	handler http.Handler
}

// New constructs a new HTTP server.
func New(cfg Config, backend Backend, journal Journal, auth *Authenticator, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	srv := &Server{
		cfg:     cfg,
		backend: backend,
		journal: journal,
		auth:    auth,
		limiter: NewRateLimiter(cfg.RateLimit),
		parsers: oraclefeed.DefaultRegistry(),
		logger:  logger,
		nowFn:   time.Now,
	}
	srv.handler = otelhttp.NewHandler(srv.routes(), "vaultd")
	return srv, nil
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Get("/vaults", s.handleListVaults)
		r.Get("/vaults/{vault}", s.handleStatus)
		r.Get("/vaults/{vault}/preview/wrap", s.handlePreviewWrap)
		r.Get("/vaults/{vault}/preview/unwrap", s.handlePreviewUnwrap)
		r.Get("/vaults/{vault}/policy", s.handleGetPolicy)
		r.Get("/balances/{asset}/{owner}", s.handleBalance)
		r.Get("/journal", s.handleJournal)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(ScopeUser))
			r.Post("/vaults", s.handleCreateVault)
			r.Post("/vaults/{vault}/wrap", s.handleWrap)
			r.Post("/vaults/{vault}/unwrap", s.handleUnwrap)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(ScopeOracle))
			r.Post("/vaults/{vault}/oracle", s.handleOraclePrice)
			r.Post("/vaults/{vault}/arbitrage", s.handleArbitrage)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(ScopeGovernance))
			r.Post("/vaults/{vault}/rebalance", s.handleRebalance)
			r.Post("/vaults/{vault}/pause", s.handlePause(true))
			r.Post("/vaults/{vault}/unpause", s.handlePause(false))
			r.Post("/vaults/{vault}/close", s.handleClose)
			r.Post("/vaults/{vault}/rewards/distribute", s.handleDistribute)
			r.Put("/vaults/{vault}/policy", s.handleSetPolicy)
			r.Post("/oracles", s.handleOracleAuthorization)
			r.Post("/modules/{module}/pause", s.handleModulePause)
		})
	})
	return r
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		method := r.Method + " " + routePattern(r)
		observability.ModuleMetrics().Observe("vault", method, ww.Status(), time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", s.cfg.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// record journals a mutation outcome. Journal failures are logged only.
func (s *Server) record(ctx context.Context, kind string, vaultAddr, actor common.Address, amount uint64, result string, err error) {
	if s.journal == nil {
		return
	}
	op := &storage.Operation{
		Kind:    kind,
		Vault:   vaultAddr.Hex(),
		Actor:   actor.Hex(),
		Amount:  amount,
		Result:  result,
		Outcome: storage.OutcomeSuccess,
	}
	if err != nil {
		op.Outcome = storage.OutcomeFailed
		op.Error = err.Error()
		if len(op.Error) > 512 {
			op.Error = op.Error[:512]
		}
	}
	if jerr := s.journal.RecordOperation(context.WithoutCancel(ctx), op); jerr != nil {
		s.logger.Warn("journal operation", "kind", kind, "error", jerr)
	}
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}
