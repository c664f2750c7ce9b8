package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/account"
	"github.com/noah-isme/storefront-api/internal/analytics"
	"github.com/noah-isme/storefront-api/internal/audit"
	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/catalog"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/dashboard"
	"github.com/noah-isme/storefront-api/internal/events"
	"github.com/noah-isme/storefront-api/internal/health"
	"github.com/noah-isme/storefront-api/internal/lock"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/resilience"
	"github.com/noah-isme/storefront-api/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "storefront-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger, metricsEnabled)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	bus := &events.Bus{
		Store:     events.NewMemoryStore(cfg.EventsCapacity),
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()}},
	}

	repo, err := catalog.NewSeededRepository()
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog fixture")
	}
	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL).WithBreaker(resilience.NewBreaker(resilience.Config{
		Target:       "catalog_cache",
		MinRequests:  envInt("CACHE_BREAKER_MIN_REQUESTS", 10),
		FailureRatio: envFloat("CACHE_BREAKER_FAILURE_RATIO", 0.5),
		OpenFor:      envDurationMillis("CACHE_BREAKER_OPEN_MS", 30000),
		Logger:       logger,
	}))
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Repository:   repo,
		Cache:        catalogCache,
		Logger:       logger,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, DefaultLocale: cfg.DefaultLocale})

	var (
		cartStore cart.Store
		locker    lock.Locker
	)
	if redisClient != nil {
		cartStore = cart.RedisStore{R: redisClient}
		locker = lock.Redis{R: redisClient}
	} else {
		cartStore = cart.NewMemoryStore()
		locker = lock.NewLocal()
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	cartSvc, err := cart.NewService(cart.ServiceConfig{
		Store:   cartStore,
		Catalog: catalogService,
		Locker:  locker,
		Events:  bus,
		Logger:  logger,
		TTL:     cfg.CartTTL,
		LockTTL: cfg.LockTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Idem: idem, DefaultLocale: cfg.DefaultLocale}

	accountSvc, err := account.NewService(account.ServiceConfig{Catalog: catalogService})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise account service")
	}
	if err := accountSvc.EnsureDemo(ctx, cfg.DemoCustomerID); err != nil {
		logger.Fatal().Err(err).Msg("seed demo customer")
	}
	accountHandler := &account.Handler{Service: accountSvc, DefaultLocale: cfg.DefaultLocale}

	checkoutSvc, err := checkout.NewService(checkout.ServiceConfig{
		Carts:     cartSvc,
		Accounts:  accountSvc,
		Inventory: repo,
		Catalog:   catalogService,
		Events:    bus,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise checkout service")
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Idem: idem}

	dashboardSvc, err := dashboard.NewService(dashboard.ServiceConfig{
		Repository:        repo,
		Cache:             catalogService,
		Events:            bus,
		Logger:            logger,
		LowStockThreshold: cfg.LowStockThreshold,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dashboard service")
	}
	dashboardHandler := &dashboard.Handler{Svc: dashboardSvc}

	auditStore := audit.NewMemoryStore(envInt("AUDIT_CAPACITY", 1000))
	auditRecorder := audit.HTTPRecorder{
		Service:          &audit.Service{Store: auditStore, Enabled: envBool("AUDIT_ENABLED", true), SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1)},
		OnError:          func(err error) { logger.Warn().Err(err).Msg("record audit entry") },
		ResourceIDParams: []string{"id", "slug"},
	}

	analyticsSvc := &analytics.Service{Orders: accountSvc, R: redisClient, TTL: cfg.AnalyticsCacheTTL, DefaultRange: cfg.AnalyticsRangeDays}
	analyticsHandler := &analytics.Handler{Svc: analyticsSvc}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeaders,
		EnableHSTS:            cfg.HSTSEnabled,
		HSTSMaxAge:            cfg.HSTSMaxAge,
		HSTSIncludeSubdomains: cfg.HSTSIncludeSubdomains,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", account.CustomerHeader},
		ExposedHeaders: []string{"X-RateLimit-Remaining", "X-RateLimit-Reset", common.ReplayHeader},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", basicAuth(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)}
	if redisClient != nil {
		healthHandler.Checkers = append(healthHandler.Checkers, health.Redis{Client: redisClient})
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	limits := ratelimit.Handler{
		Limiter: newLimiter(cfg, redisClient, logger),
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limits.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		catalogHandler.Routes(v)

		v.Group(func(shop chi.Router) {
			shop.Use(account.Identify(cfg.DemoCustomerID))
			shop.Route("/carts", cartHandler.Routes)
			shop.Route("/checkout", checkoutHandler.Routes)
			shop.Route("/account", accountHandler.Routes)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(func(next http.Handler) http.Handler {
				return basicAuth(next, envOrDefault("ADMIN_BASIC_AUTH_USER", ""), envOrDefault("ADMIN_BASIC_AUTH_PASS", ""))
			})
			admin.Use(auditRecorder.Middleware)
			dashboardHandler.Routes(admin)
			admin.Get("/audit-logs", audit.Handler{Store: auditStore}.List)
			admin.Route("/analytics", analyticsHandler.Routes)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Bool("redis", redisClient != nil).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// connectRedis returns nil when no Redis URL is configured.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) *redis.Client {
	if !cfg.RedisEnabled() {
		logger.Info().Msg("redis disabled, using in-memory stores")
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func newLimiter(cfg *config.Config, client *redis.Client, logger zerolog.Logger) ratelimit.Limiter {
	switch {
	case cfg.RateLimitStrategy == "off":
		return nil
	case cfg.RateLimitStrategy == "sliding" && client != nil:
		return ratelimit.Sliding{Client: client, Prefix: "rl:api:"}
	case cfg.RateLimitStrategy == "fixed" && client != nil:
		fixed, err := ratelimit.NewRedisFixed(client, "rl:api:")
		if err != nil {
			logger.Error().Err(err).Msg("initialise redis rate limiter, falling back to memory")
			return ratelimit.NewMemory("rl:api:")
		}
		return fixed
	default:
		return ratelimit.NewMemory("rl:api:")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

// newPprofMux routes on chi's route path; pprof.Index reads the profile name
// from the full URL under /debug/pprof/.
func newPprofMux() http.Handler {
	r := chi.NewRouter()
	r.Get("/", pprof.Index)
	r.Get("/cmdline", pprof.Cmdline)
	r.Get("/profile", pprof.Profile)
	r.HandleFunc("/symbol", pprof.Symbol)
	r.Get("/trace", pprof.Trace)
	r.Get("/{profile}", pprof.Index)
	return r
}

// basicAuth is a pass-through when user is empty.
func basicAuth(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
