package internal

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/travelblog/internal/auth"
	"github.com/2beens/travelblog/internal/blog"
	"github.com/2beens/travelblog/internal/config"
	"github.com/2beens/travelblog/internal/countries"
	"github.com/2beens/travelblog/internal/db"
	"github.com/2beens/travelblog/internal/middleware"
	"github.com/2beens/travelblog/internal/misc"
	"github.com/2beens/travelblog/internal/telemetry/metrics"
	"github.com/2beens/travelblog/internal/telemetry/tracing"
	"github.com/2beens/travelblog/internal/uploads"
	"github.com/2beens/travelblog/internal/users"
	"github.com/2beens/travelblog/internal/web"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName    = "travelblog"
	csrfCookieName = "tb_csrf"
	msgCSRFFailed  = "The form has expired or was not sent from this site. Please go back, reload the page and try again."
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	sessions    *auth.Sessions
	csrfKey     []byte
	imageStore  *uploads.DiskStore
	renderer    *web.Renderer

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	SessionSecret           string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DatabaseURL:    cfg.DatabaseURL,
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	if err := db.RunMigrations(ctx, dbPool); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	seeded, err := countries.Seed(ctx, countries.NewRepo(dbPool))
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("seed countries: %w", err)
	}
	log.Debugf("countries seeded: %d new", seeded)

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager(serviceName, "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, serviceName, rdb)
	if err != nil {
		return nil, err
	}

	authService := auth.NewAuthService(cfg.SessionTTL.Duration, rdb)
	cookieCodec, err := auth.NewCookieCodec(params.SessionSecret, authService.TTL(), cfg.SecureCookie)
	if err != nil {
		return nil, fmt.Errorf("new cookie codec: %w", err)
	}

	imageStore, err := uploads.NewDiskStore(cfg.UploadsPath)
	if err != nil {
		return nil, fmt.Errorf("new uploads disk store: %w", err)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}

	return &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
		dbPool:      dbPool,
		redisClient: rdb,
		sessions:    auth.NewSessions(authService, cookieCodec),
		csrfKey:     csrfKey(params.SessionSecret),
		imageStore:  imageStore,
		renderer:    renderer,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware(serviceName + "-router"))

	// login & register: POST requests are rate limited per client ip
	authRouter := r.NewRoute().Subrouter()
	usersHandler := users.NewHandler(
		users.NewService(users.NewRepo(s.dbPool)),
		s.sessions,
		s.renderer,
		s.metricsManager,
	)
	usersHandler.SetupRoutes(authRouter)
	authRouter.Use(middleware.RateLimit(
		redis_rate.NewLimiter(s.redisClient),
		"auth",
		s.config.AuthRateLimitAllowedPerMin,
		s.metricsManager,
	))

	blogHandler := blog.NewHandler(
		blog.NewService(
			blog.NewRepo(s.dbPool),
			countries.NewRepo(s.dbPool),
			s.imageStore,
		),
		s.renderer,
		s.metricsManager,
		blog.HandlerParams{
			HomePostsCount:  s.config.HomePostsCount,
			ExplorePageSize: s.config.ExplorePageSize,
			MaxUploadSize:   s.config.MaxUploadSizeBytes(),
		},
	)
	blogHandler.SetupRoutes(r)

	csrfProtect := csrf.Protect(
		s.csrfKey,
		csrf.Secure(s.config.SecureCookie),
		csrf.Path("/"),
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(web.CSRFFieldName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	)

	// delete is a plain link, so its token comes in the query
	deleteRoute := r.Get("delete-post")
	deleteRoute.Handler(
		middleware.CSRFQueryToken(csrfProtect, web.CSRFFieldName, http.HandlerFunc(s.csrfFailure))(deleteRoute.GetHandler()),
	)

	miscHandler := misc.NewHandler(s.renderer, s.versionInfo, map[string]misc.HealthCheck{
		"postgres": s.dbPool.Ping,
		"redis": func(ctx context.Context) error {
			return s.redisClient.Ping(ctx).Err()
		},
	})
	miscHandler.SetupRoutes(r)

	r.PathPrefix("/static/uploads/").
		Handler(otelhttp.NewHandler(s.imageStore.Handler(), "uploads")).
		Methods("GET", "HEAD").
		Name("uploads")

	// all the rest - unhandled paths
	r.NotFoundHandler = middleware.Identity(s.sessions)(http.HandlerFunc(s.renderer.NotFound))

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Identity(s.sessions))
	r.Use(middleware.DrainAndCloseRequest(s.config.MaxUploadSizeBytes()))
	r.Use(middleware.PlaintextCSRF(!s.config.SecureCookie))
	r.Use(middleware.RequestBodyLimit(s.config.MaxUploadSizeBytes(), http.HandlerFunc(s.renderer.RequestTooLarge)))
	r.Use(csrfProtect)

	return r
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	log.Debugf("csrf check failed [%s %s]: %v", r.Method, r.URL.Path, csrf.FailureReason(r))
	s.renderer.Forbidden(w, r, msgCSRFFailed)
}

// csrfKey derives the 32 byte csrf cookie key from the session secret.
func csrfKey(sessionSecret string) []byte {
	sum := sha256.Sum256([]byte("csrf|" + sessionSecret))
	return sum[:]
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests first, handlers still need db and redis
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown http server: %s", err)
		}
		log.Warnln("server shut down")
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Errorf(" >>> failed to gracefully shutdown metrics http server: %s", err)
		}
		log.Warnln("metrics server shut down")
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}
}
