package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"attestd/internal/config"
	"attestd/internal/domain"
	"attestd/internal/infra/crypto"
	"attestd/internal/infra/db"
	"attestd/internal/infra/eventbus"
	"attestd/internal/infra/logging"
	"attestd/internal/infra/memstore"
	"attestd/internal/infra/policyopa"
	"attestd/internal/infra/ratelimit"
	"attestd/internal/usecase"
)

type Server struct {
	cfg    config.Config
	store  *db.Store
	redis  *redis.Client
	r      *gin.Engine
	logger *zap.Logger

	ca          *usecase.CertificateAuthority
	registry    *usecase.RevocationRegistry
	trust       *usecase.TrustFramework
	credentials *usecase.CredentialService
	events      usecase.EventLog

	adminAPIKey string
	initErr     error

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

// NewServer wires every service from cfg. A nil or disabled store selects
// the in-memory repositories.
func NewServer(ctx context.Context, cfg config.Config, store *db.Store, logger *zap.Logger) *Server {
	s := &Server{cfg: cfg, store: store, logger: orNop(logger)}
	s.r = s.newEngine()
	s.initDeps(ctx)
	s.initRateLimit(nil)
	s.routes()
	return s
}

type ServerDeps struct {
	CertificateAuthority *usecase.CertificateAuthority
	Registry             *usecase.RevocationRegistry
	Trust                *usecase.TrustFramework
	Credentials          *usecase.CredentialService
	Events               usecase.EventLog
	AdminAPIKey          string
	RateLimiter          domain.RateLimiter
	Logger               *zap.Logger
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      orNop(deps.Logger),
		ca:          deps.CertificateAuthority,
		registry:    deps.Registry,
		trust:       deps.Trust,
		credentials: deps.Credentials,
		events:      deps.Events,
		adminAPIKey: deps.AdminAPIKey,
	}
	s.r = s.newEngine()
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()
	r.Use(logging.RequestLogger(s.logger), logging.Recovery(s.logger))
	return r
}

func (s *Server) initDeps(ctx context.Context) {
	s.adminAPIKey = s.cfg.AdminAPIKey
	clock := usecase.Clock(time.Now)
	cryptoSvc := crypto.NewService()

	signer, err := loadAuthoritySigner(s.cfg, s.logger)
	if err != nil {
		s.initErr = err
		return
	}
	authority := usecase.Authority{ID: s.cfg.AuthorityID, Signer: signer}

	var (
		certs    usecase.CertificateRepository
		issuers  usecase.IssuerRepository
		revs     usecase.RevocationRepository
		epochs   usecase.RevocationEpochRepository
		indexes  usecase.StatusIndexRepository
		eventLog usecase.EventLog
	)
	if s.store.Enabled() {
		certs = db.NewCertificateRepository(s.store.DB)
		issuers = db.NewIssuerRepository(s.store.DB)
		revs = db.NewRevocationRepository(s.store.DB)
		epochs = db.NewRevocationEpochRepository(s.store.DB)
		indexes = db.NewStatusIndexRepository(s.store.DB)
		eventLog = db.NewEventLog(s.store.DB)
	} else {
		s.logger.Warn("POSTGRES_DSN not set; state is kept in memory")
		certs = memstore.NewCertificateStore()
		issuers = memstore.NewIssuerStore()
		revs = memstore.NewRevocationStore()
		epochs = memstore.NewEpochStore()
		indexes = memstore.NewStatusIndexStore()
		eventLog = memstore.NewEventLog()
	}
	s.events = eventLog

	publishers := eventbus.Multi{eventbus.NewLogPublisher(s.logger.Named("events"))}
	if s.cfg.RedisAddr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		if pub, err := eventbus.NewRedisPublisher(s.redis, s.cfg.EventChannel); err == nil {
			publishers = append(publishers, pub)
		}
	}
	emitter := usecase.NewEventEmitter(eventLog, publishers, clock, s.logger.Named("events"))

	s.registry = usecase.NewRevocationRegistry(revs, indexes, epochs, clock)
	s.registry.Events = emitter
	s.registry.Logger = s.logger.With(zap.String("service", "revocation_registry"))

	s.trust = usecase.NewTrustFramework(issuers, clock)
	s.trust.Events = emitter
	s.trust.Logger = s.logger.With(zap.String("service", "trust_framework"))

	s.ca = usecase.NewCertificateAuthority(authority, certs, cryptoSvc, clock)
	s.ca.Revocations = s.registry
	s.ca.Events = emitter
	s.ca.Logger = s.logger.With(zap.String("service", "certificate_authority"))

	s.credentials = usecase.NewCredentialService(authority, s.registry, s.trust, cryptoSvc, clock)
	s.credentials.Events = emitter
	s.credentials.StatusListURL = s.cfg.StatusListURL
	s.credentials.Logger = s.logger.With(zap.String("service", "credential_service"))
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(ctx, s.cfg.PolicyBundlePath, "issuance")
		if err != nil {
			s.initErr = err
			return
		}
		s.credentials.Policy = engine
		s.logger.Info("issuance policy loaded", zap.String("bundle_hash", engine.BundleHash()))
	}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	s.rateLimiter = override
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.redis != nil {
			if limiter, err := ratelimit.NewRedisLimiter(s.redis, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	s.rateLimitWindow = s.cfg.RateLimitWindow()
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)

	v1 := s.r.Group("/v1")
	{
		v1.POST("/certificates", s.handleIssueCertificate)
		v1.GET("/certificates", s.handleCertificateBySubject)
		v1.GET("/certificates/:id", s.handleGetCertificate)
		v1.GET("/certificates/:id/status", s.handleCertificateStatus)
		v1.GET("/certificates/:id/verify", s.handleVerifyCertificate)
		v1.POST("/certificates/:id_action", s.handleCertificateAction)

		v1.POST("/revocations", s.handleRevoke)
		v1.GET("/revocations", s.handleListRevocations)
		v1.GET("/revocations/:credential_id", s.handleGetRevocation)
		v1.POST("/revocations/:id_action", s.handleRevocationAction)
		v1.GET("/status-list", s.handleStatusList)

		v1.POST("/issuers", s.handleRegisterIssuer)
		v1.GET("/issuers", s.handleListIssuers)
		v1.GET("/issuers/:id", s.handleGetIssuer)
		v1.GET("/issuers/:id/children", s.handleChildIssuers)
		v1.GET("/issuers/:id/chain", s.handleIssuerChain)
		v1.POST("/issuers/:id_action", s.handleIssuerAction)

		v1.POST("/credentials", s.handleIssueCredential)
		v1.POST("/credentials/:id_action", s.handleCredentialAction)
		v1.POST("/presentations", s.handleCreatePresentation)

		v1.GET("/events", s.handleListEvents)
	}

	// Colon-suffixed collection routes cannot be registered with gin's
	// router; handleNoRoute dispatches them.
	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if s.redis != nil {
		_ = s.redis.Close()
	}
	return err
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
