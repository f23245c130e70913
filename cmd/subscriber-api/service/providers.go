// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/auth"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mailer"
	infrastructure "github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/mock"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/nats"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/postgres"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/infrastructure/redis"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/constants"
	"github.com/linuxfoundation/lfx-v2-subscriber-service/pkg/httpclient"
)

// Backend source names.
const (
	sourceNATS     = "nats"
	sourceMock     = "mock"
	sourceRedis    = "redis"
	sourcePostgres = "postgres"
	sourceHTTP     = "http"
	sourceJWT      = "jwt"
)

var (
	natsClient *nats.NATSClient
	natsDoOnce sync.Once

	redisClient *redis.Client
	redisDoOnce sync.Once

	postgresDB     *sql.DB
	postgresDoOnce sync.Once

	mockRepo     *infrastructure.MockRepository
	mockDoOnce   sync.Once
	mockNotifier = infrastructure.NewMockConfirmationNotifier()
)

func natsInit(ctx context.Context) {
	natsDoOnce.Do(func() {
		natsURL := os.Getenv(constants.EnvNATSURL)
		if natsURL == "" {
			natsURL = "nats://localhost:4222"
		}

		natsTimeout := os.Getenv("NATS_TIMEOUT")
		if natsTimeout == "" {
			natsTimeout = "10s"
		}
		natsTimeoutDuration, err := time.ParseDuration(natsTimeout)
		if err != nil {
			log.Fatalf("invalid NATS timeout duration: %v", err)
		}

		natsMaxReconnect := os.Getenv("NATS_MAX_RECONNECT")
		if natsMaxReconnect == "" {
			natsMaxReconnect = "3"
		}
		natsMaxReconnectInt, err := strconv.Atoi(natsMaxReconnect)
		if err != nil {
			log.Fatalf("invalid NATS max reconnect value %s: %v", natsMaxReconnect, err)
		}

		natsReconnectWait := os.Getenv("NATS_RECONNECT_WAIT")
		if natsReconnectWait == "" {
			natsReconnectWait = "2s"
		}
		natsReconnectWaitDuration, err := time.ParseDuration(natsReconnectWait)
		if err != nil {
			log.Fatalf("invalid NATS reconnect wait duration %s : %v", natsReconnectWait, err)
		}

		config := nats.Config{
			URL:           natsURL,
			Timeout:       natsTimeoutDuration,
			MaxReconnect:  natsMaxReconnectInt,
			ReconnectWait: natsReconnectWaitDuration,
			Credentials:   os.Getenv(constants.EnvNATSCredentials),
		}

		client, errNewClient := nats.NewClient(ctx, config)
		if errNewClient != nil {
			log.Fatalf("failed to create NATS client: %v", errNewClient)
		}
		natsClient = client
	})
}

// GetNATSClient returns the shared NATS client, connecting on first use
func GetNATSClient(ctx context.Context) *nats.NATSClient {
	natsInit(ctx)
	return natsClient
}

func redisClientImpl(ctx context.Context) *redis.Client {
	redisDoOnce.Do(func() {
		client, err := redis.NewClient(ctx, os.Getenv(constants.EnvRedisURL))
		if err != nil {
			log.Fatalf("failed to create redis client: %v", err)
		}
		redisClient = client
	})
	return redisClient
}

func postgresImpl(ctx context.Context) *sql.DB {
	postgresDoOnce.Do(func() {
		db, err := postgres.Open(ctx, os.Getenv(constants.EnvPostgresDSN))
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		postgresDB = db
	})
	return postgresDB
}

func mockRepositoryImpl(ctx context.Context) *infrastructure.MockRepository {
	mockDoOnce.Do(func() {
		mockRepo = infrastructure.NewMockRepository()
		if seedFile := os.Getenv("MOCK_SEED_FILE"); seedFile != "" {
			if err := mockRepo.LoadSeedFile(seedFile); err != nil {
				log.Fatalf("failed to load mock seed file %s: %v", seedFile, err)
			}
			slog.InfoContext(ctx, "mock repository seeded", "file", seedFile)
		}
	})
	return mockRepo
}

func envSource(key, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(key))); v != "" {
		return v
	}
	return fallback
}

func repositorySource() string {
	return envSource("REPOSITORY_SOURCE", sourceNATS)
}

// CatalogReader initializes the list and field schema reader
func CatalogReader(ctx context.Context) port.CatalogReader {
	switch source := repositorySource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock catalog reader")
		return infrastructure.NewMockCatalogReader(mockRepositoryImpl(ctx))
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS catalog reader")
		return nats.NewCatalogStorage(GetNATSClient(ctx))
	default:
		log.Fatalf("unsupported catalog reader implementation: %s", source)
	}
	return nil
}

// SubscriberRepository initializes the subscriber storage
func SubscriberRepository(ctx context.Context) port.SubscriberRepository {
	switch source := repositorySource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock subscriber repository")
		return infrastructure.NewMockSubscriberRepository(mockRepositoryImpl(ctx))
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS subscriber repository")
		return nats.NewSubscriberStorage(GetNATSClient(ctx))
	default:
		log.Fatalf("unsupported subscriber repository implementation: %s", source)
	}
	return nil
}

func blacklistSource() string {
	return envSource("BLACKLIST_SOURCE", repositorySource())
}

// BlacklistRepository initializes the platform blacklist storage
func BlacklistRepository(ctx context.Context) port.BlacklistRepository {
	switch source := blacklistSource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock blacklist repository")
		return infrastructure.NewMockBlacklistRepository(mockRepositoryImpl(ctx))
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS blacklist repository")
		return nats.NewBlacklistStorage(GetNATSClient(ctx))
	case sourcePostgres:
		slog.InfoContext(ctx, "initializing postgres blacklist repository")
		return postgres.NewBlacklistRepository(postgresImpl(ctx))
	default:
		log.Fatalf("unsupported blacklist repository implementation: %s", source)
	}
	return nil
}

func confirmationSource() string {
	return envSource("CONFIRMATION_SOURCE", repositorySource())
}

// ConfirmationStore initializes the pending confirmation store
func ConfirmationStore(ctx context.Context) port.ConfirmationStore {
	switch source := confirmationSource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock confirmation store")
		return infrastructure.NewMockConfirmationStore(mockRepositoryImpl(ctx))
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS confirmation store")
		return nats.NewConfirmationStorage(GetNATSClient(ctx))
	case sourceRedis:
		slog.InfoContext(ctx, "initializing redis confirmation store")
		return redis.NewConfirmationStore(redisClientImpl(ctx).Client)
	default:
		log.Fatalf("unsupported confirmation store implementation: %s", source)
	}
	return nil
}

func notifierSource() string {
	fallback := sourceNATS
	if repositorySource() == sourceMock {
		fallback = sourceMock
	}
	return envSource("NOTIFIER_SOURCE", fallback)
}

// ConfirmationNotifier initializes the confirmation notice dispatcher
func ConfirmationNotifier(ctx context.Context) port.ConfirmationNotifier {
	switch source := notifierSource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock confirmation notifier")
		return mockNotifier
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS confirmation notifier")
		return nats.NewConfirmationNotifier(GetNATSClient(ctx))
	case sourceHTTP:
		slog.InfoContext(ctx, "initializing HTTP mailer confirmation notifier")
		notifier, err := mailer.NewNotifier(mailer.Config{
			URL:          os.Getenv("MAILER_URL"),
			TokenURL:     os.Getenv("MAILER_TOKEN_URL"),
			ClientID:     os.Getenv("MAILER_CLIENT_ID"),
			ClientSecret: os.Getenv("MAILER_CLIENT_SECRET"),
			HTTP:         httpclient.DefaultConfig(),
		})
		if err != nil {
			log.Fatalf("failed to initialize mailer notifier: %v", err)
		}
		return notifier
	default:
		log.Fatalf("unsupported confirmation notifier implementation: %s", source)
	}
	return nil
}

// MessagePublisher initializes the subscriber event publisher
func MessagePublisher(ctx context.Context) port.MessagePublisher {
	switch source := repositorySource(); source {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock message publisher")
		return infrastructure.NewMockMessagePublisher()
	case sourceNATS:
		slog.InfoContext(ctx, "initializing NATS message publisher")
		return nats.NewMessagePublisher(GetNATSClient(ctx))
	default:
		log.Fatalf("unsupported message publisher implementation: %s", source)
	}
	return nil
}

// AuthService initializes the authentication service implementation
func AuthService(ctx context.Context) port.Authenticator {
	var authService port.Authenticator

	switch authSource := envSource("AUTH_SOURCE", sourceJWT); authSource {
	case sourceMock:
		slog.InfoContext(ctx, "initializing mock authentication service")
		authService = infrastructure.NewMockAuthService()
	case sourceJWT:
		slog.InfoContext(ctx, "initializing JWT authentication service")
		jwtConfig := auth.JWTAuthConfig{
			JWKSURL:            os.Getenv("JWKS_URL"),
			Audience:           os.Getenv("JWT_AUDIENCE"),
			Issuer:             os.Getenv("JWT_ISSUER"),
			MockLocalPrincipal: os.Getenv("JWT_AUTH_DISABLED_MOCK_LOCAL_PRINCIPAL"),
		}
		jwtAuth, err := auth.NewJWTAuth(jwtConfig)
		if err != nil {
			log.Fatalf("failed to initialize JWT authentication service: %v", err)
		}
		authService = jwtAuth
	default:
		log.Fatalf("unsupported authentication service implementation: %s", authSource)
	}

	return authService
}

// ReadinessCheckers returns a checker for every backing store in use
func ReadinessCheckers(ctx context.Context) []port.ReadinessChecker {
	var checkers []port.ReadinessChecker

	usesNATS := repositorySource() == sourceNATS || blacklistSource() == sourceNATS ||
		confirmationSource() == sourceNATS || notifierSource() == sourceNATS
	if usesNATS {
		checkers = append(checkers, GetNATSClient(ctx))
	}
	if repositorySource() == sourceMock {
		checkers = append(checkers, mockRepositoryImpl(ctx))
	}
	if blacklistSource() == sourcePostgres {
		checkers = append(checkers, postgres.NewReadinessChecker(postgresImpl(ctx)))
	}
	if confirmationSource() == sourceRedis {
		checkers = append(checkers, redisClientImpl(ctx))
	}
	return checkers
}

func confirmationTTL() time.Duration {
	raw := os.Getenv("CONFIRMATION_TTL")
	if raw == "" {
		return constants.DefaultConfirmationTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		log.Fatalf("invalid CONFIRMATION_TTL %q: %v", raw, err)
	}
	return ttl
}

func addressCheckMX() bool {
	raw := os.Getenv("ADDRESS_CHECK_MX")
	if raw == "" {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		log.Fatalf("invalid ADDRESS_CHECK_MX value %s: %v", raw, err)
	}
	return enabled
}

// LifecycleBlacklistGuard initializes the blacklist guard
func LifecycleBlacklistGuard(ctx context.Context) *service.BlacklistGuard {
	return service.NewBlacklistGuard(BlacklistRepository(ctx))
}

// SubscriptionStateMachine wires the lifecycle core to the configured backends
func SubscriptionStateMachine(ctx context.Context, blacklist *service.BlacklistGuard) *service.SubscriptionStateMachine {
	catalog := CatalogReader(ctx)
	subscribers := SubscriberRepository(ctx)

	return service.NewSubscriptionStateMachine(
		service.WithListReader(catalog),
		service.WithFieldReader(catalog),
		service.WithSubscriberRepository(subscribers),
		service.WithBlacklistGuard(blacklist),
		service.WithAddressValidator(service.NewAddressValidator(subscribers, service.WithMXCheck(addressCheckMX()))),
		service.WithConfirmationWorkflow(service.NewConfirmationWorkflow(ConfirmationStore(ctx), ConfirmationNotifier(ctx), confirmationTTL())),
		service.WithPublisher(MessagePublisher(ctx)),
	)
}

// CloseClients closes every backend connection opened by the providers
func CloseClients(ctx context.Context) {
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			slog.ErrorContext(ctx, "error closing NATS connection", "error", err)
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.ErrorContext(ctx, "error closing redis connection", "error", err)
		}
	}
	if postgresDB != nil {
		if err := postgresDB.Close(); err != nil {
			slog.ErrorContext(ctx, "error closing postgres connection", "error", err)
		}
	}
}

// TrustedProxies returns the peers allowed to set X-Forwarded-For
func TrustedProxies(ctx context.Context) []netip.Prefix {
	raw := os.Getenv("TRUSTED_PROXIES")
	prefixes, err := middleware.ParseTrustedProxies(raw)
	if err != nil {
		log.Fatalf("invalid TRUSTED_PROXIES %q: %v", raw, err)
	}
	if len(prefixes) > 0 {
		slog.InfoContext(ctx, "honoring X-Forwarded-For from trusted proxies", "count", len(prefixes))
	}
	return prefixes
}
