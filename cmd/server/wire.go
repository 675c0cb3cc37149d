package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fieldbook/backend/internal/config"
	"fieldbook/backend/internal/db"
	"fieldbook/backend/internal/security"

	auditrepo "fieldbook/backend/internal/audit/repository"
	blacklistrepo "fieldbook/backend/internal/blacklist/repository"
	healthhandler "fieldbook/backend/internal/health/handler"
	refreshrepo "fieldbook/backend/internal/refreshtoken/repository"
	sessionrepo "fieldbook/backend/internal/session/repository"
	userrepo "fieldbook/backend/internal/user/repository"
)

const blacklistKeyPrefix = "fieldbook:blacklist"

// stores bundles the persistence chosen by STORE_DRIVER.
type stores struct {
	users    userrepo.Repository
	tokens   refreshrepo.Repository
	sessions sessionrepo.Repository
	audit    auditrepo.Repository
	conn     *sql.DB
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		return &stores{
			users:    userrepo.NewMemoryRepository(),
			tokens:   refreshrepo.NewMemoryRepository(),
			sessions: sessionrepo.NewMemoryRepository(),
			audit:    auditrepo.NewMemoryRepository(),
		}, nil
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &stores{
		users:    userrepo.NewPostgresRepository(conn),
		tokens:   refreshrepo.NewPostgresRepository(conn),
		sessions: sessionrepo.NewPostgresRepository(conn),
		audit:    auditrepo.NewPostgresRepository(conn),
		conn:     conn,
	}, nil
}

func (s *stores) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// openBlacklist returns the Redis store when REDIS_URL is set, otherwise the in-process store.
// The returned check is nil for the in-process store.
func openBlacklist(cfg *config.Config) (blacklistrepo.Store, *redis.Client, *healthhandler.Check, error) {
	if cfg.RedisURL == "" {
		return blacklistrepo.NewMemoryStore(), nil, nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opts)
	check := &healthhandler.Check{
		Name:  "redis",
		Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	return blacklistrepo.NewRedisStore(rdb, blacklistKeyPrefix), rdb, check, nil
}

// newTokenCodec prefers an asymmetric key pair and falls back to the HS256 secret.
func newTokenCodec(cfg *config.Config) (*security.TokenCodec, error) {
	if cfg.JWTPrivateKey == "" {
		return security.NewHMACTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	}
	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("jwt private key: %w", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwt public key: %w", err)
	}
	return security.NewTokenCodec(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
}
