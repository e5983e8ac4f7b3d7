package config

// This file defines a Redis client constructor for the application. Redis is
// used for distributed rate limiting and as a read tier in front of the movie
// table. If the server cannot be reached during startup the constructor
// returns nil and callers degrade gracefully: the rate limiter falls back to
// in-process limiters and movie lookups go straight to MySQL.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig holds the connection settings. Addr takes precedence unless
// both Host and Port are set.
type RedisConfig struct {
	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
	TLS      bool   `envconfig:"TLS" default:"false"`
}

// Address resolves the host:port to dial.
func (c RedisConfig) Address() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	if c.Addr == "" {
		return "localhost:6379"
	}
	return c.Addr
}

// NewRedisClient instantiates a Redis client from cfg and pings it. The
// returned client is nil when Redis is disabled or unreachable.
func NewRedisClient(cfg RedisConfig, log logrus.FieldLogger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout. Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Address()).Warn("redis unavailable, continuing without it")
		_ = client.Close()
		return nil
	}
	return client
}
