package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/s-celles/bemserver-core/internal/config"
	"github.com/s-celles/bemserver-core/internal/prepare"
)

const redisProbeName = "redis"

// brokerProbeKey is round-tripped through the broker during CheckBroker to
// verify the instance is writable, not just reachable.
const brokerProbeKey = "bemboot:broker-check"

// brokerConn is the subset of the go-redis client used here, implemented by
// realBrokerConn and by test doubles.
type brokerConn interface {
	PingResult(ctx context.Context) (string, error)
	RoundTrip(ctx context.Context, key, value string) error
	Close() error
}

// realBrokerConn adapts *redis.Client to brokerConn. The wrapper exists so
// tests can inject a fake without constructing real *redis.StatusCmd values.
type realBrokerConn struct {
	client *redis.Client
}

func (r *realBrokerConn) PingResult(ctx context.Context) (string, error) {
	return r.client.Ping(ctx).Result()
}

func (r *realBrokerConn) RoundTrip(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, time.Minute).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	got, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if got != value {
		return fmt.Errorf("round-trip mismatch: wrote %q, read %q", value, got)
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

func (r *realBrokerConn) Close() error {
	return r.client.Close()
}

// RedisClient verifies the Celery broker behind a circuit breaker. The
// bootstrap never enqueues tasks itself; it only proves the broker the
// application is configured with will accept them.
type RedisClient struct {
	cfg  config.BrokerConfig
	cb   *gobreaker.CircuitBreaker
	conn brokerConn
}

// NewRedisClient creates a RedisClient. The real go-redis client is built
// lazily on first use.
func NewRedisClient(cfg config.BrokerConfig, cb *gobreaker.CircuitBreaker) *RedisClient {
	return &RedisClient{
		cfg: cfg,
		cb:  cb,
	}
}

func (c *RedisClient) dial() (brokerConn, bool) {
	if c.conn != nil {
		return c.conn, false
	}
	return &realBrokerConn{
		client: redis.NewClient(&redis.Options{
			Addr:     c.cfg.Addr(),
			Password: c.cfg.Password,
			DB:       c.cfg.DB,
		}),
	}, true
}

// CheckBroker pings the broker and round-trips a probe key to confirm the
// configured database is writable. Part of prepareStorage; any failure is
// fatal to the bootstrap.
func (c *RedisClient) CheckBroker(ctx context.Context) error {
	_, err := c.cb.Execute(func() (any, error) {
		conn, owned := c.dial()
		if owned {
			defer conn.Close() //nolint:errcheck
		}

		val, err := conn.PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}

		if err := conn.RoundTrip(ctx, brokerProbeKey, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return nil, fmt.Errorf("probe key round-trip: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		return errors.New("redis circuit open")
	}
	return err
}

// Probe pings the broker and reports latency. Used by the preflight command;
// unlike CheckBroker it does not write anything.
func (c *RedisClient) Probe(ctx context.Context) prepare.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		conn, owned := c.dial()
		if owned {
			defer conn.Close() //nolint:errcheck
		}

		val, err := conn.PingResult(ctx)
		if err != nil {
			return nil, fmt.Errorf("ping: %w", err)
		}
		if val != "PONG" {
			return nil, fmt.Errorf("unexpected PING response: %q", val)
		}
		return nil, nil
	})

	latency := time.Since(start).Milliseconds()

	if err != nil {
		errMsg := err.Error()
		if errors.Is(err, gobreaker.ErrOpenState) {
			errMsg = "circuit open"
		}
		return prepare.ProbeResult{
			Name:      redisProbeName,
			OK:        false,
			LatencyMs: latency,
			Error:     errMsg,
		}
	}

	return prepare.ProbeResult{
		Name:      redisProbeName,
		OK:        true,
		LatencyMs: latency,
	}
}
