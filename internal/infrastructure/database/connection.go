package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/openacre/land-exchange-backend/internal/infrastructure/config"
)

// ConnectionPool wraps a pgx pool with a circuit breaker, periodic
// health checks and basic metrics. The overlap detector fails closed
// when this pool is unavailable, so the breaker keeps a flapping
// database from hammering every publish request.
type ConnectionPool struct {
	pool            *pgxpool.Pool
	config          *config.DatabaseConfig
	logger          *zap.Logger
	healthCheckStop chan struct{}
	stopOnce        sync.Once
	metrics         *ConnectionMetrics
	circuitBreaker  *CircuitBreaker
}

// ConnectionMetrics tracks database performance counters.
type ConnectionMetrics struct {
	mu sync.RWMutex

	TotalConnections    int64
	ActiveConnections   int64
	IdleConnections     int64
	MaxLifetimeClosures int64

	TransactionsStarted    int64
	TransactionsCommitted  int64
	TransactionsRolledBack int64

	LastHealthCheck time.Time
}

// CircuitBreaker implements the circuit breaker pattern for database
// connections.
type CircuitBreaker struct {
	mu              sync.Mutex
	failureCount    int
	lastFailureTime time.Time
	state           CircuitState
	timeout         time.Duration
	threshold       int
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// NewConnectionPool connects to the primary database and starts the
// health check and metrics routines.
func NewConnectionPool(cfg *config.DatabaseConfig, logger *zap.Logger) (*ConnectionPool, error) {
	pool := &ConnectionPool{
		config:          cfg,
		logger:          logger,
		healthCheckStop: make(chan struct{}),
		metrics:         &ConnectionMetrics{},
		circuitBreaker: &CircuitBreaker{
			timeout:   30 * time.Second,
			threshold: 10,
			state:     CircuitClosed,
		},
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool.configurePgxPool(poolConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool.pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	go pool.healthCheckRoutine()
	go pool.metricsCollectionRoutine()

	logger.Info("database connection pool initialized",
		zap.Int("max_connections", int(poolConfig.MaxConns)))

	return pool, nil
}

func (p *ConnectionPool) configurePgxPool(poolConfig *pgxpool.Config) {
	if p.config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(p.config.MaxOpenConns)
	} else {
		poolConfig.MaxConns = 25
	}
	if p.config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(p.config.MaxIdleConns)
	} else {
		poolConfig.MinConns = 5
	}
	if p.config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = p.config.ConnMaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}
	poolConfig.MaxConnIdleTime = 10 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	poolConfig.ConnConfig.RuntimeParams = map[string]string{
		"application_name":              "land_exchange",
		"timezone":                      "UTC",
		"lock_timeout":                  "10s",
		"statement_timeout":             "30s",
		"default_transaction_isolation": "read committed",
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		p.metrics.mu.Lock()
		p.metrics.TotalConnections++
		p.metrics.mu.Unlock()
		return nil
	}

	poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		if !p.circuitBreaker.Allow() {
			return false
		}
		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		return conn.Ping(ctx) == nil
	}
}

// Pool returns the underlying pgx pool.
func (p *ConnectionPool) Pool() *pgxpool.Pool {
	return p.pool
}

// Transaction executes a function within a database transaction.
func (p *ConnectionPool) Transaction(ctx context.Context, fn func(pgx.Tx) error) error {
	p.metrics.mu.Lock()
	p.metrics.TransactionsStarted++
	p.metrics.mu.Unlock()

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, fn)

	p.metrics.mu.Lock()
	if err != nil {
		p.metrics.TransactionsRolledBack++
		p.circuitBreaker.RecordFailure()
	} else {
		p.metrics.TransactionsCommitted++
		p.circuitBreaker.RecordSuccess()
	}
	p.metrics.mu.Unlock()

	return err
}

// Healthy reports whether the pool answered its last health check.
func (p *ConnectionPool) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.pool.Ping(ctx) == nil
}

func (p *ConnectionPool) healthCheckRoutine() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.performHealthCheck()
		case <-p.healthCheckStop:
			return
		}
	}
}

func (p *ConnectionPool) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.pool.Ping(ctx); err != nil {
		p.logger.Error("database health check failed", zap.Error(err))
		p.circuitBreaker.RecordFailure()
	}

	p.metrics.mu.Lock()
	p.metrics.LastHealthCheck = time.Now()
	p.metrics.mu.Unlock()
}

func (p *ConnectionPool) metricsCollectionRoutine() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.collectMetrics()
		case <-p.healthCheckStop:
			return
		}
	}
}

func (p *ConnectionPool) collectMetrics() {
	stats := p.pool.Stat()

	p.metrics.mu.Lock()
	p.metrics.ActiveConnections = int64(stats.AcquiredConns())
	p.metrics.IdleConnections = int64(stats.IdleConns())
	p.metrics.MaxLifetimeClosures = stats.MaxLifetimeDestroyCount()
	p.metrics.mu.Unlock()
}

// Close stops the background routines and closes the pool.
func (p *ConnectionPool) Close() error {
	p.stopOnce.Do(func() {
		close(p.healthCheckStop)
	})
	p.pool.Close()
	p.logger.Info("database connection pool closed")
	return nil
}

// CircuitBreaker methods
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	}
	return false
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.state = CircuitClosed
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// GetDB returns a standard database/sql handle for tools that need it,
// such as the migration runner.
func (p *ConnectionPool) GetDB() (*sql.DB, error) {
	return stdlib.OpenDBFromPool(p.pool), nil
}
