// Package backend opens the record store and the optional event bus
// selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"dinamifin/internal/amqp"
	"dinamifin/internal/config"
	"dinamifin/internal/log"
	"dinamifin/internal/services"
	"dinamifin/internal/storage"
	"dinamifin/internal/storage/memory"
)

// Type names a storage backend.
type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

func (t Type) String() string { return string(t) }

func (t Type) Valid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	}
	return false
}

// Config is the subset of application configuration needed to open a
// backend.
type Config struct {
	Type Type

	SQLiteDBPath string
	Postgres     storage.PostgresConfig

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(c.DataBackend)
	if !t.Valid() {
		return Config{}, fmt.Errorf("invalid backend type %q", c.DataBackend)
	}
	return Config{
		Type:         t,
		SQLiteDBPath: c.SQLiteDBPath,
		Postgres: storage.PostgresConfig{
			DSN:      c.DatabaseURL,
			IAMAuth:  c.DBIAMAuth,
			Endpoint: c.DBEndpoint,
			Port:     c.DBPort,
			User:     c.DBUser,
			Name:     c.DBName,
			Region:   c.AWSRegion,
			Profile:  c.AWSProfile,
		},
		AMQPURL:      c.AMQPURL,
		AMQPExchange: c.AMQPExchange,
		AMQPQueue:    c.AMQPQueue,
	}, nil
}

// Result holds what Open produced. Bus is nil when AMQP is not configured
// or the broker was unreachable at startup.
type Result struct {
	Store storage.Store
	Bus   *amqp.Client
}

// Publisher returns the bus as a services.EventPublisher, or a nil
// interface when there is none.
func (r *Result) Publisher() services.EventPublisher {
	if r.Bus == nil {
		return nil
	}
	return r.Bus
}

// Close releases the bus and the store.
func (r *Result) Close() error {
	var errs []error
	if r.Bus != nil {
		errs = append(errs, r.Bus.Close())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}

// Open connects the configured store and, when AMQP is configured, the
// event bus. A broker that cannot be reached is logged and skipped.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentBackend)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	res := &Result{Store: store}

	if cfg.AMQPURL != "" {
		bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			res.Bus = bus
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	logger.Info("Backend ready", log.FieldBackend, cfg.Type, "amqp_enabled", res.Bus != nil)
	return res, nil
}

func openStore(ctx context.Context, cfg Config, logger *log.Logger) (storage.Store, error) {
	switch cfg.Type {
	case Memory:
		logger.Warn("Using in-memory store; data is lost on restart")
		return memory.New(), nil
	case SQLite:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLiteDBPath, err)
		}
		return repo, nil
	case Postgres:
		connector, err := cfg.Postgres.Connector(ctx)
		if err != nil {
			return nil, fmt.Errorf("postgres connector: %w", err)
		}
		repo, err := storage.NewPostgresRepository(ctx, connector, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unsupported backend type %q", cfg.Type)
}
