package flowcanvas

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/flowcanvas/internal/config"
	"github.com/petrijr/flowcanvas/internal/persistence"
)

// NewInMemoryStateStore returns a StateStore that lives as long as the process.
func NewInMemoryStateStore() StateStore {
	return persistence.NewInMemoryStore()
}

// NewSQLiteStateStore returns a StateStore kept in a SQLite database.
func NewSQLiteStateStore(db *sql.DB) (StateStore, error) {
	return persistence.NewSQLiteStateStore(db)
}

// NewPostgresStateStore returns a StateStore kept in PostgreSQL.
func NewPostgresStateStore(ctx context.Context, db *sql.DB) (StateStore, error) {
	return persistence.NewPostgresStateStore(ctx, db)
}

// NewRedisStateStore returns a StateStore kept in Redis under prefix.
func NewRedisStateStore(client redis.UniversalClient, prefix string) StateStore {
	return persistence.NewRedisStateStore(client, prefix)
}

// NewMongoStateStore returns a StateStore kept in a MongoDB collection.
func NewMongoStateStore(client *mongo.Client, dbName, collName string) StateStore {
	return persistence.NewMongoStateStore(client, dbName, collName)
}

// OpenStateStore connects the backend selected by cfg.StateBackend. The
// returned close function releases the connection and is never nil.
func OpenStateStore(ctx context.Context, cfg Config) (StateStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StateBackend {
	case config.BackendMemory, "":
		return persistence.NewInMemoryStore(), noop, nil

	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		store, err := persistence.NewSQLiteStateStore(db)
		if err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("init sqlite state: %w", err)
		}
		return store, db.Close, nil

	case config.BackendPostgres:
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		store, err := persistence.NewPostgresStateStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("init postgres state: %w", err)
		}
		return store, db.Close, nil

	case config.BackendRedis:
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("ping redis: %w", err)
		}
		return persistence.NewRedisStateStore(client, ""), client.Close, nil

	case config.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, fmt.Errorf("ping mongo: %w", err)
		}
		closeFn := func() error { return client.Disconnect(context.Background()) }
		return persistence.NewMongoStateStore(client, cfg.MongoDatabase, ""), closeFn, nil

	default:
		return nil, noop, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}
