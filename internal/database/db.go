package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

type Config struct {
	Driver          string
	DSN             string
	Schema          string
	IncludeTables   []string
	SampleRows      int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Options describe how an already opened handle is introspected.
type Options struct {
	Dialect       string
	Schema        string
	IncludeTables []string
	SampleRows    int
}

// DB is the long-lived connection shared by every request. It is safe for
// concurrent use because *sql.DB is.
type DB struct {
	db            *sql.DB
	dialect       string
	schema        string
	includeTables map[string]struct{}
	sampleRows    int
}

type driverInfo struct {
	sqlDriver     string
	dialect       string
	defaultSchema string
}

var drivers = map[string]driverInfo{
	DriverPostgres: {sqlDriver: "pgx", dialect: "postgresql", defaultSchema: "public"},
	DriverDuckDB:   {sqlDriver: "duckdb", dialect: "duckdb", defaultSchema: "main"},
}

func Open(ctx context.Context, cfg Config) (*DB, error) {
	info, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.Driver == DriverPostgres && cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := sql.Open(info.sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema := cfg.Schema
	if schema == "" {
		schema = info.defaultSchema
	}
	return New(db, Options{
		Dialect:       info.dialect,
		Schema:        schema,
		IncludeTables: cfg.IncludeTables,
		SampleRows:    cfg.SampleRows,
	}), nil
}

// New wraps an opened handle. A negative SampleRows disables sample rows.
func New(db *sql.DB, opts Options) *DB {
	include := make(map[string]struct{}, len(opts.IncludeTables))
	for _, table := range opts.IncludeTables {
		include[table] = struct{}{}
	}
	schema := opts.Schema
	if schema == "" {
		schema = "public"
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = "postgresql"
	}
	return &DB{
		db:            db,
		dialect:       dialect,
		schema:        schema,
		includeTables: include,
		sampleRows:    opts.SampleRows,
	}
}

// Dialect names the SQL variant for prompt templating.
func (d *DB) Dialect() string {
	return d.dialect
}

// SQL exposes the underlying handle for maintenance tasks such as seeding.
func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
