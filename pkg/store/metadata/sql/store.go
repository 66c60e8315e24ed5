// Package sql implements metadata.Registry on a relational database through
// gorm. SQLite (pure Go, no cgo) and MySQL are supported.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported dialects.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// SQLRegistryConfig configures the database connection.
type SQLRegistryConfig struct {
	// Dialect is "sqlite" or "mysql"
	Dialect string `mapstructure:"dialect"`

	// DSN is the driver connection string. For sqlite this is a file path
	// optionally followed by _pragma parameters.
	DSN string `mapstructure:"dsn"`

	// MaxOpenConns caps the connection pool. SQLite is always limited to a
	// single connection.
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// SlowQueryThreshold logs queries slower than this at WARN (default: 200ms)
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// SQLRegistry implements metadata.Registry on gorm.
//
// Thread Safety:
// Storage key claims are single INSERTs against the primary key of
// storage_key_reservations, so concurrent claims of the same key cannot both
// succeed. Multi-row mutations run inside a transaction.
type SQLRegistry struct {
	db   *gorm.DB
	opts metadata.Options
	now  func() time.Time
}

// NewSQLRegistry opens the database and migrates the schema.
func NewSQLRegistry(ctx context.Context, config SQLRegistryConfig, opts metadata.Options) (*SQLRegistry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("sql registry: dsn is required")
	}

	var dialector gorm.Dialector
	switch config.Dialect {
	case DialectSQLite, "":
		dialector = sqlite.Open(config.DSN)
	case DialectMySQL:
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("sql registry: unsupported dialect %q", config.Dialect)
	}

	threshold := config.SlowQueryThreshold
	if threshold <= 0 {
		threshold = 200 * time.Millisecond
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormWriter{}, gormlogger.Config{
			SlowThreshold:             threshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if config.Dialect == DialectSQLite || config.Dialect == "" {
		sqlDB.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}

	if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &SQLRegistry{
		db:   db,
		opts: opts.WithDefaults(),
		now:  time.Now,
	}, nil
}

// SetClock overrides the time source. Tests only.
func (s *SQLRegistry) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the connection pool.
func (s *SQLRegistry) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// timestamp returns the current time at the precision every dialect keeps.
func (s *SQLRegistry) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *SQLRegistry) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := metadata.CodeOf(err); ok {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	return metadata.NewIOError(op, err)
}

// gormWriter routes gorm's logger through the service logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, v ...any) {
	logger.Warn("sql: "+format, v...)
}
