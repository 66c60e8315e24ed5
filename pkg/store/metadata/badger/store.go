package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// BadgerRegistry implements metadata.Registry using BadgerDB for persistence.
//
// This implementation is suitable for:
//   - Single-node deployments that must survive restarts
//   - Registries too large to keep in memory
//
// Thread Safety:
// BadgerDB provides serializable snapshot isolation. Every mutating method
// runs in a single read-write transaction; when two transactions touch the
// same keys one of them fails with badger.ErrConflict and is retried with
// exponential backoff. Storage key resolution happens inside the
// transaction, so two uploads racing for "report.pdf" cannot both commit it.
//
// Storage Model:
// See keys.go for the key namespace.
type BadgerRegistry struct {
	db   *badger.DB
	opts metadata.Options
	now  func() time.Time

	// conflictBackOff builds the retry policy for conflicting transactions
	conflictBackOff func() backoff.BackOff
}

// BadgerRegistryConfig contains configuration for creating a BadgerDB
// registry.
type BadgerRegistryConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk. Tests only.
	InMemory bool `mapstructure:"in_memory"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, sensible defaults are used.
	BadgerOptions *badger.Options

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// MaxConflictWait bounds the total time spent retrying conflicting
	// transactions (default: 5s)
	MaxConflictWait time.Duration `mapstructure:"max_conflict_wait"`
}

// NewBadgerRegistry opens (or creates) a registry at config.DBPath.
//
// Parameters:
//   - ctx: Context for cancellation during initialization
//   - config: DB path, cache sizes and conflict retry bound
//   - opts: Resolver and id generation options shared by all registries
//
// Returns:
//   - *BadgerRegistry: A registry ready for concurrent use
//   - error: Error if the database cannot be opened
func NewBadgerRegistry(ctx context.Context, config BadgerRegistryConfig, opts metadata.Options) (*BadgerRegistry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var bopts badger.Options
	if config.BadgerOptions != nil {
		bopts = *config.BadgerOptions
	} else {
		if config.InMemory {
			bopts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, fmt.Errorf("badger registry: db_path is required")
			}
			bopts = badger.DefaultOptions(config.DBPath)
		}

		// Records are small JSON documents; compression buys nothing.
		bopts = bopts.WithCompression(options.None)
		bopts = bopts.WithLogger(badgerLogger{})
		bopts = bopts.WithLoggingLevel(badger.WARNING)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}
		bopts = bopts.WithBlockCacheSize(blockCacheMB << 20)
		bopts = bopts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	maxWait := config.MaxConflictWait
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}

	return &BadgerRegistry{
		db:   db,
		opts: opts.WithDefaults(),
		now:  time.Now,
		conflictBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Millisecond
			b.MaxInterval = 50 * time.Millisecond
			b.MaxElapsedTime = maxWait
			b.Reset()
			return b
		},
	}, nil
}

// SetClock overrides the time source. Tests only.
func (s *BadgerRegistry) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the BadgerDB database. The registry must not be used
// afterwards.
func (s *BadgerRegistry) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on conflict.
//
// Registry errors returned by fn are passed through unchanged; anything else
// is wrapped as ErrIOError.
func (s *BadgerRegistry) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := func() error {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("badger registry: %s conflict, retrying in %s", op, wait)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(s.conflictBackOff(), ctx), notify)
	return s.wrap(ctx, op, err)
}

// view runs fn in a read-only transaction.
func (s *BadgerRegistry) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wrap(ctx, op, s.db.View(fn))
}

func (s *BadgerRegistry) wrap(ctx context.Context, op string, err error) error {
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

// ============================================================================
// Transaction helpers
// ============================================================================

func getFile(txn *badger.Txn, publicID string) (*metadata.File, error) {
	item, err := txn.Get(keyFile(publicID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError("file", publicID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return decodeFile(val)
}

func putFile(txn *badger.Txn, f *metadata.File) error {
	val, err := encodeFile(f)
	if err != nil {
		return err
	}
	return txn.Set(keyFile(f.PublicID), val)
}

func getReservation(txn *badger.Txn, key string) (*metadata.StorageKeyReservation, error) {
	item, err := txn.Get(keyStorageKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation: %w", err)
	}
	res, err := decodeValue[metadata.StorageKeyReservation]("reservation", val)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func putReservation(txn *badger.Txn, res *metadata.StorageKeyReservation) error {
	val, err := encodeValue("reservation", res)
	if err != nil {
		return err
	}
	return txn.Set(keyStorageKey(res.Key), val)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanKeys returns every key under prefix without fetching values.
func scanKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// scanValues calls fn with the value of every key under prefix.
func scanValues(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// badgerLogger routes BadgerDB's internal logging through the service logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, v ...any)   { logger.Error("badger: "+format, v...) }
func (badgerLogger) Warningf(format string, v ...any) { logger.Warn("badger: "+format, v...) }
func (badgerLogger) Infof(format string, v ...any)    { logger.Info("badger: "+format, v...) }
func (badgerLogger) Debugf(format string, v ...any)   { logger.Debug("badger: "+format, v...) }
