package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/files"
	"github.com/marmos91/dittodrive/pkg/metrics"
	promMetrics "github.com/marmos91/dittodrive/pkg/metrics/prometheus"
	"github.com/marmos91/dittodrive/pkg/naming"
	"github.com/marmos91/dittodrive/pkg/store/content"
	blobfs "github.com/marmos91/dittodrive/pkg/store/content/fs"
	blobmemory "github.com/marmos91/dittodrive/pkg/store/content/memory"
	blobs3 "github.com/marmos91/dittodrive/pkg/store/content/s3"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/badger"
	regmemory "github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata/sql"
	"github.com/mitchellh/mapstructure"
)

// decode maps a type-specific option map onto a store config struct.
// Durations may be given as strings ("5s").
func decode(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// ============================================================================
// Registry
// ============================================================================

// CreateRegistry creates a file registry based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/store/metadata/memory (ephemeral)
//   - "badger": Uses pkg/store/metadata/badger (BadgerDB, persistent)
//   - "sql": Uses pkg/store/metadata/sql (gorm on sqlite or mysql)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Registry configuration
//
// Returns:
//   - metadata.Registry: Initialized registry
//   - error: Configuration or initialization error
func CreateRegistry(ctx context.Context, cfg *RegistryConfig) (metadata.Registry, error) {
	opts := metadata.Options{
		Resolver:      naming.NewResolver(cfg.Naming.MaxAttempts),
		MaxIDAttempts: cfg.Naming.MaxIDAttempts,
	}

	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return regmemory.NewMemoryRegistry(opts), nil
	case "badger":
		return createBadgerRegistry(ctx, cfg.Badger, opts)
	case "sql":
		return createSQLRegistry(ctx, cfg.SQL, opts)
	default:
		return nil, fmt.Errorf("unknown registry type: %q (supported: memory, badger, sql)", cfg.Type)
	}
}

func createBadgerRegistry(ctx context.Context, options map[string]any, opts metadata.Options) (metadata.Registry, error) {
	var storeCfg badger.BadgerRegistryConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger registry config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger registry: db_path is required")
	}

	reg, err := badger.NewBadgerRegistry(ctx, storeCfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger registry: %w", err)
	}

	logger.Info("Badger registry opened: path=%s", storeCfg.DBPath)
	return reg, nil
}

func createSQLRegistry(ctx context.Context, options map[string]any, opts metadata.Options) (metadata.Registry, error) {
	var storeCfg sql.SQLRegistryConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode sql registry config: %w", err)
	}

	reg, err := sql.NewSQLRegistry(ctx, storeCfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql registry: %w", err)
	}

	logger.Info("SQL registry opened: dialect=%s", storeCfg.Dialect)
	return reg, nil
}

// ============================================================================
// Blob store
// ============================================================================

// CreateBlobStore creates a blob store based on configuration and wraps it
// with m. m may be nil.
//
// Supported types:
//   - "memory": Uses pkg/store/content/memory (ephemeral)
//   - "filesystem": Uses pkg/store/content/fs (local directory)
//   - "s3": Uses pkg/store/content/s3 (Amazon S3 or compatible storage)
//
// The returned store implements content.ListableStore for every supported
// type, so the orphan collector can run against it.
func CreateBlobStore(ctx context.Context, cfg *BlobConfig, m metrics.BlobMetrics) (content.BlobStore, error) {
	var (
		store content.BlobStore
		err   error
	)

	switch cfg.Type {
	case "memory":
		store, err = blobmemory.NewMemoryBlobStore(ctx)
	case "filesystem":
		store, err = createFilesystemBlobStore(ctx, cfg.Filesystem)
	case "s3":
		store, err = createS3BlobStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store type: %q (supported: memory, filesystem, s3)", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return content.Instrument(store, m), nil
}

func createFilesystemBlobStore(ctx context.Context, options map[string]any) (content.BlobStore, error) {
	type FilesystemBlobStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemBlobStoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem blob store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem blob store: path is required")
	}

	store, err := blobfs.NewFSBlobStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem blob store: %w", err)
	}
	return store, nil
}

// s3BlobStoreConfig is the option map accepted under blob.s3.
type s3BlobStoreConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3BlobStore(ctx context.Context, options map[string]any) (content.BlobStore, error) {
	var storeCfg s3BlobStoreConfig
	if err := decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 blob store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 blob store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 blob store: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	// Static credentials if provided, otherwise the default credential chain
	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storeCfg.Endpoint != "" {
			// MinIO, Localstack and friends
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
		if storeCfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	// ========================================================================
	// Step 3: Create S3 Blob Store
	// ========================================================================

	store, err := blobs3.NewS3BlobStore(ctx, blobs3.S3BlobStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 blob store: %w", err)
	}

	logger.Info("S3 blob store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// ============================================================================
// Authentication
// ============================================================================

// CreateAuthenticator builds the token verifier selected by cfg.Type and
// wraps it so every authenticated profile is stored in users.
//
// For "oidc" this performs provider discovery, retried per
// cfg.OIDC.DiscoveryAttempts; ctx bounds the whole discovery.
func CreateAuthenticator(ctx context.Context, cfg *AuthConfig, users auth.UserStore) (auth.Authenticator, error) {
	var (
		next auth.Authenticator
		err  error
	)

	switch cfg.Type {
	case "oidc":
		next, err = auth.NewOIDCAuthenticator(ctx, cfg.OIDC)
	case "static":
		next, err = auth.NewStaticAuthenticator(cfg.Static.Tokens)
	default:
		return nil, fmt.Errorf("unknown auth type: %q (supported: oidc, static)", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s authenticator: %w", cfg.Type, err)
	}

	return auth.NewProvisioning(next, users), nil
}

// ============================================================================
// Service and metrics
// ============================================================================

// ServiceConfig derives the file service configuration.
func ServiceConfig(cfg *Config) files.Config {
	return files.Config{
		BaseURL: cfg.HTTP.BaseURL,
		Policy:  access.Policy{GranteesCanRead: cfg.Access.GranteesCanDownload},
	}
}

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// Files is the file service collector (never nil, noop if disabled)
	Files metrics.FileMetrics

	// GC is the orphan collector's collector (never nil, noop if disabled)
	GC metrics.GCMetrics

	// Blob is the blob store collector (never nil, noop if disabled)
	Blob metrics.BlobMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are disabled, returns a nil server and no-op collectors.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			Files: metrics.NewNoopFileMetrics(),
			GC:    metrics.NewNoopGCMetrics(),
			Blob:  metrics.NewNoopBlobMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Files:  promMetrics.NewFileMetrics(),
		GC:     promMetrics.NewGCMetrics(),
		Blob:   promMetrics.NewBlobMetrics(cfg.Blob.Type),
	}
}

// StartupTimeout bounds store opening and OIDC discovery at startup.
const StartupTimeout = 2 * time.Minute
