// Package config builds a fully wired simpleblog.Service from declarative
// configuration, typically sourced from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/cache"
	"github.com/tendant/simple-blog/pkg/simpleblog/presigned"
	repomemory "github.com/tendant/simple-blog/pkg/simpleblog/repo/memory"
	repopg "github.com/tendant/simple-blog/pkg/simpleblog/repo/postgres"
	fsstorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/fs"
	memorystorage "github.com/tendant/simple-blog/pkg/simpleblog/storage/memory"
	s3storage "github.com/tendant/simple-blog/pkg/simpleblog/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:        "8080",
		Environment: "development",

		DatabaseType: "memory",

		StorageType: "memory",

		CacheType: "memory",

		BaseURL:         "http://localhost:8080",
		PresignDuration: 3600,

		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the simple-blog service.
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	StorageType string // "memory", "fs", "s3"
	Storage     StorageConfig

	// Cache configuration
	CacheType string // "none", "memory", "bolt"
	CachePath string // bolt database path

	// Admin credential for write endpoints.
	APIKey string

	// Presigned URL configuration. SigningSecret feeds the HMAC signer used
	// by the memory and fs backends; the s3 backend presigns natively.
	SigningSecret   string
	BaseURL         string
	PresignDuration int // seconds

	EnableEventLogging bool
}

// StorageConfig holds backend-specific storage settings.
type StorageConfig struct {
	// Filesystem
	BaseDir string

	// S3
	Region                 string
	Bucket                 string
	AccessKeyID            string
	SecretAccessKey        string
	Endpoint               string
	UsePathStyle           bool
	CreateBucketIfNotExist bool
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.Storage.BaseDir == "" {
			return errors.New("storage base_dir is required for fs storage")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	switch c.CacheType {
	case "none", "memory":
	case "bolt":
		if c.CachePath == "" {
			return errors.New("cache_path is required for bolt cache")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", c.CacheType)
	}

	if c.StorageType != "s3" && c.SigningSecret == "" {
		return errors.New("signing_secret is required for non-s3 storage")
	}

	if c.APIKey == "" {
		return errors.New("api_key is required")
	}

	return nil
}

// Components are the wired pieces of a server deployment. HMACSigner is nil
// when the s3 backend presigns natively.
type Components struct {
	Service    simpleblog.Service
	BlobStore  simpleblog.BlobStore
	Signer     simpleblog.URLSigner
	HMACSigner *presigned.Signer
	Cache      simpleblog.Cache
}

// Build creates the service and the supporting pieces the HTTP layer needs
// direct access to.
func (c *ServerConfig) Build(logger *slog.Logger) (*Components, error) {
	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	store, signer, hmacSigner, err := c.buildStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage: %w", err)
	}

	resultCache, err := c.buildCache()
	if err != nil {
		return nil, fmt.Errorf("failed to build cache: %w", err)
	}

	options := []simpleblog.Option{
		simpleblog.WithRepository(repo),
		simpleblog.WithBlobStore(store),
		simpleblog.WithURLSigner(signer),
		simpleblog.WithCache(resultCache),
		simpleblog.WithLogger(logger),
		simpleblog.WithPresignTTL(time.Duration(c.PresignDuration) * time.Second),
	}

	if c.EnableEventLogging {
		options = append(options, simpleblog.WithEventSink(simpleblog.NewLoggingEventSink(logger)))
	}

	svc, err := simpleblog.New(options...)
	if err != nil {
		return nil, err
	}

	return &Components{
		Service:    svc,
		BlobStore:  store,
		Signer:     signer,
		HMACSigner: hmacSigner,
		Cache:      resultCache,
	}, nil
}

// BuildService creates a Service instance from the server configuration.
func (c *ServerConfig) BuildService(logger *slog.Logger) (simpleblog.Service, error) {
	components, err := c.Build(logger)
	if err != nil {
		return nil, err
	}
	return components.Service, nil
}

func (c *ServerConfig) buildRepository() (simpleblog.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorage returns the blob store and the URL signer to pair with it.
// The s3 backend signs its own URLs; everything else goes through the HMAC
// signer.
func (c *ServerConfig) buildStorage() (simpleblog.BlobStore, simpleblog.URLSigner, *presigned.Signer, error) {
	switch c.StorageType {
	case "memory":
		signer := c.buildHMACSigner()
		return memorystorage.New(), signer, signer, nil

	case "fs":
		store, err := fsstorage.New(fsstorage.Config{BaseDir: c.Storage.BaseDir})
		if err != nil {
			return nil, nil, nil, err
		}
		signer := c.buildHMACSigner()
		return store, signer, signer, nil

	case "s3":
		store, err := s3storage.New(s3storage.Config{
			Region:                 c.Storage.Region,
			Bucket:                 c.Storage.Bucket,
			AccessKeyID:            c.Storage.AccessKeyID,
			SecretAccessKey:        c.Storage.SecretAccessKey,
			Endpoint:               c.Storage.Endpoint,
			UsePathStyle:           c.Storage.UsePathStyle,
			PresignDuration:        c.PresignDuration,
			CreateBucketIfNotExist: c.Storage.CreateBucketIfNotExist,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, store, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}

func (c *ServerConfig) buildHMACSigner() *presigned.Signer {
	return presigned.New(
		presigned.WithSecretKey([]byte(c.SigningSecret)),
		presigned.WithBaseURL(c.BaseURL),
		presigned.WithDefaultExpiration(time.Duration(c.PresignDuration)*time.Second),
	)
}

func (c *ServerConfig) buildCache() (simpleblog.Cache, error) {
	switch c.CacheType {
	case "none":
		return simpleblog.NewNoopCache(), nil
	case "memory":
		return cache.NewMemory(), nil
	case "bolt":
		return cache.NewBolt(c.CachePath)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", c.CacheType)
	}
}
