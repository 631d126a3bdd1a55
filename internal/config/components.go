package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/attestd/attest/pkg/formatting"
)

// Environment variable names for component overrides.
const (
	EnvStoreRoot   = "ATTEST_STORE_ROOT"
	EnvCachePath   = "ATTEST_CACHE_PATH"
	EnvCacheTTL    = "ATTEST_CACHE_TTL"
	EnvRegistryDir = "ATTEST_REGISTRY_DIR"

	EnvDiscoveryMaxFileSize = "ATTEST_DISCOVERY_MAX_FILE_SIZE"

	EnvExtractionChunkSize     = "ATTEST_EXTRACTION_CHUNK_SIZE"
	EnvExtractionChunkOverlap  = "ATTEST_EXTRACTION_CHUNK_OVERLAP"
	EnvExtractionMaxWorkers    = "ATTEST_EXTRACTION_MAX_WORKERS"
	EnvExtractionRetryAttempts = "ATTEST_EXTRACTION_RETRY_ATTEMPTS"
	EnvExtractionRetryDelay    = "ATTEST_EXTRACTION_RETRY_DELAY"
	EnvExtractionOracleTimeout = "ATTEST_EXTRACTION_ORACLE_TIMEOUT"
)

// StoreConfig locates the file-backed session store.
type StoreConfig struct {
	Root string `toml:"root"`
}

func (c *StoreConfig) Merge(overlay *StoreConfig) {
	if overlay.Root != "" {
		c.Root = overlay.Root
	}
}

func (c *StoreConfig) Finalize() error {
	if c.Root == "" {
		c.Root = "data/sessions"
	}
	if v := os.Getenv(EnvStoreRoot); v != "" {
		c.Root = v
	}
	return nil
}

// CacheConfig locates the extraction cache and sets entry lifetime.
type CacheConfig struct {
	Path string `toml:"path"`
	TTL  string `toml:"ttl"`
}

func (c *CacheConfig) Merge(overlay *CacheConfig) {
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
}

func (c *CacheConfig) Finalize() error {
	if c.Path == "" {
		c.Path = "data/cache.db"
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
	if v := os.Getenv(EnvCachePath); v != "" {
		c.Path = v
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		c.TTL = v
	}

	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	return nil
}

// TTLDuration returns TTL as a time.Duration.
func (c *CacheConfig) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// RegistryConfig locates the methodology checklist directory.
type RegistryConfig struct {
	Dir string `toml:"dir"`
}

func (c *RegistryConfig) Merge(overlay *RegistryConfig) {
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
}

func (c *RegistryConfig) Finalize() error {
	if c.Dir == "" {
		c.Dir = "methodologies"
	}
	if v := os.Getenv(EnvRegistryDir); v != "" {
		c.Dir = v
	}
	return nil
}

// DiscoveryConfig bounds document discovery.
type DiscoveryConfig struct {
	MaxFileSize string `toml:"max_file_size"`
}

func (c *DiscoveryConfig) Merge(overlay *DiscoveryConfig) {
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
}

func (c *DiscoveryConfig) Finalize() error {
	if c.MaxFileSize == "" {
		c.MaxFileSize = "50MB"
	}
	if v := os.Getenv(EnvDiscoveryMaxFileSize); v != "" {
		c.MaxFileSize = v
	}

	if _, err := formatting.ParseBytes(c.MaxFileSize); err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	return nil
}

// MaxFileSizeBytes returns MaxFileSize as a byte count.
func (c *DiscoveryConfig) MaxFileSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxFileSize)
	return n
}

// ExtractionConfig tunes the evidence extraction engine.
type ExtractionConfig struct {
	ChunkSize     int    `toml:"chunk_size"`
	ChunkOverlap  int    `toml:"chunk_overlap"`
	MaxWorkers    int    `toml:"max_workers"`
	RetryAttempts int    `toml:"retry_attempts"`
	RetryDelay    string `toml:"retry_delay"`
	OracleTimeout string `toml:"oracle_timeout"`
}

func (c *ExtractionConfig) Merge(overlay *ExtractionConfig) {
	if overlay.ChunkSize != 0 {
		c.ChunkSize = overlay.ChunkSize
	}
	if overlay.ChunkOverlap != 0 {
		c.ChunkOverlap = overlay.ChunkOverlap
	}
	if overlay.MaxWorkers != 0 {
		c.MaxWorkers = overlay.MaxWorkers
	}
	if overlay.RetryAttempts != 0 {
		c.RetryAttempts = overlay.RetryAttempts
	}
	if overlay.RetryDelay != "" {
		c.RetryDelay = overlay.RetryDelay
	}
	if overlay.OracleTimeout != "" {
		c.OracleTimeout = overlay.OracleTimeout
	}
}

func (c *ExtractionConfig) Finalize() error {
	if c.ChunkSize == 0 {
		c.ChunkSize = 4000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 400
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay == "" {
		c.RetryDelay = "500ms"
	}
	if c.OracleTimeout == "" {
		c.OracleTimeout = "2m"
	}

	loadIntEnv := func(envVar string, dst *int) {
		if v := os.Getenv(envVar); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	loadIntEnv(EnvExtractionChunkSize, &c.ChunkSize)
	loadIntEnv(EnvExtractionChunkOverlap, &c.ChunkOverlap)
	loadIntEnv(EnvExtractionMaxWorkers, &c.MaxWorkers)
	loadIntEnv(EnvExtractionRetryAttempts, &c.RetryAttempts)
	if v := os.Getenv(EnvExtractionRetryDelay); v != "" {
		c.RetryDelay = v
	}
	if v := os.Getenv(EnvExtractionOracleTimeout); v != "" {
		c.OracleTimeout = v
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be in [0, chunk_size)", c.ChunkOverlap)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if _, err := time.ParseDuration(c.RetryDelay); err != nil {
		return fmt.Errorf("invalid retry_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.OracleTimeout); err != nil {
		return fmt.Errorf("invalid oracle_timeout: %w", err)
	}
	return nil
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *ExtractionConfig) RetryDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.RetryDelay)
	return d
}

// OracleTimeoutDuration returns OracleTimeout as a time.Duration.
func (c *ExtractionConfig) OracleTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.OracleTimeout)
	return d
}
