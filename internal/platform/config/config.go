// Package config loads process configuration from the environment.
//
// Every key has a default, so an empty environment runs the worker with
// in-memory stores. Variables are prefixed PIXKEYS_ and use _ for nesting:
// decode.cache_ttl is PIXKEYS_DECODE_CACHE_TTL. A .env file in the working
// directory is loaded first when present; real environment variables win.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	pixconfig "pixkeys/internal/pixkey/config"
	"pixkeys/internal/platform/logger"
)

const envPrefix = "pixkeys"

var ispbPattern = regexp.MustCompile(`^\d{8}$`)

type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	Group             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
	Linger            time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RegistryConfig struct {
	HTTPClientConfig
	BreakerFailures  int
	BreakerSuccesses int
	BreakerCooldown  time.Duration
}

type Config struct {
	OpsAddr  string
	Log      logger.Config
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Registry RegistryConfig
	Users    HTTPClientConfig
	Engine   pixconfig.Config
}

// Load reads the process environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromViper(viper.New())
}

// FromViper binds v to the environment, applies defaults and builds the
// config.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	engine := pixconfig.DefaultConfig()
	engine.ISPB = v.GetString("ispb")
	engine.Lifecycle.MaxKeysNaturalPerson = v.GetInt("lifecycle.max_keys_natural_person")
	engine.Lifecycle.MaxKeysLegalPerson = v.GetInt("lifecycle.max_keys_legal_person")
	engine.Lifecycle.MaxVerifyAttempts = v.GetInt("lifecycle.max_verify_attempts")
	engine.Portability.AutoApprove = v.GetBool("portability.auto_approve")
	engine.Decode.NaturalPersonCeiling = v.GetInt("decode.natural_person_ceiling")
	engine.Decode.LegalPersonCeiling = v.GetInt("decode.legal_person_ceiling")
	engine.Decode.ValidCost = v.GetInt("decode.valid_cost")
	engine.Decode.InvalidPenalty = v.GetInt("decode.invalid_penalty")
	engine.Decode.ConfirmedCredit = v.GetInt("decode.confirmed_credit")
	engine.Decode.RefillInterval = v.GetDuration("decode.refill_interval")
	engine.Decode.RefillIncrement = v.GetInt("decode.refill_increment")
	engine.Decode.CacheTTL = v.GetDuration("decode.cache_ttl")
	engine.Decode.MaxUpdateRetries = v.GetInt("decode.max_update_retries")
	engine.Reconcile.ScanBatchSize = v.GetInt("reconcile.scan_batch_size")
	engine.Reconcile.ClaimPageSize = v.GetInt("reconcile.claim_page_size")
	engine.Reconcile.ClaimSyncWindow = v.GetDuration("reconcile.claim_sync_window")
	engine.Reconcile.ResolutionPeriod = v.GetDuration("reconcile.resolution_period")
	engine.Reconcile.RegistryRPS = v.GetFloat64("reconcile.registry_rps")
	engine.Reconcile.ExpireInterval = v.GetDuration("reconcile.expire_interval")
	engine.Reconcile.ClaimSyncEvery = v.GetDuration("reconcile.claim_sync_every")
	engine.Reconcile.WaitingInterval = v.GetDuration("reconcile.waiting_interval")

	cfg := &Config{
		OpsAddr: v.GetString("ops.addr"),
		Log: logger.Config{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			TxTimeout:       v.GetDuration("database.tx_timeout"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:           parseList(v.GetString("kafka.brokers")),
			Group:             v.GetString("kafka.group"),
			ClientID:          v.GetString("kafka.client_id"),
			Partitions:        v.GetInt32("kafka.partitions"),
			ReplicationFactor: int16(v.GetInt("kafka.replication_factor")),
			Linger:            v.GetDuration("kafka.linger"),
			MaxAttempts:       v.GetInt("kafka.max_attempts"),
			InitialBackoff:    v.GetDuration("kafka.initial_backoff"),
			MaxBackoff:        v.GetDuration("kafka.max_backoff"),
		},
		Registry: RegistryConfig{
			HTTPClientConfig: HTTPClientConfig{
				BaseURL: v.GetString("registry.base_url"),
				Timeout: v.GetDuration("registry.timeout"),
			},
			BreakerFailures:  v.GetInt("registry.breaker_failures"),
			BreakerSuccesses: v.GetInt("registry.breaker_successes"),
			BreakerCooldown:  v.GetDuration("registry.breaker_cooldown"),
		},
		Users: HTTPClientConfig{
			BaseURL: v.GetString("users.base_url"),
			Timeout: v.GetDuration("users.timeout"),
		},
		Engine: engine,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	engine := pixconfig.DefaultConfig()

	v.SetDefault("ispb", engine.ISPB)
	v.SetDefault("ops.addr", ":8081")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.tx_timeout", "5s")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.group", "pixkeys-worker")
	v.SetDefault("kafka.client_id", "pixkeys")
	v.SetDefault("kafka.partitions", 6)
	v.SetDefault("kafka.replication_factor", 1)
	v.SetDefault("kafka.linger", "5ms")
	v.SetDefault("kafka.max_attempts", 5)
	v.SetDefault("kafka.initial_backoff", "200ms")
	v.SetDefault("kafka.max_backoff", "5s")

	v.SetDefault("registry.base_url", "http://localhost:8090")
	v.SetDefault("registry.timeout", "10s")
	v.SetDefault("registry.breaker_failures", 5)
	v.SetDefault("registry.breaker_successes", 2)
	v.SetDefault("registry.breaker_cooldown", "30s")

	v.SetDefault("users.base_url", "http://localhost:8091")
	v.SetDefault("users.timeout", "5s")

	v.SetDefault("lifecycle.max_keys_natural_person", engine.Lifecycle.MaxKeysNaturalPerson)
	v.SetDefault("lifecycle.max_keys_legal_person", engine.Lifecycle.MaxKeysLegalPerson)
	v.SetDefault("lifecycle.max_verify_attempts", engine.Lifecycle.MaxVerifyAttempts)
	v.SetDefault("portability.auto_approve", engine.Portability.AutoApprove)

	v.SetDefault("decode.natural_person_ceiling", engine.Decode.NaturalPersonCeiling)
	v.SetDefault("decode.legal_person_ceiling", engine.Decode.LegalPersonCeiling)
	v.SetDefault("decode.valid_cost", engine.Decode.ValidCost)
	v.SetDefault("decode.invalid_penalty", engine.Decode.InvalidPenalty)
	v.SetDefault("decode.confirmed_credit", engine.Decode.ConfirmedCredit)
	v.SetDefault("decode.refill_interval", engine.Decode.RefillInterval)
	v.SetDefault("decode.refill_increment", engine.Decode.RefillIncrement)
	v.SetDefault("decode.cache_ttl", engine.Decode.CacheTTL)
	v.SetDefault("decode.max_update_retries", engine.Decode.MaxUpdateRetries)

	v.SetDefault("reconcile.scan_batch_size", engine.Reconcile.ScanBatchSize)
	v.SetDefault("reconcile.claim_page_size", engine.Reconcile.ClaimPageSize)
	v.SetDefault("reconcile.claim_sync_window", engine.Reconcile.ClaimSyncWindow)
	v.SetDefault("reconcile.resolution_period", engine.Reconcile.ResolutionPeriod)
	v.SetDefault("reconcile.registry_rps", engine.Reconcile.RegistryRPS)
	v.SetDefault("reconcile.expire_interval", engine.Reconcile.ExpireInterval)
	v.SetDefault("reconcile.claim_sync_every", engine.Reconcile.ClaimSyncEvery)
	v.SetDefault("reconcile.waiting_interval", engine.Reconcile.WaitingInterval)
}

func (c *Config) validate() error {
	if !ispbPattern.MatchString(c.Engine.ISPB) {
		return fmt.Errorf("ispb must be 8 digits, got %q", c.Engine.ISPB)
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if c.Users.BaseURL == "" {
		return fmt.Errorf("users.base_url is required")
	}
	if c.Kafka.MaxAttempts < 1 {
		return fmt.Errorf("kafka.max_attempts must be at least 1")
	}
	if c.Engine.Lifecycle.MaxVerifyAttempts < 1 {
		return fmt.Errorf("lifecycle.max_verify_attempts must be at least 1")
	}
	return nil
}

// KafkaEnabled reports whether brokers were configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
