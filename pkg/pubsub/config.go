package pubsub

import (
	"fmt"
	"time"
)

// Supported drivers.
const (
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers           string        `mapstructure:"brokers"`
	GroupID           string        `mapstructure:"group_id"`
	Partitions        int           `mapstructure:"partitions"`
	ReplicationFactor int           `mapstructure:"replication_factor"`
	MetadataTimeout   time.Duration `mapstructure:"metadata_timeout"`
}

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "redis", "kafka", "memory"
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PingInterval and MaxPingFailures decide when a subscription counts as lost.
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	MaxPingFailures int           `mapstructure:"max_ping_failures"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Driver: DriverRedis,
		Redis: RedisConfig{
			Address:         "localhost:6379",
			Password:        "",
			DB:              0,
			PoolSize:        10,
			ReadTimeout:     3 * time.Second,
			WriteTimeout:    3 * time.Second,
			PingInterval:    5 * time.Second,
			MaxPingFailures: 3,
		},
		Kafka: KafkaConfig{
			Brokers:           "localhost:9092",
			GroupID:           "chat",
			Partitions:        4,
			ReplicationFactor: 1,
			MetadataTimeout:   5 * time.Second,
		},
	}
}

// NewPubSub creates a new PubSub instance based on the configuration.
func NewPubSub(cfg Config) (PubSub, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaPubSub(cfg.Kafka)
	case DriverRedis, "":
		return NewRedisPubSub(cfg.Redis)
	case DriverMemory:
		return NewMemoryPubSub(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
