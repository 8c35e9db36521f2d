package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-log-service/internal/segment"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

// Sink names accepted in store.sinks.
const (
	SinkCassandra = "cassandra"
	SinkObject    = "object"
)

type Config struct {
	Server    ServerConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Consumer  ConsumerConfig
	Store     StoreConfig
	Cassandra CassandraConfig
	Segment   segment.Config
	Storage   storage.Config
	Cache     CacheConfig
	Log       pkglog.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ConsumerConfig struct {
	Group      string
	Buffer     int
	LedgerSize int `mapstructure:"ledger_size"`
}

// StoreConfig lists the sinks every record is appended to, comma separated.
type StoreConfig struct {
	Sinks string
}

// Enabled returns the configured sink names.
func (s StoreConfig) Enabled() []string {
	var out []string
	for _, name := range strings.Split(s.Sinks, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

type CassandraConfig struct {
	Hosts           []string
	Keyspace        string
	Username        string
	Password        string
	Consistency     string
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	Timeout         time.Duration
	NumConns        int  `mapstructure:"num_conns"`
	MaxPreparedStmt int  `mapstructure:"max_prepared_stmt"`
	CreateTable     bool `mapstructure:"create_table"`
}

// CacheConfig configures the audit query cache. An empty Address disables it.
type CacheConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("pubsub.driver", pubsub.DriverRedis)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.redis.ping_interval", "5s")
	v.SetDefault("pubsub.redis.max_ping_failures", 3)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.replication_factor", 1)
	v.SetDefault("pubsub.kafka.metadata_timeout", "5s")
	v.SetDefault("consumer.group", "chat-log")
	v.SetDefault("consumer.buffer", 256)
	v.SetDefault("consumer.ledger_size", 10000)
	v.SetDefault("store.sinks", SinkCassandra)
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "wes_chat")
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("cassandra.max_prepared_stmt", 1000)
	v.SetDefault("cassandra.create_table", true)
	v.SetDefault("segment.prefix", "message-log")
	v.SetDefault("segment.max_records", 500)
	v.SetDefault("segment.flush_interval", "5s")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/log")
	v.SetDefault("cache.address", "")
	v.SetDefault("cache.prefix", "chat-log")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "chat-log-service")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("consumer.group", "CONSUMER_GROUP")
	v.BindEnv("store.sinks", "LOG_SINKS")
	v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("cassandra.username", "CASSANDRA_USERNAME")
	v.BindEnv("cassandra.password", "CASSANDRA_PASSWORD")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.region", "S3_REGION")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("cache.address", "CACHE_REDIS_ADDRESS")
	v.BindEnv("cache.password", "CACHE_REDIS_PASSWORD")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.PubSub.Redis.PingInterval = pkgconfig.Duration(v, "pubsub.redis.ping_interval", 5*time.Second)
	cfg.PubSub.Kafka.MetadataTimeout = pkgconfig.Duration(v, "pubsub.kafka.metadata_timeout", 5*time.Second)
	cfg.Cassandra.ConnectTimeout = pkgconfig.Duration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = pkgconfig.Duration(v, "cassandra.timeout", 5*time.Second)
	cfg.Segment.FlushInterval = pkgconfig.Duration(v, "segment.flush_interval", 5*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 30*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	sinks := c.Store.Enabled()
	if len(sinks) == 0 {
		return fmt.Errorf("store.sinks (LOG_SINKS) must name at least one sink")
	}
	for _, name := range sinks {
		if name != SinkCassandra && name != SinkObject {
			return fmt.Errorf("unknown log sink %q", name)
		}
	}
	return nil
}
