package controller

import (
	"os"
	"time"

	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/core/clock"
	"go.dedis.ch/forecast/crypto/ed25519"
	"go.dedis.ch/forecast/notify"
	"go.dedis.ch/forecast/notify/kafka"
	"go.dedis.ch/forecast/notify/redis"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the genesis configuration of a node, read from a YAML file.
//
//	operator: schnorr:9b1c...
//	bucket: 24h
//	rate: 10
//	balances:
//	  schnorr:4f0a...: "1000000000000000000"
//	notify:
//	  log: true
//	  redis:
//	    addr: 127.0.0.1:6379
//	    channel: forecast
//	    stream: forecast-events
//	  kafka:
//	    brokers: [127.0.0.1:9092]
//	    topic: forecast
type Config struct {
	Operator string            `yaml:"operator"`
	Bucket   time.Duration     `yaml:"bucket"`
	Rate     int               `yaml:"rate"`
	Balances map[string]string `yaml:"balances"`
	Notify   NotifyConfig      `yaml:"notify"`
}

// NotifyConfig lists the sinks of the notifications.
type NotifyConfig struct {
	Log   bool         `yaml:"log"`
	Redis *RedisConfig `yaml:"redis"`
	Kafka *KafkaConfig `yaml:"kafka"`
}

// RedisConfig is the configuration of the Redis sink.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
	Stream  string `yaml:"stream"`
}

// KafkaConfig is the configuration of the Kafka sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// LoadConfig reads and validates the configuration at the path.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to decode config: %v", err)
	}

	if cfg.Bucket == 0 {
		cfg.Bucket = clock.DefaultBucket
	}

	if cfg.Rate <= 0 {
		cfg.Rate = defaultRate
	}

	_, err = cfg.OperatorKey()
	if err != nil {
		return cfg, err
	}

	_, err = cfg.InitialBalances()
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// OperatorKey returns the public key of the operator.
func (cfg Config) OperatorKey() (ed25519.PublicKey, error) {
	pk, err := ed25519.ParsePublicKey(cfg.Operator)
	if err != nil {
		return pk, xerrors.Errorf("invalid operator '%s': %v", cfg.Operator, err)
	}

	return pk, nil
}

// InitialBalances returns the balances credited at genesis.
func (cfg Config) InitialBalances() (map[string]*uint256.Int, error) {
	balances := make(map[string]*uint256.Int, len(cfg.Balances))

	for account, text := range cfg.Balances {
		amount, err := uint256.FromDecimal(text)
		if err != nil {
			return nil, xerrors.Errorf("invalid balance of '%s': %v", account, err)
		}

		balances[account] = amount
	}

	return balances, nil
}

// Build returns the notifier forwarding to the configured sinks, or nil when
// none is configured.
func (cfg NotifyConfig) Build() notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Log {
		notifiers = append(notifiers, notify.NewLog())
	}

	if cfg.Redis != nil {
		notifiers = append(notifiers, redis.NewNotifier(cfg.Redis.Addr, cfg.Redis.Channel, cfg.Redis.Stream))
	}

	if cfg.Kafka != nil {
		notifiers = append(notifiers, kafka.NewNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}

	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return notify.NewMulti(notifiers...)
	}
}
