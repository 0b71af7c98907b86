package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the message intake service.
type Config struct {
	App          AppConfig
	Server       ServerConfig
	Storage      StorageConfig
	Transactions TransactionConfig
	Mapping      MappingConfig
	Definitions  DefinitionConfig
	Targets      TargetConfig
	Kafka        KafkaConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// ServerConfig tunes the HTTP intake surface.
type ServerConfig struct {
	IntakePath   string
	MaxBodyBytes int
	MaxInFlight  int
}

// StorageConfig selects and parameterises the blob store backend.
type StorageConfig struct {
	Backend       string
	Root          string
	RuntimeBucket string
	MessageBucket string
}

// TransactionConfig selects the transaction store backend.
type TransactionConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// MappingConfig selects the routing-table resolver backend.
type MappingConfig struct {
	Backend        string
	TableFile      string
	BaseURL        string
	TimeoutSeconds int
}

// DefinitionConfig locates the message-definition table.
type DefinitionConfig struct {
	TableFile string
}

// TargetConfig locates the delivery target registry.
type TargetConfig struct {
	RegistryFile          string
	DeliverTimeoutSeconds int
}

// KafkaConfig defines broker information for Kafka delivery targets.
type KafkaConfig struct {
	Brokers []string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Server.IntakePath = ldr.getString("INTAKE_PATH", "/msa/in", false)
	cfg.Server.MaxBodyBytes = ldr.getInt("INTAKE_MAX_BODY_BYTES", 2<<20, false)
	cfg.Server.MaxInFlight = ldr.getInt("INTAKE_MAX_IN_FLIGHT", 64, false)

	cfg.Storage.Backend = ldr.getString("STORAGE_BACKEND", "memory", false)
	cfg.Storage.Root = ldr.getString("STORAGE_ROOT", "", false)
	cfg.Storage.RuntimeBucket = ldr.getString("RUNTIME_BUCKET", "", true)
	cfg.Storage.MessageBucket = ldr.getString("MESSAGE_BUCKET", "", true)

	cfg.Transactions.Backend = ldr.getString("TRANSACTION_BACKEND", "memory", false)
	cfg.Transactions.RedisAddr = ldr.getString("TRANSACTION_REDIS_ADDR", "localhost:6379", false)
	cfg.Transactions.RedisPassword = ldr.getString("TRANSACTION_REDIS_PASSWORD", "", false)
	cfg.Transactions.RedisDB = ldr.getInt("TRANSACTION_REDIS_DB", 0, false)
	cfg.Transactions.KeyPrefix = ldr.getString("TRANSACTION_KEY_PREFIX", "txn", false)

	cfg.Mapping.Backend = ldr.getString("MAPPING_BACKEND", "static", false)
	cfg.Mapping.TableFile = ldr.getString("MAPPING_TABLE_FILE", "", false)
	cfg.Mapping.BaseURL = ldr.getString("MAPPING_BASE_URL", "", false)
	cfg.Mapping.TimeoutSeconds = ldr.getInt("MAPPING_TIMEOUT_SECONDS", 10, false)

	cfg.Definitions.TableFile = ldr.getString("DEFINITION_TABLE_FILE", "", true)

	cfg.Targets.RegistryFile = ldr.getString("TARGET_REGISTRY_FILE", "", true)
	cfg.Targets.DeliverTimeoutSeconds = ldr.getInt("TARGET_DELIVER_TIMEOUT_SECONDS", 30, false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)

	switch strings.ToLower(cfg.Mapping.Backend) {
	case "static":
		if cfg.Mapping.TableFile == "" {
			ldr.addError("MAPPING_TABLE_FILE is required when MAPPING_BACKEND is static")
		}
	case "http":
		if cfg.Mapping.BaseURL == "" {
			ldr.addError("MAPPING_BASE_URL is required when MAPPING_BACKEND is http")
		}
	}
	if strings.EqualFold(cfg.Storage.Backend, "filesystem") && cfg.Storage.Root == "" {
		ldr.addError("STORAGE_ROOT is required when STORAGE_BACKEND is filesystem")
	}

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
