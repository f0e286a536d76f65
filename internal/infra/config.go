package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации analyzer и console.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Generative GenerativeConfig `mapstructure:"generative"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StoreConfig выбирает реализацию хранилища записей.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

// RedisConfig описывает подключение к Redis (Pub/Sub событий и блокировки).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PublicKey      []byte
	PrivateKey     []byte
}

// EngineConfig — настройки конвейера анализа и реактивного триггера.
type EngineConfig struct {
	EntryLimit    int           `mapstructure:"entry_limit"`
	AdviceTimeout time.Duration `mapstructure:"advice_timeout"`

	AlertBufferSize    int           `mapstructure:"alert_buffer_size"`
	AlertBatchSize     int           `mapstructure:"alert_batch_size"`
	AlertFlushInterval time.Duration `mapstructure:"alert_flush_interval"`

	// Настройки Circuit Breaker для генеративного бэкенда
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`

	Schedule   string        `mapstructure:"schedule"` // cron, 5 полей
	Timezone   string        `mapstructure:"timezone"`
	RunLockTTL time.Duration `mapstructure:"run_lock_ttl"`
}

// GenerativeConfig — параметры вызова Gemini.
type GenerativeConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	Backend         string  `mapstructure:"backend"` // gemini, mock
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	TopP            float64 `mapstructure:"top_p"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New(), ".", "./configs")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 2. ENV перекрывает файл: GENERATIVE_API_KEY перекроет generative.api_key
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. PEM-ключ из ENV (Docker/K8s) имеет приоритет над файлом
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Ключи без значения тоже регистрируем: иначе Unmarshal не увидит их в ENV
	for _, key := range []string{
		"server.host", "database.url", "redis.password",
		"auth.public_key_path", "auth.private_key_path",
		"generative.api_key", "generative.base_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("engine.entry_limit", 1000)
	v.SetDefault("engine.advice_timeout", 30*time.Second)
	v.SetDefault("engine.alert_buffer_size", 1000)
	v.SetDefault("engine.alert_batch_size", 100)
	v.SetDefault("engine.alert_flush_interval", 1*time.Second)
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.rate_limit", 1.0)
	v.SetDefault("engine.rate_burst", 2)
	v.SetDefault("engine.retry_attempts", 3)
	v.SetDefault("engine.schedule", "0 9 * * *")
	v.SetDefault("engine.timezone", "Asia/Tokyo")
	v.SetDefault("engine.run_lock_ttl", 10*time.Minute)

	v.SetDefault("generative.enabled", true)
	v.SetDefault("generative.backend", "gemini")
	v.SetDefault("generative.model", "gemini-1.5-pro")
	v.SetDefault("generative.max_output_tokens", 2048)
	v.SetDefault("generative.temperature", 0.7)
	v.SetDefault("generative.top_p", 0.8)
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return errors.New("config: database.url is required for postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Engine.EntryLimit <= 0 {
		return fmt.Errorf("config: engine.entry_limit must be positive, got %d", c.Engine.EntryLimit)
	}
	return nil
}

// loadKeyResource — ключ из ENV (PEM) или из файла по пути
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
