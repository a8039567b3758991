package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации подсистемы автономии.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера консоли.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub и блокировки).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит публичный ключ внешнего Identity-сервиса.
// Приватного ключа здесь нет: выпуск токенов — не наша зона ответственности.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// QueueConfig — параметры очереди согласования.
type QueueConfig struct {
	// Срок жизни PENDING-действия, если агент не указал свой.
	DefaultExpiry time.Duration `mapstructure:"default_expiry"`
	// Лимит выборки очереди по умолчанию.
	DefaultLimit int `mapstructure:"default_limit"`
}

// DispatchConfig — настройки доставки AUTO_EXECUTED действий исполнителю.
type DispatchConfig struct {
	// URL внешнего исполнителя бизнес-эффекта; пустая строка включает мок.
	ExecutorURL string        `mapstructure:"executor_url"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// Rate limit исходящего трафика к исполнителю
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// AuditConfig — параметры буферизованного аудит-журнала.
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// SweeperConfig — параметры внешнего цикла экспирации.
type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
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

	// 6. Загрузка ключа из Файла ИЛИ из ENV (для Docker/K8s)
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("logger.level", "info")
	v.SetDefault("queue.default_expiry", 24*time.Hour)
	v.SetDefault("queue.default_limit", 50)
	v.SetDefault("dispatch.timeout", 10*time.Second)
	v.SetDefault("dispatch.rate_per_second", 100)
	v.SetDefault("dispatch.rate_burst", 20)
	v.SetDefault("dispatch.cb_max_requests", 3)
	v.SetDefault("dispatch.cb_interval", 5*time.Second)
	v.SetDefault("dispatch.cb_timeout", 30*time.Second)
	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
	v.SetDefault("sweeper.interval", time.Minute)
	v.SetDefault("sweeper.lock_ttl", 55*time.Second)
}

// loadKeyResource — универсальный хелпер: ключ либо напрямую в ENV, либо файлом.
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
