package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Booking  BookingConfig  `yaml:"booking"`
	Channels ChannelsConfig `yaml:"channels"`
	Notifier NotifierConfig `yaml:"notifier"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// BookingConfig holds booking domain settings shared by both services
type BookingConfig struct {
	// NightStartHour/NightEndHour bound the window during which
	// nighttime-suppressed users get delayed pushes. The window may wrap
	// midnight.
	NightStartHour int `yaml:"night_start_hour"`
	NightEndHour   int `yaml:"night_end_hour"`

	// SMSFromNumber is the sender number on translator fan-out texts.
	SMSFromNumber string `yaml:"sms_from_number"`

	// PhoneCancellationGuidance is the message returned to translators
	// whose cancellation falls inside the 24-hour window.
	PhoneCancellationGuidance string `yaml:"phone_cancellation_guidance"`
}

// ChannelsConfig holds the delivery provider endpoints for email, SMS and
// push. Both services dispatch notifications, so both need this section.
type ChannelsConfig struct {
	Email EmailChannelConfig `yaml:"email"`
	SMS   SMSChannelConfig   `yaml:"sms"`
	Push  PushChannelConfig  `yaml:"push"`
}

// EmailChannelConfig holds the transactional mail provider settings
type EmailChannelConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	FromAddress string        `yaml:"from_address"`
	FromName    string        `yaml:"from_name"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SMSChannelConfig holds the SMS gateway settings
type SMSChannelConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// PushChannelConfig holds the push notification gateway settings
type PushChannelConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// NotifierConfig holds notifier service configuration
type NotifierConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	MaxJobs         int           `yaml:"max_jobs"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ExpirySweepSchedule is the cron spec for the pending-booking expiry
	// sweep.
	ExpirySweepSchedule string `yaml:"expiry_sweep_schedule"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Booking.NightStartHour < 0 || c.Booking.NightStartHour > 23 {
		return fmt.Errorf("invalid night start hour: %d (must be between 0 and 23)", c.Booking.NightStartHour)
	}

	if c.Booking.NightEndHour < 0 || c.Booking.NightEndHour > 23 {
		return fmt.Errorf("invalid night end hour: %d (must be between 0 and 23)", c.Booking.NightEndHour)
	}

	if c.Channels.Email.BaseURL == "" {
		return fmt.Errorf("email channel base_url is required")
	}

	if c.Channels.Email.FromAddress == "" {
		return fmt.Errorf("email channel from_address is required")
	}

	if c.Channels.SMS.BaseURL == "" {
		return fmt.Errorf("sms channel base_url is required")
	}

	if c.Channels.Push.BaseURL == "" {
		return fmt.Errorf("push channel base_url is required")
	}

	return nil
}

// ValidateAPIConfig checks the configuration the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateNotifierConfig checks the configuration the notifier service needs
func (c *Config) ValidateNotifierConfig() error {
	if c.Notifier.Concurrency <= 0 {
		return fmt.Errorf("notifier concurrency must be greater than 0")
	}

	if c.Notifier.MaxJobs <= 0 {
		return fmt.Errorf("notifier max_jobs must be greater than 0")
	}

	if c.Notifier.JobTimeout <= 0 {
		return fmt.Errorf("notifier job_timeout must be greater than 0")
	}

	if c.Notifier.ShutdownTimeout <= 0 {
		return fmt.Errorf("notifier shutdown_timeout must be greater than 0")
	}

	if c.Notifier.ExpirySweepSchedule == "" {
		return fmt.Errorf("notifier expiry_sweep_schedule is required")
	}

	return c.validateShared()
}
