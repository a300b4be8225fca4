package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "booking_db", cfg.Database.Database)
				assert.Equal(t, "booking_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "booking_notifications", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "booking-api-service", cfg.App.Name)
				assert.Equal(t, 22, cfg.Booking.NightStartHour)
				assert.Equal(t, 7, cfg.Booking.NightEndHour)
				assert.Equal(t, "*/5 * * * *", cfg.Notifier.ExpirySweepSchedule)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "booking_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "booking_exchange",
			},
			Queue: QueueConfig{
				Name: "booking_notifications",
			},
		},
		Booking: BookingConfig{
			NightStartHour: 22,
			NightEndHour:   7,
		},
		Channels: ChannelsConfig{
			Email: EmailChannelConfig{
				BaseURL:     "http://localhost:8200",
				FromAddress: "bookings@example.com",
			},
			SMS: SMSChannelConfig{
				BaseURL: "http://localhost:8201",
			},
			Push: PushChannelConfig{
				BaseURL: "http://localhost:8202",
			},
		},
		Notifier: NotifierConfig{
			Concurrency:         5,
			MaxJobs:             100,
			JobTimeout:          30 * time.Second,
			ShutdownTimeout:     30 * time.Second,
			ExpirySweepSchedule: "*/5 * * * *",
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "night start hour out of range",
			mutate:    func(c *Config) { c.Booking.NightStartHour = 24 },
			wantErr:   true,
			errString: "invalid night start hour",
		},
		{
			name:      "night end hour out of range",
			mutate:    func(c *Config) { c.Booking.NightEndHour = -1 },
			wantErr:   true,
			errString: "invalid night end hour",
		},
		{
			name:      "missing email base url",
			mutate:    func(c *Config) { c.Channels.Email.BaseURL = "" },
			wantErr:   true,
			errString: "email channel base_url is required",
		},
		{
			name:      "missing email from address",
			mutate:    func(c *Config) { c.Channels.Email.FromAddress = "" },
			wantErr:   true,
			errString: "email channel from_address is required",
		},
		{
			name:      "missing sms base url",
			mutate:    func(c *Config) { c.Channels.SMS.BaseURL = "" },
			wantErr:   true,
			errString: "sms channel base_url is required",
		},
		{
			name:      "missing push base url",
			mutate:    func(c *Config) { c.Channels.Push.BaseURL = "" },
			wantErr:   true,
			errString: "push channel base_url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateNotifierConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Notifier.Concurrency = 0 },
			wantErr:   true,
			errString: "notifier concurrency must be greater than 0",
		},
		{
			name:      "zero max jobs",
			mutate:    func(c *Config) { c.Notifier.MaxJobs = 0 },
			wantErr:   true,
			errString: "notifier max_jobs must be greater than 0",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Notifier.JobTimeout = 0 },
			wantErr:   true,
			errString: "notifier job_timeout must be greater than 0",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Notifier.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "notifier shutdown_timeout must be greater than 0",
		},
		{
			name:      "missing sweep schedule",
			mutate:    func(c *Config) { c.Notifier.ExpirySweepSchedule = "" },
			wantErr:   true,
			errString: "notifier expiry_sweep_schedule is required",
		},
		{
			name:      "shared validation still applies",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateNotifierConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateNotifierConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
