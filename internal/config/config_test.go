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
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, "localhost:6380", cfg.Redis.Addr)
			assert.Equal(t, 2, cfg.Redis.DB)
			assert.Equal(t, StoreSQLite, cfg.Store.Backend)
			assert.Equal(t, 24*time.Hour, cfg.Store.ExpireIn)
			assert.Equal(t, "msgpack", cfg.Store.Codec)
			assert.Equal(t, QueueAsynq, cfg.Queue.Backend)
			assert.Equal(t, []string{"statused", "exports"}, cfg.Queue.Queues)
			assert.Equal(t, 8, cfg.Queue.Concurrency)
			assert.Equal(t, 9090, cfg.Server.Port)
			assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
			require.Len(t, cfg.Schedules, 1)
			assert.Equal(t, "SleepJob", cfg.Schedules[0].Job)

			// Untouched keys keep their defaults.
			assert.Equal(t, 10*time.Second, cfg.Server.WriteTimeout)
			assert.Equal(t, "resque", cfg.Queue.Namespace)
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:      "unknown store backend",
			mutate:    func(c *Config) { c.Store.Backend = "mongo" },
			wantErr:   true,
			errString: "invalid store backend",
		},
		{
			name:      "sql store without dsn",
			mutate:    func(c *Config) { c.Store.Backend = StorePostgres },
			wantErr:   true,
			errString: "store dsn is required",
		},
		{
			name:      "negative expire_in",
			mutate:    func(c *Config) { c.Store.ExpireIn = -time.Second },
			wantErr:   true,
			errString: "expire_in",
		},
		{
			name:      "unknown codec",
			mutate:    func(c *Config) { c.Store.Codec = "xml" },
			wantErr:   true,
			errString: "invalid store codec",
		},
		{
			name:      "unknown queue backend",
			mutate:    func(c *Config) { c.Queue.Backend = "amqp" },
			wantErr:   true,
			errString: "invalid queue backend",
		},
		{
			name:      "no queues",
			mutate:    func(c *Config) { c.Queue.Queues = nil },
			wantErr:   true,
			errString: "at least one queue",
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Queue.Concurrency = 0 },
			wantErr:   true,
			errString: "concurrency",
		},
		{
			name:      "invalid port",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "schedule without job",
			mutate:    func(c *Config) { c.Schedules = []ScheduleConfig{{Spec: "@hourly"}} },
			wantErr:   true,
			errString: "schedule 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				return
			}
			assert.NoError(t, err)
		})
	}
}
