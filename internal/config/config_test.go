package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load(writeConfig(t, "log:\n  level: info\n"))
	require.NoError(t, err)

	assert.Equal(t, "srs_planner.db", cfg.Database.URL)
	assert.Equal(t, 20, cfg.Review.DueLimit)
	assert.Equal(t, 5, cfg.Review.MaxRetries)
	assert.Equal(t, "0 */15 * * * *", cfg.Dispatch.Schedule)
	assert.Equal(t, 15*time.Second, cfg.Dispatch.SendTimeout)
	assert.Equal(t, 20, cfg.Dispatch.EveningHour)
	assert.Equal(t, 8, cfg.Dispatch.MorningHour)
	assert.Equal(t, 10*time.Minute, cfg.Dispatch.LockLease)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, uint(3), cfg.Push.RetryAttempts)
	assert.Error(t, cfg.RequireTelegram())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		env               map[string]string
		wantErrorContains []string
		check             func(t *testing.T, cfg *Config)
	}{
		{
			name: "file values override defaults",
			configContent: `database:
  url: data/cards.db
review:
  due_limit: 50
dispatch:
  send_timeout: 5s
  evening_hour: 21
  lock_lease: 2m
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "data/cards.db", cfg.Database.URL)
				assert.Equal(t, 50, cfg.Review.DueLimit)
				assert.Equal(t, 5*time.Second, cfg.Dispatch.SendTimeout)
				assert.Equal(t, 21, cfg.Dispatch.EveningHour)
				assert.Equal(t, 2*time.Minute, cfg.Dispatch.LockLease)
			},
		},
		{
			name:          "legacy environment variables",
			configContent: "log:\n  format: json\n",
			env: map[string]string{
				"TELEGRAM_TOKEN": " 123:abc ",
				"DATABASE_URL":   "env.db",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "123:abc", cfg.Telegram.Token)
				assert.Equal(t, "env.db", cfg.Database.URL)
				assert.Equal(t, "json", cfg.Log.Format)
				assert.NoError(t, cfg.RequireTelegram())
			},
		},
		{
			name:          "prefixed environment variables",
			configContent: "log:\n  level: debug\n",
			env: map[string]string{
				"SRS_REVIEW_DUE_LIMIT":     "7",
				"SRS_DISPATCH_CONCURRENCY": "2",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7, cfg.Review.DueLimit)
				assert.Equal(t, 2, cfg.Dispatch.Concurrency)
			},
		},
		{
			name:              "invalid YAML format",
			configContent:     "review:\n  due_limit: [[[\n",
			wantErrorContains: []string{"configuration file found but could not be read"},
		},
		{
			name: "out of range values are reported together",
			configContent: `dispatch:
  evening_hour: 25
  schedule: every now and then
log:
  level: loud
`,
			wantErrorContains: []string{
				"invalid configuration",
				"evening_hour",
				"schedule must be a cron expression with seconds",
				"level",
			},
		},
		{
			name:              "bad prune time",
			configContent:     "dispatch:\n  prune_at: \"25:00\"\n",
			wantErrorContains: []string{"prune_at must be a time of day in HH:MM form"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_TOKEN", "")
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(writeConfig(t, tt.configContent))
			if len(tt.wantErrorContains) > 0 {
				require.Error(t, err)
				for _, want := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), want)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
