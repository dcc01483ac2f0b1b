package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("APP_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, StorageLocal, cfg.Storage.Driver)
	assert.Equal(t, 0.75, cfg.SLA.WarningRatio())
	assert.Equal(t, 72*time.Hour, cfg.Jobs.ExportRetention())
	assert.Equal(t, "@every 1m", cfg.Jobs.SLAEvaluateSpec)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.False(t, cfg.Notification.EmailEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "S3")
	t.Setenv("STORAGE_S3_BUCKET", "exports")
	t.Setenv("JOBS_WORKERS", "8")
	t.Setenv("SMTP_HOST", "smtp.internal")
	t.Setenv("APP_PUBLIC_URL", "https://help.example.com/")
	t.Setenv("JOBS_LOCK_TTL_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageS3, cfg.Storage.Driver)
	assert.Equal(t, "exports", cfg.Storage.S3Bucket)
	assert.Equal(t, 8, cfg.Jobs.Workers)
	assert.True(t, cfg.Notification.EmailEnabled())
	assert.Equal(t, "https://help.example.com", cfg.Notification.PublicURL)
	assert.Equal(t, 55*time.Second, cfg.Jobs.LockTTL())
	assert.Equal(t, 10*time.Minute, cfg.Jobs.StaleAfter())
	assert.Equal(t, "@every 5m", cfg.Jobs.ResumeSpec)
}

func TestLoad_InvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":      {"STORAGE_DRIVER": "ftp"},
		"s3 without bucket":   {"STORAGE_DRIVER": "s3", "STORAGE_S3_BUCKET": ""},
		"azure without conn":  {"STORAGE_DRIVER": "azure", "STORAGE_AZURE_CONNECTION_STRING": ""},
		"zero workers":        {"JOBS_WORKERS": "0"},
		"threshold too large": {"SLA_WARNING_THRESHOLD_PERCENT": "100"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
