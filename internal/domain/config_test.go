package domain

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8090, config.Server.Port)
	assert.Equal(t, 3, config.Fetch.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.Fetch.Timeout)
	assert.Equal(t, 2*time.Second, config.Fetch.Backoff)
	assert.Equal(t, int64(1000), config.Fetch.MinSize)
	assert.Equal(t, ".pdf", config.Fetch.ExpectedSuffix)
	assert.Equal(t, "application/pdf", config.Fetch.ExpectedMIME)
	assert.True(t, config.Queue.AutoStartWorkers)
	assert.Equal(t, 5*time.Second, config.Queue.CheckInterval)
	assert.Equal(t, time.Second, config.Catalog.PoliteDelay)
	assert.Empty(t, config.Catalog.Schedule)
	assert.False(t, config.Notification.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestFetchConfig_Dirs(t *testing.T) {
	config := FetchConfig{BaseDir: "/data/qp"}

	assert.Equal(t, filepath.Join("/data/qp", "real-papers"), config.PapersDir())
	assert.Equal(t, filepath.Join("/data/qp", ".locks"), config.LockDir())
	assert.Equal(t, filepath.Join("/data/qp", "logs"), config.LogsDir())
}
