package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mushroomnet/config"
)

func TestSetupWritesFile(t *testing.T) {
	previous := logger
	defer func() { logger = previous }()

	path := filepath.Join(t.TempDir(), "server.log")
	Setup(config.Log{Path: path, MaxSize: 1})
	Logger().Info("model trained", zap.Int("samples", 8124))
	Logger().Debug("hidden at info level")
	Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"model trained"`)
	assert.Contains(t, string(content), `"samples":8124`)
	assert.NotContains(t, string(content), "hidden at info level")
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, Logger())
}
