package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cerbtk/registry/logging"
)

func TestContextRoundTrip(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := logging.NewContext(context.Background(), logger)
	require.Same(t, logger, logging.FromContext(ctx))
}

func TestFromContextWithoutLogger(t *testing.T) {
	require.NotNil(t, logging.FromContext(context.Background()))
}

func TestLogsToFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "registry.log")
	logger := logging.NewWithRotation(zap.InfoLevel, filename, true, logging.Rotation{MaxFiles: 2, MaxSizeMB: 1})
	logger.Info("hello", zap.String("device_id", "d1"))
	_ = logger.Sync()

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Contains(t, string(data), `"device_id":"d1"`)
}
