package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerNamesService(t *testing.T) {
	require.NoError(t, InitLogger("production"))

	entry := GetLogger().Check(zapcore.InfoLevel, "boot")
	require.NotNil(t, entry)
	assert.Equal(t, "bakery-service", entry.LoggerName)
}

func TestGetLoggerBeforeInit(t *testing.T) {
	logger = nil
	assert.NotNil(t, GetLogger())
}
