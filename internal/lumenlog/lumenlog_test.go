package lumenlog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetVmoduleOverridesComponent(t *testing.T) {
	SetVerbosity(zapcore.WarnLevel)
	defer SetVerbosity(zapcore.InfoLevel)

	txpool := Named("txpool")
	require.False(t, txpool.enabled(zapcore.DebugLevel), "debug suppressed by global level before override")

	SetVmodule("txpool", zapcore.DebugLevel)
	defer delete(overrides, "txpool")
	require.True(t, txpool.enabled(zapcore.DebugLevel), "vmodule override should enable debug for this component")

	other := Named("producer")
	require.False(t, other.enabled(zapcore.DebugLevel), "override is scoped to the named component only")
}

func TestNamedLoggerDoesNotPanic(t *testing.T) {
	SetVerbosity(zapcore.InfoLevel)
	l := Named("test")
	l.Info("hello", zapcore.Field{})
	require.NoError(t, l.Sync())
}
