package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/harshithgowdakt/blockexec/internal/config"
)

func TestNew(t *testing.T) {
	l, err := New(config.Logging{Level: "debug", Development: true})
	require.NoError(t, err)
	require.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(config.Logging{})
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.DebugLevel))
	require.True(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = New(config.Logging{Level: "loud"})
	require.Error(t, err)
}
