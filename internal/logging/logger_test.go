package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("ERROR"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(" info "))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("Warning"))
	assert.Equal(t, logrus.TraceLevel, GetLevel(""))
	assert.Equal(t, logrus.TraceLevel, GetLevel("nonsense"))
}

func TestSetup_LogFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logFile := filepath.Join(t.TempDir(), "service")
	flush := Setup(LoggerSetupParams{
		LogFileName: logFile,
		LogLevel:    "info",
	})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())

	logrus.Infoln("workout finished")
	logrus.Debugln("below the level")
	flush()

	content, err := os.ReadFile(logFile + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), "workout finished")
	assert.NotContains(t, string(content), "below the level")
}

func TestSetup_FileAndStdout(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logFile := filepath.Join(t.TempDir(), "service.log")
	flush := Setup(LoggerSetupParams{
		LogFileName:   logFile,
		LogToStdout:   true,
		LogLevel:      "debug",
		LogFormatJSON: true,
	})
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	logrus.WithField("user", "user-1").Warnln("meals payload reset")
	flush()

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"user":"user-1"`)
	assert.Contains(t, string(content), `"msg":"meals payload reset"`)
}

func TestSentryHook_Levels(t *testing.T) {
	hook := NewSentryHook([]logrus.Level{logrus.ErrorLevel})
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())
	// sentry not initialized, capture is a no-op
	assert.NoError(t, hook.Fire(&logrus.Entry{Level: logrus.ErrorLevel, Message: "boom"}))
}
