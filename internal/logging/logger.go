package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/2beens/fittrack/pkg"
)

const (
	defaultLogFileMaxSizeMB = 50
	sentryFlushTimeout      = 2 * time.Second
)

type LoggerSetupParams struct {
	LogFileName   string
	LogToStdout   bool
	LogLevel      string
	LogFormatJSON bool
	// LogFileMaxSizeMB is the rotation threshold, 50MB when unset.
	LogFileMaxSizeMB int

	Environment      string
	Release          string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
}

// Setup configures the global logrus logger. The returned func flushes
// pending sentry events and closes the log file; call it before exiting.
func Setup(params LoggerSetupParams) (flush func()) {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))

	var closers []func()

	if params.SentryEnabled {
		if err := setupSentry(params); err != nil {
			logrus.Errorf("sentry init: %s", err)
		} else {
			closers = append(closers, func() { sentry.Flush(sentryFlushTimeout) })
			logrus.Infoln("sentry hook added")
		}
	}

	output, closeOutput := logOutput(params)
	logrus.SetOutput(output)
	if closeOutput != nil {
		closers = append(closers, closeOutput)
	}

	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func setupSentry(params LoggerSetupParams) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              params.SentryDSN,
		Environment:      params.Environment,
		Release:          params.Release,
		ServerName:       params.SentryServerName,
		TracesSampleRate: 0.2,
	}); err != nil {
		return err
	}
	logrus.AddHook(NewSentryHook([]logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}))
	return nil
}

// logOutput picks stdout, a rotated log file, or both.
func logOutput(params LoggerSetupParams) (io.Writer, func()) {
	if params.LogFileName == "" {
		logrus.Debugln("writing logs to stdout only")
		return os.Stdout, nil
	}

	fileName := params.LogFileName
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}
	maxSize := params.LogFileMaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultLogFileMaxSizeMB
	}

	rotated := &lumberjack.Logger{
		Filename:  fileName,
		MaxSize:   maxSize,
		LocalTime: false,
		Compress:  true,
	}
	closeFile := func() {
		if err := rotated.Close(); err != nil {
			logrus.Errorf("close log file %s: %s", fileName, err)
		}
	}

	if params.LogToStdout {
		logrus.Debugf("writing logs to %s and stdout", fileName)
		return pkg.NewCombinedWriter(os.Stdout, rotated), closeFile
	}
	return rotated, closeFile
}

// GetLevel parses a configured level name. Unknown names mean trace, the
// most verbose level, so a typo in the config never hides logs.
func GetLevel(level string) logrus.Level {
	if strings.EqualFold(level, "warning") {
		return logrus.WarnLevel
	}
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.TraceLevel
	}
	return parsed
}
