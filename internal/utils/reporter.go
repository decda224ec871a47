package utils

import (
	"errors"
	"fmt"

	"github.com/rollbar/rollbar-go"
)

type rollbarLogger struct {
	Logger
}

// NewRollbarLogger forwards Error calls to Rollbar in addition to base.
// With an empty token base is returned unchanged.
func NewRollbarLogger(base Logger, token, environment string) Logger {
	if token == "" {
		return base
	}
	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	return &rollbarLogger{Logger: base}
}

func (l *rollbarLogger) Error(msg string, args ...any) {
	l.Logger.Error(msg, args...)

	reportErr := errors.New(msg)
	fields := map[string]interface{}{}
	for i := 0; i+1 < len(args); i += 2 {
		if err, ok := args[i+1].(error); ok {
			reportErr = fmt.Errorf("%s: %w", msg, err)
			continue
		}
		fields[fmt.Sprint(args[i])] = args[i+1]
	}
	rollbar.Error(reportErr, fields)
}

func (l *rollbarLogger) With(args ...any) Logger {
	return &rollbarLogger{Logger: l.Logger.With(args...)}
}

// FlushReports blocks until queued Rollbar items are sent.
func FlushReports() {
	rollbar.Wait()
}
