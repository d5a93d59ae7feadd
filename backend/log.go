package backend

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"
	log "gopkg.in/inconshreveable/log15.v2"
)

// PgxLogger adapts a log15 logger to the pgx tracelog interface.
type PgxLogger struct {
	logger log.Logger
}

func NewPgxLogger(logger log.Logger) *PgxLogger {
	return &PgxLogger{logger: logger}
}

func (l *PgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	logArgs := make([]any, 0, len(data)*2)
	for k, v := range data {
		logArgs = append(logArgs, k, v)
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.logger.Debug(msg, logArgs...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, logArgs...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, logArgs...)
	case tracelog.LogLevelError:
		l.logger.Error(msg, logArgs...)
	default:
		l.logger.Error(msg, append(logArgs, "INVALID_PGX_LOG_LEVEL", level)...)
	}
}
