package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/settlement-core/pkg/logger"
)

// queryLogger routes gorm's trace hook into the service logger. Only failed
// statements and statements slower than the threshold are logged; record not
// found is a normal outcome for lookups and stays silent.
type queryLogger struct {
	logg *logger.Logger
	slow time.Duration
}

func newQueryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return &queryLogger{logg: logg, slow: slow}
}

func (l *queryLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *queryLogger) Info(context.Context, string, ...any)  {}
func (l *queryLogger) Warn(context.Context, string, ...any)  {}
func (l *queryLogger) Error(context.Context, string, ...any) {}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed >= l.slow
	if !failed && !slow {
		return
	}

	sql, rows := fc()
	ctx = l.logg.WithFields(ctx, map[string]any{
		"sql":        sql,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	if failed {
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "db.query_failed")
		return
	}
	l.logg.Warn(ctx, "db.query_slow")
}
