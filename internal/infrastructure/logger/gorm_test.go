package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func observedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func loanQuery() (string, int64) {
	return "SELECT * FROM loans WHERE branch_id = $1", 3
}

func TestNewGormLogger(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		gl, _ := observedGormLogger(gormlogger.Info)
		assert.Equal(t, gormlogger.Info, gl.logLevel)
		assert.Equal(t, 200*time.Millisecond, gl.slowThreshold)
		assert.True(t, gl.ignoreRecordNotFoundError)
	})

	t.Run("options override the defaults", func(t *testing.T) {
		gl, _ := observedGormLogger(gormlogger.Info,
			WithSlowThreshold(500*time.Millisecond),
			WithIgnoreRecordNotFoundError(false),
		)
		assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
		assert.False(t, gl.ignoreRecordNotFoundError)
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := observedGormLogger(gormlogger.Info)

	clone := gl.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gl.logLevel, "original keeps its level")
	cloned, ok := clone.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, cloned.logLevel)
}

func TestGormLogger_Levels(t *testing.T) {
	t.Run("info formats its arguments", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Info)
		gl.Info(context.Background(), "migrated %d tables", 12)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "migrated 12 tables")
	})

	t.Run("silent suppresses info", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Silent)
		gl.Info(context.Background(), "hidden")
		assert.Empty(t, recorded.All())
	})

	t.Run("warn and error carry their zap levels", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Info)
		gl.Warn(context.Background(), "lock wait")
		gl.Error(context.Background(), "deadlock")

		logs := recorded.All()
		require.Len(t, logs, 2)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
		assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
	})
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("query errors log as SQL Error", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), loanQuery, errors.New("relation does not exist"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Error", logs[0].Message)
	})

	t.Run("record-not-found is suppressed by default", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Error)
		gl.Trace(context.Background(), time.Now(), loanQuery, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("slow queries warn with the threshold", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))
		gl.Trace(context.Background(), time.Now().Add(-time.Second), loanQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "SLOW SQL")
	})

	t.Run("normal queries log at debug", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Info)
		gl.Trace(context.Background(), time.Now(), loanQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "SQL Query", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), loanQuery, nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("request ID from the context is attached", func(t *testing.T) {
		gl, recorded := observedGormLogger(gormlogger.Info)
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-77")
		gl.Trace(ctx, time.Now(), loanQuery, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)

		found := false
		for _, field := range logs[0].Context {
			if field.Key == "request_id" {
				found = true
				assert.Equal(t, "req-77", field.String)
			}
		}
		assert.True(t, found, "request_id field missing")
	})
}

func TestMapGormLogLevel(t *testing.T) {
	cases := []struct {
		level string
		want  gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"bogus", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, MapGormLogLevel(tc.level), "level %q", tc.level)
	}
}
