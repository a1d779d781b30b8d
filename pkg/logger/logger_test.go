package logger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLogLevel("nonsense"))
}

func TestNewWithConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	l, err := NewWithConfig(Config{
		Level:          "info",
		Format:         "json",
		OutputPath:     path,
		ServiceName:    "user-records-service",
		ServiceVersion: "test",
		Environment:    "test",
	})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("hello")
	_ = l.Sync()
	assert.FileExists(t, path)
}

func TestWithContext_RequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("no id")
	WithContext(WithRequestID(context.Background(), "req-1"), base).Info("with id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "request_id")
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
	assert.Equal(t, "req-1", GetRequestID(WithRequestID(context.Background(), "req-1")))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLoggerWithConfig(zap.New(core), 0.1, "warn")

	sql := func() (string, int64) { return "SELECT * FROM `users` WHERE user_id = 1", 1 }
	ctx := WithRequestID(context.Background(), "req-7")

	// fast query below warn level is not logged
	gl.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len())

	// record not found is not an error
	gl.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(ctx, time.Now(), sql, errors.New("disk I/O error"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "query failed", entry.Message)
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "select", entry.ContextMap()["op"])
	assert.Equal(t, "users", entry.ContextMap()["table"])
	assert.Equal(t, "req-7", entry.ContextMap()["request_id"])

	insert := func() (string, int64) { return `INSERT INTO "users" ("user_name") VALUES ('A')`, 0 }
	gl.Trace(ctx, time.Now(), insert, gorm.ErrDuplicatedKey)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, "insert", logs.All()[1].ContextMap()["op"])

	gl.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "slow query", logs.All()[2].Message)

	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 3, logs.Len())
}

func TestGormLogger_InfoLevelLogsEveryStatement(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	gl := NewGormLoggerWithConfig(zap.New(core), 0, "debug")

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "UPDATE `users` SET `user_name`='B' WHERE user_id = 3", 1
	}, nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "update", logs.All()[0].ContextMap()["op"])
	assert.Equal(t, "users", logs.All()[0].ContextMap()["table"])
}

func TestStatementInfo(t *testing.T) {
	tests := []struct {
		sql   string
		op    string
		table string
	}{
		{"SELECT * FROM `users`", "select", "users"},
		{`DELETE FROM "users" WHERE user_id = 1`, "delete", "users"},
		{"INSERT INTO `users` (`user_name`) VALUES ('A')", "insert", "users"},
		{`UPDATE "users" SET "age"=3`, "update", "users"},
		{"PRAGMA foreign_keys", "pragma", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		op, table := statementInfo(tt.sql)
		assert.Equal(t, tt.op, op, tt.sql)
		assert.Equal(t, tt.table, table, tt.sql)
	}
}
