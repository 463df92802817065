package logger

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewForEnvironment(t *testing.T) {
	log, err := NewForEnvironment("production")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = NewForEnvironment("development")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
}

func TestFiberMiddleware_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(FiberMiddleware(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrInternalServerError })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])
	assert.EqualValues(t, 404, entries[1].ContextMap()["status"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	app := fiber.New()
	app.Use(Recovery(zap.New(core)))
	app.Get("/panic", func(c *fiber.Ctx) error { panic("kaboom") })

	resp, err := app.Test(httptest.NewRequest("GET", "/panic", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestNew_FailsOnUnwritableOutput(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.ErrorContains(t, err, "failed to open log output")
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))

	core, logs := observer.New(zapcore.InfoLevel)
	FromContext(ctx, zap.New(core)).Info("tagged")
	FromContext(context.Background(), zap.New(core)).Info("untagged")
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "request_id")
}

func TestFiberMiddleware_PropagatesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Use(FiberMiddleware(zap.NewNop()))
	app.Get("/id", func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c.UserContext()))
	})

	req := httptest.NewRequest("GET", "/id", nil)
	req.Header.Set(fiber.HeaderXRequestID, "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body := make([]byte, 16)
	n, _ := resp.Body.Read(body)
	assert.Equal(t, "abc-123", string(body[:n]))
}

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(10*time.Millisecond))
	ctx := WithRequestID(context.Background(), "req-9")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	assert.Equal(t, 0, logs.Len(), "fast queries are not logged at warn level")

	l.Trace(ctx, time.Now(), sql, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len(), "a missing document is not an error")

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	slow := logs.FilterMessage("Slow document store query").All()
	require.Len(t, slow, 1)
	assert.Equal(t, "req-9", slow[0].ContextMap()["request_id"])

	l.Trace(ctx, time.Now(), sql, errors.New("disk full"))
	failed := logs.FilterMessage("Document store query failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "SELECT 1", failed[0].ContextMap()["sql"])

	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, errors.New("ignored"))
	assert.Equal(t, 2, logs.Len())
}

func TestGormLevelFor(t *testing.T) {
	debug, _ := observer.New(zapcore.DebugLevel)
	errorOnly, _ := observer.New(zapcore.ErrorLevel)
	info, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, gormlogger.Info, GormLevelFor(zap.New(debug)))
	assert.Equal(t, gormlogger.Error, GormLevelFor(zap.New(errorOnly)))
	assert.Equal(t, gormlogger.Warn, GormLevelFor(zap.New(info)))
}
