package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	t.Run("Production", func(t *testing.T) {
		Init("production")
		assert.NotNil(t, log)
	})

	t.Run("Development", func(t *testing.T) {
		Init("development")
		assert.NotNil(t, log)
	})

	t.Run("Level override", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "warn")
		Init("production")
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})
}

func TestL_LazyInit(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	t.Setenv("APP_ENV", "test")

	assert.NotNil(t, L())
	assert.NotNil(t, log)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", RequestIDFrom(ctx))
	assert.Equal(t, "", OrderIDFrom(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOrderID(ctx, "100000001")

	assert.Equal(t, "req-1", RequestIDFrom(ctx))
	assert.Equal(t, "100000001", OrderIDFrom(ctx))
}

func TestFromCtx(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	t.Run("With request and order", func(t *testing.T) {
		ctx := WithOrderID(WithRequestID(context.Background(), "req-abc"), "100000001")

		FromCtx(ctx).Info("processing")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "req-abc", fields["request_id"])
		assert.Equal(t, "100000001", fields["order_id"])
	})

	t.Run("Bare context", func(t *testing.T) {
		FromCtx(context.Background()).Info("processing")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		_, ok := logs[0].ContextMap()["request_id"]
		assert.False(t, ok)
	})
}

func TestSync(t *testing.T) {
	assert.NotPanics(t, Sync)
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestIDFrom(r.Context()))
	}))

	t.Run("Generates ID when missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Preserves existing ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("X-Request-ID", "test-id-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/webhook/payment", nil))

	logs := observed.TakeAll()
	assert.Len(t, logs, 1)
	assert.Equal(t, "request handled", logs[0].Message)
	assert.Equal(t, "/webhook/payment", logs[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusAccepted, logs[0].ContextMap()["status"])
}
