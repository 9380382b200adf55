package logger

import (
	"net/http"
	"path/filepath"
	"testing"

	"golang-payment-adapters/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "warn", Filename: filepath.Join(t.TempDir(), "payments.log"), MaxSize: 1, MaxAge: 1}, "payments")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = New(config.LoggerConfig{Level: "loud"}, "payments")
	assert.Error(t, err)
}

func TestHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Razorpay-Signature", "abcdef123456")
	h.Set("Authorization", "Bearer sk_live_9876")
	h.Set("Sign", "abc")

	field := Headers("headers", h)
	assert.Equal(t, zapcore.ReflectType, field.Type)

	masked, ok := field.Interface.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "application/json", masked["Content-Type"])
	assert.Equal(t, "****3456", masked["X-Razorpay-Signature"])
	assert.Equal(t, "****9876", masked["Authorization"])
	assert.Equal(t, "****", masked["Sign"])

	_ = zap.NewNop().With(field)
}
