package sms

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestE164(t *testing.T) {
	assert.Equal(t, "+919876543210", E164("98765 43210"))
	assert.Equal(t, "+919876543210", E164("+91-98765-43210"))
	assert.Equal(t, "", E164(""))
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(ProviderLog, zap.New(core))

	assert.NoError(t, s.Send(context.Background(), "9876543210", OTPMessage("123456", 10*time.Minute)))
	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "+919876543210", fields["to"])
		assert.Contains(t, fields["message"], "123456")
		assert.Contains(t, fields["message"], "10 minutes")
	}
}

func TestOffProvider(t *testing.T) {
	assert.IsType(t, Nop{}, New("OFF", zap.NewNop()))
}
