// Package sms sends text messages to members' mobiles.
package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mewsorg/mews/internal/app/system/authutil"
	"go.uber.org/zap"
)

// Providers accepted by New.
const (
	ProviderLog = "log"
	ProviderOff = "off"
)

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

// New returns the sender for provider. Unknown providers fall back to log.
func New(provider string, logger *zap.Logger) Sender {
	if strings.EqualFold(provider, ProviderOff) {
		return Nop{}
	}
	return &LogSender{Log: logger}
}

// LogSender writes messages to the log instead of a gateway.
type LogSender struct {
	Log *zap.Logger
}

func (s *LogSender) Send(ctx context.Context, to, message string) error {
	s.Log.Info("sms",
		zap.String("to", E164(to)),
		zap.String("message", message))
	return nil
}

// Nop drops every message.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }

// E164 renders an Indian mobile number with the +91 prefix.
func E164(mobile string) string {
	d := authutil.NormalizeMobile(mobile)
	if d == "" {
		return ""
	}
	return "+91" + d
}

// OTPMessage is the text sent with a login code.
func OTPMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your MEWS login OTP is %s. It is valid for %d minutes. Do not share it with anyone.",
		code, int(ttl.Minutes()))
}
