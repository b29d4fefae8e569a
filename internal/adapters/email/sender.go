// Package email delivers outreach messages through Resend, or only logs them
// when no API key is configured.
package email

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"inclusiv/internal/ports"
)

type ResendSender struct {
	client *resend.Client
	from   string
	log    *zap.Logger
}

var _ ports.EmailSender = (*ResendSender)(nil)

func NewResend(apiKey, from string, log *zap.Logger) *ResendSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from, log: log.Named("resend")}
}

func (s *ResendSender) Send(ctx context.Context, msg ports.Message) error {
	if msg.To == "" {
		return errors.New("email: empty recipient")
	}
	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Tags:    tags(msg.Tags),
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	s.log.Debug("email accepted", zap.String("provider_id", resp.Id))
	return nil
}

func tags(in map[string]string) []resend.Tag {
	if len(in) == 0 {
		return nil
	}
	out := make([]resend.Tag, 0, len(in))
	for k, v := range in {
		out = append(out, resend.Tag{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LogSender accepts every message and logs it. Used in development.
type LogSender struct {
	log *zap.Logger
}

var _ ports.EmailSender = (*LogSender)(nil)

func NewLog(log *zap.Logger) *LogSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSender{log: log.Named("email")}
}

func (s *LogSender) Send(_ context.Context, msg ports.Message) error {
	s.log.Info("email not delivered (no provider configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Any("tags", msg.Tags),
	)
	return nil
}
