package email

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/resend/resend-go/v2"
)

// outgoing is one rendered notification ready for a provider.
type outgoing struct {
	to             string
	subject        string
	html           string
	text           string
	notificationID int64
}

// entityRefHeader keeps mail clients from threading unrelated notifications.
const entityRefHeader = "X-Entity-Ref-ID"

// sendViaResend posts the message to the Resend API. A rate limit comes back
// as an error so River schedules the retry.
func (s *Service) sendViaResend(ctx context.Context, out outgoing) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend client not initialized")
	}

	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{out.to},
		Subject: out.subject,
		Html:    out.html,
		Text:    out.text,
		Tags:    []resend.Tag{{Name: "category", Value: "notification"}},
	}
	if out.notificationID > 0 {
		params.Headers = map[string]string{
			entityRefHeader: "notification-" + strconv.FormatInt(out.notificationID, 10),
		}
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("reset", rateLimitErr.Reset).
				Int64("notification_id", out.notificationID).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded (resets in %s seconds): %w", rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Debug().
		Str("email_id", sent.Id).
		Int64("notification_id", out.notificationID).
		Msg("email accepted by Resend")
	return nil
}
