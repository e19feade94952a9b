package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/Togather-Foundation/tablon/internal/config"
	"github.com/Togather-Foundation/tablon/internal/domain/notifications"
	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

//go:embed templates/*.html
var templateFS embed.FS

var _ notifications.EmailSender = (*Service)(nil)

// Service delivers notification mail through SMTP or the Resend API.
type Service struct {
	config       config.EmailConfig
	provider     string
	resendClient *resend.Client
	templates    *template.Template
	baseURL      string
	logger       zerolog.Logger
	now          func() time.Time
}

// NotificationData feeds templates/notification.html.
type NotificationData struct {
	Title       string
	Body        string
	Link        string
	CurrentYear int
}

// NewService validates the sender and prepares the configured provider.
// baseURL, when set, adds a link back to the site in every mail.
func NewService(cfg config.EmailConfig, baseURL string, logger zerolog.Logger) (*Service, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderSMTP
	}

	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
		switch provider {
		case ProviderSMTP:
			if cfg.SMTPHost == "" {
				return nil, fmt.Errorf("smtp provider requires SMTP_HOST")
			}
		case ProviderResend:
			if cfg.ResendAPIKey == "" {
				return nil, fmt.Errorf("resend provider requires RESEND_API_KEY")
			}
		default:
			return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	svc := &Service{
		config:    cfg,
		provider:  provider,
		templates: templates,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger.With().Str("component", "email").Str("provider", provider).Logger(),
		now:       time.Now,
	}
	if cfg.Enabled && provider == ProviderResend {
		svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc, nil
}

// Enabled reports whether mail actually leaves the process.
func (s *Service) Enabled() bool {
	return s.config.Enabled
}

// SendNotification renders and delivers one notification mail. With email
// disabled it only logs.
func (s *Service) SendNotification(ctx context.Context, msg notifications.Email) (err error) {
	if err := validateEmailAddress(msg.To); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	if !s.config.Enabled {
		s.logger.Info().
			Str("to", msg.To).
			Int64("notification_id", msg.NotificationID).
			Msg("email service disabled, skipping notification email")
		metrics.EmailDeliveries.WithLabelValues("disabled", "skipped").Inc()
		return nil
	}

	defer func() {
		result := "sent"
		if err != nil {
			result = "failed"
		}
		metrics.EmailDeliveries.WithLabelValues(s.provider, result).Inc()
	}()

	data := NotificationData{
		Title:       msg.Title,
		Body:        msg.Body,
		CurrentYear: s.now().Year(),
	}
	if s.baseURL != "" {
		data.Link = s.baseURL + "/"
	}
	htmlBody, err := s.renderTemplate("notification.html", data)
	if err != nil {
		return fmt.Errorf("failed to render notification template: %w", err)
	}

	out := outgoing{
		to:             msg.To,
		subject:        msg.Subject,
		html:           htmlBody,
		text:           plainText(data),
		notificationID: msg.NotificationID,
	}
	switch s.provider {
	case ProviderResend:
		err = s.sendViaResend(ctx, out)
	default:
		err = s.sendViaSMTP(ctx, out.to, out.subject, out.html)
	}
	if err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}

	s.logger.Info().
		Str("to", msg.To).
		Int64("notification_id", msg.NotificationID).
		Msg("notification email sent")
	return nil
}

func plainText(data NotificationData) string {
	text := data.Title + "\n\n" + data.Body
	if data.Link != "" {
		text += "\n\n" + data.Link
	}
	return text
}

// validateEmailAddress validates an email address for format and header injection attempts
func validateEmailAddress(email string) error {
	if strings.ContainsAny(email, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
